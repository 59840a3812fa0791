package codec

import (
	"bytes"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/skip2/go-qrcode"
)

var (
	// ErrEmptyPayload is returned when there is nothing to encode
	ErrEmptyPayload = errors.New("empty payload")
	// ErrNotAnImage is returned when the uploaded bytes cannot be decoded
	// as an image
	ErrNotAnImage = errors.New("not a valid image")
	// ErrNoSymbolFound is returned when the image contains no readable
	// QR symbol
	ErrNoSymbolFound = errors.New("no qr symbol found")
)

// pngSize is the edge length of generated QR images in pixels
const pngSize = 256

// Encode renders the given identifier as a QR code PNG with medium error
// correction. The output is deterministic for a given input.
func Encode(id string) ([]byte, error) {
	if id == "" {
		return nil, ErrEmptyPayload
	}
	return qrcode.Encode(id, qrcode.Medium, pngSize)
}

// Decode extracts the encoded string from an image containing a QR symbol.
// If the image holds more than one symbol, the first one detected wins.
func Decode(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", ErrNotAnImage
	}

	bitmap, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", ErrNotAnImage
	}

	result, err := zxqrcode.NewQRCodeReader().Decode(bitmap, nil)
	if err != nil {
		return "", ErrNoSymbolFound
	}
	return result.GetText(), nil
}
