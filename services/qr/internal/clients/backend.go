package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrBackendUnconfigured is returned when no backend URL is set
	ErrBackendUnconfigured = errors.New("backend api url not configured")
	// ErrBackendUnavailable is returned when the library service cannot be
	// reached or answers with an error
	ErrBackendUnavailable = errors.New("library service unavailable")
	// ErrBookNotFound is returned when no book carries the scanned code
	ErrBookNotFound = errors.New("book not found")
)

const lookupPageSize = 100

// BackendClient looks up books in the library service by their QR
// identifier. It pages through the catalog and matches client-side.
type BackendClient struct {
	baseURL string
	token   string
	client  *http.Client
	log     *zap.Logger
}

// NewBackendClient creates a client for the library service catalog
func NewBackendClient(baseURL, token string, log *zap.Logger) *BackendClient {
	return &BackendClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

type bookPage struct {
	Count   int64                    `json:"count"`
	Results []map[string]interface{} `json:"results"`
}

// FindBookByQR returns the catalog record whose qr_code_id matches
func (c *BackendClient) FindBookByQR(ctx context.Context, qrCodeID string) (map[string]interface{}, error) {
	if c.baseURL == "" {
		return nil, ErrBackendUnconfigured
	}

	for page := 1; ; page++ {
		books, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		for _, b := range books {
			if id, ok := b["qr_code_id"].(string); ok && id == qrCodeID {
				return b, nil
			}
		}
		if len(books) < lookupPageSize {
			return nil, ErrBookNotFound
		}
	}
}

func (c *BackendClient) fetchPage(ctx context.Context, page int) ([]map[string]interface{}, error) {
	q := url.Values{}
	q.Set("page", fmt.Sprintf("%d", page))
	q.Set("page_size", fmt.Sprintf("%d", lookupPageSize))

	endpoint := fmt.Sprintf("%s/api/books?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("Library service request failed", zap.Error(err))
		return nil, ErrBackendUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("Library service returned error", zap.Int("status", resp.StatusCode))
		return nil, ErrBackendUnavailable
	}

	var body bookPage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, ErrBackendUnavailable
	}
	return body.Results, nil
}
