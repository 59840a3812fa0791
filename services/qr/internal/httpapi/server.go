package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Alijan123a/OpenLibrary/services/qr/internal/clients"
	"github.com/Alijan123a/OpenLibrary/services/qr/internal/codec"
)

// maxUploadSize bounds decode uploads to something a phone camera produces
const maxUploadSize = 10 << 20

// BookFinder resolves a scanned code to a catalog record
type BookFinder interface {
	FindBookByQR(ctx context.Context, qrCodeID string) (map[string]interface{}, error)
}

// Server exposes QR encoding and decoding over HTTP. The service is
// stateless and unauthenticated; codes carry no secrets.
type Server struct {
	finder BookFinder
	log    *zap.Logger
}

// NewServer creates the API server
func NewServer(finder BookFinder, log *zap.Logger) *Server {
	return &Server{finder: finder, log: log}
}

// Router builds the gin engine with all routes and middleware attached.
// allowOrigins is a comma-separated origin list; "*" allows any.
func (s *Server) Router(allowOrigins string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log), corsMiddleware(allowOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/generate", s.generateFromQuery)
	router.POST("/generate", s.generateFromBody)
	router.POST("/decode", s.decodeUpload)
	router.POST("/scan", s.scanLookup)

	return router
}

func corsMiddleware(allowOrigins string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if allowOrigins == "" || allowOrigins == "*" {
		cfg.AllowAllOrigins = true
	} else {
		origins := strings.Split(allowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.AllowOrigins = origins
	}
	cfg.AllowCredentials = !cfg.AllowAllOrigins
	return cors.New(cfg)
}

type generateRequest struct {
	QRCodeID string `json:"qr_code_id" binding:"required"`
}

func (s *Server) generateFromQuery(c *gin.Context) {
	s.writePNG(c, c.Query("qr_code_id"))
}

func (s *Server) generateFromBody(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.writePNG(c, req.QRCodeID)
}

func (s *Server) writePNG(c *gin.Context, id string) {
	png, err := codec.Encode(id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// decodeUpload reads a multipart image upload and returns the encoded id
func (s *Server) decodeUpload(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}

	id, err := codec.Decode(data)
	switch {
	case errors.Is(err, codec.ErrNotAnImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, codec.ErrNoSymbolFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusOK, gin.H{"qr_code_id": id})
	}
}

type scanRequest struct {
	QRCodeID string `json:"qr_code_id" binding:"required"`
}

// scanLookup resolves a scanned code against the library service catalog
func (s *Server) scanLookup(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	book, err := s.finder.FindBookByQR(c.Request.Context(), req.QRCodeID)
	switch {
	case errors.Is(err, clients.ErrBackendUnconfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	case errors.Is(err, clients.ErrBookNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, clients.ErrBackendUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusOK, gin.H{"found": true, "book": book})
	}
}

// requestLogger logs one line per request the way the service logs
// everything else
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
