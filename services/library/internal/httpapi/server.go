package httpapi

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Alijan123a/OpenLibrary/services/library/internal/auth"
	"github.com/Alijan123a/OpenLibrary/services/library/internal/repo"
)

// EventPublisher is the slice of the events publisher the API uses. A nil
// publisher disables event emission entirely.
type EventPublisher interface {
	PublishBookCreated(ctx context.Context, bookID uint, title, isbn string) error
	PublishBookUpdated(ctx context.Context, bookID uint) error
	PublishBookDeleted(ctx context.Context, bookID uint) error
	PublishBorrowCreated(ctx context.Context, borrowID uint, borrowerID string) error
	PublishBorrowReturned(ctx context.Context, borrowID uint) error
}

// StudentNumberResolver backfills borrower student numbers for display.
// Lookups are best-effort; errors degrade to empty strings.
type StudentNumberResolver interface {
	StudentNumbers(ctx context.Context, ids []string) (map[string]string, error)
}

// Server wires the repositories behind the REST surface
type Server struct {
	books     *repo.BookRepository
	shelves   *repo.ShelfRepository
	inventory *repo.InventoryRepository
	borrows   *repo.BorrowRepository
	verifier  auth.Verifier
	students  StudentNumberResolver
	events    EventPublisher
	log       *zap.Logger
}

// NewServer creates the API server
func NewServer(
	books *repo.BookRepository,
	shelves *repo.ShelfRepository,
	inventory *repo.InventoryRepository,
	borrows *repo.BorrowRepository,
	verifier auth.Verifier,
	students StudentNumberResolver,
	events EventPublisher,
	log *zap.Logger,
) *Server {
	registerValidators()
	return &Server{
		books:     books,
		shelves:   shelves,
		inventory: inventory,
		borrows:   borrows,
		verifier:  verifier,
		students:  students,
		events:    events,
		log:       log,
	}
}

var isbnPattern = regexp.MustCompile(`^(?:\d{9}[\dXx]|\d{13})$`)

// registerValidators installs custom binding validations on gin's validator
func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("isbn_code", func(fl validator.FieldLevel) bool {
		return isbnPattern.MatchString(fl.Field().String())
	})
}

// Router builds the gin engine with all routes and middleware attached
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log), metricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(auth.Middleware(s.verifier, s.log))

	elevated := auth.RequireRole(auth.RoleAdmin, auth.RoleLibrarian)
	anyMember := auth.RequireRole(auth.RoleAdmin, auth.RoleLibrarian, auth.RoleBorrower)

	books := api.Group("/books", elevated)
	{
		books.GET("", s.listBooks)
		books.POST("", s.createBook)
		books.GET("/:id", s.getBook)
		books.PATCH("/:id", s.updateBook)
		books.DELETE("/:id", s.deleteBook)
	}

	shelves := api.Group("/shelves", elevated)
	{
		shelves.GET("", s.listShelves)
		shelves.POST("", s.createShelf)
		shelves.GET("/:id", s.getShelf)
		shelves.PATCH("/:id", s.updateShelf)
		shelves.DELETE("/:id", s.deleteShelf)
	}

	shelfBooks := api.Group("/shelf-books", elevated)
	{
		shelfBooks.GET("", s.listShelfBooks)
		shelfBooks.POST("", s.createShelfBook)
		shelfBooks.GET("/:id", s.getShelfBook)
		shelfBooks.PATCH("/:id", s.updateShelfBook)
		shelfBooks.DELETE("/:id", s.deleteShelfBook)
	}

	borrows := api.Group("/borrows", anyMember)
	{
		borrows.GET("", s.listBorrows)
		borrows.POST("", s.createBorrow)
		borrows.GET("/:id", s.getBorrow)
		borrows.PATCH("/:id", s.returnBorrow)
	}

	return router
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
