package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Alijan123a/OpenLibrary/pkg/logger"
	"github.com/Alijan123a/OpenLibrary/services/library/internal/auth"
	"github.com/Alijan123a/OpenLibrary/services/library/internal/db"
	"github.com/Alijan123a/OpenLibrary/services/library/internal/repo"
)

// stubVerifier resolves fixed tokens without a network round trip
type stubVerifier struct {
	users map[string]auth.TokenUser
}

func (v *stubVerifier) Verify(ctx context.Context, token string) (auth.TokenUser, error) {
	user, ok := v.users[token]
	if !ok {
		return auth.TokenUser{}, auth.ErrInvalidToken
	}
	return user, nil
}

// recordingPublisher captures emitted event names in order
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) record(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, name)
	return nil
}

func (p *recordingPublisher) PublishBookCreated(ctx context.Context, bookID uint, title, isbn string) error {
	return p.record("book.created")
}

func (p *recordingPublisher) PublishBookUpdated(ctx context.Context, bookID uint) error {
	return p.record("book.updated")
}

func (p *recordingPublisher) PublishBookDeleted(ctx context.Context, bookID uint) error {
	return p.record("book.deleted")
}

func (p *recordingPublisher) PublishBorrowCreated(ctx context.Context, borrowID uint, borrowerID string) error {
	return p.record("borrow.created")
}

func (p *recordingPublisher) PublishBorrowReturned(ctx context.Context, borrowID uint) error {
	return p.record("borrow.returned")
}

type stubResolver struct {
	numbers map[string]string
}

func (r *stubResolver) StudentNumbers(ctx context.Context, ids []string) (map[string]string, error) {
	out := map[string]string{}
	for _, id := range ids {
		if n, ok := r.numbers[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

type testEnv struct {
	router    *gin.Engine
	database  *db.DB
	publisher *recordingPublisher
	resolver  *stubResolver
}

const (
	tokenAdmin     = "admin-token"
	tokenLibrarian = "librarian-token"
	tokenStudent   = "student-token"
	tokenStudent2  = "student2-token"
)

func newTestEnv(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, gormDB.AutoMigrate(&db.Book{}, &db.Shelf{}, &db.ShelfBook{}, &db.Borrow{}))
	database := &db.DB{DB: gormDB}

	log := logger.NewLogger("test", "info")
	books := repo.NewBookRepository(database, log)
	shelves := repo.NewShelfRepository(database, log)
	inventory := repo.NewInventoryRepository(database, log)
	borrows := repo.NewBorrowRepository(database, inventory, log)

	verifier := &stubVerifier{users: map[string]auth.TokenUser{
		tokenAdmin:     {ID: "u-admin", Username: "root", Role: auth.RoleAdmin},
		tokenLibrarian: {ID: "u-lib", Username: "clerk", Role: auth.RoleLibrarian},
		tokenStudent:   {ID: "u-stu-1", Username: "sara", Role: auth.RoleBorrower, StudentNumber: "990123"},
		tokenStudent2:  {ID: "u-stu-2", Username: "reza", Role: auth.RoleBorrower},
	}}
	publisher := &recordingPublisher{}
	resolver := &stubResolver{numbers: map[string]string{}}

	srv := NewServer(books, shelves, inventory, borrows, verifier, resolver, publisher, log)
	return &testEnv{
		router:    srv.Router(),
		database:  database,
		publisher: publisher,
		resolver:  resolver,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthzIsOpen(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCatalogRequiresElevatedRole(t *testing.T) {
	env := newTestEnv(t)

	// Anonymous callers are rejected before any handler runs
	w := env.do(t, http.MethodGet, "/api/books", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// A garbage token fails verification outright
	w = env.do(t, http.MethodGet, "/api/books", "no-such-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Borrowers are authenticated but not allowed into catalog management
	w = env.do(t, http.MethodGet, "/api/books", tokenStudent, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/books", tokenLibrarian, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBookLifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/books", tokenLibrarian, gin.H{
		"title":        "Dune",
		"author":       "Frank Herbert",
		"isbn":         "9780441013593",
		"total_copies": 3,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeBody(t, w)
	assert.NotEmpty(t, created["qr_code_id"])
	assert.Equal(t, "Persian", created["language"])

	// Same ISBN again is a conflict
	w = env.do(t, http.MethodPost, "/api/books", tokenLibrarian, gin.H{
		"title":  "Dune (dup)",
		"author": "Frank Herbert",
		"isbn":   "9780441013593",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Malformed ISBN never reaches the repository
	w = env.do(t, http.MethodPost, "/api/books", tokenLibrarian, gin.H{
		"title":  "Bad",
		"author": "Nobody",
		"isbn":   "not-an-isbn",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPatch, "/api/books/1", tokenAdmin, gin.H{"publisher": "Ace"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ace", decodeBody(t, w)["publisher"])

	w = env.do(t, http.MethodDelete, "/api/books/1", tokenAdmin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/books/1", tokenAdmin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, []string{"book.created", "book.updated", "book.deleted"}, env.publisher.events)
}

func TestAllocateCapacityErrorBody(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.database.Create(&db.Book{Title: "Dune", Author: "Herbert", ISBN: "9780441013593", QRCodeID: "qr-1", TotalCopies: 10}).Error)
	require.NoError(t, env.database.Create(&db.Shelf{Location: "Aisle 1", Capacity: 4}).Error)

	w := env.do(t, http.MethodPost, "/api/shelf-books", tokenLibrarian, gin.H{
		"shelf_id":        1,
		"book_id":         1,
		"copies_in_shelf": 7,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, repo.LimitShelfCapacity, body["limit"])
	assert.Equal(t, float64(4), body["max"])
	assert.Equal(t, float64(7), body["attempted"])
}

func TestBorrowLifecycle(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.database.Create(&db.Book{Title: "Dune", Author: "Herbert", ISBN: "9780441013593", QRCodeID: "qr-dune", TotalCopies: 5}).Error)
	require.NoError(t, env.database.Create(&db.Shelf{Location: "Aisle 1", Capacity: 10}).Error)
	require.NoError(t, env.database.Create(&db.ShelfBook{ShelfID: 1, BookID: 1, CopiesInShelf: 2}).Error)

	// Borrow by explicit allocation id
	w := env.do(t, http.MethodPost, "/api/borrows", tokenStudent, gin.H{"shelf_book_id": 1})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeBody(t, w)
	assert.Equal(t, "u-stu-1", created["borrower_id"])
	assert.Equal(t, "990123", created["borrower_student_number"])

	// Borrow by QR code
	w = env.do(t, http.MethodPost, "/api/borrows", tokenStudent2, gin.H{"qr_code_id": "qr-dune"})
	require.Equal(t, http.StatusCreated, w.Code)

	// Both copies are out now
	w = env.do(t, http.MethodPost, "/api/borrows", tokenStudent, gin.H{"shelf_book_id": 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Neither id nor QR code is a validation failure
	w = env.do(t, http.MethodPost, "/api/borrows", tokenStudent, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Each borrower only sees their own loans
	w = env.do(t, http.MethodGet, "/api/borrows", tokenStudent, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["count"])

	// Staff see everything
	w = env.do(t, http.MethodGet, "/api/borrows", tokenLibrarian, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decodeBody(t, w)["count"])

	// A borrower cannot read someone else's loan
	w = env.do(t, http.MethodGet, "/api/borrows/2", tokenStudent, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodGet, "/api/borrows/2", tokenAdmin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Return without a body goes back to the original shelf
	w = env.do(t, http.MethodPatch, "/api/borrows/1", tokenStudent, nil)
	require.Equal(t, http.StatusOK, w.Code)
	returned := decodeBody(t, w)
	assert.NotNil(t, returned["return_date"])

	// Returning twice is a conflict
	w = env.do(t, http.MethodPatch, "/api/borrows/1", tokenStudent, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	assert.Contains(t, env.publisher.events, "borrow.created")
	assert.Contains(t, env.publisher.events, "borrow.returned")
}

func TestReturnToDifferentShelf(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.database.Create(&db.Book{Title: "Dune", Author: "Herbert", ISBN: "9780441013593", QRCodeID: "qr-dune", TotalCopies: 5}).Error)
	require.NoError(t, env.database.Create(&db.Shelf{Location: "Aisle 1", Capacity: 10}).Error)
	require.NoError(t, env.database.Create(&db.Shelf{Location: "Aisle 2", Capacity: 10}).Error)
	require.NoError(t, env.database.Create(&db.ShelfBook{ShelfID: 1, BookID: 1, CopiesInShelf: 2}).Error)

	w := env.do(t, http.MethodPost, "/api/borrows", tokenStudent, gin.H{"shelf_book_id": 1})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPatch, "/api/borrows/1", tokenStudent, gin.H{"shelf_id": 2})
	require.Equal(t, http.StatusOK, w.Code)

	var source, target db.ShelfBook
	require.NoError(t, env.database.Where("shelf_id = ?", 1).First(&source).Error)
	require.NoError(t, env.database.Where("shelf_id = ?", 2).First(&target).Error)
	assert.Equal(t, int64(1), source.CopiesInShelf)
	assert.Equal(t, int64(1), target.CopiesInShelf)
}

func TestListBorrowsBackfillsStudentNumbers(t *testing.T) {
	env := newTestEnv(t)
	env.resolver.numbers["u-stu-2"] = "990456"

	require.NoError(t, env.database.Create(&db.Book{Title: "Dune", Author: "Herbert", ISBN: "9780441013593", QRCodeID: "qr-dune", TotalCopies: 5}).Error)
	require.NoError(t, env.database.Create(&db.Shelf{Location: "Aisle 1", Capacity: 10}).Error)
	require.NoError(t, env.database.Create(&db.ShelfBook{ShelfID: 1, BookID: 1, CopiesInShelf: 2}).Error)

	// u-stu-2's token carries no student number, so the record is created
	// without one and the listing fills it in from the Auth Service
	w := env.do(t, http.MethodPost, "/api/borrows", tokenStudent2, gin.H{"shelf_book_id": 1})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/borrows", tokenLibrarian, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	results := body["results"].([]interface{})
	require.Len(t, results, 1)
	row := results[0].(map[string]interface{})
	assert.Equal(t, "990456", row["borrower_student_number"])
}
