package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Alijan123a/OpenLibrary/services/library/internal/db"
)

// BookFilter carries the optional list filters: title substring, exact
// author (case-insensitive), published date range, free-text search over
// title/description, ordering and pagination.
type BookFilter struct {
	Title         string
	Author        string
	PublishedFrom *time.Time
	PublishedTo   *time.Time
	Search        string
	Ordering      string // "published_date", "price", "-" prefix for descending
	Page          int
	PageSize      int
}

// BookRepository handles the book catalog
type BookRepository struct {
	db  *db.DB
	log *zap.Logger
}

// NewBookRepository creates a new book repository
func NewBookRepository(database *db.DB, logger *zap.Logger) *BookRepository {
	return &BookRepository{
		db:  database,
		log: logger,
	}
}

// ListBooks returns a paginated list of books with optional filters
func (r *BookRepository) ListBooks(ctx context.Context, f BookFilter) ([]*db.Book, int64, error) {
	query := r.db.WithContext(ctx).Model(&db.Book{})

	if f.Title != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(f.Title)+"%")
	}
	if f.Author != "" {
		query = query.Where("LOWER(author) = ?", strings.ToLower(f.Author))
	}
	if f.PublishedFrom != nil {
		query = query.Where("published_date >= ?", f.PublishedFrom)
	}
	if f.PublishedTo != nil {
		query = query.Where("published_date <= ?", f.PublishedTo)
	}
	if f.Search != "" {
		s := "%" + strings.ToLower(f.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", s, s)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		r.log.Error("Failed to count books", zap.Error(err))
		return nil, 0, err
	}

	switch f.Ordering {
	case "published_date":
		query = query.Order("published_date")
	case "-published_date":
		query = query.Order("published_date DESC")
	case "price":
		query = query.Order("price")
	case "-price":
		query = query.Order("price DESC")
	default:
		query = query.Order("created_at DESC")
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var books []*db.Book
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&books).Error; err != nil {
		r.log.Error("Failed to list books", zap.Error(err))
		return nil, 0, err
	}

	return books, total, nil
}

// GetBook retrieves a book by id
func (r *BookRepository) GetBook(ctx context.Context, id uint) (*db.Book, error) {
	var book db.Book
	err := r.db.WithContext(ctx).First(&book, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		r.log.Error("Failed to get book", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return &book, nil
}

// GetBookByQRCode retrieves a book by its scannable identifier
func (r *BookRepository) GetBookByQRCode(ctx context.Context, qrCodeID string) (*db.Book, error) {
	var book db.Book
	err := r.db.WithContext(ctx).Where("qr_code_id = ?", qrCodeID).First(&book).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return &book, nil
}

// CreateBook creates a new book in the catalog
func (r *BookRepository) CreateBook(ctx context.Context, book *db.Book) error {
	var existing db.Book
	err := r.db.WithContext(ctx).Where("isbn = ?", book.ISBN).First(&existing).Error
	if err == nil {
		return ErrBookAlreadyExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		r.log.Error("Failed to check book existence", zap.String("isbn", book.ISBN), zap.Error(err))
		return err
	}

	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		r.log.Error("Failed to create book", zap.String("isbn", book.ISBN), zap.Error(err))
		return err
	}

	r.log.Info("Book created", zap.Uint("id", book.ID), zap.String("title", book.Title))
	return nil
}

// UpdateBook applies a partial update to a book. Lowering total_copies below
// the book's current shelf allocation is rejected, since it would break the
// allocation invariant retroactively.
func (r *BookRepository) UpdateBook(ctx context.Context, id uint, updates map[string]interface{}) (*db.Book, error) {
	var out *db.Book
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var book db.Book
		if err := forUpdate(tx).First(&book, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		if raw, ok := updates["total_copies"]; ok {
			newTotal, ok := raw.(int64)
			if ok {
				allocated, err := bookAllocationTotal(tx, id, 0)
				if err != nil {
					return err
				}
				if newTotal < allocated {
					return &CapacityError{Limit: LimitBookTotalCopies, Max: newTotal, Current: allocated, Attempted: 0}
				}
			}
		}

		if err := tx.Model(&book).Updates(updates).Error; err != nil {
			return err
		}
		out = &book
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("Book updated", zap.Uint("id", id))
	return out, nil
}

// DeleteBook removes a book along with its shelf allocations; historical
// borrows keep their rows with the weak links cleared.
func (r *BookRepository) DeleteBook(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var book db.Book
		if err := tx.First(&book, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		var allocationIDs []uint
		if err := tx.Model(&db.ShelfBook{}).Where("book_id = ?", id).Pluck("id", &allocationIDs).Error; err != nil {
			return err
		}
		if len(allocationIDs) > 0 {
			if err := tx.Model(&db.Borrow{}).Where("shelf_book_id IN ?", allocationIDs).
				Update("shelf_book_id", nil).Error; err != nil {
				return err
			}
			if err := tx.Delete(&db.ShelfBook{}, allocationIDs).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&db.Borrow{}).Where("book_id = ?", id).Update("book_id", nil).Error; err != nil {
			return err
		}

		return tx.Delete(&db.Book{}, id).Error
	})
}
