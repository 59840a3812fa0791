package repo

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Alijan123a/OpenLibrary/services/library/internal/db"
)

// Borrower is the identity captured on a loan at creation time, copied from
// the verified token rather than kept as a live foreign key.
type Borrower struct {
	ID            string
	Username      string
	Role          string
	StudentNumber string
}

// BorrowRepository drives the loan lifecycle: open (return_date null) to
// closed (return_date set), with availability derived from the inventory
// ledger at the instant of creation.
type BorrowRepository struct {
	db        *db.DB
	inventory *InventoryRepository
	log       *zap.Logger
}

// NewBorrowRepository creates a new borrow repository
func NewBorrowRepository(database *db.DB, inventory *InventoryRepository, logger *zap.Logger) *BorrowRepository {
	return &BorrowRepository{
		db:        database,
		inventory: inventory,
		log:       logger,
	}
}

// insertIfAvailable inserts an open borrow against an allocation only while
// the allocation still has an unloaned copy. The allocation row is locked
// first, so concurrent requests for the last copy queue on the row lock and
// the loser's availability count sees the winner's committed borrow. The
// comparison and the insert are still one statement as a second line of
// defense; a loser sees zero rows affected.
func (r *BorrowRepository) insertIfAvailable(tx *gorm.DB, shelfBookID uint, borrower Borrower) (*db.Borrow, error) {
	var sb db.ShelfBook
	if err := forUpdate(tx).First(&sb, shelfBookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShelfBookNotFound
		}
		return nil, err
	}

	now := time.Now()
	res := tx.Exec(`
		INSERT INTO borrows (shelf_book_id, book_id, borrowed_date, borrower_id, borrower_username, borrower_role, borrower_student_number)
		SELECT sb.id, sb.book_id, ?, ?, ?, ?, ?
		FROM shelf_books sb
		WHERE sb.id = ?
		  AND sb.copies_in_shelf > (
			SELECT COUNT(*) FROM borrows b
			WHERE b.shelf_book_id = sb.id AND b.return_date IS NULL
		  )`,
		now, borrower.ID, borrower.Username, borrower.Role, borrower.StudentNumber, shelfBookID)
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		// The allocation exists (locked above), so every copy is out
		return nil, ErrNoCopiesAvailable
	}

	var borrow db.Borrow
	err := tx.Where("shelf_book_id = ? AND borrower_id = ? AND return_date IS NULL", shelfBookID, borrower.ID).
		Order("id DESC").
		First(&borrow).Error
	if err != nil {
		return nil, err
	}
	return &borrow, nil
}

// CreateBorrow opens a loan against one allocation, failing with
// ErrNoCopiesAvailable when every copy on that shelf is already out.
func (r *BorrowRepository) CreateBorrow(ctx context.Context, shelfBookID uint, borrower Borrower) (*db.Borrow, error) {
	var borrow *db.Borrow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		borrow, err = r.insertIfAvailable(tx, shelfBookID, borrower)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("Borrow created",
		zap.Uint("borrow_id", borrow.ID),
		zap.Uint("shelf_book_id", shelfBookID),
		zap.String("borrower_id", borrower.ID))
	return borrow, nil
}

// CreateBorrowByQR resolves a book by its scannable identifier and opens a
// loan against its first allocation with an available copy. Allocations are
// tried in id order, so the tie-break among shelves is deterministic.
func (r *BorrowRepository) CreateBorrowByQR(ctx context.Context, qrCodeID string, borrower Borrower) (*db.Borrow, error) {
	var borrow *db.Borrow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var book db.Book
		if err := tx.Where("qr_code_id = ?", qrCodeID).First(&book).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		var allocations []db.ShelfBook
		if err := tx.Where("book_id = ?", book.ID).Order("id").Find(&allocations).Error; err != nil {
			return err
		}

		for i := range allocations {
			b, err := r.insertIfAvailable(tx, allocations[i].ID, borrower)
			if err == nil {
				borrow = b
				return nil
			}
			if !errors.Is(err, ErrNoCopiesAvailable) {
				return err
			}
		}
		return ErrNoCopiesAvailable
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("Borrow created by QR scan",
		zap.Uint("borrow_id", borrow.ID),
		zap.String("qr_code_id", qrCodeID),
		zap.String("borrower_id", borrower.ID))
	return borrow, nil
}

// Return closes an open borrow. With no target shelf (or the original
// shelf) only return_date is set; copies_in_shelf was never decremented.
// With a different target shelf one allocated copy is moved from the
// original shelf to the target in the same transaction, deleting the source
// allocation if it reaches zero and clearing the borrow's shelf link.
func (r *BorrowRepository) Return(ctx context.Context, borrowID uint, targetShelfID *uint) (*db.Borrow, error) {
	var out *db.Borrow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var borrow db.Borrow
		if err := forUpdate(tx).First(&borrow, borrowID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBorrowNotFound
			}
			return err
		}
		if borrow.ReturnDate != nil {
			return ErrAlreadyReturned
		}

		var source *db.ShelfBook
		if borrow.ShelfBookID != nil {
			var sb db.ShelfBook
			if err := forUpdate(tx).First(&sb, *borrow.ShelfBookID).Error; err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
			} else {
				source = &sb
			}
		}

		sameShelf := targetShelfID == nil || (source != nil && source.ShelfID == *targetShelfID)
		if sameShelf {
			if targetShelfID == nil && source == nil {
				return ErrShelfLinkMissing
			}
		} else {
			bookID, ok := borrow.BookIDForReturn(source)
			if !ok {
				return ErrMissingBookReference
			}

			if source != nil {
				deleted, err := r.inventory.moveCopy(tx, source, *targetShelfID)
				if err != nil {
					return err
				}
				if deleted {
					borrow.ShelfBookID = nil
				}
			} else {
				// Allocation was removed while the copy was out; shelving it
				// on the target grows the book's allocation back by one.
				if err := r.inventory.addCopy(tx, *targetShelfID, bookID); err != nil {
					return err
				}
			}
		}

		now := time.Now()
		borrow.ReturnDate = &now
		if err := tx.Model(&db.Borrow{}).Where("id = ?", borrow.ID).
			Select("return_date", "shelf_book_id").
			Updates(map[string]interface{}{
				"return_date":   borrow.ReturnDate,
				"shelf_book_id": borrow.ShelfBookID,
			}).Error; err != nil {
			return err
		}

		out = &borrow
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("Borrow returned", zap.Uint("borrow_id", out.ID))
	return out, nil
}

// Get retrieves one borrow with its book preloaded
func (r *BorrowRepository) Get(ctx context.Context, id uint) (*db.Borrow, error) {
	var borrow db.Borrow
	err := r.db.WithContext(ctx).Preload("Book").Preload("ShelfBook").First(&borrow, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBorrowNotFound
		}
		return nil, err
	}
	return &borrow, nil
}

// ListBorrowsOptions filters the borrow listing. BorrowerID restricts the
// result to one caller's own loans; ActiveOnly drops closed loans.
type ListBorrowsOptions struct {
	BorrowerID string
	ActiveOnly bool
}

// List returns borrow records, newest first
func (r *BorrowRepository) List(ctx context.Context, opts ListBorrowsOptions) ([]*db.Borrow, error) {
	q := r.db.WithContext(ctx).Model(&db.Borrow{}).Preload("Book").Preload("ShelfBook")
	if opts.BorrowerID != "" {
		q = q.Where("borrower_id = ?", opts.BorrowerID)
	}
	if opts.ActiveOnly {
		q = q.Where("return_date IS NULL")
	}

	var borrows []*db.Borrow
	if err := q.Order("borrowed_date DESC, id DESC").Find(&borrows).Error; err != nil {
		return nil, err
	}
	return borrows, nil
}
