package repo

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Alijan123a/OpenLibrary/services/library/internal/db"
)

// InventoryRepository maintains the shelf allocation ledger: which shelves
// hold how many copies of which books, and the capacity invariants around
// that. Copies are never moved in and out of the ledger on borrow/return to
// the same shelf; only cross-shelf returns shift allocations.
type InventoryRepository struct {
	db  *db.DB
	log *zap.Logger
}

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(database *db.DB, logger *zap.Logger) *InventoryRepository {
	return &InventoryRepository{
		db:  database,
		log: logger,
	}
}

// Allocate creates or updates the allocation of a book onto a shelf,
// setting its copy count to copies. Both capacity checks run inside the
// transaction with the shelf and book rows locked, so concurrent Allocate
// calls against the same shelf or book cannot both slip past validation.
// Setting copies to zero deletes the row and clears loan back-references.
func (r *InventoryRepository) Allocate(ctx context.Context, shelfID, bookID uint, copies int64) (*db.ShelfBook, error) {
	if copies < 0 {
		return nil, ErrNegativeCopies
	}

	var out *db.ShelfBook

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var shelf db.Shelf
		if err := forUpdate(tx).First(&shelf, shelfID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrShelfNotFound
			}
			return err
		}

		var book db.Book
		if err := forUpdate(tx).First(&book, bookID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		var row db.ShelfBook
		existing := true
		err := tx.Where("shelf_id = ? AND book_id = ?", shelfID, bookID).First(&row).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			existing = false
		}

		// Both totals exclude the row being updated: increasing an existing
		// allocation is validated against the other rows only.
		var excludeID uint
		if existing {
			excludeID = row.ID
		}

		shelfTotal, err := shelfAllocationTotal(tx, shelfID, excludeID)
		if err != nil {
			return err
		}
		if shelfTotal+copies > shelf.Capacity {
			return &CapacityError{Limit: LimitShelfCapacity, Max: shelf.Capacity, Current: shelfTotal, Attempted: copies}
		}

		bookTotal, err := bookAllocationTotal(tx, bookID, excludeID)
		if err != nil {
			return err
		}
		if bookTotal+copies > book.TotalCopies {
			return &CapacityError{Limit: LimitBookTotalCopies, Max: book.TotalCopies, Current: bookTotal, Attempted: copies}
		}

		if copies == 0 {
			if existing {
				return r.deleteAllocation(tx, &row)
			}
			return nil
		}

		if existing {
			row.CopiesInShelf = copies
			if err := tx.Model(&row).Update("copies_in_shelf", copies).Error; err != nil {
				return err
			}
		} else {
			row = db.ShelfBook{ShelfID: shelfID, BookID: bookID, CopiesInShelf: copies}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		out = &row
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out != nil {
		r.log.Info("Allocation updated",
			zap.Uint("shelf_id", shelfID),
			zap.Uint("book_id", bookID),
			zap.Int64("copies", copies))
	}
	return out, nil
}

// AvailableCount returns copies_in_shelf minus the open loans against the
// allocation. Derived at read time, never stored.
func (r *InventoryRepository) AvailableCount(ctx context.Context, shelfBookID uint) (int64, error) {
	var row db.ShelfBook
	if err := r.db.WithContext(ctx).First(&row, shelfBookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrShelfBookNotFound
		}
		return 0, err
	}

	open, err := openBorrowCount(r.db.WithContext(ctx), row.ID)
	if err != nil {
		return 0, err
	}
	return row.CopiesInShelf - open, nil
}

// GetShelfBook retrieves one allocation with its shelf and book preloaded
func (r *InventoryRepository) GetShelfBook(ctx context.Context, id uint) (*db.ShelfBook, error) {
	var row db.ShelfBook
	err := r.db.WithContext(ctx).Preload("Shelf").Preload("Book").First(&row, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShelfBookNotFound
		}
		return nil, err
	}
	return &row, nil
}

// ListShelfBooks returns allocations, optionally filtered by shelf or book
func (r *InventoryRepository) ListShelfBooks(ctx context.Context, shelfID, bookID uint) ([]*db.ShelfBook, error) {
	q := r.db.WithContext(ctx).Model(&db.ShelfBook{}).Preload("Shelf").Preload("Book")
	if shelfID != 0 {
		q = q.Where("shelf_id = ?", shelfID)
	}
	if bookID != 0 {
		q = q.Where("book_id = ?", bookID)
	}

	var rows []*db.ShelfBook
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteShelfBook removes an allocation outright, clearing the weak
// references from historical loans
func (r *InventoryRepository) DeleteShelfBook(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row db.ShelfBook
		if err := tx.First(&row, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrShelfBookNotFound
			}
			return err
		}
		return r.deleteAllocation(tx, &row)
	})
}

// deleteAllocation drops a ShelfBook row and nulls out the shelf link on any
// borrows referencing it; their denormalized book link stays intact.
func (r *InventoryRepository) deleteAllocation(tx *gorm.DB, row *db.ShelfBook) error {
	if err := tx.Model(&db.Borrow{}).
		Where("shelf_book_id = ?", row.ID).
		Update("shelf_book_id", nil).Error; err != nil {
		return err
	}
	return tx.Delete(&db.ShelfBook{}, row.ID).Error
}

// moveCopy shifts one allocated copy from the source allocation onto the
// target shelf inside the caller's transaction. The source is decremented
// first (and deleted at zero), so the book's allocation total never grows
// past total_copies mid-move. Returns whether the source row was deleted.
func (r *InventoryRepository) moveCopy(tx *gorm.DB, source *db.ShelfBook, targetShelfID uint) (bool, error) {
	sourceDeleted := false

	source.CopiesInShelf--
	if source.CopiesInShelf <= 0 {
		if err := r.deleteAllocation(tx, source); err != nil {
			return false, err
		}
		sourceDeleted = true
	} else {
		if err := tx.Model(source).Update("copies_in_shelf", source.CopiesInShelf).Error; err != nil {
			return false, err
		}
	}

	if err := r.addCopy(tx, targetShelfID, source.BookID); err != nil {
		return sourceDeleted, err
	}
	return sourceDeleted, nil
}

// addCopy places one copy of a book onto a shelf, creating the allocation
// row if absent. Validates the shelf capacity and the book's total before
// writing.
func (r *InventoryRepository) addCopy(tx *gorm.DB, shelfID, bookID uint) error {
	var shelf db.Shelf
	if err := forUpdate(tx).First(&shelf, shelfID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrShelfNotFound
		}
		return err
	}

	var book db.Book
	if err := tx.First(&book, bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookNotFound
		}
		return err
	}

	shelfTotal, err := shelfAllocationTotal(tx, shelfID, 0)
	if err != nil {
		return err
	}
	if shelfTotal+1 > shelf.Capacity {
		return &CapacityError{Limit: LimitShelfCapacity, Max: shelf.Capacity, Current: shelfTotal, Attempted: 1}
	}

	bookTotal, err := bookAllocationTotal(tx, bookID, 0)
	if err != nil {
		return err
	}
	if bookTotal+1 > book.TotalCopies {
		return &CapacityError{Limit: LimitBookTotalCopies, Max: book.TotalCopies, Current: bookTotal, Attempted: 1}
	}

	var row db.ShelfBook
	err = forUpdate(tx).Where("shelf_id = ? AND book_id = ?", shelfID, bookID).First(&row).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		row = db.ShelfBook{ShelfID: shelfID, BookID: bookID, CopiesInShelf: 1}
		return tx.Create(&row).Error
	}

	return tx.Model(&row).Update("copies_in_shelf", row.CopiesInShelf+1).Error
}
