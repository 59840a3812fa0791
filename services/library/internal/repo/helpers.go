package repo

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Alijan123a/OpenLibrary/services/library/internal/db"
)

// forUpdate adds a row-level lock on Postgres. SQLite (used in tests)
// serializes writers on its own and rejects FOR UPDATE syntax.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// shelfAllocationTotal sums copies_in_shelf over a shelf's allocations,
// excluding one row when excludeID is non-zero.
func shelfAllocationTotal(tx *gorm.DB, shelfID uint, excludeID uint) (int64, error) {
	q := tx.Model(&db.ShelfBook{}).Where("shelf_id = ?", shelfID)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var total int64
	err := q.Select("COALESCE(SUM(copies_in_shelf), 0)").Scan(&total).Error
	return total, err
}

// bookAllocationTotal sums copies_in_shelf over all of a book's allocations,
// excluding one row when excludeID is non-zero.
func bookAllocationTotal(tx *gorm.DB, bookID uint, excludeID uint) (int64, error) {
	q := tx.Model(&db.ShelfBook{}).Where("book_id = ?", bookID)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var total int64
	err := q.Select("COALESCE(SUM(copies_in_shelf), 0)").Scan(&total).Error
	return total, err
}

// openBorrowCount counts open loans against one allocation.
func openBorrowCount(tx *gorm.DB, shelfBookID uint) (int64, error) {
	var n int64
	err := tx.Model(&db.Borrow{}).
		Where("shelf_book_id = ? AND return_date IS NULL", shelfBookID).
		Count(&n).Error
	return n, err
}
