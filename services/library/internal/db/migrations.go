package db

import (
	"gorm.io/gorm"
)

// RunMigrations runs all database migrations
func RunMigrations(db *DB) error {
	if err := db.AutoMigrate(&Book{}, &Shelf{}, &ShelfBook{}, &Borrow{}); err != nil {
		return err
	}

	if db.Dialector.Name() == "postgres" {
		if err := createIndexes(db.DB); err != nil {
			return err
		}
	}

	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Full-text search over title/description for the books list endpoint
		`CREATE INDEX IF NOT EXISTS idx_books_title_search ON books USING gin(to_tsvector('english', title))`,

		// Open-loan counting is always scoped to one allocation
		`CREATE INDEX IF NOT EXISTS idx_borrows_open ON borrows(shelf_book_id) WHERE return_date IS NULL`,
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			return err
		}
	}

	return nil
}
