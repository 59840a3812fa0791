package repo

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Alijan123a/OpenLibrary/services/library/internal/db"
)

// ShelfRepository handles physical shelf records
type ShelfRepository struct {
	db  *db.DB
	log *zap.Logger
}

// NewShelfRepository creates a new shelf repository
func NewShelfRepository(database *db.DB, logger *zap.Logger) *ShelfRepository {
	return &ShelfRepository{
		db:  database,
		log: logger,
	}
}

// ListShelves returns all shelves
func (r *ShelfRepository) ListShelves(ctx context.Context) ([]*db.Shelf, error) {
	var shelves []*db.Shelf
	if err := r.db.WithContext(ctx).Order("id").Find(&shelves).Error; err != nil {
		return nil, err
	}
	return shelves, nil
}

// GetShelf retrieves a shelf by id
func (r *ShelfRepository) GetShelf(ctx context.Context, id uint) (*db.Shelf, error) {
	var shelf db.Shelf
	err := r.db.WithContext(ctx).First(&shelf, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShelfNotFound
		}
		return nil, err
	}
	return &shelf, nil
}

// CreateShelf creates a new shelf
func (r *ShelfRepository) CreateShelf(ctx context.Context, shelf *db.Shelf) error {
	if err := r.db.WithContext(ctx).Create(shelf).Error; err != nil {
		r.log.Error("Failed to create shelf", zap.Error(err))
		return err
	}
	r.log.Info("Shelf created", zap.Uint("id", shelf.ID), zap.String("location", shelf.Location))
	return nil
}

// UpdateShelf applies a partial update. Shrinking capacity below the shelf's
// current allocation total is rejected.
func (r *ShelfRepository) UpdateShelf(ctx context.Context, id uint, updates map[string]interface{}) (*db.Shelf, error) {
	var out *db.Shelf
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var shelf db.Shelf
		if err := forUpdate(tx).First(&shelf, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrShelfNotFound
			}
			return err
		}

		if raw, ok := updates["capacity"]; ok {
			if newCap, ok := raw.(int64); ok {
				allocated, err := shelfAllocationTotal(tx, id, 0)
				if err != nil {
					return err
				}
				if newCap < allocated {
					return &CapacityError{Limit: LimitShelfCapacity, Max: newCap, Current: allocated, Attempted: 0}
				}
			}
		}

		if err := tx.Model(&shelf).Updates(updates).Error; err != nil {
			return err
		}
		out = &shelf
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteShelf removes a shelf and its allocations, clearing the weak shelf
// links on historical borrows.
func (r *ShelfRepository) DeleteShelf(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var shelf db.Shelf
		if err := tx.First(&shelf, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrShelfNotFound
			}
			return err
		}

		var allocationIDs []uint
		if err := tx.Model(&db.ShelfBook{}).Where("shelf_id = ?", id).Pluck("id", &allocationIDs).Error; err != nil {
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

		return tx.Delete(&db.Shelf{}, id).Error
	})
}
