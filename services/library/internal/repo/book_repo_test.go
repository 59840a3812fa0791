package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijan123a/OpenLibrary/pkg/logger"
	"github.com/Alijan123a/OpenLibrary/services/library/internal/db"
)

func TestCreateBookAssignsQRCode(t *testing.T) {
	database := setupTestDB(t)
	log := logger.NewLogger("test", "info")
	books := NewBookRepository(database, log)
	ctx := context.Background()

	book := &db.Book{Title: "Test Book", Author: "Test Author", ISBN: "9781111111111", TotalCopies: 2}
	require.NoError(t, books.CreateBook(ctx, book))
	assert.NotEmpty(t, book.QRCodeID)

	got, err := books.GetBookByQRCode(ctx, book.QRCodeID)
	require.NoError(t, err)
	assert.Equal(t, book.ID, got.ID)
}

func TestCreateBookDuplicateISBN(t *testing.T) {
	database := setupTestDB(t)
	log := logger.NewLogger("test", "info")
	books := NewBookRepository(database, log)
	ctx := context.Background()

	require.NoError(t, books.CreateBook(ctx, &db.Book{Title: "One", Author: "A", ISBN: "9782222222222"}))

	err := books.CreateBook(ctx, &db.Book{Title: "Two", Author: "B", ISBN: "9782222222222"})
	assert.ErrorIs(t, err, ErrBookAlreadyExists)
}

func TestListBooksFilters(t *testing.T) {
	database := setupTestDB(t)
	log := logger.NewLogger("test", "info")
	books := NewBookRepository(database, log)
	ctx := context.Background()

	d1 := time.Date(1965, 8, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(1984, 6, 1, 0, 0, 0, 0, time.UTC)
	price1, price2 := int64(120000), int64(90000)

	require.NoError(t, books.CreateBook(ctx, &db.Book{
		Title: "Dune", Author: "Frank Herbert", ISBN: "9783333333331",
		PublishedDate: &d1, Price: &price1, Description: "Desert planet epic",
	}))
	require.NoError(t, books.CreateBook(ctx, &db.Book{
		Title: "Neuromancer", Author: "William Gibson", ISBN: "9783333333332",
		PublishedDate: &d2, Price: &price2, Description: "Cyberspace heist",
	}))

	byTitle, total, err := books.ListBooks(ctx, BookFilter{Title: "dune"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, byTitle, 1)
	assert.Equal(t, "Dune", byTitle[0].Title)

	byAuthor, _, err := books.ListBooks(ctx, BookFilter{Author: "william gibson"})
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, "Neuromancer", byAuthor[0].Title)

	from := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	recent, _, err := books.ListBooks(ctx, BookFilter{PublishedFrom: &from})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Neuromancer", recent[0].Title)

	bySearch, _, err := books.ListBooks(ctx, BookFilter{Search: "heist"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)

	byPrice, _, err := books.ListBooks(ctx, BookFilter{Ordering: "price"})
	require.NoError(t, err)
	require.Len(t, byPrice, 2)
	assert.Equal(t, "Neuromancer", byPrice[0].Title)
}

func TestUpdateBookTotalCopiesBelowAllocation(t *testing.T) {
	database := setupTestDB(t)
	log := logger.NewLogger("test", "info")
	books := NewBookRepository(database, log)
	inv := NewInventoryRepository(database, log)
	ctx := context.Background()

	book := seedBook(t, database, "Shrinking", "9784444444444", 3)
	shelf := seedShelf(t, database, "A", 10)
	_, err := inv.Allocate(ctx, shelf.ID, book.ID, 3)
	require.NoError(t, err)

	_, err = books.UpdateBook(ctx, book.ID, map[string]interface{}{"total_copies": int64(2)})
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, LimitBookTotalCopies, capErr.Limit)

	updated, err := books.UpdateBook(ctx, book.ID, map[string]interface{}{"total_copies": int64(5), "publisher": "Ace"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), updated.TotalCopies)
	assert.Equal(t, "Ace", updated.Publisher)
}

func TestDeleteBookKeepsLoanHistory(t *testing.T) {
	database := setupTestDB(t)
	log := logger.NewLogger("test", "info")
	books := NewBookRepository(database, log)
	inv := NewInventoryRepository(database, log)
	borrows := NewBorrowRepository(database, inv, log)
	ctx := context.Background()

	book := seedBook(t, database, "Withdrawn", "9785555555555", 1)
	shelf := seedShelf(t, database, "A", 10)
	row, err := inv.Allocate(ctx, shelf.ID, book.ID, 1)
	require.NoError(t, err)

	borrow, err := borrows.CreateBorrow(ctx, row.ID, Borrower{ID: "9", Username: "nika", Role: "student"})
	require.NoError(t, err)

	require.NoError(t, books.DeleteBook(ctx, book.ID))
	assert.ErrorIs(t, books.DeleteBook(ctx, book.ID), ErrBookNotFound)

	got, err := borrows.Get(ctx, borrow.ID)
	require.NoError(t, err)
	assert.Nil(t, got.BookID)
	assert.Nil(t, got.ShelfBookID)
	assert.Equal(t, "9", got.BorrowerID)
}
