package repo

import (
	"errors"
	"fmt"
)

var (
	// ErrBookNotFound is returned when a book is not found
	ErrBookNotFound = errors.New("book not found")

	// ErrBookAlreadyExists is returned when creating a book whose ISBN is taken
	ErrBookAlreadyExists = errors.New("book with this ISBN already exists")

	// ErrShelfNotFound is returned when a shelf is not found
	ErrShelfNotFound = errors.New("shelf not found")

	// ErrShelfBookNotFound is returned when a shelf allocation is not found
	ErrShelfBookNotFound = errors.New("shelf allocation not found")

	// ErrBorrowNotFound is returned when a borrow record is not found
	ErrBorrowNotFound = errors.New("borrow not found")

	// ErrNoCopiesAvailable is returned when every copy of an allocation is out on loan
	ErrNoCopiesAvailable = errors.New("no copies available")

	// ErrAlreadyReturned is returned when closing a borrow that is already closed
	ErrAlreadyReturned = errors.New("borrow already returned")

	// ErrMissingBookReference is returned when a borrow has lost all relation to a book
	ErrMissingBookReference = errors.New("borrow has no book reference")

	// ErrShelfLinkMissing is returned when a same-shelf return is requested but
	// the borrow's shelf allocation was deleted; the caller must name a target shelf
	ErrShelfLinkMissing = errors.New("original shelf allocation removed, specify a target shelf")

	// ErrNegativeCopies is returned when an allocation is given a negative copy count
	ErrNegativeCopies = errors.New("copy count cannot be negative")
)

// Capacity limit identifiers carried by CapacityError.
const (
	LimitShelfCapacity   = "shelf_capacity"
	LimitBookTotalCopies = "book_total_copies"
)

// CapacityError reports an allocation that would exceed either the shelf's
// capacity or the book's total owned copies. Current excludes the row being
// updated, so Current+Attempted is the total the store would end up with.
type CapacityError struct {
	Limit     string `json:"limit"`
	Max       int64  `json:"max"`
	Current   int64  `json:"current"`
	Attempted int64  `json:"attempted"`
}

func (e *CapacityError) Error() string {
	switch e.Limit {
	case LimitShelfCapacity:
		return fmt.Sprintf("cannot place %d copies: shelf capacity (%d) would be exceeded, %d copies already on the shelf", e.Attempted, e.Max, e.Current)
	case LimitBookTotalCopies:
		return fmt.Sprintf("cannot allocate %d copies: total allocation would exceed the book's %d owned copies, %d already allocated", e.Attempted, e.Max, e.Current)
	}
	return fmt.Sprintf("capacity limit %s exceeded: max=%d current=%d attempted=%d", e.Limit, e.Max, e.Current, e.Attempted)
}
