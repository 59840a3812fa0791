package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Book represents a physical book owned by the library. TotalCopies counts
// every physical copy regardless of where it currently sits (shelves or
// warehouse); shelf placement is tracked separately by ShelfBook.
type Book struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Title         string     `gorm:"type:varchar(255);not null;index:idx_books_title" json:"title"`
	Author        string     `gorm:"type:varchar(255);not null;index:idx_books_author" json:"author"`
	ISBN          string     `gorm:"type:varchar(13);uniqueIndex:idx_books_isbn;not null" json:"isbn"`
	QRCodeID      string     `gorm:"type:varchar(36);uniqueIndex:idx_books_qr_code_id;not null" json:"qr_code_id"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	Description   string     `gorm:"type:text" json:"description,omitempty"`
	Publisher     string     `gorm:"type:varchar(255)" json:"publisher,omitempty"`
	Language      string     `gorm:"type:varchar(50);not null;default:'Persian'" json:"language"`
	TotalCopies   int64      `gorm:"not null;default:1" json:"total_copies"`
	Price         *int64     `json:"price,omitempty"` // Smallest currency unit (Rials)
	CreatedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName specifies the table name for Book model
func (Book) TableName() string {
	return "books"
}

// BeforeCreate hook to assign the scannable QR identifier and timestamps
func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.QRCodeID == "" {
		b.QRCodeID = uuid.New().String()
	}
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}
	return nil
}

// BeforeUpdate hook to update timestamp
func (b *Book) BeforeUpdate(tx *gorm.DB) error {
	b.UpdatedAt = time.Now()
	return nil
}

// Shelf is a physical location with a hard capacity on how many copies it
// can hold across all books.
type Shelf struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Location string `gorm:"type:varchar(255);not null" json:"location"`
	Capacity int64  `gorm:"not null;default:50" json:"capacity"`
}

// TableName specifies the table name for Shelf model
func (Shelf) TableName() string {
	return "shelves"
}

// ShelfBook records how many copies of one book sit on one shelf. A row
// whose CopiesInShelf reaches zero is defunct and gets deleted.
// CopiesInShelf is never decremented on borrow; availability is derived by
// subtracting open borrows at read time.
type ShelfBook struct {
	ID            uint  `gorm:"primaryKey" json:"id"`
	ShelfID       uint  `gorm:"not null;index:idx_shelf_books_shelf;uniqueIndex:idx_shelf_books_pair" json:"shelf_id"`
	BookID        uint  `gorm:"not null;index:idx_shelf_books_book;uniqueIndex:idx_shelf_books_pair" json:"book_id"`
	CopiesInShelf int64 `gorm:"not null;default:1" json:"copies_in_shelf"`

	Shelf *Shelf `gorm:"constraint:OnDelete:CASCADE" json:"shelf,omitempty"`
	Book  *Book  `gorm:"constraint:OnDelete:CASCADE" json:"book,omitempty"`
}

// TableName specifies the table name for ShelfBook model
func (ShelfBook) TableName() string {
	return "shelf_books"
}

// Borrow is a loan record. Identity comes from the Auth Service token and is
// copied in at creation; the shelf/book links are weak (nullable, cleared on
// allocation delete) so historical loans survive inventory reorganization.
type Borrow struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	ShelfBookID  *uint      `gorm:"index:idx_borrows_shelf_book" json:"shelf_book_id"`
	BookID       *uint      `gorm:"index:idx_borrows_book" json:"book_id"`
	BorrowedDate time.Time  `gorm:"not null" json:"borrowed_date"`
	ReturnDate   *time.Time `gorm:"index:idx_borrows_return_date" json:"return_date"`

	BorrowerID            string `gorm:"type:varchar(64);index:idx_borrows_borrower" json:"borrower_id"`
	BorrowerUsername      string `gorm:"type:varchar(150)" json:"borrower_username"`
	BorrowerRole          string `gorm:"type:varchar(50)" json:"borrower_role"`
	BorrowerStudentNumber string `gorm:"type:varchar(20)" json:"borrower_student_number"`

	ShelfBook *ShelfBook `gorm:"constraint:OnDelete:SET NULL" json:"shelf_book,omitempty"`
	Book      *Book      `gorm:"constraint:OnDelete:SET NULL" json:"book,omitempty"`
}

// TableName specifies the table name for Borrow model
func (Borrow) TableName() string {
	return "borrows"
}

// BookIDForReturn resolves which book a returned copy belongs to, preferring
// the denormalized link and falling back to the shelf allocation's book.
func (b *Borrow) BookIDForReturn(source *ShelfBook) (uint, bool) {
	if b.BookID != nil {
		return *b.BookID, true
	}
	if source != nil {
		return source.BookID, true
	}
	return 0, false
}

// BeforeCreate hook to stamp the borrow date
func (b *Borrow) BeforeCreate(tx *gorm.DB) error {
	if b.BorrowedDate.IsZero() {
		b.BorrowedDate = time.Now()
	}
	return nil
}
