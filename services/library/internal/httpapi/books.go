package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Alijan123a/OpenLibrary/services/library/internal/db"
	"github.com/Alijan123a/OpenLibrary/services/library/internal/repo"
)

type listBooksQuery struct {
	Title         string `form:"title"`
	Author        string `form:"author"`
	PublishedFrom string `form:"published_date__gte"`
	PublishedTo   string `form:"published_date__lte"`
	Search        string `form:"search"`
	Ordering      string `form:"ordering" binding:"omitempty,oneof=published_date -published_date price -price"`
	Page          int    `form:"page"`
	PageSize      int    `form:"page_size"`
}

func (s *Server) listBooks(c *gin.Context) {
	var q listBooksQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	filter := repo.BookFilter{
		Title:    q.Title,
		Author:   q.Author,
		Search:   q.Search,
		Ordering: q.Ordering,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if q.PublishedFrom != "" {
		t, err := time.Parse("2006-01-02", q.PublishedFrom)
		if err != nil {
			bindError(c, err)
			return
		}
		filter.PublishedFrom = &t
	}
	if q.PublishedTo != "" {
		t, err := time.Parse("2006-01-02", q.PublishedTo)
		if err != nil {
			bindError(c, err)
			return
		}
		filter.PublishedTo = &t
	}

	books, total, err := s.books.ListBooks(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": total, "results": books})
}

type createBookRequest struct {
	Title         string  `json:"title" binding:"required,max=255"`
	Author        string  `json:"author" binding:"required,max=255"`
	ISBN          string  `json:"isbn" binding:"required,isbn_code"`
	PublishedDate *string `json:"published_date"`
	Description   string  `json:"description"`
	Publisher     string  `json:"publisher"`
	Language      string  `json:"language"`
	TotalCopies   *int64  `json:"total_copies" binding:"omitempty,gte=1"`
	Price         *int64  `json:"price" binding:"omitempty,gte=0"`
}

func (s *Server) createBook(c *gin.Context) {
	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	book := &db.Book{
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		Description: req.Description,
		Publisher:   req.Publisher,
		TotalCopies: 1,
	}
	if req.Language != "" {
		book.Language = req.Language
	} else {
		book.Language = "Persian"
	}
	if req.TotalCopies != nil {
		book.TotalCopies = *req.TotalCopies
	}
	book.Price = req.Price
	if req.PublishedDate != nil {
		t, err := time.Parse("2006-01-02", *req.PublishedDate)
		if err != nil {
			bindError(c, err)
			return
		}
		book.PublishedDate = &t
	}

	if err := s.books.CreateBook(c.Request.Context(), book); err != nil {
		writeError(c, err)
		return
	}

	if s.events != nil {
		if err := s.events.PublishBookCreated(c.Request.Context(), book.ID, book.Title, book.ISBN); err != nil {
			s.log.Warn("Failed to publish book created event", zap.Error(err))
		}
	}

	c.JSON(http.StatusCreated, book)
}

func (s *Server) getBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	book, err := s.books.GetBook(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

type updateBookRequest struct {
	Title         *string `json:"title" binding:"omitempty,max=255"`
	Author        *string `json:"author" binding:"omitempty,max=255"`
	PublishedDate *string `json:"published_date"`
	Description   *string `json:"description"`
	Publisher     *string `json:"publisher"`
	Language      *string `json:"language"`
	TotalCopies   *int64  `json:"total_copies" binding:"omitempty,gte=1"`
	Price         *int64  `json:"price" binding:"omitempty,gte=0"`
}

func (s *Server) updateBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Author != nil {
		updates["author"] = *req.Author
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Publisher != nil {
		updates["publisher"] = *req.Publisher
	}
	if req.Language != nil {
		updates["language"] = *req.Language
	}
	if req.TotalCopies != nil {
		updates["total_copies"] = *req.TotalCopies
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.PublishedDate != nil {
		t, err := time.Parse("2006-01-02", *req.PublishedDate)
		if err != nil {
			bindError(c, err)
			return
		}
		updates["published_date"] = t
	}

	book, err := s.books.UpdateBook(c.Request.Context(), id, updates)
	if err != nil {
		writeError(c, err)
		return
	}

	if s.events != nil {
		if err := s.events.PublishBookUpdated(c.Request.Context(), book.ID); err != nil {
			s.log.Warn("Failed to publish book updated event", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, book)
}

func (s *Server) deleteBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.books.DeleteBook(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	if s.events != nil {
		if err := s.events.PublishBookDeleted(c.Request.Context(), id); err != nil {
			s.log.Warn("Failed to publish book deleted event", zap.Error(err))
		}
	}

	c.Status(http.StatusNoContent)
}
