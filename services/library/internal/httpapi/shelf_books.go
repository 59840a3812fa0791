package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type listShelfBooksQuery struct {
	ShelfID uint `form:"shelf_id"`
	BookID  uint `form:"book_id"`
}

func (s *Server) listShelfBooks(c *gin.Context) {
	var q listShelfBooksQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	rows, err := s.inventory.ListShelfBooks(c.Request.Context(), q.ShelfID, q.BookID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(rows), "results": rows})
}

type allocateRequest struct {
	ShelfID       uint  `json:"shelf_id" binding:"required"`
	BookID        uint  `json:"book_id" binding:"required"`
	CopiesInShelf int64 `json:"copies_in_shelf" binding:"required,gte=1"`
}

func (s *Server) createShelfBook(c *gin.Context) {
	var req allocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	row, err := s.inventory.Allocate(c.Request.Context(), req.ShelfID, req.BookID, req.CopiesInShelf)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (s *Server) getShelfBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	row, err := s.inventory.GetShelfBook(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	available, err := s.inventory.AvailableCount(c.Request.Context(), row.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":              row.ID,
		"shelf_id":        row.ShelfID,
		"book_id":         row.BookID,
		"copies_in_shelf": row.CopiesInShelf,
		"available_count": available,
		"shelf":           row.Shelf,
		"book":            row.Book,
	})
}

type updateShelfBookRequest struct {
	CopiesInShelf *int64 `json:"copies_in_shelf" binding:"required,gte=0"`
}

// updateShelfBook re-allocates the row to the requested count; zero deletes
// the allocation.
func (s *Server) updateShelfBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateShelfBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	row, err := s.inventory.GetShelfBook(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	updated, err := s.inventory.Allocate(c.Request.Context(), row.ShelfID, row.BookID, *req.CopiesInShelf)
	if err != nil {
		writeError(c, err)
		return
	}
	if updated == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteShelfBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.inventory.DeleteShelfBook(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
