package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Alijan123a/OpenLibrary/services/library/internal/db"
)

func (s *Server) listShelves(c *gin.Context) {
	shelves, err := s.shelves.ListShelves(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(shelves), "results": shelves})
}

type createShelfRequest struct {
	Location string `json:"location" binding:"required,max=255"`
	Capacity *int64 `json:"capacity" binding:"omitempty,gte=1"`
}

func (s *Server) createShelf(c *gin.Context) {
	var req createShelfRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	shelf := &db.Shelf{Location: req.Location, Capacity: 50}
	if req.Capacity != nil {
		shelf.Capacity = *req.Capacity
	}

	if err := s.shelves.CreateShelf(c.Request.Context(), shelf); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, shelf)
}

func (s *Server) getShelf(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	shelf, err := s.shelves.GetShelf(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, shelf)
}

type updateShelfRequest struct {
	Location *string `json:"location" binding:"omitempty,max=255"`
	Capacity *int64  `json:"capacity" binding:"omitempty,gte=1"`
}

func (s *Server) updateShelf(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateShelfRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.Capacity != nil {
		updates["capacity"] = *req.Capacity
	}

	shelf, err := s.shelves.UpdateShelf(c.Request.Context(), id, updates)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, shelf)
}

func (s *Server) deleteShelf(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.shelves.DeleteShelf(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
