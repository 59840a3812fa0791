package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Alijan123a/OpenLibrary/services/library/internal/auth"
	"github.com/Alijan123a/OpenLibrary/services/library/internal/db"
	"github.com/Alijan123a/OpenLibrary/services/library/internal/repo"
)

type listBorrowsQuery struct {
	Active bool `form:"active"`
}

func (s *Server) listBorrows(c *gin.Context) {
	user, _ := auth.CurrentUser(c)

	var q listBorrowsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	opts := repo.ListBorrowsOptions{ActiveOnly: q.Active}
	// Borrowers only ever see their own loans
	if !user.Role.Elevated() {
		opts.BorrowerID = user.ID
	}

	borrows, err := s.borrows.List(c.Request.Context(), opts)
	if err != nil {
		writeError(c, err)
		return
	}

	s.enrichStudentNumbers(c, borrows)
	c.JSON(http.StatusOK, gin.H{"count": len(borrows), "results": borrows})
}

type createBorrowRequest struct {
	ShelfBookID *uint  `json:"shelf_book_id" binding:"required_without=QRCodeID"`
	QRCodeID    string `json:"qr_code_id" binding:"required_without=ShelfBookID"`
}

func (s *Server) createBorrow(c *gin.Context) {
	user, _ := auth.CurrentUser(c)

	var req createBorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	// Identity comes from the verified token, never from the request body
	borrower := repo.Borrower{
		ID:            user.ID,
		Username:      user.Username,
		Role:          string(user.Role),
		StudentNumber: user.StudentNumber,
	}

	var borrow *db.Borrow
	var err error
	if req.ShelfBookID != nil {
		borrow, err = s.borrows.CreateBorrow(c.Request.Context(), *req.ShelfBookID, borrower)
	} else {
		borrow, err = s.borrows.CreateBorrowByQR(c.Request.Context(), req.QRCodeID, borrower)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	if s.events != nil {
		if err := s.events.PublishBorrowCreated(c.Request.Context(), borrow.ID, borrower.ID); err != nil {
			s.log.Warn("Failed to publish borrow created event", zap.Error(err))
		}
	}

	c.JSON(http.StatusCreated, borrow)
}

func (s *Server) getBorrow(c *gin.Context) {
	user, _ := auth.CurrentUser(c)

	id, ok := pathID(c)
	if !ok {
		return
	}

	borrow, err := s.borrows.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	if !user.Role.Elevated() && borrow.BorrowerID != user.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": repo.ErrBorrowNotFound.Error()})
		return
	}

	s.enrichStudentNumbers(c, []*db.Borrow{borrow})
	c.JSON(http.StatusOK, borrow)
}

type returnBorrowRequest struct {
	ShelfID *uint `json:"shelf_id"`
}

// returnBorrow closes an open loan. An optional shelf_id returns the copy to
// a different shelf, moving the allocation.
func (s *Server) returnBorrow(c *gin.Context) {
	user, _ := auth.CurrentUser(c)

	id, ok := pathID(c)
	if !ok {
		return
	}

	// The body is optional; a bare PATCH returns to the original shelf
	var req returnBorrowRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}

	existing, err := s.borrows.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !user.Role.Elevated() && existing.BorrowerID != user.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": repo.ErrBorrowNotFound.Error()})
		return
	}

	borrow, err := s.borrows.Return(c.Request.Context(), id, req.ShelfID)
	if err != nil {
		writeError(c, err)
		return
	}

	if s.events != nil {
		if err := s.events.PublishBorrowReturned(c.Request.Context(), borrow.ID); err != nil {
			s.log.Warn("Failed to publish borrow returned event", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, borrow)
}

// enrichStudentNumbers backfills borrower student numbers from the Auth
// Service for display. Best-effort: failures leave whatever was captured at
// borrow time.
func (s *Server) enrichStudentNumbers(c *gin.Context, borrows []*db.Borrow) {
	if s.students == nil || len(borrows) == 0 {
		return
	}

	seen := map[string]struct{}{}
	ids := make([]string, 0, len(borrows))
	for _, b := range borrows {
		if b.BorrowerID == "" {
			continue
		}
		if _, ok := seen[b.BorrowerID]; ok {
			continue
		}
		seen[b.BorrowerID] = struct{}{}
		ids = append(ids, b.BorrowerID)
	}

	numbers, err := s.students.StudentNumbers(c.Request.Context(), ids)
	if err != nil {
		s.log.Warn("Student number lookup failed", zap.Error(err))
		return
	}

	for _, b := range borrows {
		if n, ok := numbers[b.BorrowerID]; ok && n != "" {
			b.BorrowerStudentNumber = n
		}
	}
}
