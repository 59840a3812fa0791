package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Alijan123a/OpenLibrary/services/library/internal/repo"
)

// writeError maps repository errors onto structured 4xx responses. Nothing
// is swallowed: unknown errors surface as 500 with a generic body.
func writeError(c *gin.Context, err error) {
	var capErr *repo.CapacityError
	if errors.As(err, &capErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     capErr.Error(),
			"limit":     capErr.Limit,
			"max":       capErr.Max,
			"current":   capErr.Current,
			"attempted": capErr.Attempted,
		})
		return
	}

	switch {
	case errors.Is(err, repo.ErrBookNotFound),
		errors.Is(err, repo.ErrShelfNotFound),
		errors.Is(err, repo.ErrShelfBookNotFound),
		errors.Is(err, repo.ErrBorrowNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, repo.ErrNoCopiesAvailable),
		errors.Is(err, repo.ErrAlreadyReturned),
		errors.Is(err, repo.ErrBookAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, repo.ErrMissingBookReference),
		errors.Is(err, repo.ErrShelfLinkMissing),
		errors.Is(err, repo.ErrNegativeCopies):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// bindError reports a request body or query that failed validation
func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// pathID parses the :id path parameter
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}
