package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijan123a/OpenLibrary/pkg/logger"
)

func TestStudentNumbers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-key", r.Header.Get("X-Internal-Key"))
		assert.Equal(t, "1,2", r.URL.Query().Get("ids"))
		w.Write([]byte(`{"1": {"student_number": "990123"}, "2": {"student_number": ""}}`))
	}))
	defer srv.Close()

	client := NewAuthServiceClient(srv.URL, "secret-key", logger.NewLogger("test", "info"))

	numbers, err := client.StudentNumbers(context.Background(), []string{"1", "2"})
	require.NoError(t, err)
	assert.Equal(t, "990123", numbers["1"])
	assert.Equal(t, "", numbers["2"])
}

func TestStudentNumbersEmptyIDs(t *testing.T) {
	client := NewAuthServiceClient("http://unused", "k", logger.NewLogger("test", "info"))

	numbers, err := client.StudentNumbers(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, numbers)
}

func TestStudentNumbersRejectedKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewAuthServiceClient(srv.URL, "wrong", logger.NewLogger("test", "info"))

	_, err := client.StudentNumbers(context.Background(), []string{"1"})
	assert.Error(t, err)
}
