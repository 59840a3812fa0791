package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AuthServiceClient calls the Auth Service internal endpoint that resolves
// user ids to student numbers. The endpoint is guarded by a shared secret
// header instead of a bearer token; results are display-only enrichment and
// never gate any operation.
type AuthServiceClient struct {
	baseURL     string
	internalKey string
	http        *http.Client
	log         *zap.Logger
}

// NewAuthServiceClient creates an internal Auth Service client
func NewAuthServiceClient(baseURL, internalKey string, log *zap.Logger) *AuthServiceClient {
	return &AuthServiceClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		internalKey: internalKey,
		http:        &http.Client{Timeout: 5 * time.Second},
		log:         log,
	}
}

type userInfo struct {
	StudentNumber string `json:"student_number"`
}

// StudentNumbers resolves user ids to student numbers in one call. Partial
// or stale data is acceptable; any failure returns an error the caller is
// expected to swallow.
func (c *AuthServiceClient) StudentNumbers(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	endpoint := fmt.Sprintf("%s/api/internal/users-info/?ids=%s", c.baseURL, url.QueryEscape(strings.Join(ids, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Internal-Key", c.internalKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth service users-info returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var payload map[string]userInfo
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	result := make(map[string]string, len(payload))
	for id, info := range payload {
		result[id] = info.StudentNumber
	}
	return result, nil
}
