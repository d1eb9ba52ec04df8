package synclog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/imroc/req/v3"
	"github.com/retrosync/retrosync/internal/syncerr"
	"github.com/retrosync/retrosync/internal/version"
)

const (
	HeaderAPIKey = "X-API-Key"

	v1SyncLog       = "/api/sync/log"
	v1SyncHeartbeat = "/api/sync/heartbeat"
)

var (
	ErrNoAPIURL = errors.New("synclog: api url missing")
	ErrNoAPIKey = errors.New("synclog: api key missing")
)

var userAgent = fmt.Sprintf("RetroSync/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// APIError is an error reported by the backend inside its response envelope.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %d - %s", e.StatusCode, e.Message)
}

// apiResponse is the envelope every backend endpoint answers with.
type apiResponse struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type logRequest struct {
	Action   Action  `json:"action"`
	FilePath string  `json:"filePath"`
	FileSize *int64  `json:"fileSize"`
	Status   Status  `json:"status"`
	ErrorMsg *string `json:"errorMsg"`
	Metadata *string `json:"metadata"`
}

// APIClient talks to the RetroSync backend. It makes exactly one attempt per call, the daemon
// loops provide retry by recurrence.
type APIClient struct {
	client *req.Client
}

func NewAPIClient(baseURL, apiKey string) (*APIClient, error) {
	if baseURL == "" {
		return nil, ErrNoAPIURL
	}
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	client := req.C().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetUserAgent(userAgent).
		SetCommonHeader(HeaderAPIKey, apiKey).
		SetCommonRetryCount(0).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	return &APIClient{client: client}, nil
}

// Append posts a sync event to the backend log.
func (c *APIClient) Append(ctx context.Context, ev Event) error {
	body := &logRequest{
		Action:   ev.Action,
		FilePath: ev.FilePath,
		FileSize: ev.Size,
		Status:   ev.Status,
		ErrorMsg: optional(ev.Error),
		Metadata: optional(ev.Note),
	}

	var result apiResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetSuccessResult(&result).
		SetErrorResult(&result).
		Post(v1SyncLog)

	return handleAPIError(resp, err, &result, "sync log")
}

// Heartbeat tells the backend this device is alive.
func (c *APIClient) Heartbeat(ctx context.Context) error {
	var result apiResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&result).
		SetErrorResult(&result).
		Post(v1SyncHeartbeat)

	return handleAPIError(resp, err, &result, "heartbeat")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// handleAPIError folds transport failures, HTTP error states and unsuccessful envelopes into one
// error value.
func handleAPIError(resp *req.Response, requestErr error, result *apiResponse, operation string) error {
	if requestErr != nil {
		return syncerr.Network(operation, "", requestErr)
	}

	if resp.IsErrorState() {
		msg := result.Error
		if msg == "" {
			msg = resp.Status
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: msg}
		// 5xx and 429 are retried by the next loop iteration
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return syncerr.Network(operation, "", apiErr)
		}
		return fmt.Errorf("%s: %w", operation, apiErr)
	}

	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = operation + " failed"
		}
		return fmt.Errorf("%s: %w", operation, &APIError{StatusCode: resp.StatusCode, Message: msg})
	}

	return nil
}

var _ Appender = (*APIClient)(nil)
