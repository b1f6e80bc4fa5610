package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fieldclock/server/internal/models"
)

// Transport sends queued operations to the server
type Transport interface {
	// Submit sends one operation. A *models.Rejection error is fatal for the
	// operation; a *TransportError means the server was unreachable and the
	// operation should be retried later.
	Submit(ctx context.Context, op *models.PendingOperation) (*models.ClockResponse, error)

	// Probe reports whether the server is currently reachable
	Probe(ctx context.Context) bool
}

// TransportError indicates the server could not be reached or answered with
// a server fault. The queued operation is kept for retry.
type TransportError struct {
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPTransport submits operations over the server's clock API
type HTTPTransport struct {
	baseURL      string
	apiKey       string
	apiKeyHeader string
	client       *http.Client
}

// NewHTTPTransport creates a transport for the given server
func NewHTTPTransport(baseURL, apiKey, apiKeyHeader string) *HTTPTransport {
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	return &HTTPTransport{
		baseURL:      baseURL,
		apiKey:       apiKey,
		apiKeyHeader: apiKeyHeader,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

// Submit posts the operation to /api/clock and interprets the result
func (t *HTTPTransport) Submit(ctx context.Context, op *models.PendingOperation) (*models.ClockResponse, error) {
	reqBody := models.ClockRequest{
		OperationKind:   op.OperationKind,
		JobSiteID:       op.JobSiteID,
		Lat:             op.Lat,
		Lng:             op.Lng,
		AccuracyMeters:  op.AccuracyMeters,
		EventID:         op.EventID,
		ClientTimestamp: op.CreatedAt.UnixMilli(),
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal clock request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/clock", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(t.apiKeyHeader, t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Message: "clock submission failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &TransportError{Message: fmt.Sprintf("server fault: %s", resp.Status)}
	}

	var body struct {
		models.ClockResponse
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &TransportError{Message: "undecodable server response", Err: err}
	}

	if !body.OK {
		return nil, &models.Rejection{
			Reason: rejectionReason(resp.StatusCode, body.Reason),
			Detail: rejectionDetail(body.Detail, body.Error),
		}
	}

	return &body.ClockResponse, nil
}

// rejectionReason classifies a rejection that arrived without a reason
// code by its HTTP status. Auth failures are final and must not be
// retried as if the server had faulted.
func rejectionReason(status int, reason string) string {
	if reason != "" {
		return reason
	}
	switch status {
	case http.StatusUnauthorized:
		return models.ReasonUnauthenticated
	case http.StatusForbidden:
		return models.ReasonPermissionDenied
	default:
		return models.ReasonInternal
	}
}

func rejectionDetail(detail, legacyError string) string {
	if detail != "" {
		return detail
	}
	return legacyError
}

// Probe checks the server health endpoint
func (t *HTTPTransport) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
