// Package recordstore is the transport boundary to the remote student
// record store. It attaches the bearer credential, moves JSON in and out,
// and normalizes the store's loose field shapes into one set of types.
// It never retries and never touches cache or session state; callers own
// reconciliation.
package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"schoolportal/internal/metrics"
)

// Client calls the remote record store.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client with the given request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Do executes one request. A non-nil body is JSON-encoded; a non-empty
// credential is attached as a bearer authorization header. 2xx responses
// return the raw body (possibly empty); everything else returns a
// *TransportError with the message extracted from the response when the
// store provided one.
func (c *Client) Do(ctx context.Context, method, path string, body any, credential string) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	metrics.ObserveStore(method, start, err)
	if err != nil {
		return nil, &TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Message: "read response: " + err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Status: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}
	return data, nil
}

// errorMessage pulls a human-readable message out of an error body. The
// store answers with {"error": ...} or {"message": ...} depending on the
// failure; anything else falls back to the HTTP status text.
func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return "request failed: " + fallback
}

// ListStudents fetches the full student collection in store order.
func (c *Client) ListStudents(ctx context.Context, credential string) ([]Student, error) {
	raw, err := c.Do(ctx, http.MethodGet, "/students", nil, credential)
	if err != nil {
		return nil, err
	}
	var students []Student
	if err := json.Unmarshal(raw, &students); err != nil {
		return nil, fmt.Errorf("decode student list: %w", err)
	}
	return students, nil
}

// CreateStudent posts a new record and returns the store's representation,
// which carries the store-assigned id.
func (c *Client) CreateStudent(ctx context.Context, credential string, fields any) (Student, error) {
	raw, err := c.Do(ctx, http.MethodPost, "/students", fields, credential)
	if err != nil {
		return Student{}, err
	}
	var created Student
	if err := json.Unmarshal(raw, &created); err != nil {
		return Student{}, fmt.Errorf("decode created student: %w", err)
	}
	return created, nil
}

// UpdateStudent patches a partial field set and returns the store's updated
// representation.
func (c *Client) UpdateStudent(ctx context.Context, credential string, id ID, patch map[string]any) (Student, error) {
	raw, err := c.Do(ctx, http.MethodPatch, studentPath(id), patch, credential)
	if err != nil {
		return Student{}, err
	}
	var updated Student
	if err := json.Unmarshal(raw, &updated); err != nil {
		return Student{}, fmt.Errorf("decode updated student: %w", err)
	}
	return updated, nil
}

// DeleteStudent removes a record by id.
func (c *Client) DeleteStudent(ctx context.Context, credential string, id ID) error {
	_, err := c.Do(ctx, http.MethodDelete, studentPath(id), nil, credential)
	return err
}

// SetStudentActive hits the activate or deactivate endpoint. These endpoints
// return no body, so there is no representation to reconcile against.
func (c *Client) SetStudentActive(ctx context.Context, credential string, id ID, active bool) error {
	path := studentPath(id) + "/deactivate"
	if active {
		path = studentPath(id) + "/activate"
	}
	_, err := c.Do(ctx, http.MethodPatch, path, nil, credential)
	return err
}

func studentPath(id ID) string {
	return "/students/" + url.PathEscape(id.String())
}
