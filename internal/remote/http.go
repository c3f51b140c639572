package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/candleworks/candle/internal/types"
)

// HTTPDatastore implements Datastore against the candle server API.
type HTTPDatastore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTP creates a datastore client for the server at baseURL.
func NewHTTP(baseURL, apiKey string) *HTTPDatastore {
	return &HTTPDatastore{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (d *HTTPDatastore) ListRecords(ctx context.Context, ownerID string) ([]types.BirthdayRecord, error) {
	resp, err := d.send(ctx, http.MethodGet, d.ownerPath(ownerID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("list records", resp)
	}

	var lr types.ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}
	return lr.Records, nil
}

func (d *HTTPDatastore) CreateRecord(ctx context.Context, ownerID string, payload types.RecordPayload) (string, error) {
	resp, err := d.send(ctx, http.MethodPost, d.ownerPath(ownerID), payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", statusError("create record", resp)
	}

	var cr types.CreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if cr.ID == "" {
		return "", fmt.Errorf("create record: server returned empty id")
	}
	return cr.ID, nil
}

func (d *HTTPDatastore) UpdateRecord(ctx context.Context, ownerID, recordID string, payload types.RecordPayload) error {
	resp, err := d.send(ctx, http.MethodPut, d.recordPath(ownerID, recordID), payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("update record %s: %w", recordID, ErrNotFound)
	default:
		return statusError("update record", resp)
	}
}

func (d *HTTPDatastore) DeleteRecord(ctx context.Context, ownerID, recordID string) error {
	resp, err := d.send(ctx, http.MethodDelete, d.recordPath(ownerID, recordID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("delete record %s: %w", recordID, ErrNotFound)
	default:
		return statusError("delete record", resp)
	}
}

func (d *HTTPDatastore) ownerPath(ownerID string) string {
	return "/api/v1/owners/" + url.PathEscape(ownerID) + "/birthdays"
}

func (d *HTTPDatastore) recordPath(ownerID, recordID string) string {
	return d.ownerPath(ownerID) + "/" + url.PathEscape(recordID)
}

func (d *HTTPDatastore) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	return d.client.Do(req)
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if len(body) > 0 {
		return fmt.Errorf("%s: server returned %d: %s", op, resp.StatusCode, body)
	}
	return fmt.Errorf("%s: server returned %d", op, resp.StatusCode)
}
