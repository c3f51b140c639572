package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/candleworks/candle/internal/store"
	"github.com/candleworks/candle/internal/types"
)

const testAPIKey = "test-key-123"

// mockStore is an in-memory store.Store for handler tests.
type mockStore struct {
	records map[string][]types.BirthdayRecord
	changes []store.ChangeLogEntry
	nextID  int
	failAll bool
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[string][]types.BirthdayRecord)}
}

func (m *mockStore) ListRecords(_ context.Context, ownerID string) ([]types.BirthdayRecord, error) {
	if m.failAll {
		return nil, fmt.Errorf("disk on fire")
	}
	if ownerID == "" {
		return nil, store.ErrInvalidOwner
	}
	out := m.records[ownerID]
	if out == nil {
		out = []types.BirthdayRecord{}
	}
	return out, nil
}

func (m *mockStore) GetRecord(_ context.Context, ownerID, id string) (*types.BirthdayRecord, error) {
	for _, r := range m.records[ownerID] {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) CreateRecord(_ context.Context, ownerID string, payload types.RecordPayload) (*types.BirthdayRecord, error) {
	if m.failAll {
		return nil, fmt.Errorf("disk on fire")
	}
	m.nextID++
	record := types.BirthdayRecord{
		ID:      fmt.Sprintf("01HGW2N5E56F2ZXQWRR78YQR%02d", m.nextID),
		OwnerID: ownerID,
		Name:    payload.Name, Date: payload.Date,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	m.records[ownerID] = append(m.records[ownerID], record)
	return &record, nil
}

func (m *mockStore) UpdateRecord(_ context.Context, ownerID, id string, payload types.RecordPayload) (*types.BirthdayRecord, error) {
	for i, r := range m.records[ownerID] {
		if r.ID == id {
			m.records[ownerID][i].Name = payload.Name
			m.records[ownerID][i].Date = payload.Date
			return &m.records[ownerID][i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) DeleteRecord(_ context.Context, ownerID, id string) error {
	for i, r := range m.records[ownerID] {
		if r.ID == id {
			m.records[ownerID] = append(m.records[ownerID][:i], m.records[ownerID][i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *mockStore) ChangesSince(_ context.Context, ownerID string, afterSeq int64, limit int) ([]store.ChangeLogEntry, error) {
	out := []store.ChangeLogEntry{}
	for _, c := range m.changes {
		if c.OwnerID == ownerID && c.Sequence > afterSeq && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockStore) LatestSequence(_ context.Context) (int64, error) { return 0, nil }

func (m *mockStore) GetStats(_ context.Context) (*store.Stats, error) {
	if m.failAll {
		return nil, fmt.Errorf("disk on fire")
	}
	var count int64
	for _, rs := range m.records {
		count += int64(len(rs))
	}
	return &store.Stats{BirthdayCount: count, SchemaVersion: 1}, nil
}

func (m *mockStore) GetSnapshot(_ context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (m *mockStore) Close() error { return nil }

func newTestServer(t *testing.T, ms *mockStore) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(NewHandler(ms, testAPIKey, "test")))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, auth bool) *http.Response {
	t.Helper()
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestHealthEndpointIsPublic(t *testing.T) {
	srv := newTestServer(t, newMockStore())

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var health types.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "healthy" || health.Version != "test" {
		t.Errorf("health = %+v", health)
	}
}

func TestBirthdayRoutesRequireAuth(t *testing.T) {
	srv := newTestServer(t, newMockStore())

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/owners/alice/birthdays", nil, false)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content type = %q", ct)
	}
}

func TestCreateAndListBirthdays(t *testing.T) {
	srv := newTestServer(t, newMockStore())
	base := srv.URL + "/api/v1/owners/alice/birthdays"

	resp := doJSON(t, http.MethodPost, base, types.RecordPayload{Name: "Sam", Date: "1990-03-10"}, true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created types.CreateResponse
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if created.ID == "" {
		t.Fatal("create response missing id")
	}

	resp = doJSON(t, http.MethodGet, base, nil, true)
	defer resp.Body.Close()
	var list types.ListResponse
	json.NewDecoder(resp.Body).Decode(&list)
	if len(list.Records) != 1 || list.Records[0].ID != created.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestListEmptyOwnerReturnsEmptyArray(t *testing.T) {
	srv := newTestServer(t, newMockStore())

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/owners/nobody/birthdays", nil, true)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"records":[]`) {
		t.Errorf("body = %s, want records:[] not null", body)
	}
}

func TestCreateRejectsInvalidPayload(t *testing.T) {
	srv := newTestServer(t, newMockStore())

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/owners/alice/birthdays",
		types.RecordPayload{Name: "", Date: "never"}, true)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}

	var problem ProblemWithErrors
	if err := json.NewDecoder(resp.Body).Decode(&problem); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if len(problem.Errors) < 2 {
		t.Errorf("problem = %+v", problem)
	}
}

func TestCreateRejectsMalformedJSON(t *testing.T) {
	srv := newTestServer(t, newMockStore())

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/owners/alice/birthdays",
		strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUpdateBirthday(t *testing.T) {
	ms := newMockStore()
	srv := newTestServer(t, ms)
	created, _ := ms.CreateRecord(context.Background(), "alice", types.RecordPayload{Name: "Sam", Date: "1990-03-10"})

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/v1/owners/alice/birthdays/"+created.ID,
		types.RecordPayload{Name: "Samuel", Date: "1990-03-10"}, true)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var updated types.BirthdayRecord
	json.NewDecoder(resp.Body).Decode(&updated)
	if updated.Name != "Samuel" {
		t.Errorf("updated = %+v", updated)
	}
}

func TestUpdateMissingBirthdayReturnsProblem(t *testing.T) {
	srv := newTestServer(t, newMockStore())

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/v1/owners/alice/birthdays/nope",
		types.RecordPayload{Name: "Sam", Date: "1990-03-10"}, true)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var problem Problem
	json.NewDecoder(resp.Body).Decode(&problem)
	if problem.Status != http.StatusNotFound || problem.Title != "Not Found" {
		t.Errorf("problem = %+v", problem)
	}
}

func TestDeleteBirthday(t *testing.T) {
	ms := newMockStore()
	srv := newTestServer(t, ms)
	created, _ := ms.CreateRecord(context.Background(), "alice", types.RecordPayload{Name: "Sam", Date: "1990-03-10"})

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/v1/owners/alice/birthdays/"+created.ID, nil, true)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/owners/alice/birthdays/"+created.ID, nil, true)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	ms := newMockStore()
	ms.failAll = true
	srv := newTestServer(t, ms)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/owners/alice/birthdays", nil, true)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if strings.Contains(string(body), "disk on fire") {
		t.Error("internal error details leaked to client")
	}
}

func TestChangesEndpoint(t *testing.T) {
	ms := newMockStore()
	ms.changes = []store.ChangeLogEntry{
		{Sequence: 1, OwnerID: "alice", RecordID: "r1", Operation: "create"},
		{Sequence: 2, OwnerID: "bob", RecordID: "r2", Operation: "create"},
		{Sequence: 3, OwnerID: "alice", RecordID: "r1", Operation: "delete"},
	}
	srv := newTestServer(t, ms)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/owners/alice/changes?after=1", nil, true)
	defer resp.Body.Close()

	var feed struct {
		Changes []store.ChangeLogEntry `json:"changes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(feed.Changes) != 1 || feed.Changes[0].Sequence != 3 {
		t.Errorf("changes = %+v", feed.Changes)
	}
}

func TestChangesRejectsBadQuery(t *testing.T) {
	srv := newTestServer(t, newMockStore())

	for _, query := range []string{"?after=-1", "?after=x", "?limit=0", "?limit=5000"} {
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/owners/alice/changes"+query, nil, true)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("query %q status = %d, want 400", query, resp.StatusCode)
		}
	}
}
