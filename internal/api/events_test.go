package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Priya8975/event-recorder/internal/domain"
	"github.com/Priya8975/event-recorder/internal/engine"
	"github.com/Priya8975/event-recorder/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTime answers queries with a fixed payload or error.
type scriptedTime struct {
	mu      sync.Mutex
	payload string
	err     error
}

func (s *scriptedTime) set(payload string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload, s.err = payload, err
}

func (s *scriptedTime) CurrentTime(ctx context.Context) <-chan engine.TimeResult {
	s.mu.Lock()
	res := engine.TimeResult{Payload: []byte(s.payload), Err: s.err}
	s.mu.Unlock()

	ch := make(chan engine.TimeResult, 1)
	go func() { ch <- res }()
	return ch
}

type fixture struct {
	server  *httptest.Server
	handler http.Handler
	time    *scriptedTime
	store   *store.MemoryStore
}

func newFixture(t *testing.T, deps Deps) *fixture {
	t.Helper()

	ts := &scriptedTime{payload: `{"now":1000}`}
	mem := store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps.Recorder = engine.NewRecorder(ts, mem, logger)
	handler := NewRouter(deps)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &fixture{server: srv, handler: handler, time: ts, store: mem}
}

func (f *fixture) storeLen(t *testing.T) int {
	t.Helper()
	n, err := f.store.Len(context.Background())
	require.NoError(t, err)
	return n
}

func doRequest(t *testing.T, method, url, contentType, body string) (*http.Response, string) {
	t.Helper()

	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func decodeError(t *testing.T, body string) errorResponse {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal([]byte(body), &e), "error body must be JSON: %s", body)
	return e
}

func TestGet_RecordsAndReturnsStore(t *testing.T) {
	f := newFixture(t, Deps{})
	f.time.set(`{"now": 2000}`, nil)

	resp, body := doRequest(t, http.MethodGet, f.server.URL+"/", "", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `[{"id":0,"name":"GET","timestamp":{"now":2000}}]`, body)
}

func TestPost_RecordsCustomEvent(t *testing.T) {
	f := newFixture(t, Deps{})

	resp, body := doRequest(t, http.MethodPost, f.server.URL+"/", "application/json",
		`{"name":"custom","id":12,"timestamp":{"forged":true}}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"id":0,"name":"custom","timestamp":{"now":1000}}]`, body)
}

func TestGetAndPost_AccumulateInOrder(t *testing.T) {
	f := newFixture(t, Deps{})

	for i := 0; i < 3; i++ {
		f.time.set(fmt.Sprintf(`{"now":%d}`, i), nil)
		var resp *http.Response
		if i%2 == 0 {
			resp, _ = doRequest(t, http.MethodGet, f.server.URL+"/", "", "")
		} else {
			resp, _ = doRequest(t, http.MethodPost, f.server.URL+"/", "application/json", `{"name":"odd"}`)
		}
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := doRequest(t, http.MethodGet, f.server.URL+"/api/v1/events", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[
		{"id":0,"name":"GET","timestamp":{"now":0}},
		{"id":1,"name":"odd","timestamp":{"now":1}},
		{"id":2,"name":"GET","timestamp":{"now":2}}
	]`, body)
}

func TestListEvents_EmptyStore(t *testing.T) {
	f := newFixture(t, Deps{})

	resp, body := doRequest(t, http.MethodGet, f.server.URL+"/api/v1/events", "", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, body)
}

func TestRecordFailures_MapToStructuredErrors(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "time source down",
			err:        fmt.Errorf("%w: connection refused", domain.ErrTimeSourceUnavailable),
			wantStatus: http.StatusBadGateway,
			wantCode:   codeTimeSourceUnavailable,
		},
		{
			name:       "payload not json",
			payload:    `not json`,
			wantStatus: http.StatusBadGateway,
			wantCode:   codeInvalidTimestamp,
		},
		{
			name:       "all circuits open",
			err:        fmt.Errorf("%w: no eligible instance", domain.ErrCircuitOpen),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   codeTimeSourceCircuitOpen,
		},
		{
			name:       "deadline",
			err:        fmt.Errorf("waiting for time source: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   codeTimeSourceTimeout,
		},
		{
			name:       "shutting down",
			err:        domain.ErrPoolStopped,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   codeServiceUnavailable,
		},
		{
			name:       "unexpected",
			err:        errors.New("something else"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   codeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Deps{})
			f.time.set(tt.payload, tt.err)

			for _, method := range []string{http.MethodGet, http.MethodPost} {
				resp, body := doRequest(t, method, f.server.URL+"/", "application/json", `{"name":"x"}`)

				assert.Equal(t, tt.wantStatus, resp.StatusCode, method)
				assert.Equal(t, tt.wantCode, decodeError(t, body).Code, method)
			}
			assert.Equal(t, 0, f.storeLen(t), "failed records must not reach the store")
		})
	}
}

func TestPost_InvalidBodies(t *testing.T) {
	oversized := `{"name":"` + strings.Repeat("a", 2*maxBodyBytes) + `"}`

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantCode    string
	}{
		{"malformed json", "application/json", `{"name":`, http.StatusBadRequest, codeInvalidRequestBody},
		{"empty body", "application/json", "", http.StatusBadRequest, codeInvalidRequestBody},
		{"missing name", "application/json", `{"id":3}`, http.StatusBadRequest, codeMissingRequiredField},
		{"blank name", "application/json", `{"name":"  "}`, http.StatusBadRequest, codeMissingRequiredField},
		{"wrong content type", "text/plain", `{"name":"x"}`, http.StatusUnsupportedMediaType, codeUnsupportedMediaType},
		{"no content type", "", `{"name":"x"}`, http.StatusUnsupportedMediaType, codeUnsupportedMediaType},
		{"body over limit", "application/json", oversized, http.StatusRequestEntityTooLarge, codeRequestTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Deps{})

			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantCode, decodeError(t, rec.Body.String()).Code)
			assert.Equal(t, 0, f.storeLen(t))
		})
	}
}

func TestPost_ContentTypeWithCharset(t *testing.T) {
	f := newFixture(t, Deps{})

	resp, _ := doRequest(t, http.MethodPost, f.server.URL+"/", "application/json; charset=utf-8", `{"name":"x"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, f.storeLen(t))
}

func TestConcurrentRequests_UniqueIDs(t *testing.T) {
	f := newFixture(t, Deps{})

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(f.server.URL + "/")
			if err != nil {
				t.Errorf("request: %v", err)
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d", resp.StatusCode)
			}
		}()
	}
	wg.Wait()

	events, err := f.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, events, n)
	for i, e := range events {
		assert.Equal(t, i, e.ID)
	}
}
