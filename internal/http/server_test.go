package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sfinapp/internal/cache"
	"sfinapp/internal/core"
	applog "sfinapp/internal/log"
	"sfinapp/internal/services"
	"sfinapp/internal/storage"
)

type testServer struct {
	srv  *Server
	repo *storage.SQLiteRepository
}

func newTestServer(t *testing.T, rateLimit int) testServer {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	versions := repo.Versions()
	lists := cache.NewLRUCache[[]core.TransactionListItem](32, time.Minute)
	accounts := services.NewAccountService(repo, versions, nil)
	tags := services.NewTagService(repo, versions, nil)
	transactions := services.NewTransactionService(repo, accounts, versions, services.WithListCache(lists))

	logger := applog.New(applog.Config{Level: slog.LevelError, Format: "text", Output: io.Discard})
	srv := NewServer(":0", Options{
		Transactions:       transactions,
		Accounts:           accounts,
		Tags:               tags,
		Pinger:             repo,
		Changes:            repo,
		Logger:             logger,
		RateLimitPerMinute: rateLimit,
		CacheStats:         lists.Stats,
	})
	t.Cleanup(func() { srv.rateLimiter.Stop() })
	return testServer{srv: srv, repo: repo}
}

func (ts testServer) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}

func (ts testServer) createAccount(t *testing.T, name string) int64 {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/account", `{"name":"`+name+`"}`)
	expectStatus(t, rr, http.StatusCreated)
	return decode[int64](t, rr)
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, 100)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := ts.do(t, http.MethodGet, path, "")
		expectStatus(t, rr, http.StatusOK)
	}

	ts.repo.Close()
	rr := ts.do(t, http.MethodGet, "/readyz", "")
	expectStatus(t, rr, http.StatusServiceUnavailable)
}

func TestTransactionLifecycle(t *testing.T) {
	ts := newTestServer(t, 100)
	cash := ts.createAccount(t, "Cash")
	bank := ts.createAccount(t, "Bank")

	rr := ts.do(t, http.MethodPost, "/api/transaction",
		`{"date":"2024-05-01T10:00:00Z","amount":50,"type":"Expense","accountId":1,"description":"groceries"}`)
	expectStatus(t, rr, http.StatusCreated)
	id := decode[int64](t, rr)

	rr = ts.do(t, http.MethodGet, "/api/transaction/1", "")
	expectStatus(t, rr, http.StatusOK)
	got := decode[core.Transaction](t, rr)
	if got.ID != id || got.Amount != -50 || got.Type != core.Expense || *got.AccountID != cash {
		t.Fatalf("stored transaction = %+v", got)
	}

	rr = ts.do(t, http.MethodGet, "/api/transaction", "")
	expectStatus(t, rr, http.StatusOK)
	if rr.Header().Get("ETag") != `"1"` || rr.Header().Get("X-Version") != "1" {
		t.Fatalf("version headers = %q / %q", rr.Header().Get("ETag"), rr.Header().Get("X-Version"))
	}
	items := decode[[]core.TransactionListItem](t, rr)
	if len(items) != 1 || items[0].AccountName != "Cash" {
		t.Fatalf("list = %+v", items)
	}

	rr = ts.do(t, http.MethodGet, "/api/transaction", "", "If-None-Match", `"1"`)
	expectStatus(t, rr, http.StatusNotModified)
	if rr.Body.Len() != 0 {
		t.Fatalf("304 carried a body: %s", rr.Body.String())
	}

	rr = ts.do(t, http.MethodPut, "/api/transaction/1",
		`{"date":"2024-05-02T10:00:00Z","amount":30,"type":"Transfer","accountId":1,"toAccountId":2,"tagIds":[]}`)
	expectStatus(t, rr, http.StatusOK)
	updated := decode[core.Transaction](t, rr)
	if updated.Type != core.Transfer || updated.Amount != -30 || *updated.ToAccountID != bank {
		t.Fatalf("updated = %+v", updated)
	}

	rr = ts.do(t, http.MethodGet, "/api/transaction", "", "If-None-Match", `"1"`)
	expectStatus(t, rr, http.StatusOK)
	if rr.Header().Get("ETag") != `"2"` {
		t.Fatalf("ETag after update = %q", rr.Header().Get("ETag"))
	}

	rr = ts.do(t, http.MethodDelete, "/api/transaction/1", "")
	expectStatus(t, rr, http.StatusNoContent)

	rr = ts.do(t, http.MethodGet, "/api/transaction/1", "")
	expectStatus(t, rr, http.StatusNotFound)

	rr = ts.do(t, http.MethodGet, "/api/transaction/version", "")
	expectStatus(t, rr, http.StatusOK)
	if v := decode[versionResponse](t, rr); v.Version != 3 {
		t.Fatalf("version = %d, want 3", v.Version)
	}
}

func TestTransactionListFilters(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.createAccount(t, "Cash")
	ts.createAccount(t, "Bank")

	rr := ts.do(t, http.MethodPost, "/api/transaction/batch", `[
		{"date":"2024-05-01T00:00:00Z","amount":-10,"accountId":1,"description":"coffee"},
		{"date":"2024-05-03T00:00:00Z","amount":2000,"type":"Income","accountId":2,"description":"salary"},
		{"date":"2024-06-01T00:00:00Z","amount":-5,"accountId":2,"description":"coffee beans"}
	]`)
	expectStatus(t, rr, http.StatusCreated)

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?accountId=2", 2},
		{"?search=coffee", 2},
		{"?from=2024-05-01&to=2024-06-01", 2},
		{"?limit=1", 1},
		{"?limit=2&offset=2", 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rr := ts.do(t, http.MethodGet, "/api/transaction"+tt.query, "")
			expectStatus(t, rr, http.StatusOK)
			if items := decode[[]core.TransactionListItem](t, rr); len(items) != tt.want {
				t.Fatalf("got %d items, want %d", len(items), tt.want)
			}
		})
	}

	rr = ts.do(t, http.MethodGet, "/api/transaction?limit=abc&from=yesterday", "")
	expectStatus(t, rr, http.StatusBadRequest)
	if body := decode[errorResponse](t, rr); len(body.Details) != 2 {
		t.Fatalf("details = %+v", body.Details)
	}
}

func TestTransactionBatch(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.createAccount(t, "Cash")

	rr := ts.do(t, http.MethodPost, "/api/transaction/batch", `[]`)
	expectStatus(t, rr, http.StatusBadRequest)

	rr = ts.do(t, http.MethodPost, "/api/transaction/batch", `[
		{"date":"2024-05-01T00:00:00Z","amount":10,"accountId":1},
		{"amount":10,"accountId":1}
	]`)
	expectStatus(t, rr, http.StatusBadRequest)
	body := decode[errorResponse](t, rr)
	if len(body.Details) != 1 || body.Details[0].Field != "[1].date" {
		t.Fatalf("details = %+v", body.Details)
	}

	rr = ts.do(t, http.MethodGet, "/api/transaction/version", "")
	if v := decode[versionResponse](t, rr); v.Version != 0 {
		t.Fatalf("rejected batch changed version to %d", v.Version)
	}

	rr = ts.do(t, http.MethodPost, "/api/transaction/batch", `[
		{"date":"2024-05-01T00:00:00Z","amount":10,"type":"Expense","accountId":1},
		{"date":"2024-05-02T00:00:00Z","amount":20,"type":"Income","accountId":1}
	]`)
	expectStatus(t, rr, http.StatusCreated)
	if ids := decode[[]int64](t, rr); len(ids) != 2 || ids[0] >= ids[1] {
		t.Fatalf("ids = %v", ids)
	}

	rr = ts.do(t, http.MethodGet, "/api/transaction/version", "")
	if v := decode[versionResponse](t, rr); v.Version != 1 {
		t.Fatalf("batch version = %d, want 1", v.Version)
	}
}

func TestSkeletonAndDescriptions(t *testing.T) {
	ts := newTestServer(t, 100)

	rr := ts.do(t, http.MethodGet, "/api/transaction/skeleton", "")
	expectStatus(t, rr, http.StatusOK)
	skeleton := decode[core.Transaction](t, rr)
	if skeleton.Type != core.Expense || skeleton.AccountID != nil || skeleton.TagIDs == nil {
		t.Fatalf("empty skeleton = %+v", skeleton)
	}

	first := ts.createAccount(t, "Cash")
	ts.createAccount(t, "Bank")
	rr = ts.do(t, http.MethodGet, "/api/transaction/skeleton", "")
	skeleton = decode[core.Transaction](t, rr)
	if skeleton.AccountID == nil || *skeleton.AccountID != first {
		t.Fatalf("skeleton account = %v, want %d", skeleton.AccountID, first)
	}

	for _, d := range []string{"rent", "coffee", "rent"} {
		rr := ts.do(t, http.MethodPost, "/api/transaction",
			`{"date":"2024-05-01T00:00:00Z","amount":-1,"accountId":1,"description":"`+d+`"}`)
		expectStatus(t, rr, http.StatusCreated)
	}
	rr = ts.do(t, http.MethodGet, "/api/transaction/descriptions", "")
	expectStatus(t, rr, http.StatusOK)
	if got := decode[[]string](t, rr); len(got) != 2 || got[0] != "coffee" || got[1] != "rent" {
		t.Fatalf("descriptions = %v", got)
	}
}

func TestAccountsAndTags(t *testing.T) {
	ts := newTestServer(t, 100)
	id := ts.createAccount(t, "Cash")

	rr := ts.do(t, http.MethodGet, "/api/account", "")
	expectStatus(t, rr, http.StatusOK)
	etag := rr.Header().Get("ETag")
	if etag != `"1"` {
		t.Fatalf("account ETag = %q", etag)
	}
	rr = ts.do(t, http.MethodGet, "/api/account", "", "If-None-Match", etag)
	expectStatus(t, rr, http.StatusNotModified)

	rr = ts.do(t, http.MethodPut, "/api/account/1", `{"name":"Wallet","description":"pocket"}`)
	expectStatus(t, rr, http.StatusOK)
	if a := decode[core.Account](t, rr); a.ID != id || a.Name != "Wallet" {
		t.Fatalf("updated account = %+v", a)
	}

	rr = ts.do(t, http.MethodPost, "/api/tag", `{"name":"food"}`)
	expectStatus(t, rr, http.StatusCreated)
	rr = ts.do(t, http.MethodPost, "/api/tag", `{"name":"food"}`)
	expectStatus(t, rr, http.StatusConflict)

	rr = ts.do(t, http.MethodPost, "/api/transaction",
		`{"date":"2024-05-01T00:00:00Z","amount":-5,"accountId":1,"tagIds":[1]}`)
	expectStatus(t, rr, http.StatusCreated)

	rr = ts.do(t, http.MethodGet, "/api/transaction/version", "")
	before := decode[versionResponse](t, rr).Version

	rr = ts.do(t, http.MethodDelete, "/api/tag/1", "")
	expectStatus(t, rr, http.StatusNoContent)

	rr = ts.do(t, http.MethodGet, "/api/transaction/1", "")
	if tx := decode[core.Transaction](t, rr); len(tx.TagIDs) != 0 {
		t.Fatalf("tag link survived delete: %v", tx.TagIDs)
	}
	rr = ts.do(t, http.MethodGet, "/api/transaction/version", "")
	if after := decode[versionResponse](t, rr).Version; after <= before {
		t.Fatalf("tag delete did not invalidate transaction lists: %d -> %d", before, after)
	}

	rr = ts.do(t, http.MethodDelete, "/api/account/1", "")
	expectStatus(t, rr, http.StatusConflict)

	rr = ts.do(t, http.MethodGet, "/api/tag/version", "")
	expectStatus(t, rr, http.StatusOK)
	if v := decode[versionResponse](t, rr); v.Version != 2 {
		t.Fatalf("tag version = %d, want 2", v.Version)
	}
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t, 100)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"non-numeric id", http.MethodGet, "/api/transaction/abc", "", http.StatusBadRequest},
		{"zero id", http.MethodDelete, "/api/tag/0", "", http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/transaction", `{"amount":`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/account", "", http.StatusBadRequest},
		{"trailing data", http.MethodPost, "/api/tag", `{"name":"a"}{"name":"b"}`, http.StatusBadRequest},
		{"missing required", http.MethodPost, "/api/account", `{"description":"x"}`, http.StatusBadRequest},
		{"unknown transaction", http.MethodGet, "/api/transaction/99", "", http.StatusNotFound},
		{"unknown account", http.MethodPut, "/api/account/99", `{"name":"x"}`, http.StatusNotFound},
		{"account foreign key", http.MethodPost, "/api/transaction", `{"date":"2024-05-01T00:00:00Z","amount":-1,"accountId":42}`, http.StatusConflict},
		{"amount out of range", http.MethodPost, "/api/transaction", `{"date":"2024-05-01T00:00:00Z","type":"Income","amount":-9223372036854775808,"accountId":1}`, http.StatusBadRequest},
		{"wrong method", http.MethodPatch, "/api/transaction/1", `{}`, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, tt.method, tt.path, tt.body)
			expectStatus(t, rr, tt.want)
		})
	}
}

func TestChangeLog(t *testing.T) {
	ts := newTestServer(t, 100)
	ctx := context.Background()

	occurred := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, e := range []storage.ChangeEntry{
		{MessageID: "m-1", Resource: "transaction", Operation: "create", Version: 1, IDs: []int64{3, 4}, OccurredAt: occurred},
		{MessageID: "m-2", Resource: "tag", Operation: "delete", Version: 1, IDs: []int64{9}, OccurredAt: occurred},
	} {
		if _, err := ts.repo.RecordChange(ctx, e); err != nil {
			t.Fatalf("RecordChange: %v", err)
		}
	}

	rr := ts.do(t, http.MethodGet, "/api/changes", "")
	expectStatus(t, rr, http.StatusOK)
	all := decode[[]storage.ChangeEntry](t, rr)
	if len(all) != 2 || all[0].MessageID != "m-2" {
		t.Fatalf("changes = %+v", all)
	}

	rr = ts.do(t, http.MethodGet, "/api/changes?resource=transaction", "")
	expectStatus(t, rr, http.StatusOK)
	txs := decode[[]storage.ChangeEntry](t, rr)
	if len(txs) != 1 || len(txs[0].IDs) != 2 || !txs[0].OccurredAt.Equal(occurred) {
		t.Fatalf("transaction changes = %+v", txs)
	}

	rr = ts.do(t, http.MethodGet, "/api/changes?limit=1", "")
	expectStatus(t, rr, http.StatusOK)
	if got := decode[[]storage.ChangeEntry](t, rr); len(got) != 1 {
		t.Fatalf("limited changes = %+v", got)
	}

	for _, query := range []string{"?resource=budget", "?limit=0", "?limit=x", "?limit=501"} {
		rr = ts.do(t, http.MethodGet, "/api/changes"+query, "")
		expectStatus(t, rr, http.StatusBadRequest)
	}
}

func TestRateLimitAppliesToMutationsOnly(t *testing.T) {
	ts := newTestServer(t, 2)

	ts.createAccount(t, "A")
	ts.createAccount(t, "B")
	rr := ts.do(t, http.MethodPost, "/api/account", `{"name":"C"}`)
	expectStatus(t, rr, http.StatusTooManyRequests)
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}

	rr = ts.do(t, http.MethodGet, "/api/account", "")
	expectStatus(t, rr, http.StatusOK)
}

func TestMiddlewareChain(t *testing.T) {
	ts := newTestServer(t, 100)

	rr := ts.do(t, http.MethodGet, "/healthz", "", "X-Request-ID", "abc-123")
	if rr.Header().Get("X-Request-ID") != "abc-123" {
		t.Errorf("request id = %q", rr.Header().Get("X-Request-ID"))
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}

	rr = ts.do(t, http.MethodGet, "/.env", "")
	expectStatus(t, rr, http.StatusNotFound)

	rr = ts.do(t, http.MethodGet, "/metrics", "")
	expectStatus(t, rr, http.StatusOK)
	body := rr.Body.String()
	for _, metric := range []string{"http_requests_total 2", "suspicious_requests_total 1", "list_cache_entries"} {
		if !strings.Contains(body, metric) {
			t.Errorf("metrics missing %q:\n%s", metric, body)
		}
	}
}
