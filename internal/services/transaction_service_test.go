package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"sfinapp/internal/cache"
	"sfinapp/internal/core"
	applog "sfinapp/internal/log"
	"sfinapp/internal/version"
)

func int64Ptr(v int64) *int64 { return &v }

func validTx(amount int64, typ core.TransactionType) core.Transaction {
	return core.Transaction{
		Date:      time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Amount:    amount,
		Type:      typ,
		AccountID: int64Ptr(1),
	}
}

type txFixture struct {
	svc       *TransactionService
	store     *fakeTransactionStore
	versions  *version.MemoryStore
	publisher *recordingPublisher
}

func newTxFixture(opts ...TransactionOption) txFixture {
	f := txFixture{
		store:     newFakeTransactionStore(),
		versions:  version.NewMemoryStore(),
		publisher: &recordingPublisher{},
	}
	accounts := NewAccountService(&fakeAccountStore{accounts: []core.Account{{ID: 7, Name: "Cash"}, {ID: 9, Name: "Bank"}}}, f.versions, nil)
	opts = append([]TransactionOption{WithTransactionPublisher(f.publisher)}, opts...)
	f.svc = NewTransactionService(f.store, accounts, f.versions, opts...)
	return f
}

func (f txFixture) version(t *testing.T) int64 {
	t.Helper()
	v, err := f.svc.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	return v
}

func TestCreateNormalizesAndVersions(t *testing.T) {
	tests := []struct {
		name       string
		in         core.Transaction
		wantAmount int64
		wantType   core.TransactionType
	}{
		{"positive expense is negated", validTx(1500, core.Expense), -1500, core.Expense},
		{"negative income is negated", validTx(-2000, core.Income), 2000, core.Income},
		{"missing type keeps sign", validTx(300, ""), 300, core.Income},
		{"positive transfer is negated", func() core.Transaction {
			tx := validTx(500, core.Transfer)
			tx.ToAccountID = int64Ptr(2)
			return tx
		}(), -500, core.Transfer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTxFixture()
			ctx := context.Background()

			id, err := f.svc.Create(ctx, tt.in)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			got, err := f.svc.Get(ctx, id)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Amount != tt.wantAmount || got.Type != tt.wantType {
				t.Fatalf("got amount=%d type=%s, want %d %s", got.Amount, got.Type, tt.wantAmount, tt.wantType)
			}
			if got.TagIDs == nil {
				t.Fatal("TagIDs should be an empty slice, not nil")
			}
			if v := f.version(t); v != 1 {
				t.Fatalf("version = %d, want 1", v)
			}
			if len(f.publisher.changes) != 1 {
				t.Fatalf("published %d changes, want 1", len(f.publisher.changes))
			}
			c := f.publisher.changes[0]
			if c.resource != version.KeyTransaction || c.operation != OpCreate || c.version != 1 || len(c.ids) != 1 || c.ids[0] != id {
				t.Fatalf("published %+v", c)
			}
		})
	}
}

func TestCreateValidationLeavesVersion(t *testing.T) {
	f := newTxFixture()
	tx := validTx(-1, core.Expense)
	tx.AccountID = nil

	_, err := f.svc.Create(context.Background(), tx)
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if v := f.version(t); v != 0 {
		t.Fatalf("version = %d, want 0", v)
	}
	if len(f.store.records) != 0 || len(f.publisher.changes) != 0 {
		t.Fatal("invalid transaction must not be stored or published")
	}
}

func TestFailedMutationLeavesVersion(t *testing.T) {
	f := newTxFixture()
	ctx := context.Background()
	id, err := f.svc.Create(ctx, validTx(-1, core.Expense))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.store.fail = errStore

	if _, err := f.svc.Create(ctx, validTx(-1, core.Expense)); !errors.Is(err, errStore) {
		t.Fatalf("Create err = %v", err)
	}
	if _, err := f.svc.Update(ctx, id, validTx(-2, core.Expense)); !errors.Is(err, errStore) {
		t.Fatalf("Update err = %v", err)
	}
	if err := f.svc.Delete(ctx, id); !errors.Is(err, errStore) {
		t.Fatalf("Delete err = %v", err)
	}
	if v := f.version(t); v != 1 {
		t.Fatalf("version = %d, want 1", v)
	}

	f.store.fail = nil
	if err := f.svc.Delete(ctx, 999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Delete(999) err = %v, want ErrNotFound", err)
	}
	if v := f.version(t); v != 1 {
		t.Fatalf("version after missing delete = %d, want 1", v)
	}
}

func TestCreateBatch(t *testing.T) {
	t.Run("one invalid item persists nothing", func(t *testing.T) {
		f := newTxFixture()
		bad := validTx(-1, core.Expense)
		bad.AccountID = nil

		_, err := f.svc.CreateBatch(context.Background(), []core.Transaction{validTx(-1, core.Expense), bad})
		var verr *core.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("err = %v, want *core.ValidationError", err)
		}
		if len(verr.Details) != 1 || verr.Details[0].Field != "[1].accountId" {
			t.Fatalf("details = %+v", verr.Details)
		}
		if len(f.store.records) != 0 || f.version(t) != 0 {
			t.Fatal("nothing should be stored and the version must not move")
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		f := newTxFixture()
		if _, err := f.svc.CreateBatch(context.Background(), nil); !errors.Is(err, core.ErrValidation) {
			t.Fatalf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("success increments once", func(t *testing.T) {
		f := newTxFixture()
		ids, err := f.svc.CreateBatch(context.Background(), []core.Transaction{
			validTx(10, core.Expense), validTx(20, core.Income), validTx(-30, ""),
		})
		if err != nil {
			t.Fatalf("CreateBatch: %v", err)
		}
		if len(ids) != 3 {
			t.Fatalf("ids = %v", ids)
		}
		if f.store.records[ids[0]].Amount != -10 {
			t.Fatalf("batch items must be normalized: %+v", f.store.records[ids[0]])
		}
		if v := f.version(t); v != 1 {
			t.Fatalf("version = %d, want 1", v)
		}
		if len(f.publisher.changes) != 1 || len(f.publisher.changes[0].ids) != 3 {
			t.Fatalf("published %+v", f.publisher.changes)
		}
	})
}

func TestUpdateReturnsStoredRecord(t *testing.T) {
	f := newTxFixture()
	ctx := context.Background()
	id, err := f.svc.Create(ctx, validTx(-100, core.Expense))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	upd := validTx(100, core.Expense)
	upd.Type = core.Income
	got, err := f.svc.Update(ctx, id, upd)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.ID != id || got.Amount != 100 || got.Type != core.Income {
		t.Fatalf("Update = %+v", got)
	}
	if v := f.version(t); v != 2 {
		t.Fatalf("version = %d, want 2", v)
	}
	if op := f.publisher.changes[1].operation; op != OpUpdate {
		t.Fatalf("operation = %s, want %s", op, OpUpdate)
	}
}

func TestGetAllUsesVersionedCache(t *testing.T) {
	lists := cache.NewLRUCache[[]core.TransactionListItem](10, time.Minute)
	f := newTxFixture(WithListCache(lists))
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, validTx(5, core.Income)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 0; i < 3; i++ {
		items, v, err := f.svc.GetAllVersioned(ctx, core.TransactionFilter{})
		if err != nil {
			t.Fatalf("GetAll: %v", err)
		}
		if len(items) != 1 || items[0].Type != core.Income || v != 1 {
			t.Fatalf("items = %+v, version = %d", items, v)
		}
	}
	if f.store.listCalls != 1 {
		t.Fatalf("store listed %d times, want 1", f.store.listCalls)
	}

	if _, err := f.svc.Create(ctx, validTx(-5, core.Expense)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	items, err := f.svc.GetAll(ctx, core.TransactionFilter{})
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(items) != 2 || f.store.listCalls != 2 {
		t.Fatalf("stale list served: %d items, %d store calls", len(items), f.store.listCalls)
	}
}

func TestCachedListIsNotShared(t *testing.T) {
	lists := cache.NewLRUCache[[]core.TransactionListItem](10, time.Minute)
	f := newTxFixture(WithListCache(lists))
	ctx := context.Background()

	tx := validTx(-5, core.Expense)
	tx.TagIDs = []int64{1, 2}
	tx.ToAccountID = int64Ptr(9)
	if _, err := f.svc.Create(ctx, tx); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := f.svc.GetAll(ctx, core.TransactionFilter{})
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	first[0].TagIDs[0] = 99
	*first[0].AccountID = 99
	*first[0].ToAccountID = 99

	for i := 0; i < 2; i++ {
		got, err := f.svc.GetAll(ctx, core.TransactionFilter{})
		if err != nil {
			t.Fatalf("GetAll: %v", err)
		}
		item := got[0]
		if item.TagIDs[0] != 1 || *item.AccountID != 1 || *item.ToAccountID != 9 {
			t.Fatalf("cached item changed by caller: tags %v, account %d, to %d",
				item.TagIDs, *item.AccountID, *item.ToAccountID)
		}
		item.TagIDs[1] = 99
	}
	if f.store.listCalls != 1 {
		t.Fatalf("store listed %d times, want 1", f.store.listCalls)
	}
}

func TestMutationsLogOnceOnRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelDebug, Format: "text", Output: &buf})
	ctx := applog.IntoContext(context.Background(), logger.With(applog.FieldRequestID, "req-1"))
	f := newTxFixture()

	id, err := f.svc.Create(ctx, validTx(-5, core.Expense))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Update(ctx, id, validTx(-6, core.Expense)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := f.svc.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d log lines, want 3:\n%s", len(lines), buf.String())
	}
	for _, line := range lines {
		if !strings.Contains(line, "Resource changed") || !strings.Contains(line, "req-1") {
			t.Errorf("unexpected log line: %s", line)
		}
	}
}

func TestGetAllRejectsInvalidFilter(t *testing.T) {
	f := newTxFixture()
	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, -1, 0)

	_, err := f.svc.GetAll(context.Background(), core.TransactionFilter{From: &from, To: &to})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if f.store.listCalls != 0 {
		t.Fatal("store should not be queried")
	}
}

func TestSkeleton(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	f := newTxFixture(WithClock(func() time.Time { return now }))

	s, err := f.svc.Skeleton(context.Background())
	if err != nil {
		t.Fatalf("Skeleton: %v", err)
	}
	if !s.Date.Equal(now) || s.Type != core.Expense || s.AccountID == nil || *s.AccountID != 7 {
		t.Fatalf("Skeleton = %+v", s)
	}
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	f := newTxFixture()
	f.publisher.fail = errors.New("broker down")

	if _, err := f.svc.Create(context.Background(), validTx(-1, core.Expense)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if v := f.version(t); v != 1 {
		t.Fatalf("version = %d, want 1", v)
	}
}

func TestIncrementFailureIsReported(t *testing.T) {
	store := newFakeTransactionStore()
	svc := NewTransactionService(store, nil, failingVersions{})

	id, err := svc.Create(context.Background(), validTx(-1, core.Expense))
	if err == nil {
		t.Fatal("expected increment error")
	}
	if id == 0 || len(store.records) != 1 {
		t.Fatal("the mutation itself is committed")
	}
}
