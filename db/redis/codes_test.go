package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawnquote/decision/catalog"
	"lawnquote/decision/promotion"
	qerrors "lawnquote/pkg/errors"
)

func newTestStore(t *testing.T) (*CodeStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { client.Close() })
	return NewCodeStore(client, ""), mr
}

func TestSyncReplacesTable(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, catalog.PromoCode{Code: "stale", Discount: 50}))
	require.NoError(t, store.Sync(ctx, catalog.Default().PromoCodes()))

	assert.Equal(t, "", mr.HGet(DefaultKey, "STALE"))
	codes, skipped, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Len(t, codes, 3)
	for _, c := range codes {
		assert.NotEqual(t, "STALE", c.Code)
	}
}

func TestLoadSkipsMalformedEntries(t *testing.T) {
	store, mr := newTestStore(t)
	mr.HSet(DefaultKey, "GOOD", `{"discount":10,"partner":"Good HOA"}`)
	mr.HSet(DefaultKey, "BROKEN", `not json`)
	mr.HSet(DefaultKey, "TOOBIG", `{"discount":150}`)

	codes, skipped, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, codes, 1)
	assert.Equal(t, catalog.PromoCode{Code: "GOOD", Discount: 10, Partner: "Good HOA"}, codes[0])
}

func TestCodeCacheRefresh(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	fallback := promotion.NewCodeTable(catalog.Default().PromoCodes())
	cache := NewCodeCache(store, fallback, nil)
	assert.True(t, cache.Lookup("OAKRIDGEHOA").Valid)

	require.NoError(t, store.Sync(ctx, []catalog.PromoCode{{Code: "springfield", Discount: 8, Partner: "Springfield HOA"}}))
	require.NoError(t, cache.Refresh(ctx))

	got := cache.Lookup(" SpringField ")
	assert.True(t, got.Valid)
	assert.Equal(t, 8, got.Discount)
	assert.False(t, cache.Lookup("OAKRIDGEHOA").Valid)
	assert.Equal(t, 1, cache.Len())
}

func TestCodeCacheKeepsSnapshotOnError(t *testing.T) {
	store, mr := newTestStore(t)
	cache := NewCodeCache(store, promotion.NewCodeTable(catalog.Default().PromoCodes()), nil)

	mr.Close()
	assert.Error(t, cache.Refresh(context.Background()))
	assert.True(t, cache.Lookup("MAPLEGROVE").Valid)
}

func TestEngineUsesCodeCache(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, catalog.PromoCode{Code: "PARK", Discount: 12, Partner: "Park HOA"}))

	cache := NewCodeCache(store, nil, nil)
	require.NoError(t, cache.Refresh(ctx))

	e := promotion.FromCatalog(catalog.Default()).WithCodes(cache)
	res := e.Evaluate(promotion.Input{Term: catalog.TermOneYear, PromoCode: "park"}, time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC))
	require.NotNil(t, res.PromoCode)
	assert.True(t, res.PromoCode.Valid)
	assert.Equal(t, 12, res.TotalPercentOff)
}

func TestPutRejectsCodesLoadWouldSkip(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	tests := []catalog.PromoCode{
		{Code: "ZERO", Discount: 0},
		{Code: "NEGATIVE", Discount: -5},
		{Code: "TOOBIG", Discount: 101},
		{Code: "   ", Discount: 10},
	}
	for _, pc := range tests {
		err := store.Put(ctx, pc)
		assert.True(t, qerrors.IsInvalidInput(err), "code %q discount %d", pc.Code, pc.Discount)
	}
	assert.False(t, mr.Exists(DefaultKey))

	require.NoError(t, store.Put(ctx, catalog.PromoCode{Code: "full", Discount: 100}))
	codes, skipped, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Equal(t, []catalog.PromoCode{{Code: "FULL", Discount: 100}}, codes)
}

func TestSyncRejectsInvalidCode(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, catalog.PromoCode{Code: "KEEP", Discount: 10}))

	err := store.Sync(ctx, []catalog.PromoCode{{Code: "OK", Discount: 5}, {Code: "BAD", Discount: 0}})
	require.Error(t, err)
	assert.NotEmpty(t, mr.HGet(DefaultKey, "KEEP"), "a rejected sync leaves the table alone")
}

func TestCodeCacheRunWithNonPositiveInterval(t *testing.T) {
	store, _ := newTestStore(t)
	cache := NewCodeCache(store, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cache.Run(ctx, 0)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
