package cart

import (
	"path/filepath"
	"testing"

	"github.com/framevist/framevist/internal/catalog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id string, price string, qty int) catalog.LineItem {
	return catalog.LineItem{ID: id, Title: "Capsule " + id, Price: decimal.RequireFromString(price), Quantity: qty}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "framevist-cart", Key(""))
	assert.Equal(t, "framevist-cart:abc", Key(" abc "))
}

func TestAddMergesQuantity(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(item("a", "10", 1)))
	require.NoError(t, c.Add(item("b", "5", 2)))
	require.NoError(t, c.Add(item("a", "10", 2)))

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, 5, c.Summary().Count)
}

func TestAddRejectsInvalidItems(t *testing.T) {
	c := New()
	assert.Error(t, c.Add(catalog.LineItem{ID: "", Quantity: 1}))
	assert.Error(t, c.Add(item("a", "-1", 1)))
	assert.Error(t, c.Add(item("a", "1", -2)))
	assert.True(t, c.IsEmpty())
}

func TestAddDefaultsZeroQuantityToOne(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(item("a", "1", 0)))
	assert.Equal(t, 1, c.Items()[0].Quantity)
}

func TestSetQuantityAndRemove(t *testing.T) {
	c := New(item("a", "10", 1), item("b", "5", 1))

	assert.True(t, c.SetQuantity("a", 4))
	assert.Equal(t, 4, c.Items()[0].Quantity)

	assert.True(t, c.SetQuantity("a", 0))
	assert.Equal(t, 1, c.Len())

	assert.False(t, c.Remove("missing"))
	assert.True(t, c.Remove("b"))
	assert.True(t, c.IsEmpty())
}

func TestSummary(t *testing.T) {
	c := New(item("a", "100", 1))
	s := c.Summary()
	assert.True(t, s.Subtotal.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "8.25", s.Taxes.StringFixed(2))
	assert.Equal(t, "108.25", s.Total.StringFixed(2))
}

func TestDecodeMalformedYieldsEmpty(t *testing.T) {
	for _, raw := range []string{"", "{", "[1,2]", `{"items": "nope"}`} {
		assert.True(t, Decode([]byte(raw)).IsEmpty(), "payload %q", raw)
	}
}

func TestDecodeDropsInvalidLines(t *testing.T) {
	c := Decode([]byte(`{"items":[{"id":"a","price":"2","quantity":1},{"id":"","price":"1","quantity":1}]}`))
	require.Equal(t, 1, c.Len())
	assert.Equal(t, "a", c.Items()[0].ID)
}

func TestMarshalEmptyCart(t *testing.T) {
	data, err := New().MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(data))
}

func TestSessionPersistsEveryMutation(t *testing.T) {
	storage := NewMemoryStorage()
	sess, err := Open(storage, StorageKey)
	require.NoError(t, err)

	require.NoError(t, sess.Add(item("a", "10", 1)))
	reloaded, err := Load(storage, StorageKey)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Len())

	found, err := sess.SetQuantity("a", 3)
	require.NoError(t, err)
	assert.True(t, found)
	reloaded, _ = Load(storage, StorageKey)
	assert.Equal(t, 3, reloaded.Items()[0].Quantity)

	require.NoError(t, sess.Clear())
	reloaded, _ = Load(storage, StorageKey)
	assert.True(t, reloaded.IsEmpty())
}

func TestSessionLoadsMalformedAsEmpty(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(StorageKey, []byte("not json")))

	sess, err := Open(storage, StorageKey)
	require.NoError(t, err)
	assert.Empty(t, sess.Items())
}

func TestSessionFailedAddLeavesCartUnchanged(t *testing.T) {
	sess, err := Open(NewMemoryStorage(), StorageKey)
	require.NoError(t, err)
	require.NoError(t, sess.Add(item("a", "10", 1)))

	assert.Error(t, sess.Add(item("b", "-5", 1)))
	assert.Len(t, sess.Items(), 1)
}

func TestFileStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carts", "carts.json")
	storage := NewFileStorage(path)

	_, ok, err := storage.Get(StorageKey)
	require.NoError(t, err)
	assert.False(t, ok)

	sess, err := Open(storage, Key("c1"))
	require.NoError(t, err)
	require.NoError(t, sess.Add(item("a", "12.50", 2)))

	other := NewFileStorage(path)
	reloaded, err := Load(other, Key("c1"))
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Len())
	assert.Equal(t, "25", reloaded.Summary().Subtotal.String())
}

func TestSessionsShareOneSessionPerCart(t *testing.T) {
	sessions := NewSessions(NewMemoryStorage())
	a, releaseA, err := sessions.Get("c1")
	require.NoError(t, err)
	b, releaseB, err := sessions.Get("c1")
	require.NoError(t, err)
	assert.Same(t, a, b)

	require.NoError(t, a.Add(item("a", "1", 1)))
	releaseA()
	releaseB()

	again, release, err := sessions.Get("c1")
	require.NoError(t, err)
	defer release()
	assert.Len(t, again.Items(), 1, "reloaded from storage")
}

func TestSessionsDropReleasedCarts(t *testing.T) {
	sessions := NewSessions(NewMemoryStorage())
	for _, id := range []string{"c1", "c2", "c3"} {
		_, release, err := sessions.Get(id)
		require.NoError(t, err)
		release()
		release()
	}
	assert.Zero(t, sessions.Held())

	_, release, err := sessions.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, 1, sessions.Held())
	release()
	assert.Zero(t, sessions.Held())
}

func TestSessionsResetClearsStoredAndHeldCarts(t *testing.T) {
	storage := NewMemoryStorage()
	sessions := NewSessions(storage)

	stored, release, err := sessions.Get("c1")
	require.NoError(t, err)
	require.NoError(t, stored.Add(item("a", "1", 1)))
	release()

	held, releaseHeld, err := sessions.Get("c2")
	require.NoError(t, err)
	defer releaseHeld()
	require.NoError(t, held.Add(item("b", "2", 1)))

	require.NoError(t, sessions.Reset())
	assert.Empty(t, held.Items())

	fresh, releaseFresh, err := sessions.Get("c1")
	require.NoError(t, err)
	defer releaseFresh()
	assert.Empty(t, fresh.Items())
	_, ok, err := storage.Get(Key("c1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStorageClear(t *testing.T) {
	storage := NewFileStorage(filepath.Join(t.TempDir(), "carts.json"))
	require.NoError(t, storage.Clear(), "clearing a missing file")
	require.NoError(t, storage.Set("k", []byte("v")))
	require.NoError(t, storage.Clear())
	_, ok, err := storage.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}
