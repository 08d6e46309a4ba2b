package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/scanbill/internal/billing"
)

func newBill(t *testing.T, id string, at time.Time) *billing.Bill {
	t.Helper()
	return &billing.Bill{
		ID:         id,
		Date:       at,
		Products:   []billing.Product{{ID: "p1", Name: "Apple", Price: 1.99, Quantity: 2}},
		Total:      3.98,
		Tax:        0.4,
		GrandTotal: 4.38,
	}
}

// runContract exercises the behavior every BillStore shares.
func runContract(t *testing.T, s BillStore) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := s.Load(ctx, "missing")
	require.ErrorIs(t, err, ErrBillNotFound)

	list, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Save(ctx, newBill(t, id, base.Add(time.Duration(i)*time.Minute))))
	}

	got, err := s.Load(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)
	assert.True(t, got.Date.Equal(base.Add(time.Minute)))
	assert.Equal(t, 4.38, got.GrandTotal)
	require.Len(t, got.Products, 1)
	assert.Equal(t, "Apple", got.Products[0].Name)

	list, err = s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{list[0].ID, list[1].ID, list[2].ID})

	list, err = s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)

	got.CustomerEmail = "jo@example.com"
	require.NoError(t, s.Save(ctx, got))
	again, err := s.Load(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", again.CustomerEmail)

	require.NoError(t, s.Delete(ctx, "a"))
	require.ErrorIs(t, s.Delete(ctx, "a"), ErrBillNotFound)
	_, err = s.Load(ctx, "a")
	require.ErrorIs(t, err, ErrBillNotFound)

	list, err = s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, backend.NewClient(&backend.Options{Addr: mr.Addr()})
}

func TestRedis_Contract(t *testing.T) {
	_, client := newMiniredis(t)
	s := NewRedisFromClient(client)
	defer s.Close()

	require.NoError(t, s.Ping(context.Background()))
	runContract(t, s)
}

func TestMemory_Contract(t *testing.T) {
	runContract(t, NewMemory())
}

func TestRedis_PrefixAndTTL(t *testing.T) {
	mr, client := newMiniredis(t)
	s := NewRedisFromClient(client, WithPrefix("test:"), WithTTL(time.Hour))
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, newBill(t, "old", time.Now().Add(-time.Minute))))
	require.NoError(t, s.Save(ctx, newBill(t, "new", time.Now())))

	assert.True(t, mr.Exists("test:old"))
	assert.True(t, mr.Exists("test:index"))
	assert.Equal(t, time.Hour, mr.TTL("test:old"))

	mr.Del("test:old")

	list, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].ID)

	members, err := mr.ZMembers("test:index")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, members)
}

func TestRedis_LoadCorrupt(t *testing.T) {
	mr, client := newMiniredis(t)
	s := NewRedisFromClient(client)

	require.NoError(t, mr.Set(DefaultPrefix+"bad", "{not json"))
	_, err := s.Load(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBillNotFound)
}

func TestMemory_IsolatesCallers(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	bill := newBill(t, "x", time.Now())
	require.NoError(t, m.Save(ctx, bill))

	bill.Products[0].Quantity = 99
	got, err := m.Load(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Products[0].Quantity)
}
