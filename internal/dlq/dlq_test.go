package dlq

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marketpipe/ingestor/internal/persistence"
)

type fakeRepo struct {
	items  []persistence.DLQItem
	nextID int64
}

func (f *fakeRepo) AddFailedItem(ctx context.Context, item persistence.DLQItem) (int64, error) {
	f.nextID++
	item.ID = f.nextID
	f.items = append(f.items, item)
	return item.ID, nil
}

func (f *fakeRepo) GetUnresolved(ctx context.Context) ([]persistence.DLQItem, error) {
	var out []persistence.DLQItem
	for _, it := range f.items {
		if !it.Resolved {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkResolved(ctx context.Context, id int64) error {
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Resolved = true
			return nil
		}
	}
	return errors.New("not found")
}

func TestQueue_Add_MarshalsContext(t *testing.T) {
	repo := &fakeRepo{}
	q := New(repo)

	id, err := q.Add(context.Background(), "AAPL", "ingestion", errors.New("timeout"), map[string]string{"provider": "alphavantage"})
	require.NoError(t, err)
	require.Equal(t, int64(1), id)
	require.Contains(t, string(repo.items[0].Context), "alphavantage")
}

func TestQueue_Add_NilContext(t *testing.T) {
	repo := &fakeRepo{}
	q := New(repo)

	_, err := q.Add(context.Background(), "AAPL", "ingestion", errors.New("boom"), nil)
	require.NoError(t, err)
	require.Nil(t, repo.items[0].Context)
}

func TestQueue_Size_CountsOnlyUnresolved(t *testing.T) {
	repo := &fakeRepo{}
	q := New(repo)

	id1, _ := q.Add(context.Background(), "AAPL", "ingestion", errors.New("e1"), nil)
	_, _ = q.Add(context.Background(), "MSFT", "indicators", errors.New("e2"), nil)
	require.NoError(t, q.Resolve(context.Background(), id1))

	n, err := q.Size(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestQueue_Unresolved(t *testing.T) {
	repo := &fakeRepo{}
	q := New(repo)
	_, _ = q.Add(context.Background(), "AAPL", "ingestion", errors.New("e1"), nil)

	items, err := q.Unresolved(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "AAPL", items[0].Symbol)
}
