package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/marketpipe/ingestor/internal/dlq"
	"github.com/marketpipe/ingestor/internal/persistence"
)

type fakeDLQRepo struct {
	items []persistence.DLQItem
}

func (f *fakeDLQRepo) AddFailedItem(ctx context.Context, item persistence.DLQItem) (int64, error) {
	item.ID = int64(len(f.items) + 1)
	f.items = append(f.items, item)
	return item.ID, nil
}

func (f *fakeDLQRepo) GetUnresolved(ctx context.Context) ([]persistence.DLQItem, error) {
	var out []persistence.DLQItem
	for _, it := range f.items {
		if !it.Resolved {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeDLQRepo) MarkResolved(ctx context.Context, id int64) error {
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Resolved = true
		}
	}
	return nil
}

func newTestHandlers(repo *fakeDLQRepo) *Handlers {
	return NewHandlers(Deps{DLQ: dlq.New(repo)})
}

func TestHandlers_ListDLQ(t *testing.T) {
	repo := &fakeDLQRepo{}
	_, _ = repo.AddFailedItem(context.Background(), persistence.DLQItem{Symbol: "AAPL", Stage: "ingestion", ErrorMessage: "timeout"})
	h := newTestHandlers(repo)

	req := httptest.NewRequest(http.MethodGet, "/dlq", nil)
	rr := httptest.NewRecorder()
	h.ListDLQ(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp DLQListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	require.Equal(t, "AAPL", resp.Items[0].Symbol)
}

func TestHandlers_ResolveDLQ(t *testing.T) {
	repo := &fakeDLQRepo{}
	id, _ := repo.AddFailedItem(context.Background(), persistence.DLQItem{Symbol: "AAPL", Stage: "ingestion"})
	h := newTestHandlers(repo)

	req := httptest.NewRequest(http.MethodPost, "/dlq/1/resolve", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "1"})
	rr := httptest.NewRecorder()
	h.ResolveDLQ(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.True(t, repo.items[0].Resolved)
	_ = id
}

func TestHandlers_ResolveDLQ_InvalidID(t *testing.T) {
	h := newTestHandlers(&fakeDLQRepo{})

	req := httptest.NewRequest(http.MethodPost, "/dlq/abc/resolve", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "abc"})
	rr := httptest.NewRecorder()
	h.ResolveDLQ(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}
