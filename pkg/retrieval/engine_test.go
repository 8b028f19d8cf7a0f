package retrieval_test

import (
	"context"
	"errors"
	"testing"

	"ai-shopping-assistant-be/pkg/retrieval"
	"ai-shopping-assistant-be/pkg/shopping"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	hits []shopping.CatalogHit
	err  error
}

func (f fakeSource) FindCandidatesBySimilarity(context.Context, []float32, float64) ([]shopping.CatalogHit, error) {
	return f.hits, f.err
}

func TestGroup_ThresholdIsStrict(t *testing.T) {
	distances := []float64{0.1, 0.5, 0.64, 0.65, 0.9}
	hits := make([]shopping.CatalogHit, 0, len(distances))
	for i, d := range distances {
		hits = append(hits, shopping.CatalogHit{StoreId: 1, ProductId: int64(i + 1), Distance: d})
	}

	got := retrieval.Group(hits, retrieval.DefaultThreshold)

	var kept []float64
	for _, c := range got[1] {
		kept = append(kept, 1-c.Similarity)
	}
	if diff := cmp.Diff([]float64{0.1, 0.5, 0.64}, kept, cmp.Comparer(func(a, b float64) bool {
		return a-b < 1e-9 && b-a < 1e-9
	})); diff != "" {
		t.Errorf("kept distances mismatch (-want +got):\n%s", diff)
	}
}

func TestGroup_OmitsEmptyStores(t *testing.T) {
	price := decimal.RequireFromString("3.50")
	hits := []shopping.CatalogHit{
		{StoreId: 2, ProductId: 20, Name: "Oat milk", Price: price, Distance: 0.2},
		{StoreId: 3, ProductId: 30, Name: "Hammer", Price: price, Distance: 0.8},
		{StoreId: 2, ProductId: 21, Name: "Milk", Price: price, Distance: 0.3},
	}

	got := retrieval.Group(hits, retrieval.DefaultThreshold)

	want := shopping.CandidatesByStore{
		2: {
			{ProductId: 20, Name: "Oat milk", Price: price, Similarity: 0.8},
			{ProductId: 21, Name: "Milk", Price: price, Similarity: 0.7},
		},
	}
	opts := cmp.Options{
		cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }),
		cmp.Comparer(func(a, b float64) bool { return a-b < 1e-9 && b-a < 1e-9 }),
	}
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Errorf("grouping mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, got.HasStore(3))
}

func TestEngine_Retrieve(t *testing.T) {
	t.Run("defaults threshold", func(t *testing.T) {
		assert.Equal(t, retrieval.DefaultThreshold, retrieval.NewEngine(0).Threshold())
	})

	t.Run("source error is wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := retrieval.NewEngine(0).Retrieve(context.Background(), fakeSource{err: boom}, []float32{1})
		require.ErrorIs(t, err, boom)
	})

	t.Run("no hits yields empty map", func(t *testing.T) {
		got, err := retrieval.NewEngine(0).Retrieve(context.Background(), fakeSource{}, []float32{1})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
