package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tax-rag/internal/models"
	"tax-rag/internal/vectorstore"
)

// VectorRetriever fetches passages for a planned query from one collection
type VectorRetriever struct {
	store      vectorstore.Store
	collection string
	timeout    time.Duration
}

func NewVectorRetriever(store vectorstore.Store, collection string, timeout time.Duration) *VectorRetriever {
	return &VectorRetriever{store: store, collection: collection, timeout: timeout}
}

// Retrieve returns up to limit passages in store order, newlines removed.
// Zero matches is an empty slice, not an error.
func (r *VectorRetriever) Retrieve(ctx context.Context, query string, limit int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.NewRetrievalError("query is empty", nil)
	}
	if limit <= 0 {
		return nil, models.NewRetrievalError(fmt.Sprintf("limit must be positive, got %d", limit), nil)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	results, err := r.store.NearestNeighborSearch(ctx, r.collection, query, limit)
	if err != nil {
		return nil, models.NewRetrievalError("search "+r.collection, err)
	}

	passages := make([]string, 0, len(results))
	for _, res := range results {
		passages = append(passages, NormalizePassage(res.Content))
	}
	return passages, nil
}
