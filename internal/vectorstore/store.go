// Package vectorstore defines the storage contract of the pipeline and its
// default Weaviate implementation.
package vectorstore

import "context"

// Record is one object stored in a collection
type Record struct {
	Content string
}

// SearchResult is one nearest-neighbour hit
type SearchResult struct {
	Content string
}

// VectorizerConfig describes how a new collection vectorizes its content
type VectorizerConfig struct {
	Vectorizer string
	Modules    []string
}

// RecordFailure marks a record of a BatchInsert call that was not stored
type RecordFailure struct {
	Index int
	Err   error
}

// BatchResult summarizes a BatchInsert call. Indices refer to the input slice.
type BatchResult struct {
	Inserted int
	Failed   []RecordFailure
}

// FailedIndices returns the indices of records that were not stored
func (r *BatchResult) FailedIndices() []int {
	out := make([]int, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, f.Index)
	}
	return out
}

// FailBatch records every index in [from, to) as failed with err
func (r *BatchResult) FailBatch(from, to int, err error) {
	for i := from; i < to; i++ {
		r.Failed = append(r.Failed, RecordFailure{Index: i, Err: err})
	}
}

// Store is the vector database used for ingestion and retrieval.
//
// BatchInsert submits records in batches of batchSize. A failing batch does
// not stop the following ones; its records are reported in BatchResult.Failed.
// The returned error is reserved for failures that prevent any attempt.
type Store interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, vectorizer VectorizerConfig) error
	BatchInsert(ctx context.Context, name string, records []Record, batchSize int) (*BatchResult, error)
	NearestNeighborSearch(ctx context.Context, name, concept string, limit int) ([]SearchResult, error)
}

// Batches calls fn with the [from, to) bounds of every batch
func Batches(total, batchSize int, fn func(from, to int)) {
	if batchSize <= 0 {
		batchSize = total
	}
	for from := 0; from < total; from += batchSize {
		fn(from, min(from+batchSize, total))
	}
}
