package chromemdb

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"tax-rag/internal/helper"
	"tax-rag/internal/vectorstore"
)

var _ vectorstore.Store = (*VectorDBManager)(nil)

// VectorDBManager is an embedded chromem-go vector store
type VectorDBManager struct {
	db            *chromem.DB
	embeddingFunc chromem.EmbeddingFunc
}

// NewVectorDBManager opens a persistent DB at dbPath, or an in-memory DB when dbPath is empty
func NewVectorDBManager(dbPath string, compress bool, embeddingFunc chromem.EmbeddingFunc) (*VectorDBManager, error) {
	if embeddingFunc == nil {
		// reads OPENAI_API_KEY
		embeddingFunc = chromem.NewEmbeddingFuncDefault()
	}
	if dbPath == "" {
		return NewInMemory(embeddingFunc), nil
	}

	if err := helper.CreateFolder(dbPath); err != nil {
		return nil, fmt.Errorf("failed to create database folder: %w", err)
	}
	db, err := chromem.NewPersistentDB(dbPath, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	return &VectorDBManager{db: db, embeddingFunc: embeddingFunc}, nil
}

func NewInMemory(embeddingFunc chromem.EmbeddingFunc) *VectorDBManager {
	return &VectorDBManager{db: chromem.NewDB(), embeddingFunc: embeddingFunc}
}

func (m *VectorDBManager) CollectionExists(_ context.Context, name string) (bool, error) {
	return m.db.GetCollection(name, m.embeddingFunc) != nil, nil
}

// CreateCollection ignores the vectorizer name; chromem embeds with the configured function
func (m *VectorDBManager) CreateCollection(_ context.Context, name string, vectorizer vectorstore.VectorizerConfig) error {
	_, err := m.db.CreateCollection(name, map[string]string{"vectorizer": vectorizer.Vectorizer}, m.embeddingFunc)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (m *VectorDBManager) collection(name string) (*chromem.Collection, error) {
	c := m.db.GetCollection(name, m.embeddingFunc)
	if c == nil {
		return nil, fmt.Errorf("collection %q does not exist", name)
	}
	return c, nil
}

// BatchInsert stores every record under a fresh id, so ingesting the same
// content twice keeps both copies. A batch is embedded before anything is
// added, which keeps a failed batch out of the collection entirely.
func (m *VectorDBManager) BatchInsert(ctx context.Context, name string, records []vectorstore.Record, batchSize int) (*vectorstore.BatchResult, error) {
	c, err := m.collection(name)
	if err != nil {
		return nil, err
	}

	result := &vectorstore.BatchResult{}
	vectorstore.Batches(len(records), batchSize, func(from, to int) {
		docs := make([]chromem.Document, 0, to-from)
		for _, r := range records[from:to] {
			id, err := helper.GenerateUUID()
			if err != nil {
				result.FailBatch(from, to, err)
				return
			}
			embedding, err := m.embeddingFunc(ctx, r.Content)
			if err != nil {
				log.Error().Err(err).Int("from", from).Int("to", to).Msg("Failed to embed batch")
				result.FailBatch(from, to, err)
				return
			}
			docs = append(docs, chromem.Document{ID: id, Content: r.Content, Embedding: embedding})
		}

		if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			log.Error().Err(err).Int("from", from).Int("to", to).Msg("Failed to add documents")
			result.FailBatch(from, to, err)
			return
		}
		result.Inserted += len(docs)
	})
	return result, nil
}

func (m *VectorDBManager) NearestNeighborSearch(ctx context.Context, name, concept string, limit int) ([]vectorstore.SearchResult, error) {
	if concept == "" {
		return nil, fmt.Errorf("query text must be provided")
	}
	c, err := m.collection(name)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults above the document count
	n := min(limit, c.Count())
	if n <= 0 {
		return []vectorstore.SearchResult{}, nil
	}

	results, err := c.QueryWithOptions(ctx, chromem.QueryOptions{QueryText: concept, NResults: n})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]vectorstore.SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, vectorstore.SearchResult{Content: r.Content})
	}
	return out, nil
}

// Count returns the number of records in the collection
func (m *VectorDBManager) Count(name string) (int, error) {
	c, err := m.collection(name)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}
