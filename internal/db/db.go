package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"tax-rag/internal/config"
	"tax-rag/internal/vectorstore"
)

type Collection struct {
	bun.BaseModel `bun:"table:collections,alias:c"`
	Name          string    `bun:"name,pk"`
	Vectorizer    string    `bun:"vectorizer"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            int64           `bun:"id,pk,autoincrement"`
	Collection    string          `bun:"collection,notnull"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,type:vector,notnull"`
}

// ConnectDB opens the database with the configured driver (pgdriver or pq)
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "pq", "postgres":
		return sql.Open("postgres", cfg.URL)
	case "pgdriver", "":
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.URL))), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// InitDB creates the vector extension and both tables
func InitDB(ctx context.Context, db *bun.DB, dimensions int) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*Collection)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create collections table: %w", err)
	}
	_, err := db.NewCreateTable().
		Model((*Document)(nil)).
		IfNotExists().
		ForeignKey(`("collection") REFERENCES "collections" ("name") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	// bun has no type for a sized vector column
	_, err = db.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE documents ALTER COLUMN embedding TYPE vector(%d)`, dimensions))
	return err
}

// PgVectorStore keeps collections and documents in postgres with pgvector
type PgVectorStore struct {
	db       *bun.DB
	embedder embeddings.Embedder
}

var _ vectorstore.Store = (*PgVectorStore)(nil)

func NewPgVectorStore(db *bun.DB, embedder embeddings.Embedder) *PgVectorStore {
	return &PgVectorStore{db: db, embedder: embedder}
}

func (s *PgVectorStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	var tableExists bool
	if err := s.db.NewRaw("SELECT to_regclass(?) IS NOT NULL", "public.collections").Scan(ctx, &tableExists); err != nil {
		return false, err
	}
	if !tableExists {
		return false, nil
	}
	return s.db.NewSelect().Model((*Collection)(nil)).Where("name = ?", name).Exists(ctx)
}

func (s *PgVectorStore) CreateCollection(ctx context.Context, name string, vectorizer vectorstore.VectorizerConfig) error {
	_, err := s.db.NewInsert().
		Model(&Collection{Name: name, Vectorizer: vectorizer.Vectorizer}).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

func (s *PgVectorStore) BatchInsert(ctx context.Context, name string, records []vectorstore.Record, batchSize int) (*vectorstore.BatchResult, error) {
	result := &vectorstore.BatchResult{}

	vectorstore.Batches(len(records), batchSize, func(from, to int) {
		texts := make([]string, 0, to-from)
		for _, r := range records[from:to] {
			texts = append(texts, r.Content)
		}

		vectors, err := s.embedder.EmbedDocuments(ctx, texts)
		if err == nil && len(vectors) != len(texts) {
			err = fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
		}
		if err != nil {
			log.Error().Err(err).Int("from", from).Int("to", to).Msg("Failed to embed batch")
			result.FailBatch(from, to, err)
			return
		}

		docs := make([]Document, 0, len(texts))
		for i, text := range texts {
			docs = append(docs, Document{Collection: name, Content: text, Embedding: pgvector.NewVector(vectors[i])})
		}
		if _, err := s.db.NewInsert().Model(&docs).Exec(ctx); err != nil {
			log.Error().Err(err).Int("from", from).Int("to", to).Msg("Failed to store batch")
			result.FailBatch(from, to, err)
			return
		}
		result.Inserted += len(docs)
	})
	return result, nil
}

func (s *PgVectorStore) NearestNeighborSearch(ctx context.Context, name, concept string, limit int) ([]vectorstore.SearchResult, error) {
	vector, err := s.embedder.EmbedQuery(ctx, concept)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var docs []Document
	err = s.db.NewSelect().
		Model(&docs).
		Column("content").
		Where("collection = ?", name).
		OrderExpr("embedding <-> ?", pgvector.NewVector(vector)).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}

	out := make([]vectorstore.SearchResult, 0, len(docs))
	for _, d := range docs {
		out = append(out, vectorstore.SearchResult{Content: d.Content})
	}
	return out, nil
}
