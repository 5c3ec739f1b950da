//go:build integration

package db

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"

	"tax-rag/internal/config"
	"tax-rag/internal/vectorstore"
)

type keywordEmbedder struct{}

func (keywordEmbedder) vector(text string) []float32 {
	if strings.Contains(strings.ToLower(text), "pajak") {
		return []float32{1, 0, 0}
	}
	return []float32{0, 1, 0}
}

func (e keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func startPgVector(ctx context.Context, t *testing.T) string {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:0.8.1-pg18",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "taxrag",
			"POSTGRES_PASSWORD": "taxrag",
			"POSTGRES_DB":       "taxrag",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://taxrag:taxrag@%s:%s/taxrag?sslmode=disable", host, port.Port())
}

func setupStore(ctx context.Context, t *testing.T, driver string) (*PgVectorStore, *bun.DB) {
	t.Helper()
	dsn := startPgVector(ctx, t)

	sqldb, err := ConnectDB(&config.DatabaseConfig{URL: dsn, Driver: driver})
	require.NoError(t, err)
	bunDB := NewDB(sqldb, false)
	t.Cleanup(func() { _ = bunDB.Close() })

	require.NoError(t, InitDB(ctx, bunDB, 3))
	return NewPgVectorStore(bunDB, keywordEmbedder{}), bunDB
}

func TestPgVectorStore(t *testing.T) {
	for _, driver := range []string{"pgdriver", "pq"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			store, bunDB := setupStore(ctx, t, driver)

			exists, err := store.CollectionExists(ctx, "UndangUndang")
			require.NoError(t, err)
			assert.False(t, exists)

			vectorizer := vectorstore.VectorizerConfig{Vectorizer: "text2vec-openai"}
			require.NoError(t, store.CreateCollection(ctx, "UndangUndang", vectorizer))
			// idempotent
			require.NoError(t, store.CreateCollection(ctx, "UndangUndang", vectorizer))

			exists, err = store.CollectionExists(ctx, "UndangUndang")
			require.NoError(t, err)
			assert.True(t, exists)

			records := []vectorstore.Record{
				{Content: "Tarif pajak adalah 10%."},
				{Content: "Ketentuan peralihan."},
				{Content: "Pajak terutang dibayar setiap bulan."},
			}
			res, err := store.BatchInsert(ctx, "UndangUndang", records, 2)
			require.NoError(t, err)
			assert.Equal(t, 3, res.Inserted)
			assert.Empty(t, res.Failed)

			// same file again duplicates the records
			_, err = store.BatchInsert(ctx, "UndangUndang", records, 2)
			require.NoError(t, err)
			count, err := bunDB.NewSelect().Model((*Document)(nil)).Where("collection = ?", "UndangUndang").Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 6, count)

			got, err := store.NearestNeighborSearch(ctx, "UndangUndang", "tarif pajak", 2)
			require.NoError(t, err)
			require.Len(t, got, 2)
			for _, r := range got {
				assert.Contains(t, strings.ToLower(r.Content), "pajak")
			}
		})
	}
}
