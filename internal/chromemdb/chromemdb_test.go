package chromemdb

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tax-rag/internal/models"
	"tax-rag/internal/vectorstore"
)

const collection = "UndangUndang"

// keywordEmbedding puts texts mentioning "pajak" on one axis and the rest on another
func keywordEmbedding(_ context.Context, text string) ([]float32, error) {
	if strings.Contains(text, "rusak") {
		return nil, errors.New("embedding service unavailable")
	}
	if strings.Contains(strings.ToLower(text), "pajak") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

func vectorizer() vectorstore.VectorizerConfig {
	return vectorstore.VectorizerConfig{Vectorizer: models.DefaultVectorizer, Modules: models.DefaultVectorizerModules}
}

func newStore(t *testing.T) *VectorDBManager {
	t.Helper()
	m := NewInMemory(keywordEmbedding)
	require.NoError(t, m.CreateCollection(context.Background(), collection, vectorizer()))
	return m
}

func TestCollectionExists(t *testing.T) {
	ctx := context.Background()
	m := NewInMemory(keywordEmbedding)

	ok, err := m.CollectionExists(ctx, collection)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.CreateCollection(ctx, collection, vectorizer()))

	ok, err = m.CollectionExists(ctx, collection)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBatchInsert_DuplicateIngestionKeepsBothCopies(t *testing.T) {
	ctx := context.Background()
	m := newStore(t)
	records := []vectorstore.Record{{Content: "Tarif pajak adalah 10%."}, {Content: "Berlaku sejak 2024."}}

	res, err := m.BatchInsert(ctx, collection, records, 150)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)

	res, err = m.BatchInsert(ctx, collection, records, 150)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)

	count, err := m.Count(collection)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestBatchInsert_FailedBatchDoesNotStopOthers(t *testing.T) {
	m := newStore(t)
	records := []vectorstore.Record{
		{Content: "pajak penghasilan"},
		{Content: "ketentuan umum"},
		{Content: "halaman rusak"},
		{Content: "pajak pertambahan nilai"},
		{Content: "penutup"},
	}

	res, err := m.BatchInsert(context.Background(), collection, records, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Inserted)
	assert.Equal(t, []int{2, 3}, res.FailedIndices())

	count, err := m.Count(collection)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestBatchInsert_UnknownCollection(t *testing.T) {
	m := NewInMemory(keywordEmbedding)
	_, err := m.BatchInsert(context.Background(), "Missing", []vectorstore.Record{{Content: "x"}}, 10)
	assert.Error(t, err)
}

func TestNearestNeighborSearch(t *testing.T) {
	ctx := context.Background()
	m := newStore(t)
	_, err := m.BatchInsert(ctx, collection, []vectorstore.Record{
		{Content: "Tarif pajak adalah 10%."},
		{Content: "Ketentuan peralihan."},
		{Content: "Pajak terutang dibayar setiap bulan."},
	}, 150)
	require.NoError(t, err)

	got, err := m.NearestNeighborSearch(ctx, collection, "tarif pajak", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, r := range got {
		assert.Contains(t, strings.ToLower(r.Content), "pajak")
	}

	// limit above the record count is clamped
	got, err = m.NearestNeighborSearch(ctx, collection, "tarif pajak", 5)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestNearestNeighborSearch_EmptyCollection(t *testing.T) {
	m := newStore(t)

	got, err := m.NearestNeighborSearch(context.Background(), collection, "tarif pajak", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNearestNeighborSearch_Errors(t *testing.T) {
	m := newStore(t)

	_, err := m.NearestNeighborSearch(context.Background(), collection, "", 3)
	assert.Error(t, err)

	_, err = m.NearestNeighborSearch(context.Background(), "Missing", "pajak", 3)
	assert.Error(t, err)
}

func TestNewVectorDBManager_Persistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chromemdb")

	m, err := NewVectorDBManager(path, false, keywordEmbedding)
	require.NoError(t, err)
	require.NoError(t, m.CreateCollection(context.Background(), collection, vectorizer()))
	_, err = m.BatchInsert(context.Background(), collection, []vectorstore.Record{{Content: "pajak"}}, 10)
	require.NoError(t, err)

	reopened, err := NewVectorDBManager(path, false, keywordEmbedding)
	require.NoError(t, err)
	count, err := reopened.Count(collection)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
