package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tax-rag/internal/api/handlers"
	"tax-rag/internal/chromemdb"
	"tax-rag/internal/ingest"
	"tax-rag/internal/models"
	"tax-rag/internal/rag"
)

type stubAnswerer struct{}

func (stubAnswerer) Answer(_ context.Context, question string) (string, error) {
	return "jawaban: " + question, nil
}

// scriptedLLM returns plan for JSON calls and echoes every other prompt
type scriptedLLM struct {
	plan string
}

func (s *scriptedLLM) Complete(_ context.Context, _, userMessage string, jsonMode bool) (string, error) {
	if jsonMode {
		return s.plan, nil
	}
	return userMessage, nil
}

func (s *scriptedLLM) Chat(_ context.Context, messages []models.Message) (string, error) {
	return messages[len(messages)-1].Content, nil
}

type docs map[string]string

func (d docs) ExtractText(path string) (string, error) {
	return d[path], nil
}

func unitEmbedding(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func newTestServer(t *testing.T, answerer handlers.Answerer) (*httptest.Server, *chromemdb.VectorDBManager) {
	t.Helper()
	store := chromemdb.NewInMemory(unitEmbedding)
	ing := ingest.NewIngester(ingest.Options{
		Store:        store,
		Extractor:    docs{"uu.pdf": "Tarif pajak adalah 10%."},
		Collection:   "UndangUndang",
		DefaultFiles: []string{"uu.pdf"},
	})
	srv := httptest.NewServer(NewRouter(RouterConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		RAGHandler:     handlers.NewRAGHandler(answerer, ing),
	}))
	t.Cleanup(srv.Close)
	return srv, store
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	return resp, buf.String()
}

func TestRouter_Health(t *testing.T) {
	srv, _ := newTestServer(t, stubAnswerer{})

	resp, body := get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"data":{"status":"ok"}}`, body)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRouter_Ask(t *testing.T) {
	srv, _ := newTestServer(t, stubAnswerer{})

	resp, body := get(t, srv.URL+"/?search=pajak")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "jawaban: pajak", body)

	resp, _ = get(t, srv.URL+"/")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_PopulateThenAsk(t *testing.T) {
	store := chromemdb.NewInMemory(unitEmbedding)
	llm := &scriptedLLM{plan: `{"query":"tarif pajak","num_results":2}`}
	pipeline := rag.NewRAG(
		rag.NewQueryPlanner(llm, models.DefaultMinResults, models.DefaultMaxResults),
		rag.NewVectorRetriever(store, "UndangUndang", 0),
		rag.NewAnswerSynthesizer(llm),
	)
	ing := ingest.NewIngester(ingest.Options{
		Store:        store,
		Extractor:    docs{"uu.pdf": "Tarif pajak\nadalah 10%."},
		Collection:   "UndangUndang",
		DefaultFiles: []string{"uu.pdf"},
	})
	srv := httptest.NewServer(NewRouter(RouterConfig{RAGHandler: handlers.NewRAGHandler(pipeline, ing)}))
	defer srv.Close()

	resp, body := get(t, srv.URL+"/populate")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Success", body)

	count, err := store.Count("UndangUndang")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	resp, body = get(t, srv.URL+"/?search=Berapa+tarif+pajak%3F")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "here is the relevant informations: Tarif pajakadalah 10%.")
	assert.Contains(t, body, "Here is the question: Berapa tarif pajak?")
}

func TestRouter_PlanFailureIsBadGateway(t *testing.T) {
	store := chromemdb.NewInMemory(unitEmbedding)
	llm := &scriptedLLM{plan: `{"query":"pajak","num_results":9}`}
	pipeline := rag.NewRAG(
		rag.NewQueryPlanner(llm, 2, 5),
		rag.NewVectorRetriever(store, "UndangUndang", 0),
		rag.NewAnswerSynthesizer(llm),
	)
	srv := httptest.NewServer(NewRouter(RouterConfig{RAGHandler: handlers.NewRAGHandler(pipeline, nil)}))
	defer srv.Close()

	resp, body := get(t, srv.URL+"/?search=pajak")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body, "num_results")
}
