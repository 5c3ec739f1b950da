package rag

import (
	"context"

	"github.com/stretchr/testify/mock"

	"tax-rag/internal/models"
	"tax-rag/internal/vectorstore"
)

type mockChatModel struct {
	mock.Mock
}

func (m *mockChatModel) Complete(ctx context.Context, systemRole, userMessage string, jsonMode bool) (string, error) {
	args := m.Called(ctx, systemRole, userMessage, jsonMode)
	return args.String(0), args.Error(1)
}

func (m *mockChatModel) Chat(ctx context.Context, messages []models.Message) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) CreateCollection(ctx context.Context, name string, vectorizer vectorstore.VectorizerConfig) error {
	args := m.Called(ctx, name, vectorizer)
	return args.Error(0)
}

func (m *mockStore) BatchInsert(ctx context.Context, name string, records []vectorstore.Record, batchSize int) (*vectorstore.BatchResult, error) {
	args := m.Called(ctx, name, records, batchSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vectorstore.BatchResult), args.Error(1)
}

func (m *mockStore) NearestNeighborSearch(ctx context.Context, name, concept string, limit int) ([]vectorstore.SearchResult, error) {
	args := m.Called(ctx, name, concept, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vectorstore.SearchResult), args.Error(1)
}

type mockPlanner struct {
	mock.Mock
}

func (m *mockPlanner) PlanQuery(ctx context.Context, question string) (*models.QueryPlan, error) {
	args := m.Called(ctx, question)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueryPlan), args.Error(1)
}

type mockRetriever struct {
	mock.Mock
}

func (m *mockRetriever) Retrieve(ctx context.Context, query string, limit int) ([]string, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockSynthesizer struct {
	mock.Mock
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, question string, passages []string) (string, error) {
	args := m.Called(ctx, question, passages)
	return args.String(0), args.Error(1)
}

// echoLLM answers planner calls with a fixed plan and echoes every other prompt
type echoLLM struct {
	plan string
}

func (e *echoLLM) Complete(_ context.Context, _, userMessage string, jsonMode bool) (string, error) {
	if jsonMode {
		return e.plan, nil
	}
	return userMessage, nil
}

func (e *echoLLM) Chat(_ context.Context, messages []models.Message) (string, error) {
	return messages[len(messages)-1].Content, nil
}
