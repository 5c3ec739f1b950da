package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	wvmodels "github.com/weaviate/weaviate/entities/models"

	"tax-rag/internal/models"
)

var ErrMalformedResponse = errors.New("malformed search response")

// WeaviateStore keeps records in a Weaviate class vectorized server side
type WeaviateStore struct {
	client *weaviate.Client
}

// NewWeaviateStore connects to endpoint (e.g. http://localhost:8080).
// openAIKey is forwarded for the text2vec-openai and generative-openai modules.
func NewWeaviateStore(endpoint, openAIKey string) (*WeaviateStore, error) {
	cfg, err := weaviateConfig(endpoint, openAIKey)
	if err != nil {
		return nil, err
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return &WeaviateStore{client: client}, nil
}

func weaviateConfig(endpoint, openAIKey string) (weaviate.Config, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return weaviate.Config{}, fmt.Errorf("invalid weaviate endpoint %q", endpoint)
	}

	headers := map[string]string{}
	if openAIKey != "" {
		headers["X-OpenAI-Api-Key"] = openAIKey
	}
	return weaviate.Config{Host: u.Host, Scheme: u.Scheme, Headers: headers}, nil
}

// className returns the name Weaviate stores the class under
func className(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

func (s *WeaviateStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	return s.client.Schema().ClassExistenceChecker().WithClassName(className(name)).Do(ctx)
}

func (s *WeaviateStore) CreateCollection(ctx context.Context, name string, vectorizer VectorizerConfig) error {
	moduleConfig := make(map[string]interface{}, len(vectorizer.Modules))
	for _, m := range vectorizer.Modules {
		moduleConfig[m] = map[string]interface{}{}
	}

	class := &wvmodels.Class{
		Class:        className(name),
		Vectorizer:   vectorizer.Vectorizer,
		ModuleConfig: moduleConfig,
		Properties: []*wvmodels.Property{
			{Name: models.ContentProperty, DataType: []string{"text"}},
		},
	}
	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create class %s: %w", class.Class, err)
	}
	log.Info().Str("class", class.Class).Str("vectorizer", vectorizer.Vectorizer).Msg("Created weaviate class")
	return nil
}

func (s *WeaviateStore) BatchInsert(ctx context.Context, name string, records []Record, batchSize int) (*BatchResult, error) {
	result := &BatchResult{}
	class := className(name)

	Batches(len(records), batchSize, func(from, to int) {
		objects := make([]*wvmodels.Object, 0, to-from)
		for _, r := range records[from:to] {
			objects = append(objects, &wvmodels.Object{
				Class:      class,
				Properties: map[string]interface{}{models.ContentProperty: r.Content},
			})
		}

		resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
		if err != nil {
			log.Error().Err(err).Int("from", from).Int("to", to).Msg("Weaviate batch failed")
			result.FailBatch(from, to, err)
			return
		}

		failed := batchFailures(resp, from)
		result.Failed = append(result.Failed, failed...)
		result.Inserted += (to - from) - len(failed)
		log.Debug().Int("from", from).Int("to", to).Int("failed", len(failed)).Msg("Weaviate batch stored")
	})
	return result, nil
}

// batchFailures turns per-object errors of one batch into failures,
// offsetting indices by the batch start
func batchFailures(resp []wvmodels.ObjectsGetResponse, offset int) []RecordFailure {
	var failed []RecordFailure
	for i, obj := range resp {
		if obj.Result == nil || obj.Result.Errors == nil || len(obj.Result.Errors.Error) == 0 {
			continue
		}
		msgs := make([]string, 0, len(obj.Result.Errors.Error))
		for _, e := range obj.Result.Errors.Error {
			if e != nil {
				msgs = append(msgs, e.Message)
			}
		}
		failed = append(failed, RecordFailure{Index: offset + i, Err: errors.New(strings.Join(msgs, "; "))})
	}
	return failed
}

func (s *WeaviateStore) NearestNeighborSearch(ctx context.Context, name, concept string, limit int) ([]SearchResult, error) {
	class := className(name)
	nearText := s.client.GraphQL().NearTextArgBuilder().WithConcepts([]string{concept})

	resp, err := s.client.GraphQL().Get().
		WithClassName(class).
		WithFields(graphql.Field{Name: models.ContentProperty}).
		WithNearText(nearText).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("near text query on %s: %w", class, err)
	}
	return parseGetResponse(resp, class)
}

// parseGetResponse reads data.Get.<class>[].content
func parseGetResponse(resp *wvmodels.GraphQLResponse, class string) ([]SearchResult, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			if e != nil {
				msgs = append(msgs, e.Message)
			}
		}
		return nil, fmt.Errorf("graphql: %s", strings.Join(msgs, "; "))
	}

	get, ok := resp.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: missing Get", ErrMalformedResponse)
	}
	raw, ok := get[class]
	if !ok {
		return nil, fmt.Errorf("%w: missing class %s", ErrMalformedResponse, class)
	}
	if raw == nil {
		return []SearchResult{}, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: class %s is not a list", ErrMalformedResponse, class)
	}

	results := make([]SearchResult, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: item %d is not an object", ErrMalformedResponse, i)
		}
		content, ok := obj[models.ContentProperty].(string)
		if !ok {
			return nil, fmt.Errorf("%w: item %d has no string content", ErrMalformedResponse, i)
		}
		results = append(results, SearchResult{Content: content})
	}
	return results, nil
}
