package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"tax-rag/internal/chromemdb"
	"tax-rag/internal/config"
	"tax-rag/internal/db"
	"tax-rag/internal/embedding"
	"tax-rag/internal/ingest"
	"tax-rag/internal/llmservice"
	"tax-rag/internal/lock"
	"tax-rag/internal/parser"
	"tax-rag/internal/rag"
	"tax-rag/internal/storage"
	"tax-rag/internal/telemetry"
	"tax-rag/internal/vectorstore"
)

// app holds the long-lived clients shared by every command
type app struct {
	cfg     *config.Config
	closers []func()
}

func newApp(cfg *config.Config) *app {
	a := &app{cfg: cfg}
	flush := telemetry.Init(telemetry.Config{
		DSN:              cfg.Sentry.DSN,
		Environment:      cfg.Sentry.Environment,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
	})
	a.closers = append(a.closers, flush)
	return a
}

// Close releases resources in reverse order of creation
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) llm() (llmservice.ChatModel, error) {
	return llmservice.New(a.cfg.LLM)
}

func (a *app) store(ctx context.Context) (vectorstore.Store, error) {
	vs := a.cfg.VectorStore
	switch vs.Type {
	case config.StoreWeaviate:
		return vectorstore.NewWeaviateStore(vs.URL, a.cfg.LLM.Key)

	case config.StoreChromem:
		embedder, err := embedding.NewEmbedder(a.cfg.EmbedLLM)
		if err != nil {
			return nil, err
		}
		return chromemdb.NewVectorDBManager(vs.Chromem.Path, vs.Chromem.Compress, embedding.Func(embedder))

	case config.StorePgVector:
		embedder, err := embedding.NewEmbedder(a.cfg.EmbedLLM)
		if err != nil {
			return nil, err
		}
		sqldb, err := db.ConnectDB(&a.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		bunDB := db.NewDB(sqldb, a.cfg.Database.Debug)
		a.closers = append(a.closers, func() { _ = bunDB.Close() })
		if err := db.InitDB(ctx, bunDB, a.cfg.Database.Dimensions); err != nil {
			return nil, err
		}
		return db.NewPgVectorStore(bunDB, embedder), nil

	default:
		return nil, fmt.Errorf("unknown vector store %q", vs.Type)
	}
}

func (a *app) pipeline(store vectorstore.Store) (*rag.RAG, error) {
	llm, err := a.llm()
	if err != nil {
		return nil, err
	}
	return rag.NewRAG(
		rag.NewQueryPlanner(llm, a.cfg.RAG.MinResults, a.cfg.RAG.MaxResults),
		rag.NewVectorRetriever(store, a.cfg.VectorStore.Collection, a.cfg.VectorStore.Timeout),
		rag.NewAnswerSynthesizer(llm),
	), nil
}

func (a *app) ingester(ctx context.Context, store vectorstore.Store) (*ingest.Ingester, error) {
	splitter, err := parser.NewSplitter(a.cfg.RAG)
	if err != nil {
		return nil, err
	}

	opts := ingest.Options{
		Store:      store,
		Extractor:  parser.FileExtractor{},
		Splitter:   splitter,
		Collection: a.cfg.VectorStore.Collection,
		BatchSize:  a.cfg.VectorStore.BatchSize,
		Vectorizer: vectorstore.VectorizerConfig{
			Vectorizer: a.cfg.VectorStore.Vectorizer,
			Modules:    a.cfg.VectorStore.Modules,
		},
		LockTTL:      a.cfg.Populate.LockTTL,
		DefaultFiles: a.cfg.Populate.Files,
	}

	if a.cfg.Redis.URL != "" {
		redisLock, err := lock.NewRedisLockFromURL(a.cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = redisLock.Close() })
		if err := redisLock.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		opts.Locker = redisLock
		log.Info().Str("owner", redisLock.OwnerID()).Msg("Using redis populate lock")
	}

	if a.cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        a.cfg.S3.Endpoint,
			Region:          a.cfg.S3.Region,
			AccessKeyID:     a.cfg.S3.AccessKeyID,
			SecretAccessKey: a.cfg.S3.SecretAccessKey,
			UsePathStyle:    a.cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		opts.Resolver = s3Client
	}

	return ingest.NewIngester(opts), nil
}
