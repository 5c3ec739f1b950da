// Package ingest turns statute documents into vector store records.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"

	"tax-rag/internal/lock"
	"tax-rag/internal/models"
	"tax-rag/internal/parser"
	"tax-rag/internal/vectorstore"
)

// SourceResolver maps a document path to a readable local file
type SourceResolver interface {
	Resolve(ctx context.Context, path string) (local string, cleanup func(), err error)
}

type Options struct {
	Store      vectorstore.Store
	Extractor  parser.Extractor
	Splitter   textsplitter.TextSplitter
	Collection string
	BatchSize  int
	Vectorizer vectorstore.VectorizerConfig

	// optional
	Resolver     SourceResolver
	Locker       lock.Locker
	LockTTL      time.Duration
	DefaultFiles []string
}

type Ingester struct {
	store        vectorstore.Store
	extractor    parser.Extractor
	splitter     textsplitter.TextSplitter
	collection   string
	batchSize    int
	vectorizer   vectorstore.VectorizerConfig
	resolver     SourceResolver
	locker       lock.Locker
	lockTTL      time.Duration
	defaultFiles []string
}

func NewIngester(opts Options) *Ingester {
	if opts.Extractor == nil {
		opts.Extractor = parser.FileExtractor{}
	}
	if opts.Splitter == nil {
		opts.Splitter = parser.CharacterSplitter{ChunkSize: models.DefaultChunkSize, ChunkOverlap: models.DefaultChunkOverlap}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = models.DefaultBatchSize
	}
	if opts.Vectorizer.Vectorizer == "" {
		opts.Vectorizer = vectorstore.VectorizerConfig{
			Vectorizer: models.DefaultVectorizer,
			Modules:    models.DefaultVectorizerModules,
		}
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewLocalLock()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	return &Ingester{
		store:        opts.Store,
		extractor:    opts.Extractor,
		splitter:     opts.Splitter,
		collection:   opts.Collection,
		batchSize:    opts.BatchSize,
		vectorizer:   opts.Vectorizer,
		resolver:     opts.Resolver,
		locker:       opts.Locker,
		lockTTL:      opts.LockTTL,
		defaultFiles: opts.DefaultFiles,
	}
}

// EnsureCollection creates the collection unless it already exists
func (i *Ingester) EnsureCollection(ctx context.Context) error {
	exists, err := i.store.CollectionExists(ctx, i.collection)
	if err != nil {
		return fmt.Errorf("%w: check collection %s: %w", models.ErrIngest, i.collection, err)
	}
	if exists {
		return nil
	}
	if err := i.store.CreateCollection(ctx, i.collection, i.vectorizer); err != nil {
		return fmt.Errorf("%w: create collection %s: %w", models.ErrIngest, i.collection, err)
	}
	log.Info().Str("collection", i.collection).Str("vectorizer", i.vectorizer.Vectorizer).Msg("Collection created")
	return nil
}

// IngestFile stores every chunk of the document at path and returns how many
// were stored. When some batches fail the count covers the others and the
// error is an *models.IngestError listing the failed chunk indices.
func (i *Ingester) IngestFile(ctx context.Context, path string) (int, error) {
	local := path
	if i.resolver != nil {
		resolved, cleanup, err := i.resolver.Resolve(ctx, path)
		if err != nil {
			return 0, &models.IngestError{File: path, Err: err}
		}
		defer cleanup()
		local = resolved
	}

	log.Info().Str("file", path).Msg("Extracting text")
	text, err := i.extractor.ExtractText(local)
	if err != nil {
		return 0, &models.IngestError{File: path, Err: err}
	}

	chunks, err := parser.Chunks(i.splitter, text, path)
	if err != nil {
		return 0, &models.IngestError{File: path, Err: fmt.Errorf("split text: %w", err)}
	}
	if len(chunks) == 0 {
		log.Warn().Str("file", path).Msg("No text found")
		return 0, nil
	}

	records := make([]vectorstore.Record, 0, len(chunks))
	for _, c := range chunks {
		records = append(records, vectorstore.Record{Content: c.Content})
	}

	result, err := i.store.BatchInsert(ctx, i.collection, records, i.batchSize)
	if err != nil {
		return 0, &models.IngestError{File: path, Err: err}
	}

	if len(result.Failed) > 0 {
		errs := make([]error, 0, len(result.Failed))
		for _, f := range result.Failed {
			errs = append(errs, f.Err)
		}
		log.Error().Str("file", path).Int("inserted", result.Inserted).Ints("failed_chunks", result.FailedIndices()).Msg("Some chunks were not stored")
		return result.Inserted, &models.IngestError{
			File:         path,
			FailedChunks: result.FailedIndices(),
			Err:          distinctErrors(errs),
		}
	}

	log.Info().Str("file", path).Int("chunks", result.Inserted).Msg("Document ingested")
	return result.Inserted, nil
}

// distinctErrors joins each cause once. A failed batch repeats its error per record.
func distinctErrors(errs []error) error {
	seen := make(map[string]bool)
	var out []error
	for _, err := range errs {
		if err == nil || seen[err.Error()] {
			continue
		}
		seen[err.Error()] = true
		out = append(out, err)
	}
	return errors.Join(out...)
}

// FileResult is the outcome of one file of a populate run
type FileResult struct {
	File     string `json:"file"`
	Ingested int    `json:"ingested"`
	Error    string `json:"error,omitempty"`
}

type PopulateResult struct {
	Files []FileResult `json:"files"`
}

// Total is the number of records stored across all files
func (r *PopulateResult) Total() int {
	total := 0
	for _, f := range r.Files {
		total += f.Ingested
	}
	return total
}

// Populate ingests paths, or the configured default files when paths is
// empty, into a collection created on demand. Only one populate per
// collection runs at a time; a concurrent call fails with
// models.ErrPopulateInProgress. A failing file does not stop the others and
// the returned error joins every per-file error.
func (i *Ingester) Populate(ctx context.Context, paths []string) (*PopulateResult, error) {
	if len(paths) == 0 {
		paths = i.defaultFiles
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no files to populate", models.ErrIngest)
	}

	lockName := "populate:" + i.collection
	acquired, err := i.locker.Acquire(ctx, lockName, i.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrIngest, err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: %w", models.ErrIngest, models.ErrPopulateInProgress)
	}
	defer func() {
		if err := i.locker.Release(context.WithoutCancel(ctx), lockName); err != nil {
			log.Warn().Err(err).Str("lock", lockName).Msg("Failed to release populate lock")
		}
	}()

	if err := i.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	result := &PopulateResult{Files: make([]FileResult, 0, len(paths))}
	var errs []error
	for _, p := range paths {
		n, err := i.IngestFile(ctx, p)
		fr := FileResult{File: p, Ingested: n}
		if err != nil {
			fr.Error = err.Error()
			errs = append(errs, err)
		}
		result.Files = append(result.Files, fr)
	}

	log.Info().Int("files", len(paths)).Int("records", result.Total()).Int("failed", len(errs)).Msg("Populate finished")
	return result, errors.Join(errs...)
}

func (i *Ingester) Collection() string {
	return i.collection
}
