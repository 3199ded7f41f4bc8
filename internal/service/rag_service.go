package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pdfqa/internal/domain"
)

// FallbackAnswer is returned in place of a generated answer when generation fails.
const FallbackAnswer = "Error generating response."

// ProgressFunc receives one update per processed chunk.
type ProgressFunc func(domain.Progress)

// Pipeline sequences extraction, embedding, storage, retrieval and generation.
// It holds no state between calls beyond what the vector store persists.
type Pipeline struct {
	extractor domain.Extractor
	chunker   domain.Chunker
	embedder  domain.Embedder
	store     domain.VectorStore
	generator domain.Generator
	logger    *zap.Logger
	topK      int
}

// Options carries the pipeline's collaborators.
type Options struct {
	Extractor domain.Extractor
	Chunker   domain.Chunker
	Embedder  domain.Embedder
	Store     domain.VectorStore
	Generator domain.Generator
	Logger    *zap.Logger
	// TopK is used by Answer when the caller passes a non-positive value.
	TopK int
}

// NewPipeline wires opts into a Pipeline. A nil Logger becomes a no-op
// and a non-positive TopK defaults to 5.
func NewPipeline(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	return &Pipeline{
		extractor: opts.Extractor,
		chunker:   opts.Chunker,
		embedder:  opts.Embedder,
		store:     opts.Store,
		generator: opts.Generator,
		logger:    opts.Logger,
		topK:      opts.TopK,
	}
}

// IngestFile extracts the PDF at path and ingests it.
func (p *Pipeline) IngestFile(ctx context.Context, path string, progress ProgressFunc) (*domain.IngestReport, error) {
	doc, err := p.extractor.ExtractFile(path)
	if err != nil {
		p.logger.Error("extraction failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	return p.Ingest(ctx, doc, progress)
}

// IngestBytes extracts an uploaded PDF and ingests it.
func (p *Pipeline) IngestBytes(ctx context.Context, name string, content []byte, progress ProgressFunc) (*domain.IngestReport, error) {
	doc, err := p.extractor.ExtractBytes(name, content)
	if err != nil {
		p.logger.Error("extraction failed", zap.String("name", name), zap.Error(err))
		return nil, err
	}
	return p.Ingest(ctx, doc, progress)
}

// Ingest embeds and upserts every page of doc, one after another.
// Chunks whose embedding or upsert fails are recorded in the report and
// skipped; they never abort the run. Cancelling ctx stops between chunks
// and returns the partial report with ctx.Err().
func (p *Pipeline) Ingest(ctx context.Context, doc *domain.Document, progress ProgressFunc) (*domain.IngestReport, error) {
	chunks := p.chunker.Chunk(doc)
	report := &domain.IngestReport{DocumentID: doc.ID, Source: doc.Name, Pages: len(chunks)}
	log := p.logger.With(zap.String("document_id", doc.ID), zap.String("source", doc.Name))
	log.Info("ingesting document", zap.Int("pages", len(chunks)), zap.String("embedder", p.embedder.Name()))

	for i, ch := range chunks {
		if err := ctx.Err(); err != nil {
			log.Warn("ingestion cancelled", zap.Int("done", i), zap.Int("total", len(chunks)))
			return report, err
		}
		err := p.ingestChunk(ctx, ch, report)
		if err != nil {
			log.Warn("chunk skipped", zap.String("chunk_id", ch.ID), zap.Int("page", ch.Page), zap.Error(err))
		}
		if progress != nil {
			progress(domain.Progress{Done: i + 1, Total: len(chunks), Page: ch.Page, Err: err})
		}
	}
	if err := ctx.Err(); err != nil {
		log.Warn("ingestion cancelled", zap.Int("done", len(chunks)), zap.Int("total", len(chunks)))
		return report, err
	}
	log.Info("ingestion complete",
		zap.Int("upserted", report.Upserted),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}

func (p *Pipeline) ingestChunk(ctx context.Context, ch domain.Chunk, report *domain.IngestReport) error {
	vec, err := p.embedder.Embed(ctx, ch.Text)
	if err != nil {
		report.Skipped = append(report.Skipped, domain.SkippedChunk{ChunkID: ch.ID, Page: ch.Page, Reason: err.Error()})
		return fmt.Errorf("embed: %w", err)
	}
	entry := domain.IndexEntry{
		ID:     ch.ID,
		Vector: vec,
		Payload: domain.Payload{
			Content:    ch.Text,
			DocumentID: ch.DocumentID,
			Source:     ch.Source,
			Page:       ch.Page,
		},
	}
	if err := p.store.Upsert(ctx, entry); err != nil {
		report.Failed = append(report.Failed, domain.SkippedChunk{ChunkID: ch.ID, Page: ch.Page, Reason: err.Error()})
		return fmt.Errorf("upsert: %w", err)
	}
	report.Upserted++
	return nil
}

// Retrieve embeds query and returns its nearest matches.
func (p *Pipeline) Retrieve(ctx context.Context, query string, topK int) ([]domain.Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if topK <= 0 {
		topK = p.topK
	}
	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		p.logger.Error("query embedding failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrQueryEmbedding, err)
	}
	matches, err := p.store.Query(ctx, vec, topK)
	if err != nil {
		p.logger.Error("vector store query failed", zap.Error(err))
		return nil, fmt.Errorf("query vector store: %w", err)
	}
	if len(matches) == 0 {
		p.logger.Info("no matches", zap.String("query", query))
		return nil, domain.ErrNoMatches
	}
	return matches, nil
}

// Answer retrieves context for query and asks the generator for an answer.
// A generation failure yields FallbackAnswer rather than an error.
func (p *Pipeline) Answer(ctx context.Context, query string, topK int) (*domain.Answer, error) {
	matches, err := p.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	contents := make([]string, len(matches))
	for i, m := range matches {
		contents[i] = m.Payload.Content
	}
	answer := &domain.Answer{Query: query, Context: strings.Join(contents, "\n"), Matches: matches}
	text, err := p.generator.Generate(ctx, query, answer.Context)
	if err != nil {
		p.logger.Error("generation failed", zap.String("generator", p.generator.Name()), zap.Error(err))
		answer.Text = FallbackAnswer
		answer.Fallback = true
		return answer, nil
	}
	answer.Text = text
	return answer, nil
}
