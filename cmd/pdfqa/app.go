package main

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pdfqa/internal/chunker"
	"pdfqa/internal/config"
	"pdfqa/internal/domain"
	"pdfqa/internal/embedding/hashing"
	"pdfqa/internal/embedding/openai"
	"pdfqa/internal/extract"
	"pdfqa/internal/gemini"
	"pdfqa/internal/generation/extractive"
	"pdfqa/internal/service"
	"pdfqa/internal/vectorstore/memory"
	"pdfqa/internal/vectorstore/pinecone"
	"pdfqa/internal/vectorstore/qdrant"
	"pdfqa/internal/vectorstore/sqlite"
)

// app owns every client created at startup.
type app struct {
	pipeline *service.Pipeline
	store    domain.VectorStore
	// persistent is false when entries are lost once the process exits.
	persistent bool
	closers    []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildApp(cfg *config.AppConfig, logger *zap.Logger) (*app, error) {
	a := &app{}

	var gem *gemini.Client
	geminiClient := func() *gemini.Client {
		if gem == nil {
			gem = gemini.NewClient(gemini.Config{
				APIKeyEnv:         cfg.Gemini.APIKeyEnv,
				EmbeddingModel:    cfg.Gemini.EmbeddingModel,
				GenerationModel:   cfg.Gemini.GenerationModel,
				Instructions:      cfg.Generator.Instructions,
				RequestsPerMinute: cfg.Gemini.RequestsPerMinute,
				Breaker:           cfg.Gemini.CircuitBreaker,
			}, logger.Named("gemini"))
			a.closers = append(a.closers, gem.Close)
		}
		return gem
	}

	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "gemini":
		emb = geminiClient()
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, errors.New("openai embedder config missing")
		}
		emb = openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
	case "hashing":
		dim := 0
		if cfg.Embedder.Hashing != nil {
			dim = cfg.Embedder.Hashing.Dimension
		}
		emb = hashing.NewEmbedder(dim)
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var gen domain.Generator
	switch cfg.Generator.Type {
	case "gemini":
		gen = geminiClient()
	case "extractive":
		gen = extractive.NewGenerator(cfg.Generator.MaxSentences)
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Generator.Type)
	}

	switch cfg.VectorStore.Type {
	case "memory":
		a.store = memory.NewStore()
	case "pinecone":
		if cfg.VectorStore.Pinecone == nil {
			return nil, errors.New("pinecone config missing")
		}
		a.store = pinecone.NewStore(pinecone.Config{
			Host:      cfg.VectorStore.Pinecone.Host,
			APIKeyEnv: cfg.VectorStore.Pinecone.APIKeyEnv,
			Namespace: cfg.VectorStore.Pinecone.Namespace,
			Timeout:   time.Duration(cfg.VectorStore.Pinecone.TimeoutSecs) * time.Second,
		})
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			return nil, errors.New("qdrant config missing")
		}
		a.store = qdrant.NewStore(qdrant.Config{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKeyEnv:  cfg.VectorStore.Qdrant.APIKeyEnv,
			Collection: cfg.VectorStore.Qdrant.Collection,
			Timeout:    time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
		}, logger.Named("qdrant"))
	case "sqlite":
		if cfg.VectorStore.SQLite == nil {
			return nil, errors.New("sqlite config missing")
		}
		st, err := sqlite.NewStore(cfg.VectorStore.SQLite.Path)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		a.store = st
	default:
		_ = a.Close()
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
	a.persistent = cfg.VectorStore.Type != "memory"
	a.closers = append(a.closers, a.store.Close)

	a.pipeline = service.NewPipeline(service.Options{
		Extractor: extract.NewPDFExtractor(),
		Chunker:   chunker.NewPageChunker(cfg.Ingest.IDScheme),
		Embedder:  emb,
		Store:     a.store,
		Generator: gen,
		Logger:    logger,
		TopK:      cfg.Retrieval.TopK,
	})
	logger.Debug("components ready",
		zap.String("embedder", emb.Name()),
		zap.String("generator", gen.Name()),
		zap.String("vector_store", cfg.VectorStore.Type))
	return a, nil
}
