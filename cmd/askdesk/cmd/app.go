package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kishika1sei/askdesk/internal/chat"
	"github.com/kishika1sei/askdesk/internal/config"
	"github.com/kishika1sei/askdesk/internal/docsvc"
	"github.com/kishika1sei/askdesk/internal/embed"
	deskerrors "github.com/kishika1sei/askdesk/internal/errors"
	"github.com/kishika1sei/askdesk/internal/extract"
	"github.com/kishika1sei/askdesk/internal/ingest"
	"github.com/kishika1sei/askdesk/internal/llm"
	"github.com/kishika1sei/askdesk/internal/logging"
	"github.com/kishika1sei/askdesk/internal/store"
	"github.com/kishika1sei/askdesk/internal/vecindex"
)

// app holds the wired services shared by the commands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db          *store.DB
	departments *store.DepartmentStore
	documents   *store.SQLDocumentStore
	chunks      *store.SQLChunkStore
	audits      *store.SQLAuditStore
	chatStore   *store.SQLChatStore
	blobs       *store.FileBlobStore

	embedder embed.Embedder
	client   llm.Client
	index    *vecindex.Service

	ingester *ingest.Service
	docs     *docsvc.Service
	rag      *chat.RAGService
	sessions *chat.SessionManager
}

// newApp loads configuration and wires the full service graph. The returned
// cleanup closes the database and embedder.
func newApp(ctx context.Context) (*app, func(), error) {
	path := configPath
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".askdesk", "config.yaml")
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if debugMode {
		cfg.LogLevel = "debug"
	}

	logger, logCleanup, err := logging.Setup(logging.Config{
		Level:         cfg.LogLevel,
		WriteToStderr: true,
	})
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	db, err := store.Open(cfg.Paths.DatabasePath)
	if err != nil {
		logCleanup()
		return nil, nil, err
	}

	blobs, err := store.NewFileBlobStore(cfg.Paths.BlobDir)
	if err != nil {
		_ = db.Close()
		logCleanup()
		return nil, nil, err
	}

	apiKey := os.Getenv("OPENAI_API_KEY")

	dimension, err := discoverDimension(ctx, cfg, apiKey)
	if err != nil {
		_ = db.Close()
		logCleanup()
		return nil, nil, err
	}

	var inner embed.Embedder
	if apiKey == "" {
		// Offline development and tests run on deterministic embeddings.
		logger.Warn("no OPENAI_API_KEY set, using static embeddings")
		inner = embed.NewStaticEmbedder()
	} else {
		inner = embed.NewOpenAIEmbedder(embed.OpenAIConfig{
			APIKey:     apiKey,
			Model:      cfg.Embedding.Model,
			Dimensions: dimension,
		})
	}
	embedder := embed.NewCachedEmbedder(inner, cfg.Embedding.CacheSize)

	client := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:      apiKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.AnswerTemperature,
	})

	ix, err := vecindex.Open(cfg.Paths.IndexPath, embedder.Dimensions())
	if err != nil {
		_ = embedder.Close()
		_ = db.Close()
		logCleanup()
		return nil, nil, err
	}

	departments := store.NewDepartmentStore(db)
	documents := store.NewDocumentStore(db)
	chunks := store.NewChunkStore(db)
	audits := store.NewAuditStore(db)
	chatStore := store.NewChatStore(db)

	indexSvc := vecindex.NewService(ix, chunks, departments, logger.With("component", "vecindex"))

	ingester := ingest.NewService(
		extract.DefaultRegistry(),
		embedder,
		documents,
		chunks,
		db,
		ingest.Options{
			ChunkSize:       cfg.Ingest.ChunkSize,
			ChunkOverlap:    cfg.Ingest.ChunkOverlap,
			CSVRowsPerChunk: cfg.Ingest.CSVRowsPerChunk,
		},
		logger.With("component", "ingest"),
	)

	docs := docsvc.NewService(
		blobs, documents, chunks, audits, departments,
		ingester, indexSvc, db,
		logger.With("component", "docsvc"),
	)

	router := chat.NewRoutingService(client, logger.With("component", "routing"))
	rag := chat.NewRAGService(
		embedder, indexSvc, client, router, departments, chatStore,
		chat.Options{
			TopK:              cfg.Retrieval.TopK,
			ScoreThreshold:    cfg.Retrieval.ScoreThreshold,
			HistoryLimit:      cfg.Chat.HistoryLimit,
			ContextCharBudget: cfg.Chat.ContextCharBudget,
			PerMessageSnippet: cfg.Chat.PerMessageSnippet,
		},
		logger.With("component", "chat"),
	)

	a := &app{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		departments: departments,
		documents:   documents,
		chunks:      chunks,
		audits:      audits,
		chatStore:   chatStore,
		blobs:       blobs,
		embedder:    embedder,
		client:      client,
		index:       indexSvc,
		ingester:    ingester,
		docs:        docs,
		rag:         rag,
		sessions:    chat.NewSessionManager(chatStore),
	}

	cleanup := func() {
		_ = a.embedder.Close()
		_ = a.db.Close()
		logCleanup()
	}
	return a, cleanup, nil
}

// discoverDimension resolves the embedding dimension: configured value
// first, then the dimension stored in an existing index artifact, then a
// probe embedding against the provider.
func discoverDimension(ctx context.Context, cfg *config.Config, apiKey string) (int, error) {
	if cfg.Embedding.Dimensions > 0 {
		return cfg.Embedding.Dimensions, nil
	}

	stored, err := vecindex.ReadDimension(cfg.Paths.IndexPath)
	if err != nil {
		return 0, deskerrors.New(deskerrors.ErrCodeIndexReload,
			fmt.Sprintf("read index dimension from %s", cfg.Paths.IndexPath), err)
	}
	if stored > 0 {
		return stored, nil
	}

	if apiKey == "" {
		return embed.StaticDimensions, nil
	}

	probe := embed.NewOpenAIEmbedder(embed.OpenAIConfig{
		APIKey: apiKey,
		Model:  cfg.Embedding.Model,
	})
	defer func() { _ = probe.Close() }()

	vec, err := probe.Embed(ctx, "dimension probe")
	if err != nil {
		return 0, err
	}
	return len(vec), nil
}
