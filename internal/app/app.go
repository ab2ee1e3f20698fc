// Package app wires the shared components used by every binary.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bull/kbminer/internal/chat"
	"github.com/bull/kbminer/internal/chunking"
	"github.com/bull/kbminer/internal/config"
	"github.com/bull/kbminer/internal/embedding"
	"github.com/bull/kbminer/internal/feedback"
	"github.com/bull/kbminer/internal/history"
	"github.com/bull/kbminer/internal/indexer"
	"github.com/bull/kbminer/internal/ingest"
	"github.com/bull/kbminer/internal/job"
	"github.com/bull/kbminer/internal/logging"
	"github.com/bull/kbminer/internal/pdf"
	"github.com/bull/kbminer/internal/storage"
	"github.com/bull/kbminer/internal/usage"
	"github.com/bull/kbminer/internal/vision"
)

// App holds lazily created clients. It is not safe for concurrent setup;
// build everything a binary needs before serving.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	aws    *aws.Config
	dynamo *dynamodb.Client
	openai *embedding.Client
	qdrant *storage.QdrantStorage
}

// New loads configuration and installs the default logger.
func New() *App {
	cfg := config.Load()
	logger := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return &App{Config: cfg, Logger: logger}
}

// Close releases the Qdrant connection, if one was opened.
func (a *App) Close() error {
	if a.qdrant != nil {
		return a.qdrant.Close()
	}
	return nil
}

func (a *App) awsConfig(ctx context.Context) (aws.Config, error) {
	if a.aws == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("load aws config: %w", err)
		}
		a.aws = &cfg
	}
	return *a.aws, nil
}

// Dynamo returns the DynamoDB client.
func (a *App) Dynamo(ctx context.Context) (*dynamodb.Client, error) {
	if a.dynamo == nil {
		cfg, err := a.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		a.dynamo = dynamodb.NewFromConfig(cfg)
	}
	return a.dynamo, nil
}

// OpenAI returns the shared OpenAI client.
func (a *App) OpenAI() (*embedding.Client, error) {
	if a.openai == nil {
		client, err := embedding.NewClient(embedding.ClientConfig{
			APIKey:       a.Config.OpenAI.APIKey,
			Organization: a.Config.OpenAI.Organization,
			BaseURL:      a.Config.OpenAI.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		a.openai = client
	}
	return a.openai, nil
}

// Qdrant connects to Qdrant on first use.
func (a *App) Qdrant() (*storage.QdrantStorage, error) {
	if a.qdrant == nil {
		q := a.Config.Qdrant
		store, err := storage.NewQdrantStorage(storage.QdrantConfig{
			Host:   q.Host,
			Port:   q.Port,
			APIKey: q.APIKey,
			UseTLS: q.UseTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to qdrant at %s:%d: %w", q.Host, q.Port, err)
		}
		a.qdrant = store
	}
	return a.qdrant, nil
}

// Coordinator builds the ingestion batch coordinator. sink may be nil to skip
// persisting raw text.
func (a *App) Coordinator(sink ingest.TextSink) (*ingest.Coordinator, error) {
	client, err := a.OpenAI()
	if err != nil {
		return nil, err
	}
	ic := a.Config.Ingest
	splitter, err := chunking.NewSplitter(ic.ChunkSize, ic.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	vc := a.Config.Vision
	describer := vision.NewLimited(vision.NewClient(client.Client(), vision.Options{
		Model:     vc.Model,
		MaxTokens: vc.MaxTokens,
		Timeout:   vc.Timeout,
	}, a.Logger), vc.Concurrency)

	processor := ingest.NewFileProcessor(pdf.NewExtractor(describer, a.Logger), splitter, sink, a.Logger).
		WithPageConcurrency(ic.PageConcurrency)
	return ingest.NewCoordinator(processor, ic.FileConcurrency, a.Logger), nil
}

// TextStore persists raw extracted text in DynamoDB.
func (a *App) TextStore(ctx context.Context) (*storage.TextStore, error) {
	db, err := a.Dynamo(ctx)
	if err != nil {
		return nil, err
	}
	return storage.NewTextStore(db, a.Config.Tables.Text), nil
}

// Indexer embeds chunks into Qdrant.
func (a *App) Indexer() (*indexer.Pipeline, error) {
	client, err := a.OpenAI()
	if err != nil {
		return nil, err
	}
	store, err := a.Qdrant()
	if err != nil {
		return nil, err
	}
	return indexer.NewPipeline(embedding.NewEmbedder(client, 0), store, a.Logger), nil
}

// IngestHandler builds the S3-triggered job handler.
func (a *App) IngestHandler(ctx context.Context) (*job.Handler, error) {
	sink, err := a.TextStore(ctx)
	if err != nil {
		return nil, err
	}
	coordinator, err := a.Coordinator(sink)
	if err != nil {
		return nil, err
	}
	awsCfg, err := a.awsConfig(ctx)
	if err != nil {
		return nil, err
	}

	var idx job.Indexer
	if a.Config.Ingest.IndexChunks {
		p, err := a.Indexer()
		if err != nil {
			return nil, err
		}
		idx = p
	}

	return job.NewHandler(
		job.NewS3Downloader(s3.NewFromConfig(awsCfg), 0),
		coordinator,
		idx,
		job.Options{WorkRoot: a.Config.Ingest.WorkRoot, Cleanup: a.Config.Ingest.Cleanup},
		a.Logger,
	), nil
}

// Ledger reads and spends user tokens.
func (a *App) Ledger(ctx context.Context) (*usage.Ledger, error) {
	db, err := a.Dynamo(ctx)
	if err != nil {
		return nil, err
	}
	return usage.NewLedger(db, a.Config.Tables.Usage), nil
}

// Feedback stores likes and dislikes.
func (a *App) Feedback(ctx context.Context) (*feedback.Store, error) {
	db, err := a.Dynamo(ctx)
	if err != nil {
		return nil, err
	}
	return feedback.NewStore(db, a.Config.Tables.Likes, a.Config.Tables.Dislikes), nil
}

// Embedder embeds queries and chunks.
func (a *App) Embedder() (*embedding.Embedder, error) {
	client, err := a.OpenAI()
	if err != nil {
		return nil, err
	}
	return embedding.NewEmbedder(client, 0), nil
}

// Chat builds the conversational retrieval service.
func (a *App) Chat(ctx context.Context) (*chat.Service, error) {
	client, err := a.OpenAI()
	if err != nil {
		return nil, err
	}
	store, err := a.Qdrant()
	if err != nil {
		return nil, err
	}
	ledger, err := a.Ledger(ctx)
	if err != nil {
		return nil, err
	}
	db, err := a.Dynamo(ctx)
	if err != nil {
		return nil, err
	}

	cc := a.Config.Chat
	return chat.NewService(
		client.Client(),
		embedding.NewEmbedder(client, 0),
		store,
		ledger,
		history.NewStore(db, a.Config.Tables.History),
		chat.Options{
			Model:            cc.Model,
			Temperature:      cc.Temperature,
			TopK:             cc.TopK,
			MaxContextTokens: cc.MaxContextToks,
		},
		a.Logger,
	), nil
}
