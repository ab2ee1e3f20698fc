package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bull/kbminer/internal/ingest"
	"github.com/bull/kbminer/internal/job"
)

var (
	ingestJobID   string
	ingestIndex   bool
	ingestPersist bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Extract, chunk and optionally index every PDF in a directory",
	Long: `Runs the ingestion pipeline over a local directory, as the ingest Lambda
does for a downloaded upload.

This command:
1. Lists the PDFs in <dir> (other files are counted but ignored)
2. Extracts page text and describes embedded images with the vision model
3. Splits each file's text into overlapping chunks
4. Optionally stores raw text in DynamoDB (--persist)
5. Optionally embeds the chunks into the job's Qdrant collection (--index)

Environment variables:
  OPENAI_API_KEY  OpenAI API key for vision and embeddings (required)
  QDRANT_HOST     Qdrant hostname (default: localhost)
  QDRANT_PORT     Qdrant gRPC port (default: 6334)
  TEXT_TABLE      DynamoDB table for raw text (default: pdf-data-dump)`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestJobID, "job-id", "", "job identifier (required)")
	ingestCmd.Flags().BoolVar(&ingestIndex, "index", false, "embed chunks into Qdrant")
	ingestCmd.Flags().BoolVar(&ingestPersist, "persist", false, "store raw text in DynamoDB")
	_ = ingestCmd.MarkFlagRequired("job-id")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()
	dir := args[0]

	var sink ingest.TextSink
	if ingestPersist {
		store, err := application.TextStore(ctx)
		if err != nil {
			return fmt.Errorf("Failed to create text store: %w", err)
		}
		sink = store
	}

	coordinator, err := application.Coordinator(sink)
	if err != nil {
		return fmt.Errorf("Failed to build pipeline: %w", err)
	}

	fmt.Printf("Ingesting %s as job %s...\n", dir, ingestJobID)
	batch, manifest, err := coordinator.ProcessDir(ctx, dir, ingestJobID)
	if err != nil {
		return err
	}

	indexed := batch.ChunkCount() > 0
	if ingestIndex && indexed {
		pipeline, err := application.Indexer()
		if err != nil {
			return fmt.Errorf("Failed to build indexer: %w", err)
		}
		result, err := pipeline.IndexBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("Indexing failed: %w", err)
		}
		indexed = result.OK()
		fmt.Printf("Indexed %d chunks into %s\n", result.TotalChunks, result.Collection)
		for _, failed := range result.FailedDocs {
			fmt.Printf("  - %s: %s\n", failed.Name, failed.Reason)
		}
	}

	fmt.Println()
	fmt.Println(job.Summarize(manifest, batch, indexed))

	fmt.Println()
	for _, f := range batch.Files {
		line := fmt.Sprintf("  %-9s %s (%d pages, %d chunks)", f.Status, f.Name, f.Pages, len(f.Chunks))
		if f.Err != nil {
			line += ": " + f.Err.Error()
		}
		fmt.Println(line)
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))
	return nil
}
