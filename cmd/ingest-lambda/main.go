// Package main is the S3-triggered ingestion Lambda.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/bull/kbminer/internal/app"
)

func main() {
	a := app.New()
	defer a.Close()

	handler, err := a.IngestHandler(context.Background())
	if err != nil {
		slog.Error("Failed to initialize ingest handler", "error", err)
		os.Exit(1)
	}

	lambda.Start(handler.Handle)
}
