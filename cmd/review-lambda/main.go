// Package main is the API Gateway Lambda serving chat and feedback.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/bull/kbminer/internal/api"
	"github.com/bull/kbminer/internal/app"
)

func main() {
	ctx := context.Background()
	a := app.New()
	defer a.Close()

	svc, err := a.Chat(ctx)
	if err != nil {
		slog.Error("Failed to initialize chat", "error", err)
		os.Exit(1)
	}
	fb, err := a.Feedback(ctx)
	if err != nil {
		slog.Error("Failed to initialize feedback store", "error", err)
		os.Exit(1)
	}

	lambda.Start(api.NewHandler(svc, fb, a.Logger).Handle)
}
