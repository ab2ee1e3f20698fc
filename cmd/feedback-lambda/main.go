// Package main is the API Gateway Lambda that only records likes and dislikes.
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
	a := app.New()

	fb, err := a.Feedback(context.Background())
	if err != nil {
		slog.Error("Failed to initialize feedback store", "error", err)
		os.Exit(1)
	}

	lambda.Start(api.FeedbackOnly(fb, a.Logger).Handle)
}
