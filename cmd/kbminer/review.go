package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bull/kbminer/internal/chat"
	"github.com/bull/kbminer/internal/feedback"
)

var (
	askJobID   string
	reviewUser string
	askPrompt  string
	fbPrompt   string
	fbResponse string
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask a question about a job's documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		svc, err := application.Chat(ctx)
		if err != nil {
			return err
		}

		answer, err := svc.Ask(ctx, chat.Request{JobID: askJobID, Username: reviewUser, Prompt: askPrompt})
		if err != nil {
			return err
		}

		fmt.Println(answer.Text)
		fmt.Println()
		fmt.Printf("Tokens used: %d, left: %d\n", answer.TokensUsed, answer.TokensLeft)
		return nil
	},
}

var feedbackCmd = &cobra.Command{
	Use:       "feedback like|dislike",
	Short:     "Record a like or dislike for an answer",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(feedback.Like), string(feedback.Dislike)},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := feedback.ParseKind(args[0])
		if err != nil {
			return err
		}

		ctx := context.Background()
		store, err := application.Feedback(ctx)
		if err != nil {
			return err
		}

		id, err := store.Record(ctx, kind, feedback.Entry{Username: reviewUser, Prompt: fbPrompt, Response: fbResponse})
		if err != nil {
			return err
		}
		fmt.Printf("Recorded %s %s\n", kind, id)
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show a user's remaining tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		ledger, err := application.Ledger(ctx)
		if err != nil {
			return err
		}

		b, err := ledger.Balance(ctx, reviewUser)
		if err != nil {
			return err
		}
		fmt.Printf("Subscription: %d\nTop-up: %d\nTotal: %d\n", b.Subscription, b.Topup, b.Total())
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askJobID, "job-id", "", "job whose documents are queried (required)")
	askCmd.Flags().StringVar(&askPrompt, "prompt", "", "question to ask (required)")
	_ = askCmd.MarkFlagRequired("job-id")
	_ = askCmd.MarkFlagRequired("prompt")

	feedbackCmd.Flags().StringVar(&fbPrompt, "prompt", "", "the question that was asked")
	feedbackCmd.Flags().StringVar(&fbResponse, "response", "", "the answer being rated")

	for _, c := range []*cobra.Command{askCmd, feedbackCmd, balanceCmd} {
		c.Flags().StringVar(&reviewUser, "user", "", "username (required)")
		_ = c.MarkFlagRequired("user")
	}
}
