// Package app provides the eurodetective command line application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kart-io/eurodetective/cmd/eurodetective/app/options"
	"github.com/kart-io/eurodetective/pkg/infra/app"
)

const (
	// Name is the name of the application.
	Name = "eurodetective"

	commandDesc = `EuroDetective

A conversational research agent over European news coverage. The model decides
per question whether to search the news index (Milvus vectors filtered by
country, rule-of-law pillars and impact score) before answering.

Without a sub-command the HTTP API is served:
  POST /v1/chat           answer one message
  POST /v1/chat/stream    answer as server-sent events
  GET  /v1/sessions/:id   conversation history`

	closeTimeout = 10 * time.Second
)

// NewApp creates the root command with the chat and ingest sub-commands.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(Name),
		app.WithShortDescription("Conversational agent over European news"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(runServer(opts)),
		app.WithSubApps(newChatApp(), newIngestApp()),
	)
}

func newChatApp() *app.App {
	opts := options.NewChatOptions()
	return app.NewApp(
		app.WithName("chat"),
		app.WithConfigName(Name),
		app.WithShortDescription("Chat with the agent in the terminal"),
		app.WithOptions(opts),
		app.WithRunFunc(runChat(opts)),
		app.WithNoVersion(),
	)
}

func newIngestApp() *app.App {
	opts := options.NewIngestOptions()
	return app.NewApp(
		app.WithName("ingest"),
		app.WithConfigName(Name),
		app.WithShortDescription("Chunk, embed and index a JSON Lines file of articles"),
		app.WithOptions(opts),
		app.WithRunFunc(runIngest(opts)),
		app.WithNoVersion(),
	)
}

func runServer(opts *options.Options) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := context.Background()
		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		return server.Run(ctx)
	}
}

func runChat(opts *options.Options) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		session, err := cfg.NewChatSession(ctx)
		if err != nil {
			return fmt.Errorf("failed to create chat session: %w", err)
		}
		defer closeWithTimeout(session.Close)

		return session.Run(ctx, os.Stdin, os.Stdout)
	}
}

func runIngest(opts *options.Options) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		job, err := cfg.NewIngester(ctx)
		if err != nil {
			return fmt.Errorf("failed to create ingester: %w", err)
		}
		defer closeWithTimeout(job.Close)

		report, err := job.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %d chunks from %d articles in %d batches (%d duplicates, %d skipped, %d chunks dropped)\n",
			report.Indexed, report.Articles, report.Batches, report.Duplicates, report.Skipped, report.Dropped)
		return nil
	}
}

func closeWithTimeout(closeFn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	_ = closeFn(ctx)
}
