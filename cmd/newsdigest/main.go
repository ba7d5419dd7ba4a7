package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/ai-daily/newsdigest/internal/alert"
	"github.com/ai-daily/newsdigest/internal/config"
	"github.com/ai-daily/newsdigest/internal/digest"
	"github.com/ai-daily/newsdigest/internal/email"
	"github.com/ai-daily/newsdigest/internal/fetcher"
	"github.com/ai-daily/newsdigest/internal/logging"
	"github.com/ai-daily/newsdigest/internal/schedule"
	"github.com/ai-daily/newsdigest/internal/storage"
	"github.com/ai-daily/newsdigest/internal/summary"
)

func main() {
	root := &cobra.Command{
		Use:           "newsdigest",
		Short:         "Personalized news digest pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCommand(), generateCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	db        *sqlx.DB
	assembler *digest.Assembler
	scheduler *schedule.Scheduler
}

func buildApp() (*app, error) {
	cfg := config.Get()
	log := logging.New(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	notifier, err := alert.NewNotifier(cfg.TelegramBotToken, cfg.TelegramChannelID, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	var (
		userStorage   = storage.NewUserPostgresStorage(db)
		sourceStorage = storage.NewSourcePostgresStorage(db)
		digestStorage = storage.NewDigestPostgresStorage(db)

		itemFetcher = fetcher.New(
			sourceStorage,
			sourceStorage,
			cfg.FetchTimeout,
			log,
			notifier,
		)
		summarizer = summary.NewOpenAISummarizer(cfg.OpenAIKey, cfg.OpenAIModel, log)
		sender     = email.NewSender(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.FromEmail,
		}, log)
	)

	assembler := digest.NewAssembler(
		userStorage,
		digestStorage,
		itemFetcher,
		summarizer,
		sender,
		cfg.SummarizeTimeout,
		cfg.DeliveryTimeout,
		cfg.AppBaseURL,
		log,
		notifier,
	)

	return &app{
		db:        db,
		assembler: assembler,
		scheduler: schedule.NewScheduler(userStorage, userStorage, assembler, cfg.SchedulerInterval, log),
	}, nil
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the digest scheduler daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !config.Get().SchedulerEnabled {
				return errors.New("scheduler is disabled in config")
			}

			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.db.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := a.scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			return nil
		},
	}
}

func generateCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one digest for a user immediately",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.db.Close()

			result, err := a.assembler.GenerateForUser(cmd.Context(), userID)
			if err != nil {
				return err
			}

			fmt.Printf("digest %s: status=%s items=%d\n", result.ID, result.Status, len(result.Items))

			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id to generate for")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
