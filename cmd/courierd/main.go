package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"courier/internal/api"
	"courier/internal/briefing"
	"courier/internal/config"
	"courier/internal/directive"
	"courier/internal/events"
	"courier/internal/githubstore"
	"courier/internal/ledger"
	"courier/internal/notify"
	"courier/internal/provider"
	"courier/internal/relay"
)

// set via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "courierd",
		Short:         "file-backed message relay and command dispatch daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), onceCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "poll the conversation log until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			hub := events.NewHub()
			r := buildRelay(cfg, log, hub)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			apiServer := &api.Server{Hub: hub, Log: log, StartedAt: time.Now()}
			httpServer := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           apiServer.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				log.WithField("addr", cfg.HTTPAddr).Info("http listening")
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.WithError(err).Fatal("http server error")
				}
			}()

			done := make(chan struct{})
			go func() {
				r.Run(ctx)
				close(done)
			}()

			<-ctx.Done()
			log.Info("shutting down")
			<-done // let an in-flight cycle finish

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("http shutdown")
			}
			return nil
		},
	}
}

func onceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "run a single poll cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			r := buildRelay(cfg, log, nil)
			return r.RunOnce(cmd.Context())
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the courierd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("courierd", version)
		},
	}
}

func setup() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	return cfg, log, nil
}

func buildRelay(cfg config.Config, log *logrus.Logger, hub *events.Hub) *relay.Relay {
	store := githubstore.New(githubstore.Config{
		Token: cfg.GitHubToken,
		Owner: cfg.GitHubOwner,
		Repo:  cfg.ConversationRepo,
		Log:   log,
	})
	taskLedger := ledger.New(store, cfg.LedgerPath, log)
	exec := directive.NewExecutor(store, taskLedger, log)

	gen, err := provider.NewAnthropic(provider.Config{
		APIKey:    cfg.AnthropicAPIKey,
		Model:     cfg.AnthropicModel,
		MaxTokens: cfg.MaxTokens,
	})
	if err != nil {
		// Validate() already checked the key; this only fires on an empty
		// model override.
		log.WithError(err).Fatal("provider setup")
	}

	sources := []briefing.Source{
		&briefing.CompletionsSource{Ledger: taskLedger, Window: 24 * time.Hour},
	}
	for _, path := range cfg.BriefingPaths {
		sources = append(sources, &briefing.FileSource{Store: store, Path: path})
	}

	var sink notify.Notifier = notify.NewWebhook(cfg.WebhookURL, log)

	return relay.New(relay.Options{
		LogPath:            cfg.ConversationPath,
		AssistantName:      cfg.AssistantName,
		OperatorName:       cfg.OperatorName,
		WindowSize:         cfg.WindowSize,
		Interval:           cfg.PollInterval,
		ProactiveEvery:     cfg.ProactiveEvery,
		ProactiveStartHour: cfg.ProactiveStartHour,
		ProactiveEndHour:   cfg.ProactiveEndHour,
	}, relay.Deps{
		Store:     store,
		Generator: gen,
		Notifier:  sink,
		Executor:  exec,
		Sources:   sources,
		Hub:       hub,
		Log:       log,
	})
}
