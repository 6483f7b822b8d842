package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dehydr8/guardian-go/exporter"
	"github.com/dehydr8/guardian-go/logger"
	"github.com/dehydr8/guardian-go/relay"
	"github.com/dehydr8/guardian-go/secrets"
	"github.com/dehydr8/guardian-go/telegram"
	"github.com/dehydr8/guardian-go/util"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/peterbourgon/ff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type serveConfig struct {
	listen      string
	telegramAPI string
	timeout     time.Duration
	dedupWindow time.Duration
	dedupSize   int
	prefix      string
}

func newServeCommand(root *rootConfig, parent *ff.FlagSet) *ff.Command {
	cfg := &serveConfig{}

	fs := ff.NewFlagSet("serve").SetParent(parent)
	fs.StringVar(&cfg.listen, 0, "listen", "0.0.0.0:8000", "address to listen on")
	fs.StringVar(&cfg.telegramAPI, 0, "telegram-api", telegram.DefaultBaseURL, "Telegram Bot API base URL")
	fs.DurationVar(&cfg.timeout, 0, "timeout", telegram.DefaultTimeout, "timeout for Telegram requests")
	fs.DurationVar(&cfg.dedupWindow, 0, "dedup-window", 0, "suppress identical alerts within this window (0 disables)")
	fs.IntVar(&cfg.dedupSize, 0, "dedup-size", relay.DefaultDedupSize, "number of distinct alerts remembered for suppression")
	fs.StringVar(&cfg.prefix, 0, "prefix", relay.DefaultMessagePrefix, "text prepended to forwarded alerts")

	return &ff.Command{
		Name:      "serve",
		Usage:     "guardian serve [FLAGS]",
		ShortHelp: "run the alert relay server",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			l := logger.SetupLogging(root.logLevel)
			return runServe(ctx, root, cfg, l)
		},
	}
}

// newHandler wires the relay and its metrics onto one handler.
func newHandler(notifier telegram.Notifier, cfg *serveConfig, l log.Logger) (*relay.Server, error) {
	server, err := relay.New(notifier, relay.Config{
		MessagePrefix: cfg.prefix,
		DedupWindow:   cfg.dedupWindow,
		DedupSize:     cfg.dedupSize,
	}, l)

	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(exporter.NewRelayExporter(server, util.Revision))

	server.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return server, nil
}

func runServe(ctx context.Context, root *rootConfig, cfg *serveConfig, l log.Logger) error {
	s, err := root.loadSecrets()
	if err != nil {
		return err
	}

	if err := secrets.Validate(s, secrets.VariantServer); err != nil {
		for _, fe := range secrets.FieldErrors(err) {
			level.Error(l).Log("msg", "invalid secret", "key", fe.Key, "reason", fe.Reason)
		}
		return fmt.Errorf("refusing to start: %w", err)
	}

	client, err := telegram.NewClient(s.Telegram.BotToken,
		telegram.WithBaseURL(cfg.telegramAPI),
		telegram.WithTimeout(cfg.timeout),
		telegram.WithLogger(l),
	)

	if err != nil {
		return err
	}

	handler, err := newHandler(&telegram.ChatNotifier{Client: client, ChatID: s.Telegram.ChatID}, cfg, l)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	level.Info(l).Log("msg", "listening", "address", cfg.listen, "revision", util.Revision,
		"bot_token", secrets.Redact(s.Telegram.BotToken), "chat_id", secrets.Redact(s.Telegram.ChatID))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	level.Info(l).Log("msg", "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
