package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/plexfeed/feedsync/api"
	"github.com/plexfeed/feedsync/config"
	"github.com/plexfeed/feedsync/drafts"
	"github.com/plexfeed/feedsync/engine"
	"github.com/plexfeed/feedsync/feed"
	"github.com/plexfeed/feedsync/notify"
	"github.com/plexfeed/feedsync/realtime"
)

// App wires the store client, mutation engine, live subscriptions, and
// draft storage together for one viewer session.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	query  api.FeedQuery

	// NATS
	embeddedServer *server.Server
	natsConn       *nats.Conn
	js             jetstream.JetStream

	// Components
	client     *api.Client
	engine     *engine.Engine
	subscriber *realtime.Subscriber
	tracker    *notify.UnreadTracker
	drafts     *drafts.Store
}

// NewApp creates an application instance for the configured viewer.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, logger: logger}
}

func (a *App) viewer() feed.Author {
	return feed.Author{
		Name:   a.cfg.Viewer.Name,
		Handle: a.cfg.Viewer.Handle,
		Avatar: a.cfg.Viewer.Avatar,
	}
}

// Start initializes all components. With no transport configured the live
// pieces come up disabled and the engine still works against the API.
func (a *App) Start(ctx context.Context) error {
	if err := a.startNATS(ctx); err != nil {
		return fmt.Errorf("start NATS: %w", err)
	}

	a.client = api.NewClient(a.cfg.API.BaseURL,
		api.WithHTTPClient(&http.Client{Timeout: a.cfg.API.Timeout}),
		api.WithLogger(a.logger))

	a.engine = engine.New(a.client, a.viewer(),
		engine.WithLogger(a.logger),
		engine.WithFeedQuery(a.query))

	a.subscriber = realtime.NewSubscriber(a.natsConn, a.engine.Cache(),
		realtime.WithLogger(a.logger),
		realtime.WithMaxPostChannels(a.cfg.Realtime.MaxPostChannels))

	a.tracker = notify.NewUnreadTracker(a.natsConn, a.viewer(),
		notify.WithLogger(a.logger))

	if a.js != nil {
		store, err := drafts.NewStore(ctx, a.js)
		if err != nil {
			return fmt.Errorf("initialize draft storage: %w", err)
		}
		a.drafts = store
	}

	return nil
}

func (a *App) startNATS(ctx context.Context) error {
	switch {
	case a.cfg.NATS.URL != "" && !a.cfg.NATS.Embedded:
		// Connect to external NATS
		a.logger.Info("Connecting to NATS", "url", a.cfg.NATS.URL)
		conn, err := nats.Connect(a.cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		a.natsConn = conn

	case a.cfg.NATS.Embedded:
		// Start embedded NATS server
		a.logger.Debug("Starting embedded NATS server")
		opts := &server.Options{
			Port:      -1, // Random available port
			JetStream: true,
			NoLog:     true,
			NoSigs:    true,
		}

		ns, err := server.NewServer(opts)
		if err != nil {
			return fmt.Errorf("create embedded NATS server: %w", err)
		}

		go ns.Start()

		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return fmt.Errorf("embedded NATS server failed to start")
		}

		a.embeddedServer = ns

		conn, err := nats.Connect(ns.ClientURL())
		if err != nil {
			ns.Shutdown()
			return fmt.Errorf("connect to embedded NATS: %w", err)
		}
		a.natsConn = conn

	default:
		// No transport configured. Live updates are off; every operation
		// that needs the bus degrades to a no-op.
		a.logger.Info("No bus transport configured, live updates disabled")
		return nil
	}

	js, err := jetstream.New(a.natsConn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	a.js = js

	return nil
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() {
	if a.tracker != nil {
		a.tracker.Close()
	}
	if a.subscriber != nil {
		a.subscriber.Close()
	}

	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			a.logger.Warn("NATS drain failed", "error", err)
		}
		a.natsConn.Close()
	}

	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}
}

// Drafts returns the draft store, or an error when no JetStream transport
// is available to back it.
func (a *App) Drafts() (*drafts.Store, error) {
	if a.drafts == nil {
		return nil, fmt.Errorf("draft storage requires a NATS transport (set nats.url or nats.embedded)")
	}
	return a.drafts, nil
}
