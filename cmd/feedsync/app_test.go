package main

import (
	"context"
	"testing"
	"time"

	"github.com/plexfeed/feedsync/config"
)

func TestAppStartStop(t *testing.T) {
	cfg := config.DefaultConfig()

	app := NewApp(cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		t.Fatalf("failed to start app: %v", err)
	}

	// Verify components are initialized
	if app.natsConn == nil {
		t.Error("NATS connection not initialized")
	}
	if app.js == nil {
		t.Error("JetStream not initialized")
	}
	if app.engine == nil {
		t.Error("Engine not initialized")
	}
	if app.subscriber == nil {
		t.Error("Subscriber not initialized")
	}
	if !app.subscriber.Enabled() {
		t.Error("Subscriber should be enabled with embedded NATS")
	}
	if app.drafts == nil {
		t.Error("Draft store not initialized")
	}
	if app.embeddedServer == nil {
		t.Error("Embedded NATS server not started")
	}

	app.Shutdown()

	// Verify cleanup
	if app.embeddedServer.Running() {
		t.Error("Embedded server still running after shutdown")
	}
}

func TestAppWithoutTransport(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NATS.Embedded = false
	cfg.NATS.URL = ""

	app := NewApp(cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Shutdown()

	if app.natsConn != nil {
		t.Error("expected no NATS connection without transport config")
	}
	if app.subscriber.Enabled() {
		t.Error("subscriber should be disabled without transport")
	}
	if _, err := app.Drafts(); err == nil {
		t.Error("expected draft storage error without transport")
	}

	// Engine still works against the API even without a bus.
	if app.engine == nil {
		t.Error("Engine not initialized")
	}
}

func TestAppDraftRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()

	app := NewApp(cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Shutdown()

	store, err := app.Drafts()
	if err != nil {
		t.Fatalf("draft store unavailable: %v", err)
	}

	d, err := store.Create(ctx, "draft content", nil)
	if err != nil {
		t.Fatalf("failed to create draft: %v", err)
	}

	got, err := store.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("failed to load draft: %v", err)
	}
	if got.Content != "draft content" {
		t.Errorf("expected draft content, got %q", got.Content)
	}
}
