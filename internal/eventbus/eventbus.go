// Package eventbus provides an embedded NATS server and connection for
// pub/sub messaging between the host process and its plugin.
package eventbus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// EventBus wraps an embedded, in-process NATS server and a client
// connection to it. A single process hosting one plugin has no need for a
// standalone broker; embedding keeps deployment to a single binary.
type EventBus struct {
	server *server.Server
	conn   *nats.Conn
	logger *slog.Logger

	subs   map[string][]*nats.Subscription
	subsMu sync.RWMutex
}

// Config configures the embedded NATS server.
type Config struct {
	Host string // default 127.0.0.1
	Port int    // 0 selects the NATS default port (4222); -1 picks a random free port
}

// DefaultConfig returns sane defaults for single-node, single-plugin use.
func DefaultConfig() Config {
	return Config{Host: "127.0.0.1", Port: 0}
}

// New starts an embedded NATS server and connects a client to it.
func New(cfg Config, logger *slog.Logger) (*EventBus, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}

	opts := &server.Options{
		Host:   cfg.Host,
		Port:   cfg.Port,
		NoSigs: true,
		NoLog:  true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(2 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready after 2 seconds")
	}

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("failed to connect to embedded NATS: %w", err)
	}

	eb := &EventBus{
		server: ns,
		conn:   nc,
		logger: logger.With("component", "eventbus"),
		subs:   make(map[string][]*nats.Subscription),
	}

	logger.Info("event bus started", "url", ns.ClientURL())
	return eb, nil
}

// Conn returns the underlying NATS connection, for handing to a plugin
// runtime.
func (eb *EventBus) Conn() *nats.Conn {
	return eb.conn
}

// ClientURL returns the connection URL of the embedded server.
func (eb *EventBus) ClientURL() string {
	return eb.server.ClientURL()
}

// Subscribe subscribes to a subject, tracking the subscription for cleanup
// on Stop.
func (eb *EventBus) Subscribe(subject string, handler func(*nats.Msg)) (*nats.Subscription, error) {
	sub, err := eb.conn.Subscribe(subject, handler)
	if err != nil {
		return nil, err
	}

	eb.subsMu.Lock()
	eb.subs[subject] = append(eb.subs[subject], sub)
	eb.subsMu.Unlock()

	return sub, nil
}

// HealthCheck reports whether the client connection is active.
func (eb *EventBus) HealthCheck() error {
	if !eb.conn.IsConnected() {
		return fmt.Errorf("NATS connection not active")
	}
	return nil
}

// Stop drains the connection and shuts down the embedded server.
func (eb *EventBus) Stop() {
	_ = eb.conn.Drain()
	eb.server.Shutdown()
	eb.logger.Info("event bus stopped")
}
