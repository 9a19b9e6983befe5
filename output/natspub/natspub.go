// Package natspub publishes decoded frames to a NATS subject so remote
// consumers can tap the telemetry stream live.
package natspub

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/llhlol/IWR1443-data-collection/config"
	"github.com/llhlol/IWR1443-data-collection/errors"
)

// connect is swapped in tests.
var connect = func(url string, opts ...nats.Option) (*nats.Conn, error) {
	return nats.Connect(url, opts...)
}

// Output publishes each JSON record to a fixed subject. Publish failures
// are counted and logged; the telemetry pipeline never blocks on NATS.
type Output struct {
	url     string
	subject string
	logger  *slog.Logger

	conn *nats.Conn

	published atomic.Int64
	pubErrors atomic.Int64
}

// NewOutput creates a NATS sink from configuration.
func NewOutput(cfg config.NATSOutputConfig, logger *slog.Logger) *Output {
	if logger == nil {
		logger = slog.Default().With("component", "nats-output")
	}
	return &Output{
		url:     cfg.URL,
		subject: cfg.Subject,
		logger:  logger,
	}
}

// Start connects to the NATS server. The client reconnects on its own;
// records published while disconnected are buffered by the library.
func (o *Output) Start() error {
	if o.conn != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Output", "Start", "state check")
	}

	conn, err := connect(o.url,
		nats.Name("iwr1443-collect"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return errors.WrapTransient(err, "Output", "Start", "connect "+o.url)
	}

	o.conn = conn
	o.logger.Info("nats output started", "url", o.url, "subject", o.subject)
	return nil
}

// Write publishes one record.
func (o *Output) Write(record []byte) {
	if o.conn == nil {
		return
	}
	if err := o.conn.Publish(o.subject, record); err != nil {
		o.pubErrors.Add(1)
		o.logger.Error("nats publish failed", "subject", o.subject, "error", err)
		return
	}
	o.published.Add(1)
}

// Stop flushes pending publishes and closes the connection.
func (o *Output) Stop(timeout time.Duration) error {
	if o.conn == nil {
		return nil
	}

	if err := o.conn.FlushTimeout(timeout); err != nil {
		o.logger.Warn("nats flush on shutdown failed", "error", err)
	}
	o.conn.Close()
	o.conn = nil

	o.logger.Info("nats output stopped",
		"published", o.published.Load(), "errors", o.pubErrors.Load())
	return nil
}
