// Package asrclient implements the message-oriented WebSocket client to the
// external ASR worker: one logical connection per session, fixed-delay
// reconnect, JSON framing, and per-participant FIFO correlation delegated to
// the worker's own ordering guarantee.
package asrclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	defaultQueueSize     = 256
	defaultReconnectWait = 3 * time.Second
)

// Config configures a Client.
type Config struct {
	// URL is the ASR worker's WebSocket endpoint.
	URL string

	// QueueSize bounds the number of unsent outbound segments. Default 256.
	QueueSize int

	// ReconnectDelay is the fixed backoff between reconnect attempts.
	// Default 3s, per spec.
	ReconnectDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = defaultReconnectWait
	}
	return c
}

// TranscriptionHandler is invoked for every transcription message received.
type TranscriptionHandler func(Transcription)

// WorkerErrorHandler is invoked for every error message received.
type WorkerErrorHandler func(WorkerError)

// Transport is the subset of Client the coordinator depends on; it exists so
// tests can substitute asrclient/mock.Transport.
type Transport interface {
	Start(ctx context.Context)
	SendSegment(seg OutboundSegment)
	Close() error
}

// Client is a long-lived, auto-reconnecting WebSocket client to one ASR
// worker. Exactly one logical connection is maintained per Client for its
// lifetime; Start runs the connection manager until Close is called.
type Client struct {
	cfg             Config
	onTranscription TranscriptionHandler
	onWorkerError   WorkerErrorHandler

	outbound   chan OutboundSegment
	connected  atomic.Bool
	generation atomic.Uint64

	connMu sync.Mutex
	conn   *websocket.Conn

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ Transport = (*Client)(nil)

// NewClient creates a Client. onTranscription and onWorkerError are called
// from the client's internal read goroutine and must not block.
func NewClient(cfg Config, onTranscription TranscriptionHandler, onWorkerError WorkerErrorHandler) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:             cfg,
		onTranscription: onTranscription,
		onWorkerError:   onWorkerError,
		outbound:        make(chan OutboundSegment, cfg.QueueSize),
		done:            make(chan struct{}),
	}
}

// Start begins the connection manager in the background. It returns
// immediately; connection failures are retried internally with a fixed
// backoff and never surface as errors to the caller.
func (c *Client) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.manageLoop(ctx)
}

// SendSegment enqueues seg for delivery when the connection is open. If the
// connection is currently closed, or the outbound queue is full, the segment
// is dropped and a warning is logged — data loss is preferred to unbounded
// memory or blocking the caller.
func (c *Client) SendSegment(seg OutboundSegment) {
	if !c.connected.Load() {
		slog.Warn("asrclient: dropping segment, not connected", "participant_id", seg.ID, "index", seg.Index)
		return
	}
	select {
	case c.outbound <- seg:
	default:
		slog.Warn("asrclient: dropping segment, outbound queue full", "participant_id", seg.ID, "index", seg.Index)
	}
}

// Connected reports whether the client currently holds an open connection
// to the ASR worker.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Close stops the connection manager and closes the active connection, if
// any. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client closed")
	}
	c.wg.Wait()
	return nil
}

func (c *Client) manageLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.Dial(ctx, c.cfg.URL, nil)
		if err != nil {
			slog.Warn("asrclient: dial failed, will retry", "url", c.cfg.URL, "error", err)
			if !c.sleepOrDone(ctx) {
				return
			}
			continue
		}

		gen := c.generation.Add(1)
		connID := uuid.NewString()
		c.connMu.Lock()
		c.conn = conn
		c.connMu.Unlock()
		c.connected.Store(true)
		slog.Info("asrclient: connected", "url", c.cfg.URL, "conn_id", connID, "generation", gen)

		c.runConnection(ctx, conn, gen)

		slog.Info("asrclient: disconnected", "conn_id", connID, "generation", gen)

		c.connected.Store(false)
		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()

		if !c.sleepOrDone(ctx) {
			return
		}
	}
}

// runConnection drives one connection's read and write loops until either
// exits, then closes the connection. Prior in-flight jobs on this connection
// are considered lost once it exits; the caller schedules a reconnect.
func (c *Client) runConnection(ctx context.Context, conn *websocket.Conn, gen uint64) {
	readDone := make(chan struct{})
	writeDone := make(chan struct{})

	go func() {
		defer close(readDone)
		c.readLoop(ctx, conn, gen)
	}()
	go func() {
		defer close(writeDone)
		c.writeLoop(ctx, conn)
	}()

	select {
	case <-readDone:
	case <-writeDone:
	case <-c.done:
	}

	_ = conn.Close(websocket.StatusNormalClosure, "reconnecting")
	<-readDone
	<-writeDone
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if c.generation.Load() != gen {
			// superseded by a newer connection; drop silently.
			continue
		}
		if err := c.handleInbound(data); err != nil {
			slog.Warn("asrclient: protocol violation, closing connection", "error", err)
			return
		}
	}
}

func (c *Client) writeLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case seg := <-c.outbound:
			data, err := json.Marshal(seg)
			if err != nil {
				slog.Error("asrclient: marshal outbound segment failed", "error", err)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		case <-ctx.Done():
			return
		case <-c.done:
			return
		}
	}
}

func (c *Client) handleInbound(data []byte) error {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}

	switch env.Type {
	case "transcription":
		var t Transcription
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
		}
		if c.onTranscription != nil {
			c.onTranscription(t)
		}
		return nil
	case "error":
		var e WorkerError
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
		}
		if c.onWorkerError != nil {
			c.onWorkerError(e)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrProtocolViolation, env.Type)
	}
}

// sleepOrDone waits ReconnectDelay, returning false if the client was closed
// or ctx was cancelled before the delay elapsed.
func (c *Client) sleepOrDone(ctx context.Context) bool {
	select {
	case <-time.After(c.cfg.ReconnectDelay):
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	}
}
