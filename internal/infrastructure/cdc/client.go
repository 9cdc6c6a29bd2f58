package cdc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog/log"

	"github.com/speculare-cloud/alertsd/internal/infrastructure/metrics"
)

// ErrBootLoop is returned once reconnection has been attempted the
// configured maximum number of times without success; the caller must
// treat it as an unrecoverable bootstrap error and exit the process.
var ErrBootLoop = errors.New("cdc: exhausted reconnect attempts, unrecoverable")

// Handler processes one decoded CDC frame.
type Handler func(Change)

// Client dials a CDC feed and, per frame, invokes a Handler. Disconnection
// triggers reconnection with back-off up to a capped number of attempts,
// mirroring the 5s/3-attempt boot-loop ceiling of the original daemon.
type Client struct {
	dialer    *websocket.Dialer
	url       string
	admHeader string

	backoff       time.Duration
	maxReconnects int
}

// NewClient builds a CDC client targeting wss://{wssDomain}/ws?query={query}:{table}.
func NewClient(wssDomain, query, table, admHeader string, backoff time.Duration, maxReconnects int) *Client {
	return &Client{
		dialer:        websocket.DefaultDialer,
		url:           fmt.Sprintf("wss://%s/ws?query=%s:%s", wssDomain, query, table),
		admHeader:     admHeader,
		backoff:       backoff,
		maxReconnects: maxReconnects,
	}
}

// Listen dials the feed and reads frames until the context is cancelled or
// the reconnect ceiling is exhausted (ErrBootLoop).
func (c *Client) Listen(ctx context.Context, handle Handler) error {
	failures := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		connected := false
		err := c.listenOnce(ctx, func(change Change) {
			connected = true
			handle(change)
		})
		if err == nil {
			return nil // clean shutdown, e.g. ctx cancelled mid-read
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// A connection that delivered at least one frame ends the run of
		// consecutive failures.
		if connected {
			failures = 0
		}
		failures++
		metrics.CDCReconnectsTotal.Inc()
		log.Error().Err(err).Int("attempt", failures).Msg("cdc: connection lost, reconnecting")
		if failures >= c.maxReconnects {
			return ErrBootLoop
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff):
		}
	}
}

// listenOnce opens one connection and reads frames until a fatal error or
// the context is cancelled.
func (c *Client) listenOnce(ctx context.Context, handle Handler) error {
	header := http.Header{}
	header.Set("SP-ADM", c.admHeader)

	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return fmt.Errorf("cdc: dial failed: %w", err)
	}
	defer conn.Close()

	log.Debug().Str("url", c.url).Msg("cdc: handshake completed")

	for {
		if ctx.Err() != nil {
			return nil
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !isFatal(err) {
				log.Debug().Err(err).Msg("cdc: non-fatal websocket error, continuing")
				continue
			}
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var change Change
		if err := json.Unmarshal(data, &change); err != nil {
			log.Error().Err(err).Str("payload", string(data)).Msg("cdc: failed to parse frame, dropping")
			continue
		}

		handle(change)
	}
}

// isFatal classifies a websocket read error the way msg_err_handler does:
// connection-closed and I/O errors are fatal and trigger reconnection.
// fasthttp/websocket surfaces ping/pong control frames internally rather
// than as ReadMessage errors, so in practice every error reaching here is
// one of those fatal kinds; unrecognised errors are treated the same way
// since ReadMessage never returns a "protocol warning" class of its own.
func isFatal(err error) bool {
	return err != nil
}
