// Package bridge maintains the live-update websocket connection to the
// archive backend. It reconnects with exponential backoff and hands every
// inbound event to the registered handler; ordering across reconnects is not
// guaranteed, so consumers run a catch-up fetch on every connect.
package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/telearc/archive-console/internal/logger"
)

// Status is the connection state exposed to the UI.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusReconnecting Status = "reconnecting"
)

const (
	// writeWait bounds control-frame writes.
	writeWait = 10 * time.Second
	// pongWait is how long a silent connection is considered alive.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Bridge is the client end of the push channel.
type Bridge struct {
	url    string
	token  string
	dialer *websocket.Dialer
	log    *logger.Logger

	// OnEvent receives every decoded event. Called from the read goroutine;
	// set before Run.
	OnEvent func(Event)
	// OnStatus is notified on every connection state change. The connected
	// transition is the consumer's cue to run a catch-up fetch. Set before Run.
	OnStatus func(Status)

	// reconnect schedule, overridable in tests
	InitialReconnect time.Duration
	MaxReconnect     time.Duration
}

// New builds a bridge for the given websocket endpoint.
func New(url, token string, log *logger.Logger) *Bridge {
	return &Bridge{
		url:              url,
		token:            token,
		dialer:           websocket.DefaultDialer,
		log:              log.Component("bridge"),
		InitialReconnect: time.Second,
		MaxReconnect:     30 * time.Second,
	}
}

// Run connects and keeps the connection alive until ctx is done. Every drop
// flips the status to disconnected, then reconnecting, and dials again with
// backoff. Run only returns with ctx.Err().
func (b *Bridge) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.InitialReconnect
	bo.MaxInterval = b.MaxReconnect
	bo.MaxElapsedTime = 0 // never give up

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := b.dial(ctx)
		if err != nil {
			wait := bo.NextBackOff()
			b.log.Warn().Err(err).Dur("retry_in", wait).Msg("dial failed")
			b.setStatus(StatusReconnecting)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		bo.Reset()
		b.log.Info().Str("url", b.url).Msg("connected")
		b.setStatus(StatusConnected)

		b.readLoop(ctx, conn)

		// a drop during shutdown is not worth a status flap
		if err := ctx.Err(); err != nil {
			return err
		}
		b.setStatus(StatusDisconnected)
		b.log.Warn().Msg("connection lost")
	}
}

func (b *Bridge) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if b.token != "" {
		header.Set("Authorization", "Bearer "+b.token)
	}
	conn, resp, err := b.dialer.DialContext(ctx, b.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// readLoop pumps events until the connection breaks or ctx is done.
func (b *Bridge) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	// close the connection when the context ends so ReadMessage unblocks
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
		case <-done:
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go b.pingLoop(done, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				b.log.Debug().Err(err).Msg("read failed")
			}
			return
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			b.log.Warn().Err(err).Msg("dropping malformed event")
			continue
		}
		if b.OnEvent != nil {
			b.OnEvent(event)
		}
	}
}

// pingLoop keeps the read deadline honest on quiet connections.
func (b *Bridge) pingLoop(done <-chan struct{}, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			if err != nil {
				return
			}
		}
	}
}

func (b *Bridge) setStatus(status Status) {
	if b.OnStatus != nil {
		b.OnStatus(status)
	}
}
