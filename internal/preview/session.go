package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"

	"github.com/mapforge/previewd/internal/engine"
	"github.com/mapforge/previewd/internal/raster"
)

// session performs one listen/spawn/handshake/read cycle. It runs only
// after the admission queue grants its turn, so the fixed engine port is
// never contended.
type session struct {
	id         string
	seed       string
	addr       string // loopback listen address, host:port
	launcher   engine.Launcher
	maxPayload int64
}

var errPayloadTooLarge = errors.New("payload exceeds configured cap")

// run drives the session to a terminal state and returns the decoded
// raster. Any returned error is terminal for the request; the caller
// owns queue release and state bookkeeping.
func (s *session) run(ctx context.Context, onPhase func(Phase)) (*raster.Raster, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", s.addr, err)
	}
	defer ln.Close()
	onPhase(Listening)

	worker, err := s.launcher.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("spawn worker: %w", err)
	}
	defer worker.Stop()

	// Unblock Accept/Read when the session deadline or shutdown hits.
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("waiting for worker connection: %w", ctx.Err())
		}
		return nil, fmt.Errorf("accept: %w", err)
	}
	defer conn.Close()
	onPhase(Connected)

	// One client per session. Anything else that dials in while we are
	// connected is an anomaly; drop it without disturbing the session.
	go rejectExtras(ln, s.id)

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("set deadline: %w", err)
		}
	}

	msg, err := handshake(s.seed)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(msg); err != nil {
		return nil, fmt.Errorf("send seed: %w", err)
	}

	// The payload is EOF-delimited. The cap guards against a misbehaving
	// worker streaming forever.
	var buf bytes.Buffer
	n, err := buf.ReadFrom(io.LimitReader(conn, s.maxPayload+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("reading payload: %w", ctx.Err())
		}
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	if n > s.maxPayload {
		return nil, fmt.Errorf("%w (%d bytes)", errPayloadTooLarge, s.maxPayload)
	}

	r, err := raster.Decode(buf.Bytes())
	if err != nil {
		return nil, err
	}
	return r, nil
}

// rejectExtras drains the listener until it is closed, closing every
// late connection. The handshake protocol has exactly one client.
func rejectExtras(ln net.Listener, id string) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		log.Printf("session %s: unexpected second engine connection from %s, closing", id, conn.RemoteAddr())
		conn.Close()
	}
}
