// Package mock provides an in-process stand-in for the engine binary.
// It speaks the real wire protocol: dial the session's listener, read
// the seed handshake, send a deterministic packed bitmap, disconnect.
// Used by -mock mode and by end-to-end tests.
package mock

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/mapforge/previewd/internal/engine"
	"github.com/mapforge/previewd/internal/raster"
)

const seedPrefix = "eseed "

var trailer = []byte{0x01, 0x21}

// Launcher implements engine.Launcher by running a fake worker
// goroutine instead of a subprocess.
type Launcher struct {
	Addr  string        // listener address the worker dials
	Delay time.Duration // optional simulated generation time
}

func (l *Launcher) Start(ctx context.Context) (engine.Worker, error) {
	w := &worker{done: make(chan error, 1)}
	go func() {
		w.done <- w.run(ctx, l.Addr, l.Delay)
	}()
	return w, nil
}

type worker struct {
	done chan error
}

func (w *worker) PID() int { return 0 }

func (w *worker) Wait() error { return <-w.done }

func (w *worker) Stop() {}

func (w *worker) run(ctx context.Context, addr string, delay time.Duration) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("mock worker dial: %w", err)
	}
	defer conn.Close()

	seed, err := readHandshake(conn)
	if err != nil {
		return fmt.Errorf("mock worker handshake: %w", err)
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if _, err := conn.Write(Landscape(seed)); err != nil {
		return fmt.Errorf("mock worker send: %w", err)
	}
	return nil
}

// readHandshake consumes the length-prefixed seed message and its
// trailer, returning the bare seed.
func readHandshake(r io.Reader) (string, error) {
	var ln [1]byte
	if _, err := io.ReadFull(r, ln[:]); err != nil {
		return "", err
	}
	msg := make([]byte, int(ln[0]))
	if _, err := io.ReadFull(r, msg); err != nil {
		return "", err
	}
	if !strings.HasPrefix(string(msg), seedPrefix) {
		return "", fmt.Errorf("message %q lacks seed prefix", msg)
	}
	var tr [2]byte
	if _, err := io.ReadFull(r, tr[:]); err != nil {
		return "", err
	}
	if !bytes.Equal(tr[:], trailer) {
		return "", fmt.Errorf("bad trailer % x", tr)
	}
	return strings.TrimPrefix(string(msg), seedPrefix), nil
}

// Landscape renders a seed-deterministic terrain: a random-walk ground
// line with everything below it set. Same seed, same bytes.
func Landscape(seed string) []byte {
	h := fnv.New64a()
	h.Write([]byte(seed))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	out := make([]byte, raster.Size)
	ground := raster.Height * 2 / 3
	for x := 0; x < raster.Width; x++ {
		ground += rng.Intn(7) - 3
		if ground < raster.Height/4 {
			ground = raster.Height / 4
		}
		if ground > raster.Height-8 {
			ground = raster.Height - 8
		}
		for y := ground; y < raster.Height; y++ {
			out[y*raster.BytesPerRow+x/8] |= 0x80 >> (x % 8)
		}
	}
	return out
}
