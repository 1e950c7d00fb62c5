package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/mapforge/previewd/internal/engine"
	"github.com/mapforge/previewd/internal/metrics"
	"github.com/mapforge/previewd/internal/preview"
	"github.com/mapforge/previewd/internal/queue"
	"github.com/mapforge/previewd/internal/stats"
)

// WorkerStats is implemented by launchers that can report on the engine
// process. May be nil on the server (mock mode).
type WorkerStats interface {
	Stats() engine.Stats
}

type Server struct {
	store       *preview.Store
	coord       *preview.Coordinator
	broadcaster *Broadcaster
	metrics     *metrics.Metrics

	worker  WorkerStats    // nil when running against the mock engine
	tracker *stats.Tracker // nil disables /api/stats

	frontendDir     string
	dev             bool
	embeddedHandler http.Handler
}

func NewServer(store *preview.Store, coord *preview.Coordinator, broadcaster *Broadcaster, m *metrics.Metrics, frontendDir string, dev bool, embeddedHandler http.Handler) *Server {
	return &Server{
		store:           store,
		coord:           coord,
		broadcaster:     broadcaster,
		metrics:         m,
		frontendDir:     frontendDir,
		dev:             dev,
		embeddedHandler: embeddedHandler,
	}
}

// SetWorkerStats configures engine process reporting for /api/status.
// Must be called before SetupRoutes.
func (s *Server) SetWorkerStats(w WorkerStats) {
	s.worker = w
}

// SetStatsTracker configures the /api/stats source.
// Must be called before SetupRoutes.
func (s *Server) SetStatsTracker(t *stats.Tracker) {
	s.tracker = t
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/previews", s.handlePreviews)
	mux.HandleFunc("/api/previews/", s.handlePreviewRoutes)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.Handle("/metrics", s.metrics.Handler())

	if s.dev {
		log.Printf("Serving frontend from filesystem: %s", s.frontendDir)
		mux.Handle("/", http.FileServer(http.Dir(s.frontendDir)))
	} else if s.embeddedHandler != nil {
		log.Println("Serving embedded frontend")
		mux.Handle("/", s.embeddedHandler)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	log.Printf("WebSocket client connected: %s", r.RemoteAddr)
	c := s.broadcaster.AddClient(conn)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			log.Printf("WebSocket client disconnected: %s", r.RemoteAddr)
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}()
}

type requestBody struct {
	Seed string `json:"seed"`
}

func (s *Server) handlePreviews(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.store.GetAll())

	case http.MethodPost:
		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		req, _, err := s.coord.Request(body.Seed)
		switch {
		case errors.Is(err, queue.ErrFull):
			http.Error(w, "preview queue full", http.StatusServiceUnavailable)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(req)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePreviewRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse: /api/previews/{id} or /api/previews/{id}/image
	path := strings.TrimPrefix(r.URL.Path, "/api/previews/")
	parts := strings.SplitN(path, "/", 2)

	id, err := url.PathUnescape(parts[0])
	if err != nil || id == "" {
		http.Error(w, "invalid preview id", http.StatusBadRequest)
		return
	}

	if len(parts) == 2 {
		if parts[1] != "image" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		s.handleImage(w, id)
		return
	}

	req, ok := s.store.Get(id)
	if !ok {
		http.Error(w, "preview not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(req)
}

func (s *Server) handleImage(w http.ResponseWriter, id string) {
	png, ok := s.store.Image(id)
	if !ok {
		http.Error(w, "preview image not available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

type statusPayload struct {
	QueueDepth int           `json:"queueDepth"`
	Active     int           `json:"active"`
	Requests   int           `json:"requests"`
	WSClients  int           `json:"wsClients"`
	Worker     *engine.Stats `json:"worker,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	payload := statusPayload{
		QueueDepth: s.coord.QueueDepth(),
		Active:     s.store.ActiveCount(),
		Requests:   len(s.store.GetAll()),
		WSClients:  s.broadcaster.ClientCount(),
	}
	if s.worker != nil {
		st := s.worker.Stats()
		payload.Worker = &st
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		http.Error(w, "stats not available", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.tracker.Stats())
}

// checkOrigin admits same-host and localhost origins. The service binds
// loopback by default; there is no cross-origin story.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

func ListenAndServe(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("Server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
