package web

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/jaminalder/codex-minimax/internal/app"
)

// Option configures the HTTP server.
type Option func(*handlers)

// WithLogger sets the request and handler logger.
func WithLogger(l zerolog.Logger) Option { return func(h *handlers) { h.log = l } }

// WithHeartbeat sets the keep-alive interval of event streams and websockets.
func WithHeartbeat(d time.Duration) Option {
	return func(h *handlers) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

// WithAllowedOrigins restricts cross-origin websocket upgrades to the
// given origins ("http://host:port").
func WithAllowedOrigins(origins []string) Option {
	return func(h *handlers) {
		h.origins = h.origins[:0]
		for _, o := range origins {
			if u, err := url.Parse(o); err == nil && u.Host != "" {
				h.origins = append(h.origins, u.Host)
			}
		}
	}
}

// NewServer wires routes and returns an http.Handler. It installs the board
// renderer on s so broadcasts carry the same fragment the handlers return.
func NewServer(s *app.Service, opts ...Option) http.Handler {
	h := &handlers{svc: s, tpl: loadTemplates(), log: zerolog.Nop(), heartbeat: 15 * time.Second}
	for _, o := range opts {
		o(h)
	}
	s.SetRenderer(func(gs app.GameState) []byte { return h.renderBoard(gs, "") })

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.log))
	r.Get("/", h.index)
	r.Get("/health", health)
	r.Post("/game", h.create)
	r.Route("/game/{id}", func(r chi.Router) {
		r.Get("/", h.view)
		r.Post("/join", h.join)
		r.Post("/play", h.play)
		r.Post("/shuffle", h.shuffle)
		r.Get("/events", h.events)
		r.Get("/ws", h.ws)
		r.Get("/tree", h.treeHTML)
		r.Get("/tree.json", h.treeJSON)
	})
	return r
}

func requestLogger(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			l.Debug().
				Str("req", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("took", time.Since(start)).
				Msg("request")
		})
	}
}
