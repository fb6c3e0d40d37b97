// Package webhook exposes the HTTP trigger surface: each route cancels the
// running effect and enqueues its replacement, substituting for the chat
// notifications when those are unavailable.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/blinkd/internal/effects"
)

// Server is the HTTP trigger server.
type Server struct {
	addr       string
	engine     *effects.Engine
	httpServer *http.Server
}

// NewServer creates a trigger server.
func NewServer(host string, port int, engine *effects.Engine) *Server {
	return &Server{
		addr:   fmt.Sprintf("%s:%d", host, port),
		engine: engine,
	}
}

// Run starts the trigger server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /trigger/raid", s.handleRaid)
	mux.HandleFunc("POST /trigger/sub", s.handleSub)
	mux.HandleFunc("POST /trigger/giftbatch", s.handleGiftBatch)
	mux.HandleFunc("POST /trigger/bits", s.handleBits)

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	log.Info().Str("addr", s.addr).Msg("Starting trigger server")

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Trigger server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// payload is the optional JSON body shared by all trigger routes.
type payload struct {
	User    string `json:"user"`
	Viewers int    `json:"viewers"`
	Count   int    `json:"count"`
	Bits    int    `json:"bits"`
	Months  int    `json:"months"`
}

func decode(r *http.Request) payload {
	var p payload
	if r.Body != nil {
		// A missing or malformed body just means defaults
		_ = json.NewDecoder(r.Body).Decode(&p)
	}
	if p.User == "" {
		p.User = "http"
	}
	return p
}

func (s *Server) handleRaid(w http.ResponseWriter, r *http.Request) {
	p := decode(r)
	if p.Viewers == 0 {
		p.Viewers = 10
	}
	log.Info().Str("user", p.User).Int("viewers", p.Viewers).Msg("Raid trigger received")
	s.engine.CancelAll()
	s.engine.Raid("http", p.User, p.Viewers)
	ack(w)
}

func (s *Server) handleSub(w http.ResponseWriter, r *http.Request) {
	p := decode(r)
	log.Info().Str("user", p.User).Msg("Sub trigger received")
	s.engine.CancelAll()
	s.engine.Subscribed("http", p.User)
	ack(w)
}

func (s *Server) handleGiftBatch(w http.ResponseWriter, r *http.Request) {
	p := decode(r)
	if p.Count == 0 {
		p.Count = 5
	}
	log.Info().Str("user", p.User).Int("count", p.Count).Msg("Gift batch trigger received")
	s.engine.CancelAll()
	s.engine.GiftBatch("http", p.User, p.Count)
	ack(w)
}

func (s *Server) handleBits(w http.ResponseWriter, r *http.Request) {
	p := decode(r)
	if p.Bits == 0 {
		p.Bits = 100
	}
	log.Info().Str("user", p.User).Int("bits", p.Bits).Msg("Bits trigger received")
	s.engine.CancelAll()
	s.engine.Bits("http", p.User, p.Bits)
	ack(w)
}

func ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
