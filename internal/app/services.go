package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/blinkd/internal/bridge"
	"github.com/dokzlo13/blinkd/internal/config"
	"github.com/dokzlo13/blinkd/internal/db"
	"github.com/dokzlo13/blinkd/internal/effects"
	"github.com/dokzlo13/blinkd/internal/ledger"
	"github.com/dokzlo13/blinkd/internal/scheduler"
	"github.com/dokzlo13/blinkd/internal/script"
	"github.com/dokzlo13/blinkd/internal/twitch"
	"github.com/dokzlo13/blinkd/internal/webhook"
)

// Services holds all application services and their dependencies.
type Services struct {
	cfg *config.Config

	DB     *db.DB
	Ledger *ledger.Ledger
	Queue  *scheduler.Queue
	Abort  *scheduler.Abort
	Pacer  *scheduler.Pacer

	Bridge  *bridge.Client
	Engine  *effects.Engine
	Script  *script.Runner
	Chat    *twitch.Client
	Webhook *webhook.Server

	wg sync.WaitGroup
}

// NewServices creates everything that does not need a live bridge connection.
func NewServices(cfg *config.Config) (*Services, error) {
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	return &Services{
		cfg:    cfg,
		DB:     database,
		Ledger: ledger.New(database.DB),
		Queue:  scheduler.NewQueue(),
		Abort:  &scheduler.Abort{},
		Pacer:  scheduler.NewPacer(cfg.Hue.MaxRPS),
	}, nil
}

// Start connects to the bridge and brings up the action queue, ledger
// cleanup, and the chat and trigger surfaces.
//
// A failed bridge connection is retried indefinitely with a fixed backoff,
// so the daemon survives the bridge booting after us.
func (s *Services) Start(ctx context.Context) error {
	backoff := s.cfg.Hue.RetryBackoff.Duration()
	for {
		client, err := bridge.Connect(ctx, s.cfg.Hue)
		if err == nil {
			s.Bridge = client
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error().Err(err).Dur("backoff", backoff).Msg("Bridge connection failed, retrying")
		if err := scheduler.Sleep(ctx, backoff); err != nil {
			return err
		}
	}

	s.Engine = effects.NewEngine(s.Bridge, s.Queue, s.Abort, s.Pacer, s.Ledger, s.cfg)

	if s.cfg.Script != "" {
		runner, err := script.Load(s.cfg.Script, s.Queue, s.Bridge, s.Pacer, s.fixtureMap())
		if err != nil {
			return err
		}
		s.Script = runner
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Queue.Run(ctx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Ledger.RunCleanup(ctx, s.cfg.Ledger.CleanupInterval.Duration(), s.cfg.Ledger.RetentionDays)
	}()

	if s.cfg.Twitch.Enabled() {
		var tbl twitch.ScriptTable
		if s.Script != nil {
			tbl = s.Script
		}
		commands := twitch.NewCommands(s.Engine, tbl)
		s.Chat = twitch.NewClient(s.cfg.Twitch, s.Engine, commands)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.Chat.Run(ctx)
		}()
	} else {
		log.Warn().Msg("Chat is not configured, commands and notices are disabled")
	}

	if s.cfg.Triggers.Enabled {
		s.Webhook = webhook.NewServer(s.cfg.Triggers.Host, s.cfg.Triggers.Port, s.Engine)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.Webhook.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
				log.Error().Err(err).Msg("Trigger server stopped with error")
			}
		}()
	}

	// Bring the fixtures to a known state on boot.
	s.Engine.Reset("startup", "")

	return nil
}

// Stop waits for service goroutines and releases resources.
func (s *Services) Stop() error {
	s.wg.Wait()

	if s.Script != nil {
		s.Script.Close()
	}

	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}

	log.Info().Msg("All services stopped")
	return nil
}

func (s *Services) fixtureMap() map[string]int {
	fx := s.cfg.Fixtures
	return map[string]int{
		"key_left":    fx.KeyLeft,
		"key_right":   fx.KeyRight,
		"strip_left":  fx.StripLeft,
		"strip_right": fx.StripRight,
		"back":        fx.Back,
	}
}
