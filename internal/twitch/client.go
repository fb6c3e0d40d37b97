// Package twitch connects the effect engine to a Twitch chat channel:
// broadcaster commands, subscription/raid notices and cheered bits.
package twitch

import (
	"context"
	"strconv"
	"strings"
	"time"

	irc "github.com/gempir/go-twitch-irc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/blinkd/internal/config"
	"github.com/dokzlo13/blinkd/internal/effects"
	"github.com/dokzlo13/blinkd/internal/scheduler"
)

// Client owns the IRC connection and routes chat traffic to the engine.
type Client struct {
	cfg      config.TwitchConfig
	engine   *effects.Engine
	commands *Commands
	irc      *irc.Client
}

// NewClient creates a chat client. commands may carry a script table for
// custom commands; pass it pre-wired.
func NewClient(cfg config.TwitchConfig, engine *effects.Engine, commands *Commands) *Client {
	return &Client{
		cfg:      cfg,
		engine:   engine,
		commands: commands,
	}
}

// Run connects and processes chat until ctx is cancelled, reconnecting on
// connection loss.
func (c *Client) Run(ctx context.Context) {
	client := irc.NewClient(c.cfg.Nick, c.cfg.Token)
	c.irc = client

	client.OnPrivateMessage(c.handleMessage)
	client.OnUserNoticeMessage(c.handleNotice)
	client.OnConnect(func() {
		log.Info().Str("channel", c.cfg.Channel).Msg("Connected to chat")
	})
	client.Join(c.cfg.Channel)

	go func() {
		<-ctx.Done()
		if err := client.Disconnect(); err != nil {
			log.Debug().Err(err).Msg("Chat disconnect")
		}
	}()

	for {
		err := client.Connect()
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Msg("Chat connection lost, reconnecting")
		if err := scheduler.Sleep(ctx, 5*time.Second); err != nil {
			return
		}
	}
}

func (c *Client) handleMessage(m irc.PrivateMessage) {
	// Skip our own messages
	if strings.EqualFold(m.User.Name, c.cfg.Nick) {
		return
	}

	if m.Bits > 0 {
		log.Info().Str("user", m.User.Name).Int("bits", m.Bits).Msg("Bits cheered")
		c.engine.Bits("chat", m.User.Name, m.Bits)
		return
	}

	if strings.HasPrefix(m.Message, "!") && isBroadcaster(m.User) {
		c.commands.Dispatch(m.User.Name, m.Message)
	}
}

func (c *Client) handleNotice(m irc.UserNoticeMessage) {
	switch m.MsgID {
	case "raid":
		viewers, _ := strconv.Atoi(m.MsgParams["msg-param-viewerCount"])
		log.Info().Str("user", m.User.Name).Int("viewers", viewers).Msg("Raid incoming")
		c.engine.Raid("chat", m.User.Name, viewers)

	case "sub":
		log.Info().Str("user", m.User.Name).Msg("New subscription")
		c.engine.Subscribed("chat", m.User.Name)

	case "resub":
		months, _ := strconv.Atoi(m.MsgParams["msg-param-cumulative-months"])
		log.Info().Str("user", m.User.Name).Int("months", months).Msg("Resubscription")
		c.engine.Resubscribed("chat", m.User.Name, months)

	case "subgift":
		recipient := m.MsgParams["msg-param-recipient-user-name"]
		log.Info().Str("giver", m.User.Name).Str("recipient", recipient).Msg("Gifted subscription")
		c.engine.GiftReceived("chat", m.User.Name, recipient)

	case "submysterygift":
		count, _ := strconv.Atoi(m.MsgParams["msg-param-mass-gift-count"])
		log.Info().Str("giver", m.User.Name).Int("count", count).Msg("Gift batch announced")
		c.engine.GiftBatch("chat", m.User.Name, count)
	}
}

func isBroadcaster(u irc.User) bool {
	return u.Badges["broadcaster"] == 1
}
