package twitch

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/blinkd/internal/effects"
)

// ScriptTable is the optional set of user-scripted commands consulted when a
// command is not built in.
type ScriptTable interface {
	Has(name string) bool
	Invoke(name string, args []string)
}

// Commands maps broadcaster chat commands onto engine entry points.
type Commands struct {
	engine *effects.Engine
	script ScriptTable // may be nil
}

// NewCommands creates the command table.
func NewCommands(engine *effects.Engine, script ScriptTable) *Commands {
	return &Commands{engine: engine, script: script}
}

// parseCommand splits "!name arg arg" into its parts.
func parseCommand(text string) (name string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "!") || len(fields[0]) == 1 {
		return "", nil, false
	}
	return strings.ToLower(fields[0][1:]), fields[1:], true
}

// Dispatch runs one broadcaster command.
func (c *Commands) Dispatch(user, text string) {
	name, args, ok := parseCommand(text)
	if !ok {
		return
	}

	log.Debug().Str("user", user).Str("command", name).Strs("args", args).Msg("Command dispatched")

	switch name {
	case "reset":
		c.engine.Reset("command", user)

	case "selftest":
		c.engine.SelfTest("command", user)

	case "raidtest":
		c.engine.Raid("command", user, intArg(args, 0, 10))

	case "subtest":
		c.engine.Subscribed("command", strArg(args, 0, user))

	case "resubtest":
		c.engine.Resubscribed("command", user, intArg(args, 0, 2))

	case "gifttest":
		c.engine.GiftReceived("command", user, strArg(args, 0, "someone"))

	case "giftbatchtest":
		c.engine.GiftBatch("command", user, intArg(args, 0, 5))

	case "color":
		c.engine.Color("command", user, strings.Join(args, " "))

	case "state":
		c.engine.StateDump("command", user)

	default:
		if c.script != nil && c.script.Has(name) {
			c.script.Invoke(name, args)
			return
		}
		log.Debug().Str("command", name).Msg("Unknown command")
	}
}

func intArg(args []string, i, def int) int {
	if i >= len(args) {
		return def
	}
	v, err := strconv.Atoi(args[i])
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func strArg(args []string, i int, def string) string {
	if i >= len(args) || args[i] == "" {
		return def
	}
	return args[i]
}
