// Package bridge wraps the Hue bridge behind the five calls the effect engine
// needs: light state get/set and scene create/recall/delete.
package bridge

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/blinkd/internal/config"
)

// Controller is the bridge surface consumed by the effect engine.
type Controller interface {
	LightState(ctx context.Context, id int) (State, error)
	Apply(ctx context.Context, id int, state State) error
	SaveScene(ctx context.Context, name string, lights []int) (string, error)
	RecallScene(ctx context.Context, sceneID string) error
	DeleteScene(ctx context.Context, sceneID string) error
}

// Client implements Controller against a real bridge.
type Client struct {
	bridge  *huego.Bridge
	timeout time.Duration
}

// Connect performs a single connection attempt: discovery (when no address is
// configured) plus a probe request. Startup retry policy lives in the caller.
func Connect(ctx context.Context, cfg config.HueConfig) (*Client, error) {
	var br *huego.Bridge
	if cfg.Bridge == "" {
		discovered, err := huego.DiscoverContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("bridge discovery failed: %w", err)
		}
		br = discovered.Login(cfg.Token)
	} else {
		br = huego.New(cfg.Bridge, cfg.Token)
	}

	c := &Client{bridge: br, timeout: cfg.Timeout.Duration()}

	probeCtx, cancel := c.callCtx(ctx)
	defer cancel()
	lights, err := br.GetLightsContext(probeCtx)
	if err != nil {
		return nil, fmt.Errorf("bridge probe failed: %w", err)
	}

	log.Info().Str("host", br.Host).Int("lights", len(lights)).Msg("Connected to Hue bridge")
	return c, nil
}

func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// LightState fetches the current reported state of one light.
func (c *Client) LightState(ctx context.Context, id int) (State, error) {
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	light, err := c.bridge.GetLightContext(callCtx, id)
	if err != nil {
		return State{}, fmt.Errorf("get light %d: %w", id, err)
	}
	return fromHuego(light.State), nil
}

// Apply sends a partial state to one light.
func (c *Client) Apply(ctx context.Context, id int, state State) error {
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	if _, err := c.bridge.SetLightStateContext(callCtx, id, state.toHuego()); err != nil {
		return fmt.Errorf("set light %d: %w", id, err)
	}
	return nil
}

// SaveScene stores the current state of the given lights in a new bridge-side
// scene and returns its handle.
func (c *Client) SaveScene(ctx context.Context, name string, lights []int) (string, error) {
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	ids := make([]string, 0, len(lights))
	for _, id := range lights {
		ids = append(ids, strconv.Itoa(id))
	}

	resp, err := c.bridge.CreateSceneContext(callCtx, &huego.Scene{
		Name:    name,
		Lights:  ids,
		Recycle: true,
	})
	if err != nil {
		return "", fmt.Errorf("create scene %q: %w", name, err)
	}

	sceneID, ok := resp.Success["id"].(string)
	if !ok || sceneID == "" {
		return "", fmt.Errorf("create scene %q: bridge returned no id", name)
	}

	log.Debug().Str("scene", name).Str("id", sceneID).Strs("lights", ids).Msg("Scene saved")
	return sceneID, nil
}

// RecallScene applies a stored scene. Group 0 is the implicit all-lights group.
func (c *Client) RecallScene(ctx context.Context, sceneID string) error {
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	if _, err := c.bridge.RecallSceneContext(callCtx, sceneID, 0); err != nil {
		return fmt.Errorf("recall scene %s: %w", sceneID, err)
	}
	return nil
}

// DeleteScene discards a stored scene.
func (c *Client) DeleteScene(ctx context.Context, sceneID string) error {
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	if err := c.bridge.DeleteSceneContext(callCtx, sceneID); err != nil {
		return fmt.Errorf("delete scene %s: %w", sceneID, err)
	}
	return nil
}
