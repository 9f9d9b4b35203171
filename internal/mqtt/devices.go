package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/greenhouse-led-hub/internal/logger"
	"github.com/iliyamo/greenhouse-led-hub/internal/model"
	"github.com/iliyamo/greenhouse-led-hub/internal/repository"
	"github.com/iliyamo/greenhouse-led-hub/internal/utils"
)

const ingestTimeout = 5 * time.Second

// ButtonIngester stores a button report for a registered device.
type ButtonIngester interface {
	IngestButtonState(ctx context.Context, deviceID string, pressed bool) error
}

// PublishLedState pushes "on" or "off" to the device's LED topic.  The
// message is retained so a device that connects later still sees it.
func (c *Client) PublishLedState(deviceID string, on bool) error {
	return c.Publish(c.topics.Led(deviceID), []byte(model.LedLabel(on)), c.cfg.QoS, true)
}

// SubscribeButtons feeds every device button report into ing.
func (c *Client) SubscribeButtons(ctx context.Context, ing ButtonIngester) error {
	return c.Subscribe(c.topics.AllButtons(), c.cfg.QoS, ButtonHandler(ctx, c.topics, ing, c.log))
}

// ButtonHandler turns button messages into ingest calls.  Reports from
// unregistered devices are logged and dropped.
func ButtonHandler(ctx context.Context, topics Topics, ing ButtonIngester, log *logger.Logger) MessageHandler {
	return func(topic string, payload []byte) error {
		deviceID, ok := topics.DeviceFromButton(topic)
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
		}
		pressed, err := ParseButtonPayload(payload)
		if err != nil {
			return err
		}

		ictx, cancel := context.WithTimeout(ctx, ingestTimeout)
		defer cancel()
		err = ing.IngestButtonState(ictx, deviceID, pressed)
		if errors.Is(err, repository.ErrNotFound) {
			log.Debug().Str("device_id", deviceID).Msg("button report from unregistered device dropped")
			return nil
		}
		return err
	}
}

// ParseButtonPayload accepts either a JSON object carrying button_state,
// coerced like the HTTP API does, or a bare token such as 1, 0, true,
// false, on or off.
func ParseButtonPayload(payload []byte) (bool, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return false, ErrInvalidPayload
	}
	if trimmed[0] == '{' {
		var body map[string]any
		if err := json.Unmarshal(trimmed, &body); err != nil {
			return false, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		v, ok := body["button_state"]
		if !ok || v == nil {
			return false, fmt.Errorf("%w: missing button_state", ErrInvalidPayload)
		}
		return utils.Truthy(v), nil
	}

	switch strings.ToLower(strings.Trim(string(trimmed), `"`)) {
	case "1", "true", "on", "pressed":
		return true, nil
	case "0", "false", "off", "released":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidPayload, trimmed)
}
