package tsdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/greenhouse-led-hub/internal/config"
	"github.com/iliyamo/greenhouse-led-hub/internal/logger"
)

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(config.InfluxConfig{Enabled: false}, logger.Nop())
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestConnectUnreachable(t *testing.T) {
	_, err := Connect(config.InfluxConfig{Enabled: true, URL: "http://127.0.0.1:1", Org: "o", Bucket: "b"}, logger.Nop())
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestPoints(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("button", func(t *testing.T) {
		p := buttonPoint("dev-1", true, at)
		assert.Equal(t, "button_state", p.Name())
		require.Len(t, p.TagList(), 1)
		assert.Equal(t, "device_id", p.TagList()[0].Key)
		assert.Equal(t, "dev-1", p.TagList()[0].Value)
		require.Len(t, p.FieldList(), 1)
		assert.Equal(t, "pressed", p.FieldList()[0].Key)
		assert.Equal(t, true, p.FieldList()[0].Value)
		assert.Equal(t, at, p.Time())
	})

	t.Run("led", func(t *testing.T) {
		p := ledPoint("dev-2", false, at)
		assert.Equal(t, "led_state", p.Name())
		assert.Equal(t, "dev-2", p.TagList()[0].Value)
		assert.Equal(t, "on", p.FieldList()[0].Key)
		assert.Equal(t, false, p.FieldList()[0].Value)
	})
}
