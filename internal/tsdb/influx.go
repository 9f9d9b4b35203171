// Package tsdb mirrors device state changes into InfluxDB so button and LED
// history can be graphed without scanning the relational event tables.
package tsdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/iliyamo/greenhouse-led-hub/internal/config"
	"github.com/iliyamo/greenhouse-led-hub/internal/logger"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	measurementButton = "button_state"
	measurementLed    = "led_state"
)

var (
	// ErrDisabled is returned by Connect when INFLUX_ENABLED is off.
	ErrDisabled = errors.New("influxdb: disabled")
	// ErrConnectionFailed wraps the initial ping failure.
	ErrConnectionFailed = errors.New("influxdb: connection failed")
)

// Writer records device state as points.  Writes are batched by the
// non-blocking write API; async failures are logged.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	mu     sync.RWMutex
	closed bool
}

// Connect creates the client, pings the server and starts draining the
// async error channel into log.
func Connect(cfg config.InfluxConfig, log *logger.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	flush := cfg.FlushInterval
	if flush <= 0 {
		flush = 10
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batch)).
			SetFlushInterval(uint(flush)*1000))

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()
	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	w := &Writer{client: client, writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket)}
	log = log.WithComponent("influxdb")
	go func(errs <-chan error) {
		for err := range errs {
			log.Warn().Err(err).Msg("async write failed")
		}
	}(w.writeAPI.Errors())
	return w, nil
}

// WriteButtonState records a button report.
func (w *Writer) WriteButtonState(deviceID string, pressed bool, at time.Time) {
	w.write(buttonPoint(deviceID, pressed, at))
}

// WriteLedState records an LED command.
func (w *Writer) WriteLedState(deviceID string, on bool, at time.Time) {
	w.write(ledPoint(deviceID, on, at))
}

func (w *Writer) write(p *write.Point) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	w.writeAPI.WritePoint(p)
}

// HealthCheck pings the server.
func (w *Writer) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	healthy, err := w.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	if !healthy {
		return errors.New("influxdb health check: server not healthy")
	}
	return nil
}

// Close flushes pending points and shuts the client down.  Later writes are
// dropped.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.writeAPI.Flush()
	w.client.Close()
	return nil
}

func buttonPoint(deviceID string, pressed bool, at time.Time) *write.Point {
	return write.NewPoint(measurementButton,
		map[string]string{"device_id": deviceID},
		map[string]interface{}{"pressed": pressed},
		at)
}

func ledPoint(deviceID string, on bool, at time.Time) *write.Point {
	return write.NewPoint(measurementLed,
		map[string]string{"device_id": deviceID},
		map[string]interface{}{"on": on},
		at)
}
