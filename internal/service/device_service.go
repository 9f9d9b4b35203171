// Package service holds the device operations shared by the web UI, the
// JSON APIs and the MQTT subscriber, and fans their results out to the
// optional integrations.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/greenhouse-led-hub/internal/database"
	"github.com/iliyamo/greenhouse-led-hub/internal/logger"
	"github.com/iliyamo/greenhouse-led-hub/internal/model"
	"github.com/iliyamo/greenhouse-led-hub/internal/queue"
	"github.com/iliyamo/greenhouse-led-hub/internal/repository"
)

// ErrDeviceIDRequired is returned for a blank device id.
var ErrDeviceIDRequired = errors.New("device id is required")

// LedCache evicts a cached LED poll response.
type LedCache interface {
	InvalidateDevice(ctx context.Context, deviceID string) error
}

// CommandPublisher pushes the desired LED state to a device.
type CommandPublisher interface {
	PublishLedState(deviceID string, on bool) error
}

// EventPublisher records device events on the broker.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.DeviceEvent) error
}

// MetricsWriter records state changes as time-series points.  Writes are
// expected to be non-blocking.
type MetricsWriter interface {
	WriteButtonState(deviceID string, pressed bool, at time.Time)
	WriteLedState(deviceID string, on bool, at time.Time)
}

// Option configures a DeviceService.
type Option func(*DeviceService)

// WithLedCache evicts cached poll responses after each toggle.
func WithLedCache(c LedCache) Option {
	return func(s *DeviceService) { s.cache = c }
}

// WithCommandPublisher pushes each new LED state to the device.
func WithCommandPublisher(p CommandPublisher) Option {
	return func(s *DeviceService) { s.commands = p }
}

func WithEventPublisher(p EventPublisher) Option {
	return func(s *DeviceService) { s.events = p }
}

func WithMetrics(m MetricsWriter) Option {
	return func(s *DeviceService) { s.metrics = m }
}

// sinkTimeout bounds each side-effect call made after a committed write.
const sinkTimeout = 2 * time.Second

// DeviceService implements the device operations.  The database is the
// source of truth; sinks are notified after a successful write and their
// failures are logged, never returned.
type DeviceService struct {
	devices   *repository.DeviceRepo
	telemetry *repository.TelemetryRepo
	leds      *repository.LedRepo
	log       *logger.Logger

	cache    LedCache
	commands CommandPublisher
	events   EventPublisher
	metrics  MetricsWriter
}

// NewDeviceService builds a DeviceService on db.  Sinks not supplied through
// opts are skipped.
func NewDeviceService(db *database.DB, log *logger.Logger, opts ...Option) *DeviceService {
	s := &DeviceService{
		devices:   repository.NewDeviceRepo(db),
		telemetry: repository.NewTelemetryRepo(db),
		leds:      repository.NewLedRepo(db),
		log:       log.WithComponent("device-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dashboard returns userID's devices with their latest button and LED state.
func (s *DeviceService) Dashboard(ctx context.Context, userID uint64) ([]model.DeviceStatus, error) {
	return s.devices.StatusByUser(ctx, userID)
}

// DeviceDetail returns one of userID's devices with its latest button report
// and LED command.  repository.ErrNotFound means the device is absent or
// owned by someone else.
func (s *DeviceService) DeviceDetail(ctx context.Context, userID uint64, deviceID string) (model.DeviceDetail, error) {
	d, err := s.devices.GetOwned(ctx, deviceID, userID)
	if err != nil {
		return model.DeviceDetail{}, err
	}
	out := model.DeviceDetail{DeviceID: d.DeviceID, CreatedAt: d.CreatedAt}

	report, err := s.telemetry.Latest(ctx, deviceID)
	switch {
	case err == nil:
		out.ButtonState = report.ButtonState
		out.LastReportAt = &report.Timestamp
	case !errors.Is(err, repository.ErrNotFound):
		return model.DeviceDetail{}, err
	}

	cmd, err := s.leds.Latest(ctx, deviceID)
	switch {
	case err == nil:
		out.LedState = cmd.LedState
		out.LastCommandAt = &cmd.Timestamp
	case !errors.Is(err, repository.ErrNotFound):
		return model.DeviceDetail{}, err
	}
	return out, nil
}

// RegisterDevice assigns deviceID to userID.  It returns ErrDeviceIDRequired
// for a blank id and repository.ErrDeviceExists when any user already holds it.
// Ids are stored exactly as given; devices report them verbatim.
func (s *DeviceService) RegisterDevice(ctx context.Context, userID uint64, deviceID string) error {
	if strings.TrimSpace(deviceID) == "" {
		return ErrDeviceIDRequired
	}
	if err := s.devices.Create(ctx, userID, deviceID); err != nil {
		return err
	}
	s.log.Info().Str("device_id", deviceID).Uint64("user_id", userID).Msg("device registered")
	s.publish(ctx, queue.NewDeviceEvent(queue.EventDeviceRegistered, deviceID, userID, ""))
	return nil
}

// ToggleLed flips the LED of a device owned by userID and returns the new
// state.  repository.ErrNotFound means the device is absent or owned by
// someone else.
func (s *DeviceService) ToggleLed(ctx context.Context, userID uint64, deviceID string) (bool, error) {
	on, err := s.leds.Toggle(ctx, deviceID, userID)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	log := s.log.With().Str("device_id", deviceID).Logger()
	log.Info().Bool("led_state", on).Msg("led toggled")

	if s.cache != nil {
		sctx, cancel := sinkContext(ctx)
		if err := s.cache.InvalidateDevice(sctx, deviceID); err != nil {
			log.Warn().Err(err).Msg("led cache invalidation failed")
		}
		cancel()
	}
	if s.commands != nil {
		if err := s.commands.PublishLedState(deviceID, on); err != nil {
			log.Warn().Err(err).Msg("led command publish failed")
		}
	}
	if s.metrics != nil {
		s.metrics.WriteLedState(deviceID, on, now)
	}
	s.publish(ctx, queue.NewDeviceEvent(queue.EventLedToggled, deviceID, userID, model.LedLabel(on)))
	return on, nil
}

// IngestButtonState appends a button report for a registered device.  An
// unregistered device yields repository.ErrNotFound and nothing is written.
func (s *DeviceService) IngestButtonState(ctx context.Context, deviceID string, pressed bool) error {
	if err := s.telemetry.InsertIfRegistered(ctx, deviceID, pressed); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.WriteButtonState(deviceID, pressed, time.Now().UTC())
	}
	s.publish(ctx, queue.NewDeviceEvent(queue.EventDeviceData, deviceID, 0, queue.ButtonLabel(pressed)))
	return nil
}

// LedState returns the current LED state for deviceID, off when no command
// was ever recorded.  Registration is not checked.
func (s *DeviceService) LedState(ctx context.Context, deviceID string) (bool, error) {
	return s.leds.State(ctx, deviceID)
}

func (s *DeviceService) publish(ctx context.Context, ev queue.DeviceEvent) {
	if s.events == nil {
		return
	}
	sctx, cancel := sinkContext(ctx)
	defer cancel()
	if err := s.events.Publish(sctx, ev); err != nil {
		s.log.Warn().Err(err).Str("type", ev.Type).Str("device_id", ev.DeviceID).Msg("event publish failed")
	}
}

// sinkContext detaches from the request so a client hanging up after the
// commit does not cancel the notifications.
func sinkContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
}
