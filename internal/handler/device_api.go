package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/greenhouse-led-hub/internal/logger"
	"github.com/iliyamo/greenhouse-led-hub/internal/model"
	"github.com/iliyamo/greenhouse-led-hub/internal/repository"
	"github.com/iliyamo/greenhouse-led-hub/internal/service"
	"github.com/iliyamo/greenhouse-led-hub/internal/utils"
)

// DeviceAPIHandler serves the unauthenticated endpoints field devices call.
type DeviceAPIHandler struct {
	Devices *service.DeviceService
	Log     *logger.Logger
}

func NewDeviceAPIHandler(devices *service.DeviceService, log *logger.Logger) *DeviceAPIHandler {
	return &DeviceAPIHandler{Devices: devices, Log: log.WithComponent("device-api")}
}

// PostDeviceData stores a button report.
//
//	400 when device_id or button_state is missing (null counts as missing)
//	404 when device_id is not registered
func (h *DeviceAPIHandler) PostDeviceData(c echo.Context) error {
	var body map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid JSON body"})
	}
	// Ids are strings everywhere they are stored; a number or bool is treated as missing.
	deviceID, _ := body["device_id"].(string)
	raw, present := body["button_state"]
	if deviceID == "" || !present || raw == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Missing device_id or button_state"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	err := h.Devices.IngestButtonState(ctx, deviceID, utils.Truthy(raw))
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Device not registered"})
	}
	if err != nil {
		h.Log.Error().Err(err).Str("device_id", deviceID).Msg("store device data failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "success"})
}

// GetLedState returns the latest LED command.  Devices never commanded,
// registered or not, are "off".
func (h *DeviceAPIHandler) GetLedState(c echo.Context) error {
	deviceID := c.QueryParam("device_id")
	if deviceID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Missing device_id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	on, err := h.Devices.LedState(ctx, deviceID)
	if err != nil {
		h.Log.Error().Err(err).Str("device_id", deviceID).Msg("read led state failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"led_state": model.LedLabel(on)})
}
