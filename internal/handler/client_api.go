package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/greenhouse-led-hub/internal/config"
	"github.com/iliyamo/greenhouse-led-hub/internal/middleware"
	"github.com/iliyamo/greenhouse-led-hub/internal/model"
	"github.com/iliyamo/greenhouse-led-hub/internal/repository"
	"github.com/iliyamo/greenhouse-led-hub/internal/service"
	"github.com/iliyamo/greenhouse-led-hub/internal/utils"
)

// ClientAPIHandler is the bearer-token JSON surface for scripts and mobile
// clients.  It has the same semantics as the browser UI.
type ClientAPIHandler struct {
	Cfg     config.Config
	Users   *repository.UserRepo
	Devices *service.DeviceService
}

func NewClientAPIHandler(cfg config.Config, users *repository.UserRepo, devices *service.DeviceService) *ClientAPIHandler {
	return &ClientAPIHandler{Cfg: cfg, Users: users, Devices: devices}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}
type authResp struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
}
type createDeviceReq struct {
	DeviceID string `json:"device_id"`
}

// Login exchanges credentials for an access token.
func (h *ClientAPIHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.Authenticate(ctx, req.Username, req.Password)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return err
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Username, h.Cfg.AccessTTLMin)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authResp{
		User:   userPart{ID: u.ID, Username: u.Username},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// ListDevices returns the caller's devices with their current state.
func (h *ClientAPIHandler) ListDevices(c echo.Context) error {
	id, _ := middleware.CurrentIdentity(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	devices, err := h.Devices.Dashboard(ctx, id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"devices": devices})
}

// GetDevice returns one of the caller's devices with its latest events.
func (h *ClientAPIHandler) GetDevice(c echo.Context) error {
	id, _ := middleware.CurrentIdentity(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	d, err := h.Devices.DeviceDetail(ctx, id.UserID, c.Param("device_id"))
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "device not found"})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// CreateDevice registers a device for the caller.
func (h *ClientAPIHandler) CreateDevice(c echo.Context) error {
	id, _ := middleware.CurrentIdentity(c)
	var req createDeviceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	deviceID := req.DeviceID

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	err := h.Devices.RegisterDevice(ctx, id.UserID, deviceID)
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, model.DeviceStatus{DeviceID: deviceID})
	case errors.Is(err, service.ErrDeviceIDRequired):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "device_id required"})
	case errors.Is(err, repository.ErrDeviceExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "device_id already exists"})
	default:
		return err
	}
}

// ToggleLed flips the LED of one of the caller's devices.
func (h *ClientAPIHandler) ToggleLed(c echo.Context) error {
	id, _ := middleware.CurrentIdentity(c)
	deviceID := c.Param("device_id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	on, err := h.Devices.ToggleLed(ctx, id.UserID, deviceID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "device not found"})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"device_id": deviceID, "led_state": model.LedLabel(on)})
}
