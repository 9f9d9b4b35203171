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
	"github.com/iliyamo/greenhouse-led-hub/internal/view"
)

// Flash categories understood by the layout.
const (
	flashSuccess = "success"
	flashDanger  = "danger"
	flashInfo    = "info"
)

const requestTimeout = 5 * time.Second

// WebHandler serves the session-gated browser UI.
type WebHandler struct {
	Cfg      config.Config
	Users    *repository.UserRepo
	Devices  *service.DeviceService
	Sessions *middleware.SessionStore
}

func NewWebHandler(cfg config.Config, users *repository.UserRepo, devices *service.DeviceService, sessions *middleware.SessionStore) *WebHandler {
	return &WebHandler{Cfg: cfg, Users: users, Devices: devices, Sessions: sessions}
}

// render pops pending flashes, appends any extra ones and writes the page.
func (h *WebHandler) render(c echo.Context, status int, name string, page view.Page, extra ...middleware.Flash) error {
	flashes, err := h.Sessions.Flashes(c)
	if err != nil {
		return err
	}
	page.Flashes = append(flashes, extra...)
	if id, ok := middleware.CurrentIdentity(c); ok {
		page.User = id.Username
	}
	return c.Render(status, name, page)
}

func (h *WebHandler) flashRedirect(c echo.Context, category, message, to string) error {
	if err := h.Sessions.AddFlash(c, category, message); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, to)
}

// RegisterPage shows the registration form.
func (h *WebHandler) RegisterPage(c echo.Context) error {
	return h.render(c, http.StatusOK, "register.html", view.Page{})
}

// Register creates an account and sends the user to the login page.
func (h *WebHandler) Register(c echo.Context) error {
	username := strings.TrimSpace(c.FormValue("username"))
	password := c.FormValue("password")
	if username == "" || password == "" {
		return h.flashRedirect(c, flashDanger, "Username and password are required", "/register")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if _, err := h.Users.Create(ctx, username, password, h.Cfg.BcryptCost); err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			return h.flashRedirect(c, flashDanger, "Username already exists", "/register")
		}
		return err
	}
	return h.flashRedirect(c, flashSuccess, "Registration successful! Please login.", "/login")
}

// LoginPage shows the login form.
func (h *WebHandler) LoginPage(c echo.Context) error {
	return h.render(c, http.StatusOK, "login.html", view.Page{})
}

// Login establishes a session.  Bad credentials re-render the form with a
// message that does not reveal which part was wrong.
func (h *WebHandler) Login(c echo.Context) error {
	username := strings.TrimSpace(c.FormValue("username"))
	password := c.FormValue("password")

	invalid := func() error {
		return h.render(c, http.StatusOK, "login.html",
			view.Page{Form: map[string]string{"username": username}},
			middleware.Flash{Category: flashDanger, Message: "Invalid username or password"})
	}
	if username == "" || password == "" {
		return invalid()
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.Authenticate(ctx, username, password)
	if errors.Is(err, repository.ErrNotFound) {
		return invalid()
	}
	if err != nil {
		return err
	}
	if err := h.Sessions.Login(c, middleware.Identity{UserID: u.ID, Username: u.Username}); err != nil {
		return err
	}
	return h.flashRedirect(c, flashSuccess, "Login successful!", "/")
}

// Logout clears the session.
func (h *WebHandler) Logout(c echo.Context) error {
	if err := h.Sessions.Logout(c); err != nil {
		return err
	}
	return h.flashRedirect(c, flashInfo, "You have been logged out", "/login")
}

// Index renders the dashboard for the current user.
func (h *WebHandler) Index(c echo.Context) error {
	id, _ := middleware.CurrentIdentity(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	devices, err := h.Devices.Dashboard(ctx, id.UserID)
	if err != nil {
		return err
	}
	return h.render(c, http.StatusOK, "index.html", view.Page{Devices: devices})
}

// AddDevicePage shows the device registration form.
func (h *WebHandler) AddDevicePage(c echo.Context) error {
	return h.render(c, http.StatusOK, "add_device.html", view.Page{})
}

// AddDevice registers a device for the current user.  A taken id
// re-renders the form.
func (h *WebHandler) AddDevice(c echo.Context) error {
	id, _ := middleware.CurrentIdentity(c)
	deviceID := c.FormValue("device_id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	err := h.Devices.RegisterDevice(ctx, id.UserID, deviceID)
	switch {
	case err == nil:
		return h.flashRedirect(c, flashSuccess, "Device added successfully!", "/")
	case errors.Is(err, service.ErrDeviceIDRequired):
		return h.render(c, http.StatusOK, "add_device.html", view.Page{},
			middleware.Flash{Category: flashDanger, Message: "Device ID is required"})
	case errors.Is(err, repository.ErrDeviceExists):
		return h.render(c, http.StatusOK, "add_device.html",
			view.Page{Form: map[string]string{"device_id": deviceID}},
			middleware.Flash{Category: flashDanger, Message: "Device ID already exists"})
	default:
		return err
	}
}

// ToggleLed flips the LED of one of the current user's devices.
func (h *WebHandler) ToggleLed(c echo.Context) error {
	id, _ := middleware.CurrentIdentity(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	on, err := h.Devices.ToggleLed(ctx, id.UserID, c.Param("device_id"))
	if errors.Is(err, repository.ErrNotFound) {
		return h.flashRedirect(c, flashDanger, "Device not found", "/")
	}
	if err != nil {
		return err
	}
	return h.flashRedirect(c, flashSuccess, "LED state changed to "+strings.ToUpper(model.LedLabel(on)), "/")
}
