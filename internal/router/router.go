// Package router assembles the echo server: global middleware, the error
// handler, the renderer and every route group.
package router

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/greenhouse-led-hub/internal/config"
	"github.com/iliyamo/greenhouse-led-hub/internal/database"
	"github.com/iliyamo/greenhouse-led-hub/internal/handler"
	"github.com/iliyamo/greenhouse-led-hub/internal/logger"
	"github.com/iliyamo/greenhouse-led-hub/internal/middleware"
	"github.com/iliyamo/greenhouse-led-hub/internal/repository"
	"github.com/iliyamo/greenhouse-led-hub/internal/service"
	"github.com/iliyamo/greenhouse-led-hub/internal/view"
)

// Deps are the long-lived components the routes are built from.  Cache may
// be nil.  Checks lists optional integrations polled by /healthz next to
// the database.
type Deps struct {
	Cfg     config.Config
	DB      *database.DB
	Log     *logger.Logger
	Devices *service.DeviceService
	Cache   *middleware.ResponseCache
	Checks  []handler.Check
}

// New returns a fully routed echo instance.
func New(d Deps) (*echo.Echo, error) {
	renderer, err := view.New()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(d.Log)

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.Recover())

	users := repository.NewUserRepo(d.DB)
	sessions := middleware.NewSessionStore(d.Cfg)

	RegisterRoutes(e, append([]handler.Check{{Name: "database", Pinger: d.DB}}, d.Checks...)...)
	RegisterWeb(e, handler.NewWebHandler(d.Cfg, users, d.Devices, sessions), sessions)
	RegisterDeviceAPI(e, handler.NewDeviceAPIHandler(d.Devices, d.Log), d.Cache)
	RegisterClientAPI(e, handler.NewClientAPIHandler(d.Cfg, users, d.Devices), d.Cfg.JWTSecret)
	return e, nil
}

// RegisterRoutes registers routes that need neither a session nor a token.
func RegisterRoutes(e *echo.Echo, checks ...handler.Check) {
	e.GET("/healthz", handler.Health(checks...))
}

// RegisterWeb registers the browser UI.  Every page loads the session so
// flashes show up; all but login and register also require a user.
func RegisterWeb(e *echo.Echo, h *handler.WebHandler, sessions *middleware.SessionStore) {
	session := sessions.Middleware()
	private := []echo.MiddlewareFunc{session, middleware.RequireLogin()}

	e.GET("/register", h.RegisterPage, session)
	e.POST("/register", h.Register, session)
	e.GET("/login", h.LoginPage, session)
	e.POST("/login", h.Login, session)

	e.GET("/logout", h.Logout, private...)
	e.GET("/", h.Index, private...)
	e.GET("/add_device", h.AddDevicePage, private...)
	e.POST("/add_device", h.AddDevice, private...)
	e.GET("/toggle_led/:device_id", h.ToggleLed, private...)
}

// RegisterDeviceAPI registers the unauthenticated device endpoints.  LED
// polling goes through the response cache.
func RegisterDeviceAPI(e *echo.Echo, h *handler.DeviceAPIHandler, cache *middleware.ResponseCache) {
	e.POST("/api/device_data", h.PostDeviceData)
	e.GET("/api/get_led_state", h.GetLedState, cache.Middleware())
}

// RegisterClientAPI registers the bearer-token API under /v1.
func RegisterClientAPI(e *echo.Echo, h *handler.ClientAPIHandler, jwtSecret string) {
	e.POST("/v1/auth/login", h.Login)

	g := e.Group("/v1/devices", middleware.JWTAuth(jwtSecret))
	g.GET("", h.ListDevices)
	g.POST("", h.CreateDevice)
	g.GET("/:device_id", h.GetDevice)
	g.POST("/:device_id/toggle", h.ToggleLed)
}
