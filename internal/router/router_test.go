package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/greenhouse-led-hub/internal/database"
	"github.com/iliyamo/greenhouse-led-hub/internal/handler"
	"github.com/iliyamo/greenhouse-led-hub/internal/logger"
	"github.com/iliyamo/greenhouse-led-hub/internal/middleware"
	"github.com/iliyamo/greenhouse-led-hub/internal/service"
	"github.com/iliyamo/greenhouse-led-hub/internal/testutil"
)

type testClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func newTestServer(t *testing.T) (*httptest.Server, *database.DB) {
	t.Helper()
	srv, db, _ := newServerWith(t, nil)
	return srv, db
}

// newServerWith builds the full router; a non-nil cache fronts LED polling
// and is invalidated by toggles.
func newServerWith(t *testing.T, cache *middleware.ResponseCache) (*httptest.Server, *database.DB, *service.DeviceService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	log := logger.Nop()
	var opts []service.Option
	if cache != nil {
		opts = append(opts, service.WithLedCache(cache))
	}
	devices := service.NewDeviceService(db, log, opts...)
	e, err := New(Deps{
		Cfg:     testutil.GetTestConfig(),
		DB:      db,
		Log:     log,
		Devices: devices,
		Cache:   cache,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, db, devices
}

func newClient(t *testing.T, srv *httptest.Server) *testClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testClient{t: t, base: srv.URL, http: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (c *testClient) do(req *http.Request) (*http.Response, string) {
	c.t.Helper()
	res, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(c.t, err)
	return res, string(body)
}

func (c *testClient) get(path string) (*http.Response, string) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	require.NoError(c.t, err)
	return c.do(req)
}

func (c *testClient) postForm(path string, form url.Values) (*http.Response, string) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *testClient) postJSON(path, body, token string) (*http.Response, string) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.base+path, strings.NewReader(body))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req)
}

func assertRedirect(t *testing.T, res *http.Response, to string) {
	t.Helper()
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, to, res.Header.Get("Location"))
}

func creds(username, password string) url.Values {
	return url.Values{"username": {username}, "password": {password}}
}

func login(t *testing.T, c *testClient, username, password string) {
	t.Helper()
	res, _ := c.postForm("/register", creds(username, password))
	assertRedirect(t, res, "/login")
	res, _ = c.postForm("/login", creds(username, password))
	assertRedirect(t, res, "/")
}

func TestRegisterLoginLogout(t *testing.T) {
	srv, db := newTestServer(t)
	c := newClient(t, srv)

	res, _ := c.get("/")
	assertRedirect(t, res, "/login")

	res, _ = c.postForm("/register", creds("alice", ""))
	assertRedirect(t, res, "/register")
	_, body := c.get("/register")
	assert.Contains(t, body, "Username and password are required")

	res, _ = c.postForm("/register", creds("alice", "pw"))
	assertRedirect(t, res, "/login")
	_, body = c.get("/login")
	assert.Contains(t, body, "Registration successful! Please login.")

	res, _ = c.postForm("/register", creds("alice", "other"))
	assertRedirect(t, res, "/register")
	_, body = c.get("/register")
	assert.Contains(t, body, "Username already exists")
	count, err := db.Execute(context.Background(), "SELECT COUNT(*) AS n FROM users", true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count.Row.Int64("n"))

	res, body = c.postForm("/login", creds("alice", "wrong"))
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Invalid username or password")
	res, _ = c.get("/")
	assertRedirect(t, res, "/login")

	res, _ = c.postForm("/login", creds("alice", "pw"))
	assertRedirect(t, res, "/")
	res, body = c.get("/")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Login successful!")
	assert.Contains(t, body, "No devices registered yet")
	assert.Contains(t, body, "alice")

	res, _ = c.get("/logout")
	assertRedirect(t, res, "/login")
	_, body = c.get("/login")
	assert.Contains(t, body, "You have been logged out")
	res, _ = c.get("/")
	assertRedirect(t, res, "/login")
}

func TestRegisterLongPassword(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newClient(t, srv)

	long := strings.Repeat("x", 80)
	res, _ := c.postForm("/register", creds("alice", long))
	assertRedirect(t, res, "/login")
	res, _ = c.postForm("/login", creds("alice", long))
	assertRedirect(t, res, "/")
}

func TestDeviceLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := newClient(t, srv)
	bob := newClient(t, srv)
	login(t, alice, "alice", "pw")
	login(t, bob, "bob", "pw")

	res, body := alice.postForm("/add_device", url.Values{"device_id": {"  "}})
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Device ID is required")

	res, _ = alice.postForm("/add_device", url.Values{"device_id": {"dev1"}})
	assertRedirect(t, res, "/")
	_, body = alice.get("/")
	assert.Contains(t, body, "Device added successfully!")
	assert.Contains(t, body, "<td>dev1</td>")
	assert.Contains(t, body, "<td>OFF</td>")

	res, body = bob.postForm("/add_device", url.Values{"device_id": {"dev1"}})
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Device ID already exists")

	_, body = alice.get("/api/get_led_state?device_id=dev1")
	assert.JSONEq(t, `{"led_state":"off"}`, body)

	res, _ = alice.get("/toggle_led/dev1")
	assertRedirect(t, res, "/")
	_, body = alice.get("/")
	assert.Contains(t, body, "LED state changed to ON")
	assert.Contains(t, body, "<td>ON</td>")
	_, body = alice.get("/api/get_led_state?device_id=dev1")
	assert.JSONEq(t, `{"led_state":"on"}`, body)

	alice.get("/toggle_led/dev1")
	_, body = alice.get("/")
	assert.Contains(t, body, "LED state changed to OFF")

	res, _ = bob.get("/toggle_led/dev1")
	assertRedirect(t, res, "/")
	_, body = bob.get("/")
	assert.Contains(t, body, "Device not found")
	_, body = alice.get("/api/get_led_state?device_id=dev1")
	assert.JSONEq(t, `{"led_state":"off"}`, body)
}

func TestDeviceAPI(t *testing.T) {
	srv, db := newTestServer(t)
	c := newClient(t, srv)
	user := testutil.CreateTestUser(t, db, "alice", "x")
	testutil.CreateTestDevice(t, db, user, "dev1")
	testutil.CreateTestDevice(t, db, user, " dev2 ")

	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{"unregistered", `{"device_id":"ghost","button_state":true}`, http.StatusNotFound, `{"error":"Device not registered"}`},
		{"missing state", `{"device_id":"dev1"}`, http.StatusBadRequest, `{"error":"Missing device_id or button_state"}`},
		{"null state", `{"device_id":"dev1","button_state":null}`, http.StatusBadRequest, `{"error":"Missing device_id or button_state"}`},
		{"missing id", `{"button_state":true}`, http.StatusBadRequest, `{"error":"Missing device_id or button_state"}`},
		{"empty id", `{"device_id":"","button_state":true}`, http.StatusBadRequest, `{"error":"Missing device_id or button_state"}`},
		{"numeric id", `{"device_id":123,"button_state":true}`, http.StatusBadRequest, `{"error":"Missing device_id or button_state"}`},
		{"padded id", `{"device_id":" dev1 ","button_state":true}`, http.StatusNotFound, `{"error":"Device not registered"}`},
		{"padded registered id", `{"device_id":" dev2 ","button_state":1}`, http.StatusOK, `{"status":"success"}`},
		{"not json", `button=1`, http.StatusBadRequest, `{"error":"Invalid JSON body"}`},
		{"bool", `{"device_id":"dev1","button_state":true}`, http.StatusOK, `{"status":"success"}`},
		{"zero", `{"device_id":"dev1","button_state":0}`, http.StatusOK, `{"status":"success"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, body := c.postJSON("/api/device_data", tt.body, "")
			assert.Equal(t, tt.status, res.StatusCode)
			assert.JSONEq(t, tt.want, body)
		})
	}
	assert.Equal(t, 0, testutil.CountRows(t, db, "device_data", "ghost"))
	assert.Equal(t, 2, testutil.CountRows(t, db, "device_data", "dev1"))
	assert.Equal(t, 1, testutil.CountRows(t, db, "device_data", " dev2 "))

	res, body := c.get("/api/get_led_state")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.JSONEq(t, `{"error":"Missing device_id"}`, body)

	res, body = c.get("/api/get_led_state?device_id=never-registered")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"led_state":"off"}`, body)
}

func TestClientAPI(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newClient(t, srv)
	login(t, c, "alice", "pw")

	res, _ := c.postJSON("/v1/auth/login", `{"username":"alice","password":"bad"}`, "")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, body := c.postJSON("/v1/auth/login", `{"username":"alice","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var auth struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
		Access struct {
			Token string `json:"token"`
		} `json:"access"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &auth))
	assert.Equal(t, "alice", auth.User.Username)
	token := auth.Access.Token
	require.NotEmpty(t, token)

	res, _ = c.get("/v1/devices")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, _ = c.postJSON("/v1/devices", `{"device_id":"dev1"}`, token)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	res, _ = c.postJSON("/v1/devices", `{"device_id":"dev1"}`, token)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	res, _ = c.postJSON("/v1/devices", `{"device_id":" "}`, token)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, body = c.postJSON("/v1/devices/dev1/toggle", ``, token)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"device_id":"dev1","led_state":"on"}`, body)

	res, _ = c.postJSON("/v1/devices/ghost/toggle", ``, token)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	req, err := http.NewRequest(http.MethodGet, c.base+"/v1/devices", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	res, body = c.do(req)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"devices":[{"device_id":"dev1","button_state":false,"led_state":true}]}`, body)

	req, err = http.NewRequest(http.MethodGet, c.base+"/v1/devices/dev1", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	res, body = c.do(req)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var detail struct {
		DeviceID      string  `json:"device_id"`
		LedState      bool    `json:"led_state"`
		LastReportAt  *string `json:"last_report_at"`
		LastCommandAt *string `json:"last_command_at"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &detail))
	assert.Equal(t, "dev1", detail.DeviceID)
	assert.True(t, detail.LedState)
	assert.Nil(t, detail.LastReportAt)
	assert.NotNil(t, detail.LastCommandAt)

	req, err = http.NewRequest(http.MethodGet, c.base+"/v1/devices/ghost", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	res, _ = c.do(req)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	_, body = c.get("/")
	assert.Contains(t, body, "<td>ON</td>")
}

func TestLedPollCache(t *testing.T) {
	rdb, _ := testutil.SetupTestRedis(t)
	cache := middleware.NewResponseCache(testutil.GetTestCacheConfig(), rdb)
	srv, _, _ := newServerWith(t, cache)
	c := newClient(t, srv)
	login(t, c, "alice", "pw")
	res, _ := c.postForm("/add_device", url.Values{"device_id": {"dev1"}})
	assertRedirect(t, res, "/")

	res, body := c.get("/api/get_led_state?device_id=dev1")
	assert.Equal(t, "MISS", res.Header.Get("X-Cache"))
	assert.JSONEq(t, `{"led_state":"off"}`, body)
	res, body = c.get("/api/get_led_state?device_id=dev1")
	assert.Equal(t, "HIT", res.Header.Get("X-Cache"))
	assert.JSONEq(t, `{"led_state":"off"}`, body)

	res, _ = c.get("/toggle_led/dev1")
	assertRedirect(t, res, "/")
	res, body = c.get("/api/get_led_state?device_id=dev1")
	assert.Equal(t, "MISS", res.Header.Get("X-Cache"))
	assert.JSONEq(t, `{"led_state":"on"}`, body)
}

func TestLedPollDuringToggleIsNotCached(t *testing.T) {
	rdb, _ := testutil.SetupTestRedis(t)
	cache := middleware.NewResponseCache(testutil.GetTestCacheConfig(), rdb)
	db := testutil.SetupTestDB(t)
	user := testutil.CreateTestUser(t, db, "alice", "x")
	testutil.CreateTestDevice(t, db, user, "dev1")
	devices := service.NewDeviceService(db, logger.Nop(), service.WithLedCache(cache))
	api := handler.NewDeviceAPIHandler(devices, logger.Nop())

	// The first poll reads the state, then a toggle commits before the
	// response is stored.
	first := true
	e := echo.New()
	e.GET("/api/get_led_state", func(c echo.Context) error {
		err := api.GetLedState(c)
		if first {
			first = false
			_, terr := devices.ToggleLed(c.Request().Context(), user, "dev1")
			require.NoError(t, terr)
		}
		return err
	}, cache.Middleware())

	poll := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/get_led_state?device_id=dev1", nil))
		return rec
	}

	rec := poll()
	assert.JSONEq(t, `{"led_state":"off"}`, rec.Body.String())

	rec = poll()
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"led_state":"on"}`, rec.Body.String())
	rec = poll()
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"led_state":"on"}`, rec.Body.String())
}

func TestHealthAndErrors(t *testing.T) {
	srv, db := newTestServer(t)
	c := newClient(t, srv)

	res, body := c.get("/healthz")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", body)
	assert.NotEmpty(t, res.Header.Get("X-Request-Id"))

	res, body = c.get("/api/nope")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.JSONEq(t, `{"error":"Not Found"}`, body)

	res, body = c.get("/nope")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Contains(t, body, "<!DOCTYPE html>")

	require.NoError(t, db.Close())
	res, body = c.get("/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, "unavailable: database", body)

	res, body = c.get("/api/get_led_state?device_id=dev1")
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.JSONEq(t, `{"error":"Internal server error"}`, body)
}
