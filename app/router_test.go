package app

import (
	"bitwise74/waitlist-api/config"
	"bitwise74/waitlist-api/internal"
	"bitwise74/waitlist-api/internal/model"
	"bitwise74/waitlist-api/internal/service"
	"bitwise74/waitlist-api/internal/store"
	"bitwise74/waitlist-api/internal/testutil"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		LogLevel: "info",
		Host: config.Host{
			Port:        8080,
			PublicURL:   "https://waitlist.example.com",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Database:    config.Database{Driver: "sqlite"},
		Leaderboard: config.Leaderboard{PageSize: 100},
	}
}

type testServer struct {
	router *gin.Engine
	deps   *internal.Deps
}

func newServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	database := testutil.NewDB(t)
	d := &internal.Deps{
		DB:       database,
		Config:   cfg,
		Waitlist: service.NewWaitlist(store.NewUsers(database), service.WithClock(testutil.NewClock().Now)),
	}

	router, err := NewRouter(d)
	require.NoError(t, err)

	return &testServer{router: router, deps: d}
}

func (s *testServer) do(method, target string, body io.Reader, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	return w
}

func (s *testServer) send(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	return s.do(method, target, strings.NewReader(body), headers...)
}

type signupResponse struct {
	Success      bool       `json:"success"`
	User         model.User `json:"user"`
	ReferralLink string     `json:"referralLink"`
}

func (s *testServer) signup(t *testing.T, email, name, ref string) signupResponse {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"email": email, "name": name, "referredByCode": ref})

	w := s.send(http.MethodPost, "/api/signup", string(body))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res signupResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))

	return res
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())

	return out
}

func TestHeartbeat(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodHead, "/api/heartbeat", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	w = s.do(http.MethodGet, "/api/heartbeat", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSignupEndpoint(t *testing.T) {
	s := newServer(t)

	res := s.signup(t, "Alice@Example.com", "Alice", "")

	assert.True(t, res.Success)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.Equal(t, 100, res.User.Rank)
	assert.Equal(t, "https://waitlist.example.com/?ref="+res.User.ReferralCode, res.ReferralLink)

	w := s.send(http.MethodPost, "/api/signup", `{"email":"alice@example.com","name":"Alice again"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "This email is already on the waitlist", decode(t, w)["error"])

	w = s.send(http.MethodPost, "/api/signup", `{"email":"nope","name":"Bob"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid email address provided", decode(t, w)["error"])

	w = s.send(http.MethodPost, "/api/signup", `{"email":"bob@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.send(http.MethodPost, "/api/signup", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", decode(t, w)["error"])
	assert.NotEmpty(t, decode(t, w)["requestID"])
}

func TestSignupWithReferral(t *testing.T) {
	s := newServer(t)

	alice := s.signup(t, "alice@example.com", "Alice", "")
	bob := s.signup(t, "bob@example.com", "Bob", alice.User.ReferralCode)

	require.NotNil(t, bob.User.ReferredByCode)
	assert.Equal(t, alice.User.ReferralCode, *bob.User.ReferredByCode)

	w := s.do(http.MethodGet, "/api/user?id="+alice.User.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		User model.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.User.ReferralCount)
	assert.Equal(t, 50, res.User.Rank)
}

func TestStatsAndLeaderboard(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"totalUsers":0}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/leaderboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"leaderboard":[]}`, w.Body.String())

	alice := s.signup(t, "alice@example.com", "Alice", "")
	s.signup(t, "bob@example.com", "Bob", "")
	s.signup(t, "carol@example.com", "Carol", alice.User.ReferralCode)

	w = s.do(http.MethodGet, "/api/stats", nil)
	assert.JSONEq(t, `{"totalUsers":3}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/leaderboard?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Leaderboard []model.LeaderboardEntry `json:"leaderboard"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Leaderboard, 2)
	assert.Equal(t, "Alice", res.Leaderboard[0].Name)
	assert.Equal(t, 50, res.Leaderboard[0].Rank)
	assert.Equal(t, "Bob", res.Leaderboard[1].Name)

	for _, bad := range []string{"abc", "0", "-3"} {
		w = s.do(http.MethodGet, "/api/leaderboard?limit="+bad, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestLeaderboardPageSize(t *testing.T) {
	s := newServer(t, func(c *config.Config) { c.Leaderboard.PageSize = 2 })

	for _, email := range []string{"alice@example.com", "bob@example.com", "carol@example.com"} {
		s.signup(t, email, "User", "")
	}

	for _, target := range []string{"/api/leaderboard", "/api/leaderboard?limit=50"} {
		w := s.do(http.MethodGet, target, nil)
		require.Equal(t, http.StatusOK, w.Code, target)

		var res struct {
			Leaderboard []model.LeaderboardEntry `json:"leaderboard"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Len(t, res.Leaderboard, 2, target)
	}
}

func TestStatsAreCached(t *testing.T) {
	s := newServer(t, func(c *config.Config) { c.Cache.TTL = time.Minute })

	w := s.do(http.MethodGet, "/api/stats", nil)
	assert.JSONEq(t, `{"totalUsers":0}`, w.Body.String())

	s.signup(t, "alice@example.com", "Alice", "")

	w = s.do(http.MethodGet, "/api/stats", nil)
	assert.JSONEq(t, `{"totalUsers":0}`, w.Body.String())
}

func TestUserEndpoints(t *testing.T) {
	s := newServer(t)

	alice := s.signup(t, "alice@example.com", "Alice", "")

	w := s.do(http.MethodGet, "/api/user?email="+url.QueryEscape("ALICE@example.com"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), alice.User.ID)

	w = s.do(http.MethodGet, "/api/user", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/user?id=missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", decode(t, w)["error"])

	w = s.do(http.MethodGet, "/api/user/position?code="+alice.User.ReferralCode, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"rank":100,"referralCount":0,"ahead":0}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/user/position", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/user/position?code=ZZZZZZZZ", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateProfileEndpoint(t *testing.T) {
	s := newServer(t)
	body := `{"userId":"8d1f3c57-6a0e-4c4b-9f55-2c8a4f1d2e90","email":"alice@example.com","name":"Alice"}`

	w := s.send(http.MethodPost, "/api/create-profile", body)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode(t, w)
	assert.Equal(t, true, res["success"])

	w = s.send(http.MethodPost, "/api/create-profile", body)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode(t, w)
	assert.NotContains(t, res, "success")
	assert.Equal(t, "8d1f3c57-6a0e-4c4b-9f55-2c8a4f1d2e90", res["user"].(map[string]any)["id"])

	w = s.send(http.MethodPost, "/api/create-profile", `{"userId":"x","email":"bob@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required fields", decode(t, w)["error"])

	w = s.send(http.MethodPost, "/api/create-profile", `{"userId":"other","email":"alice@example.com","name":"Alice"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateProfileRequiresMatchingToken(t *testing.T) {
	const secret = "supabase-secret"
	s := newServer(t, func(c *config.Config) { c.Security.JWTSecret = secret })

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	w := s.send(http.MethodPost, "/api/create-profile", `{"userId":"user-1","email":"alice@example.com","name":"Alice"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.send(http.MethodPost, "/api/create-profile", `{"userId":"user-2","email":"bob@example.com","name":"Bob"}`,
		"Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.send(http.MethodPost, "/api/create-profile", `{"userId":"user-1","email":"alice@example.com","name":"Alice"}`,
		"Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.send(http.MethodPost, "/api/create-profile", `{"userId":"  user-1 ","email":"alice@example.com","name":"Alice"}`,
		"Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestUnknownRoutes(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, "/api/nothing-here", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not found", decode(t, w)["error"])

	w = s.do(http.MethodGet, "/api/signup", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestDatabaseFailureIsHidden(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	database, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	require.NoError(t, err)

	router, err := NewRouter(&internal.Deps{
		DB:       database,
		Config:   testConfig(),
		Waitlist: service.NewWaitlist(store.NewUsers(database)),
	})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).WillReturnError(io.ErrUnexpectedEOF)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decode(t, w)["error"])
	assert.NotContains(t, w.Body.String(), "EOF")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPages(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, "/?ref=ABCD1234", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Get early access")
	assert.Contains(t, w.Body.String(), `value="ABCD1234"`)

	w = s.do(http.MethodGet, "/signup?ref=ABCD1234", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "You were invited with code")

	form := url.Values{"name": {"Alice"}, "email": {"alice@example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusSeeOther, w.Code)
	location := w.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "/dashboard?id="), location)

	w = s.do(http.MethodGet, location, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome, Alice")
	assert.Contains(t, w.Body.String(), "#100")

	req = httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "This email is already on the waitlist")

	w = s.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)

	w = s.do(http.MethodGet, "/dashboard?id=missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFormSignupRequiresTurnstile(t *testing.T) {
	s := newServer(t, func(c *config.Config) {
		c.Turnstile.Enabled = true
		c.Turnstile.SecretToken = "shh"
		c.Turnstile.SiteKey = "site-key"
	})

	w := s.do(http.MethodGet, "/signup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `data-sitekey="site-key"`)

	form := url.Values{"name": {"Alice"}, "email": {"alice@example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.send(http.MethodPost, "/api/signup", `{"email":"alice@example.com","name":"Alice"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	require.NoError(t, s.deps.DB.Model(&model.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)

	s.do(http.MethodGet, "/api/heartbeat", nil)

	w := s.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `waitlist_http_requests_total{method="GET",path="/api/heartbeat",status="200"}`)
}
