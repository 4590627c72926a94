package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-service/internal/config"
	"user-service/internal/metrics"
	"user-service/internal/repository"
	"user-service/internal/service"
	"user-service/internal/testutil"
)

func init() {
	service.SetLogger(zerolog.Nop())
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

type userBody struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *echo.Echo {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}
	svc := service.NewUserService(
		repository.NewUserRepository(testutil.NewStore(t)),
		service.WithPageSize(cfg.DefaultPageSize, cfg.MaxPageSize),
	)
	return NewRouter(cfg, NewUserHandler(svc), nil, zerolog.Nop())
}

func do(t *testing.T, e *echo.Echo, method, target, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeUser(t *testing.T, env envelope) userBody {
	t.Helper()
	var u userBody
	require.NoError(t, json.Unmarshal(env.Data, &u))
	return u
}

func TestHealth(t *testing.T) {
	e := newTestServer(t)

	rec, env := do(t, e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "Server is running", env.Message)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestAPIRoot(t *testing.T) {
	e := newTestServer(t)

	rec, env := do(t, e, http.MethodGet, "/api/v1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "API v1", env.Message)
	assert.Contains(t, rec.Body.String(), `"users":"/api/v1/users"`)
}

func TestUnknownRoute(t *testing.T) {
	e := newTestServer(t)

	for _, target := range []string{"/nope", "/api/v1/widgets"} {
		rec, env := do(t, e, http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.False(t, env.Success)
		assert.Equal(t, "Route "+target+" not found", env.Error)
	}
}

func TestCreateUser(t *testing.T) {
	e := newTestServer(t)

	rec, env := do(t, e, http.MethodPost, "/api/v1/users", `{"name":"  Ada Lovelace ","email":"Ada@Example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
	assert.Equal(t, "User created successfully", env.Message)

	u := decodeUser(t, env)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "Ada Lovelace", u.Name)
	assert.Equal(t, "ada@example.com", u.Email)
}

func TestCreateUserConflict(t *testing.T) {
	e := newTestServer(t)

	rec, _ := do(t, e, http.MethodPost, "/api/v1/users", `{"name":"Ada","email":"ada@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := do(t, e, http.MethodPost, "/api/v1/users", `{"name":"Ada Two","email":"ada@example.com"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Email 'ada@example.com' is already registered", env.Error)
}

func TestCreateUserValidation(t *testing.T) {
	e := newTestServer(t)

	rec, env := do(t, e, http.MethodPost, "/api/v1/users", `{"name":" A ","email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Validation failed", env.Error)
	require.Len(t, env.Errors, 2)
	assert.Equal(t, "name", env.Errors[0].Field)
	assert.Equal(t, "Name must be between 2 and 100 characters", env.Errors[0].Message)
	assert.Equal(t, "email", env.Errors[1].Field)
	assert.Equal(t, "Must be a valid email address", env.Errors[1].Message)

	rec, env = do(t, e, http.MethodPost, "/api/v1/users", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request payload", env.Error)

	long := strings.Repeat("x", 101)
	rec, _ = do(t, e, http.MethodPost, "/api/v1/users", `{"name":"`+long+`","email":"x@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUser(t *testing.T) {
	e := newTestServer(t)
	do(t, e, http.MethodPost, "/api/v1/users", `{"name":"Ada","email":"ada@example.com"}`)

	rec, env := do(t, e, http.MethodGet, "/api/v1/users/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada@example.com", decodeUser(t, env).Email)

	rec, env = do(t, e, http.MethodGet, "/api/v1/users/2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User with ID 2 not found", env.Error)

	for _, bad := range []string{"0", "-1", "abc"} {
		rec, env = do(t, e, http.MethodGet, "/api/v1/users/"+bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
		require.Len(t, env.Errors, 1)
		assert.Equal(t, "User ID must be a positive integer", env.Errors[0].Message)
	}
}

func TestListUsers(t *testing.T) {
	e := newTestServer(t)
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		do(t, e, http.MethodPost, "/api/v1/users", `{"name":"User","email":"`+email+`"}`)
	}

	rec, env := do(t, e, http.MethodGet, "/api/v1/users?limit=2&offset=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Users  []userBody `json:"users"`
		Count  int        `json:"count"`
		Total  int        `json:"total"`
		Limit  int        `json:"limit"`
		Offset int        `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 2, page.Count)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 1, page.Offset)
	assert.Equal(t, "b@example.com", page.Users[0].Email)

	rec, env = do(t, e, http.MethodGet, "/api/v1/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 50, page.Limit)
	assert.Equal(t, 3, page.Count)

	rec, _ = do(t, e, http.MethodGet, "/api/v1/users?limit=many", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateUser(t *testing.T) {
	e := newTestServer(t)
	do(t, e, http.MethodPost, "/api/v1/users", `{"name":"Ada","email":"ada@example.com"}`)
	do(t, e, http.MethodPost, "/api/v1/users", `{"name":"Grace","email":"grace@example.com"}`)

	rec, env := do(t, e, http.MethodPatch, "/api/v1/users/1", `{"name":"Countess","id":99,"role":"admin"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "User updated successfully", env.Message)
	u := decodeUser(t, env)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "Countess", u.Name)

	rec, env = do(t, e, http.MethodPatch, "/api/v1/users/1", `{"role":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No valid fields to update", env.Error)

	rec, env = do(t, e, http.MethodPatch, "/api/v1/users/2", `{"email":"ada@example.com"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Email 'ada@example.com' is already registered", env.Error)

	rec, _ = do(t, e, http.MethodPatch, "/api/v1/users/1", `{"email":"broken"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, e, http.MethodPatch, "/api/v1/users/9", `{"name":"Nobody"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteUser(t *testing.T) {
	e := newTestServer(t)
	do(t, e, http.MethodPost, "/api/v1/users", `{"name":"Ada","email":"ada@example.com"}`)

	rec, env := do(t, e, http.MethodDelete, "/api/v1/users/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "User deleted successfully", env.Message)
	assert.Empty(t, env.Data)

	rec, _ = do(t, e, http.MethodDelete, "/api/v1/users/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRateLimit(t *testing.T) {
	e := newTestServer(t, func(c *config.Config) { c.CreateLimitMax = 2 })

	for i, email := range []string{"a@example.com", "b@example.com"} {
		rec, _ := do(t, e, http.MethodPost, "/api/v1/users", `{"name":"User","email":"`+email+`"}`)
		require.Equal(t, http.StatusCreated, rec.Code, i)
	}

	rec, env := do(t, e, http.MethodPost, "/api/v1/users", `{"name":"User","email":"c@example.com"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many creation attempts, please try again later", env.Error)

	rec, _ = do(t, e, http.MethodGet, "/api/v1/users", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRateLimit(t *testing.T) {
	e := newTestServer(t, func(c *config.Config) {
		c.RateLimitMaxRequests = 3
		c.RateLimitWindow = time.Hour
	})

	for i := 0; i < 3; i++ {
		rec, _ := do(t, e, http.MethodGet, "/api/v1/users", "")
		require.Equal(t, http.StatusOK, rec.Code, i)
	}
	rec, env := do(t, e, http.MethodGet, "/api/v1/users", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests, please try again later", env.Error)

	rec, _ = do(t, e, http.MethodGet, "/api/v1/users", "", echo.HeaderXRealIP, "203.0.113.9")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func signToken(t *testing.T, secret string) string {
	t.Helper()
	claims := &JwtCustomClaims{
		Name:  "Admin",
		Email: "admin@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestJWTGuard(t *testing.T) {
	const secret = "test-secret"
	e := newTestServer(t, func(c *config.Config) { c.JWTSecret = secret })
	body := `{"name":"Ada","email":"ada@example.com"}`

	rec, env := do(t, e, http.MethodPost, "/api/v1/users", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", env.Error)

	rec, _ = do(t, e, http.MethodPost, "/api/v1/users", body, echo.HeaderAuthorization, "Bearer "+signToken(t, "wrong"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, e, http.MethodPost, "/api/v1/users", body, echo.HeaderAuthorization, "Bearer "+signToken(t, secret))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/api/v1/users/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, e, http.MethodDelete, "/api/v1/users/1", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestErrorHandlerMasksInProduction(t *testing.T) {
	for _, production := range []bool{false, true} {
		e := echo.New()
		e.HTTPErrorHandler = NewHTTPErrorHandler(production, zerolog.Nop())
		e.GET("/boom", func(c echo.Context) error {
			return errors.New("disk on fire")
		})

		rec, env := do(t, e, http.MethodGet, "/boom", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		if production {
			assert.Equal(t, "Internal server error", env.Error)
		} else {
			assert.Equal(t, "disk on fire", env.Error)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	svc := service.NewUserService(repository.NewUserRepository(testutil.NewStore(t)))
	e := NewRouter(config.Default(), NewUserHandler(svc), metrics.NewCollector("api_test"), zerolog.Nop())

	do(t, e, http.MethodGet, "/api/v1/users/5", "")

	req := httptest.NewRequest(http.MethodGet, metrics.Path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `api_test_http_requests_total{method="GET",route="/api/v1/users/:id",status_code="404"} 1`)
}
