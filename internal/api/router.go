package api

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"user-service/internal/config"
	"user-service/internal/metrics"
)

type JwtCustomClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func rateLimiter(limit int, window time.Duration, message string) echo.MiddlewareFunc {
	limiterConfig := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(float64(limit) / window.Seconds()),
				Burst:     limit,
				ExpiresIn: window,
			}),
		IdentifierExtractor: func(context echo.Context) (string, error) {
			return context.RealIP(), nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return fail(context, http.StatusTooManyRequests, message)
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return fail(context, http.StatusTooManyRequests, message)
		},
	}
	return middleware.RateLimiterWithConfig(limiterConfig)
}

func jwtGuard(secret string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(secret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(JwtCustomClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return fail(c, http.StatusUnauthorized, "Unauthorized")
		},
	})
}

func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := logger.Info()
			if v.Status >= http.StatusInternalServerError {
				event = logger.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}

// NewRouter wires middleware and routes for the user API. A nil collector
// leaves out request metrics and the /metrics endpoint.
func NewRouter(cfg *config.Config, userHandler *UserHandler, collector *metrics.Collector, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(cfg.IsProduction(), logger)

	// Middleware
	if collector != nil {
		e.Use(collector.Middleware())
		e.GET(metrics.Path, collector.Handler())
	}
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.CORS())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success":   true,
			"message":   "Server is running",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	v1 := e.Group("/api/v1", rateLimiter(cfg.RateLimitMaxRequests, cfg.RateLimitWindow, "Too many requests, please try again later"))
	v1.GET("", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "API v1",
			"version": "1.0.0",
			"endpoints": map[string]string{
				"users": "/api/v1/users",
			},
		})
	})

	var guard []echo.MiddlewareFunc
	if cfg.JWTSecret != "" {
		guard = append(guard, jwtGuard(cfg.JWTSecret))
	}
	createLimit := rateLimiter(cfg.CreateLimitMax, cfg.CreateLimitWindow, "Too many creation attempts, please try again later")

	// Routes
	users := v1.Group("/users")
	users.POST("", userHandler.CreateUser, append([]echo.MiddlewareFunc{createLimit}, guard...)...)
	users.GET("", userHandler.GetAllUsers)
	users.GET("/:id", userHandler.GetUser)
	users.PATCH("/:id", userHandler.UpdateUser, guard...)
	users.DELETE("/:id", userHandler.DeleteUser, guard...)

	return e
}
