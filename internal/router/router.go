package router

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"farmtrace/internal/auth"
	"farmtrace/internal/config"
	"farmtrace/internal/errors"
	"farmtrace/internal/handler"
	"farmtrace/internal/logger"
	"farmtrace/internal/service"
)

// AdminKeyHeader carries the API key of administrative requests.
const AdminKeyHeader = "X-API-Key"

// Handlers groups the HTTP handlers served by the API.
type Handlers struct {
	Auth    *handler.AuthHandler
	User    *handler.UserHandler
	Admin   *handler.AdminHandler
	Batch   *handler.BatchHandler
	Handoff *handler.HandoffHandler
	Health  *handler.HealthHandler
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	log *logger.Logger,
	jwtService *auth.JWTService,
	authService service.AuthService,
	h Handlers,
) {
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(requestLogger(log))

	e.Validator = NewValidator()

	e.GET("/healthz", h.Health.Health)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)
	api.POST("/auth/logout", h.Auth.Logout, optionalJWT(jwtService))
	api.GET("/trace/:id", h.Handoff.GetTrace)
	api.GET("/batches/:id/history", h.Handoff.GetHistory)
	api.GET("/batches/:id/metadata", h.Batch.GetMetadata)

	// Secured routes (require JWT authentication)
	secured := api.Group("", requireJWT(jwtService), rejectRevoked(authService))

	secured.GET("/me", h.User.Me)
	secured.GET("/users", h.User.ListUsers)
	secured.GET("/users/:id", h.User.GetUser)
	secured.POST("/users/:id/export-key", h.User.ExportKey)

	secured.POST("/batches", h.Batch.CreateBatch)
	secured.GET("/batches", h.Batch.ListBatches)
	secured.GET("/batches/:id", h.Batch.GetBatch)
	secured.POST("/batches/:id/handoffs", h.Handoff.RecordHandoff)
	secured.POST("/batches/:id/transit", h.Handoff.MarkInTransit)

	// Operator routes (require the admin API key)
	admin := api.Group("/admin", adminKey(cfg.Admin.APIKey))
	admin.POST("/users/:id/verify", h.Admin.VerifyUser)
	admin.POST("/users/:id/sync-verification", h.Admin.SyncVerification)
}

func jwtConfig(jwtService *auth.JWTService) echojwt.Config {
	return echojwt.Config{
		ContextKey:  handler.ContextKeyUser,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		// Refresh tokens share the signing key and must not authenticate requests.
		ParseTokenFunc: func(c echo.Context, raw string) (interface{}, error) {
			return jwtService.ParseAccessToken(raw)
		},
	}
}

func requireJWT(jwtService *auth.JWTService) echo.MiddlewareFunc {
	cfg := jwtConfig(jwtService)
	cfg.ErrorHandler = func(c echo.Context, err error) error {
		return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
			Error: "missing or invalid token",
			Code:  "UNAUTHORIZED",
		})
	}
	return echojwt.WithConfig(cfg)
}

// optionalJWT parses a bearer token when present and lets the request through otherwise.
func optionalJWT(jwtService *auth.JWTService) echo.MiddlewareFunc {
	cfg := jwtConfig(jwtService)
	cfg.ContinueOnIgnoredError = true
	cfg.ErrorHandler = func(c echo.Context, err error) error {
		return nil
	}
	return echojwt.WithConfig(cfg)
}

// rejectRevoked refuses access tokens revoked by logout.
func rejectRevoked(authService service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := handler.ClaimsFrom(c)
			if !ok || authService.IsRevoked(c.Request().Context(), claims.ID) {
				return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
					Error: "token revoked",
					Code:  "UNAUTHORIZED",
				})
			}
			return next(c)
		}
	}
}

// adminKey guards operator routes. An empty key disables them.
func adminKey(apiKey string) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:" + AdminKeyHeader,
		Validator: func(key string, c echo.Context) (bool, error) {
			if apiKey == "" {
				return false, nil
			}
			return subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1, nil
		},
	})
}

func requestLogger(log *logger.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				log.Warn("HTTP request failed", append(args, "error", v.Error)...)
				return nil
			}
			log.Info("HTTP request", args...)
			return nil
		},
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates the request validator used by the router.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
