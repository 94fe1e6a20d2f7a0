package server

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FileHandler serves the node routes. It allows injecting fake handlers
// during tests.
type FileHandler interface {
	// Serve answers GET /{filename}[?forwarded].
	Serve(fiber.Ctx) error
	// Upload answers POST /add.
	Upload(fiber.Ctx) error
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Files      FileHandler
	ListenPort int
	// BodyLimit caps upload size in bytes; zero keeps Fiber's default.
	BodyLimit int
}

const contextKeyRequestID = "_peerhub_request_id"

// UploadPath is the route accepting multipart uploads.
const UploadPath = "/add"

// NewApp builds a Fiber application with request-id middleware, structured
// error handling and the serve/upload routes.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Files == nil {
		return nil, errors.New("file handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		BodyLimit:     opts.BodyLimit,
		ErrorHandler:  errorHandler(opts.Logger),
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.Post(UploadPath, opts.Files.Upload)
	app.Get("/:filename", opts.Files.Serve)

	return app, nil
}

// requestIDMiddleware 为每个请求生成请求 ID 并写入响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// errorHandler renders unhandled errors as {"error": code} and logs them with
// the request id.
func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		code := "internal_error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			switch status {
			case fiber.StatusNotFound:
				code = "route_not_found"
			case fiber.StatusMethodNotAllowed:
				code = "method_not_allowed"
			case fiber.StatusRequestEntityTooLarge:
				code = "upload_too_large"
			default:
				code = "request_failed"
			}
		}

		fields := logrus.Fields{
			"action": "http_error",
			"path":   c.Path(),
			"method": c.Method(),
			"status": status,
		}
		if reqID := RequestID(c); reqID != "" {
			fields["request_id"] = reqID
		}
		if status >= fiber.StatusInternalServerError {
			logger.WithFields(fields).Error(err.Error())
		} else {
			logger.WithFields(fields).Debug(err.Error())
		}

		return c.Status(status).JSON(fiber.Map{"error": code})
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
