// Package rest speaks the query wire protocol over HTTP, serving it
// with Handler and consuming it with Client. Results travel as
// {"results": [...]}, counts as {"count": n, "results": []}, and
// failures as {"code": n, "error": "..."} envelopes.
package rest

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	errnie "github.com/theapemachine/errnie"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry"
)

// Handler serves GET /classes/:collection over a bound Executor.
type Handler struct {
	exec quarry.Executor
	log  *zap.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger attaches a structured logger to the handler.
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(handler *Handler) {
		handler.log = logger
	}
}

// NewHandler returns a Handler dispatching to exec.
func NewHandler(exec quarry.Executor, opts ...HandlerOption) *Handler {
	handler := &Handler{exec: exec}

	for _, opt := range opts {
		opt(handler)
	}

	if handler.log == nil {
		handler.log = zap.NewNop()
	}

	return handler
}

// Register mounts the wire protocol routes on app.
func (handler *Handler) Register(app *fiber.App) {
	app.Get("/classes/:collection", handler.handleFind)
}

/*
handleFind serves one query. The querystring carries the parameter
mapping, the session token rides its header, and count=1 switches the
request from fetching documents to counting them.
*/
func (handler *Handler) handleFind(ctx fiber.Ctx) error {
	requestID := uuid.NewString()
	collection := ctx.Params("collection")

	if collection == quarry.InstallationCollection {
		return handler.failure(ctx, requestID, fiber.StatusForbidden, CodeForbidden,
			quarry.ErrReservedCollection)
	}

	params, count, err := parseParams(ctx.Queries())
	if err != nil {
		return handler.failure(ctx, requestID, fiber.StatusBadRequest, CodeInvalidQuery, err)
	}

	actor := quarry.Actor{SessionToken: ctx.Get(HeaderSessionToken)}

	if count {
		total, err := handler.exec.Count(ctx.Context(), collection, params, actor)
		if err != nil {
			return handler.executorFailure(ctx, requestID, err)
		}

		handler.log.Info("count served",
			zap.String("request_id", requestID),
			zap.String("collection", collection),
			zap.Int64("count", total))

		return ctx.JSON(fiber.Map{"count": total, "results": []quarry.ObjectState{}})
	}

	states, err := handler.exec.Find(ctx.Context(), collection, params, actor)
	if err != nil {
		return handler.executorFailure(ctx, requestID, err)
	}

	handler.log.Info("find served",
		zap.String("request_id", requestID),
		zap.String("collection", collection),
		zap.Int("results", len(states)))

	return ctx.JSON(fiber.Map{"results": states})
}

// executorFailure translates executor errors into wire envelopes.
func (handler *Handler) executorFailure(ctx fiber.Ctx, requestID string, err error) error {
	switch {
	case errors.Is(err, quarry.ErrObjectNotFound):
		return handler.failure(ctx, requestID, fiber.StatusNotFound, CodeObjectNotFound, err)
	case errors.Is(err, quarry.ErrReservedCollection):
		return handler.failure(ctx, requestID, fiber.StatusForbidden, CodeForbidden, err)
	default:
		return handler.failure(ctx, requestID, fiber.StatusInternalServerError, CodeInternal, err)
	}
}

func (handler *Handler) failure(ctx fiber.Ctx, requestID string, status, code int, err error) error {
	errnie.Error(err)

	handler.log.Warn("request failed",
		zap.String("request_id", requestID),
		zap.Int("code", code),
		zap.Error(err))

	return ctx.Status(status).JSON(fiber.Map{"code": code, "error": err.Error()})
}
