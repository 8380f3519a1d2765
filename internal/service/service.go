// Package service holds the business rules of the jokes app.
//
//	Handler (HTTP) -> Service (rules, ownership) -> Repository (gorm)
//
// Services take the acting user's id as an explicit argument instead of
// reading it from the request, so every rule is testable with plain calls and
// in-memory fakes. They return apperror values; only the handler layer turns
// those into status codes.
//
// After a write commits, services emit an activity event and bump a
// Prometheus counter. A failed publish is logged and otherwise ignored.
package service

import (
	"context"
	"log/slog"

	"github.com/HarveyThePooka404/jokes/internal/events"
)

func publish(ctx context.Context, pub events.Publisher, logger *slog.Logger, e events.Event) {
	if err := pub.Publish(ctx, e); err != nil {
		logger.Warn("publishing activity event failed",
			slog.String("type", string(e.Type)),
			slog.String("error", err.Error()),
		)
	}
}
