package bot

import (
	"context"
	"strconv"

	"ntrli-bot/internal/middleware"

	"go.uber.org/zap"
)

type replyFunc func(ctx context.Context, userID int64, text string)

// LiveOnly drops every command while live reports false
func LiveOnly(live func() bool) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, cmd *Command) error {
			if !live() {
				return nil
			}
			return next(ctx, cmd)
		}
	}
}

// AdminOnly answers non-admin senders with a refusal
func AdminOnly(isAdmin func(int64) bool, reply replyFunc) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, cmd *Command) error {
			if !isAdmin(cmd.SenderID) {
				reply(ctx, cmd.SenderID, "🔒 Admin only. Stay added to the channel.")
				return nil
			}
			return next(ctx, cmd)
		}
	}
}

// RateLimited limits commands per sender. Limiter failures let the
// command through.
func RateLimited(limiter middleware.Limiter, reply replyFunc, logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, cmd *Command) error {
			key := "sender:" + strconv.FormatInt(cmd.SenderID, 10)

			decision, err := limiter.Allow(ctx, key)
			if err != nil {
				logger.Error("Rate limit check failed", zap.Error(err), zap.String("key", key))
				return next(ctx, cmd)
			}
			if !decision.Allowed {
				logger.Warn("Sender rate limited",
					zap.Int64("sender_id", cmd.SenderID),
					zap.Int("limit", decision.Limit),
				)
				reply(ctx, cmd.SenderID, "⏳ Slow down. Prøv igen om lidt.")
				return nil
			}
			return next(ctx, cmd)
		}
	}
}
