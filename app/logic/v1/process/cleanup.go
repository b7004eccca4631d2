package process

import (
	"context"
	"log/slog"
	"time"

	"github.com/evergreensystems/evergreen-ai/pkg/register"
	"github.com/evergreensystems/evergreen-ai/pkg/safe"
)

const (
	emptyConversationTTL = time.Hour * 24
	cleanupSchedule      = "0 * * * *" // hourly
)

func init() {
	register.RegisterFunc[*Process](ProcessKey{}, func(p *Process) {
		p.Cron().AddFunc(cleanupSchedule, func() {
			safe.Run(func() {
				runCleanup(p)
			})
		})
	})
}

// runCleanup drops conversations created but never used and access tokens
// past their expiry.
func runCleanup(p *Process) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	now := time.Now()

	removed, err := p.Core().Store().ConversationStore().DeleteEmptyCreatedBefore(ctx, now.Add(-emptyConversationTTL).Unix())
	if err != nil {
		slog.Error("failed to clean up empty conversations", slog.String("error", err.Error()))
	} else if removed > 0 {
		slog.Info("cleaned up empty conversations", slog.Int64("removed", removed))
	}

	expired, err := p.Core().Store().AccessTokenStore().DeleteExpired(ctx, now.Unix())
	if err != nil {
		slog.Error("failed to clean up expired access tokens", slog.String("error", err.Error()))
	} else if expired > 0 {
		slog.Info("cleaned up expired access tokens", slog.Int64("removed", expired))
	}
}
