package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/anjiri1684/tutor_ledger/services"
)

// ExpiryJob cancels lesson requests that were never answered before their
// start time. Wallet-paid requests are refunded by the lesson service.
type ExpiryJob struct {
	Lessons *services.LessonService
	Log     *slog.Logger
	Now     func() time.Time
}

func (j *ExpiryJob) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

// Run is scheduled by cron.
func (j *ExpiryJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	j.RunContext(ctx)
}

func (j *ExpiryJob) RunContext(ctx context.Context) int {
	j.Log.Info("Running job: ExpireStaleRequests...")

	expired, err := j.Lessons.ExpireStaleRequests(ctx, j.now())
	if err != nil {
		j.Log.Error("Error expiring stale lesson requests", slog.Any("error", err))
	}
	if expired == 0 {
		j.Log.Info("No stale lesson requests found.")
		return 0
	}

	j.Log.Info("Expired stale lesson request(s)", slog.Int("count", expired))
	return expired
}
