// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartRankScheduler runs the full rank recompute out-of-band: once a minute
// on a timer, plus immediately whenever a claim requests one. Never invoked
// inline from a request path.
func (s *LeaderboardService) StartRankScheduler(ctx context.Context) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			changed, err := s.RecalculateAllRanks()
			if err != nil {
				log.Printf("[RankScheduler] Recompute error: %v", err)
				return
			}
			if changed > 0 {
				log.Printf("✅ Leaderboard ranks recomputed: %d row(s) changed", changed)
			}
		}),
	)

	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sched.Shutdown()
				return
			case <-s.RecomputeRequests():
				if _, err := s.RecalculateAllRanks(); err != nil {
					log.Printf("[RankScheduler] On-demand recompute error: %v", err)
				}
			}
		}
	}()
}
