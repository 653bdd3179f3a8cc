package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/calder/pennyworth/internal/approval"
	"github.com/calder/pennyworth/internal/proactive"
)

// Sender pushes a message out over a gateway.
type Sender interface {
	Send(chatID, text string) error
}

// UserLister names the users worth sweeping for proactive pushes.
type UserLister interface {
	RecentUsers(since time.Time) ([]string, error)
}

// Scheduler runs the background loop: expiring stale approvals and
// pushing proactive notifications to recently active users.
type Scheduler struct {
	Approvals *approval.Manager
	Proactive *proactive.Engine
	Users     UserLister
	Gateway   Sender
	Interval  time.Duration
	Log       *zap.Logger

	// sent tracks user+kind pairs already pushed, so a standing
	// condition (a low balance stays low) notifies once.
	sent map[string]bool
}

func NewScheduler(approvals *approval.Manager, pro *proactive.Engine, users UserLister, gateway Sender, log *zap.Logger) *Scheduler {
	return &Scheduler{
		Approvals: approvals,
		Proactive: pro,
		Users:     users,
		Gateway:   gateway,
		Interval:  15 * time.Minute,
		Log:       log,
		sent:      make(map[string]bool),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Log.Info("scheduler started", zap.Duration("interval", s.Interval))
	for {
		select {
		case <-ctx.Done():
			s.Log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if n := s.Approvals.CleanupExpired(); n > 0 {
		s.Log.Info("swept expired approvals", zap.Int("count", n))
	}

	if s.Proactive == nil || s.Users == nil || s.Gateway == nil {
		return
	}
	users, err := s.Users.RecentUsers(time.Now().Add(-24 * time.Hour))
	if err != nil {
		s.Log.Warn("failed to list recent users", zap.Error(err))
		return
	}
	for _, userID := range users {
		for _, n := range s.Proactive.Check(ctx, userID) {
			key := userID + "/" + n.Kind
			if s.sent[key] {
				continue
			}
			if err := s.Gateway.Send(userID, n.Message); err != nil {
				s.Log.Warn("failed to push notification",
					zap.String("user", userID), zap.Error(err))
				continue
			}
			s.sent[key] = true
		}
	}
}
