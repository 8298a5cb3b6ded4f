package dispatcher

import (
	"context"
	"log/slog"
	"time"
)

// Refresher は一括リフレッシュの実行インターフェース。
type Refresher interface {
	RefreshAll(ctx context.Context) (failures int, started bool)
}

// Scheduler は毎日決まった時刻に一括リフレッシュを起動する。
type Scheduler struct {
	refresher Refresher
	hour      int // 実行時刻（0〜23、UTC）
	logger    *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(refresher Refresher, hour int, log *slog.Logger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		hour:      hour,
		logger:    log,
	}
}

// nextRun はnow以降で最初に実行時刻を迎える時点を返す。
// 当日の実行時刻を過ぎている場合は翌日になる。
func (s *Scheduler) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start は日次スケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("リフレッシュスケジューラを開始しました",
		slog.Int("hour", s.hour),
	)

	for {
		next := s.nextRun(time.Now().UTC())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("リフレッシュスケジューラを停止しました")
			return
		case <-timer.C:
			failures, started := s.refresher.RefreshAll(ctx)
			if !started {
				continue
			}
			if failures > 0 {
				s.logger.Warn("定期リフレッシュで一部のスレッドが失敗しました",
					slog.Int("failures", failures),
				)
			}
		}
	}
}
