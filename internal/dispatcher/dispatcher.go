// Package dispatcher はプラットフォームイベントの振り分けと一括リフレッシュを提供する。
// イベント種別ごとのハンドラは明示的なテーブルで登録し、処理中のスレッドと
// ユーザーはガードで重複実行を防ぐ。重複した要求はキューに積まず、落とす。
package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/storybot/internal/guard"
	"github.com/hitoshi/storybot/internal/metrics"
	"github.com/hitoshi/storybot/internal/model"
	"github.com/hitoshi/storybot/internal/platform"
)

// EventKind はプラットフォームから届くイベントの種別。
type EventKind string

const (
	// EventThreadCreated はストーリーフォーラムでのスレッド新規作成。
	EventThreadCreated EventKind = "thread_created"
	// EventThreadUpdated はスレッドの属性変更（リネームなど）。
	EventThreadUpdated EventKind = "thread_updated"
	// EventMessageCreated はスレッド内へのメッセージ投稿。
	EventMessageCreated EventKind = "message_created"
	// EventMessageEdited はスレッド内のメッセージ編集。
	EventMessageEdited EventKind = "message_edited"
	// EventMessageDeleted はスレッド内のメッセージ削除。
	EventMessageDeleted EventKind = "message_deleted"
)

// Event はディスパッチャが処理するプラットフォームイベント。
type Event struct {
	Kind   EventKind
	Thread model.Thread
}

// StoryUpdater はストーリースレッドの語数更新インターフェース。
type StoryUpdater interface {
	Update(ctx context.Context, thread model.Thread) error
}

// ProfileUpdater は著者プロフィールの更新インターフェース。
type ProfileUpdater interface {
	Update(ctx context.Context, user model.User) error
}

// Dispatcher はイベントをハンドラテーブルで振り分け、更新処理を編成する。
type Dispatcher struct {
	stories        StoryUpdater
	profiles       ProfileUpdater
	lister         platform.ForumLister
	users          platform.UserFetcher
	storyForumID   string
	profileForumID string

	storyGuard   *guard.Set
	profileGuard *guard.Set
	refreshGuard *guard.Flag

	handlers map[EventKind]func(ctx context.Context, e Event)
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewDispatcher はDispatcherの新しいインスタンスを生成し、ハンドラテーブルを登録する。
func NewDispatcher(
	stories StoryUpdater,
	profiles ProfileUpdater,
	lister platform.ForumLister,
	users platform.UserFetcher,
	storyForumID, profileForumID string,
	collector metrics.MetricsCollector,
	log *slog.Logger,
) *Dispatcher {
	d := &Dispatcher{
		stories:        stories,
		profiles:       profiles,
		lister:         lister,
		users:          users,
		storyForumID:   storyForumID,
		profileForumID: profileForumID,
		storyGuard:     guard.NewSet(),
		profileGuard:   guard.NewSet(),
		refreshGuard:   &guard.Flag{},
		metrics:        collector,
		logger:         log,
	}
	d.handlers = map[EventKind]func(ctx context.Context, e Event){
		EventThreadCreated:  d.handleThreadEvent,
		EventThreadUpdated:  d.handleThreadEvent,
		EventMessageCreated: d.handleThreadEvent,
		EventMessageEdited:  d.handleThreadEvent,
		EventMessageDeleted: d.handleThreadEvent,
	}
	return d
}

// HandleEvent はイベントを登録済みハンドラに振り分ける。
// 未登録の種別と対象フォーラム外のスレッドは無視する。
func (d *Dispatcher) HandleEvent(ctx context.Context, e Event) {
	handler, ok := d.handlers[e.Kind]
	if !ok {
		d.logger.Debug("未登録のイベント種別を無視します",
			slog.String("kind", string(e.Kind)),
		)
		return
	}
	handler(ctx, e)
}

// handleThreadEvent はスレッドの属するフォーラムに応じて処理を振り分ける。
// ストーリーフォーラムは語数更新、プロフィールフォーラムは所有者の
// プロフィール更新として扱う。エラーは処理内でログ済み。
func (d *Dispatcher) handleThreadEvent(ctx context.Context, e Event) {
	switch e.Thread.ParentID {
	case d.storyForumID:
		_ = d.ProcessStory(ctx, e.Thread)
	case d.profileForumID:
		// プロフィールフォーラムで反応するのはスレッド自体のイベントのみ
		if e.Kind == EventThreadCreated || e.Kind == EventThreadUpdated {
			_ = d.ProcessProfile(ctx, e.Thread.OwnerID)
		}
	}
}

// ProcessStory はストーリースレッドの語数更新と著者プロフィールの更新を行う。
// 同一スレッドの処理が既に走っている場合は要求を落としてnilを返す。
func (d *Dispatcher) ProcessStory(ctx context.Context, thread model.Thread) error {
	traceID := uuid.NewString()
	log := d.logger.With(
		slog.String("trace_id", traceID),
		slog.String("thread_id", thread.ID),
	)

	if !d.storyGuard.TryAcquire(thread.ID) {
		log.Info("スレッドは処理中のため要求を落とします")
		return nil
	}
	defer d.storyGuard.Release(thread.ID)

	if err := d.stories.Update(ctx, thread); err != nil {
		log.Error("ストーリースレッドの更新に失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}

	return d.ProcessProfile(ctx, thread.OwnerID)
}

// ProcessProfile は著者のプロフィールスレッドを更新する。
// 同一ユーザーの処理が既に走っている場合は要求を落としてnilを返す。
func (d *Dispatcher) ProcessProfile(ctx context.Context, userID string) error {
	traceID := uuid.NewString()
	log := d.logger.With(
		slog.String("trace_id", traceID),
		slog.String("user_id", userID),
	)

	if !d.profileGuard.TryAcquire(userID) {
		log.Info("ユーザーは処理中のため要求を落とします")
		return nil
	}
	defer d.profileGuard.Release(userID)

	user, err := d.users.FetchUser(ctx, userID)
	if err != nil {
		log.Error("ユーザー情報の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return model.NewPlatformFailedError("fetch user "+userID, err)
	}

	if err := d.profiles.Update(ctx, user); err != nil {
		log.Error("プロフィールの更新に失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// RefreshAll はストーリーフォーラムの全スレッドを順に更新する。
// 既にリフレッシュが実行中の場合はstarted=falseで即座に戻る。
// 個別スレッドの失敗はカウントして継続し、サイクル全体は止めない。
func (d *Dispatcher) RefreshAll(ctx context.Context) (failures int, started bool) {
	if !d.refreshGuard.TryAcquire() {
		d.logger.Info("リフレッシュは既に実行中のため要求を落とします")
		return 0, false
	}
	defer d.refreshGuard.Release()

	traceID := uuid.NewString()
	log := d.logger.With(slog.String("trace_id", traceID))
	start := time.Now()

	threads, err := d.lister.ForumThreads(ctx, d.storyForumID)
	if err != nil {
		log.Error("ストーリーフォーラムの一覧取得に失敗しました",
			slog.String("error", err.Error()),
		)
		d.metrics.RecordRefreshCycle(1)
		return 1, true
	}

	log.Info("リフレッシュサイクルを開始します",
		slog.Int("thread_count", len(threads)),
	)

	for _, thread := range threads {
		if ctx.Err() != nil {
			log.Info("リフレッシュサイクルを中断しました")
			break
		}
		if err := d.ProcessStory(ctx, thread); err != nil {
			failures++
		}
	}

	d.metrics.RecordRefreshCycle(failures)
	log.Info("リフレッシュサイクルが完了しました",
		slog.Int("thread_count", len(threads)),
		slog.Int("failures", failures),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return failures, true
}
