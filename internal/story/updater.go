package story

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/storybot/internal/logger"
	"github.com/hitoshi/storybot/internal/metrics"
	"github.com/hitoshi/storybot/internal/model"
	"github.com/hitoshi/storybot/internal/platform"
	"github.com/hitoshi/storybot/internal/title"
	"github.com/hitoshi/storybot/internal/wordcount"
)

// Updater はストーリースレッドの語数解決からタイトル更新までを編成する。
// 状態遷移は 解決 → カウント → 丸め → リネーム。対象ソースがない場合と
// 丸め済み語数が既存のエンコード値と一致する場合はリネームを発行しない。
type Updater struct {
	resolver *Resolver
	detector SourceDetector
	counter  wordcount.Counter
	editor   platform.ThreadEditor
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewUpdater はUpdaterの新しいインスタンスを生成する。
func NewUpdater(
	history platform.ThreadHistorian,
	editor platform.ThreadEditor,
	detector SourceDetector,
	counter wordcount.Counter,
	collector metrics.MetricsCollector,
	log *slog.Logger,
) *Updater {
	return &Updater{
		resolver: NewResolver(history, detector),
		detector: detector,
		counter:  counter,
		editor:   editor,
		metrics:  collector,
		logger:   log,
	}
}

// Update はスレッドの語数を解決し、必要ならタイトルをリネームする。
// 解決・カウント中の失敗はスコープ付きでログに記録し、呼び出し元に再送出する。
func (u *Updater) Update(ctx context.Context, thread model.Thread) error {
	scope := logger.NewScope(u.logger).Enter(
		fmt.Sprintf("story thread %s (%s)", thread.ID, thread.Name))
	log := scope.Log()

	log.Info("更新を開始します")
	err := u.update(ctx, log, thread)
	if err != nil {
		log.Error("更新に失敗しました", slog.String("error", err.Error()))
		u.metrics.RecordStoryUpdateFailure()
	}
	log.Info("更新が完了しました")
	return err
}

func (u *Updater) update(ctx context.Context, log *slog.Logger, thread model.Thread) error {
	f, err := u.resolver.Resolve(ctx, thread)
	if err != nil {
		return err
	}
	if f == nil {
		// 対象ソースなしはエラーではない
		log.Info("語数カウント対象のファイルがありません")
		u.metrics.RecordStorySkipped()
		return nil
	}

	start := time.Now()
	data, err := u.detector.Fetch(ctx, f)
	if err != nil {
		u.metrics.RecordFetchFailure(string(f.Kind()))
		return err
	}

	raw, err := u.counter.Count(ctx, data, f.ContentType())
	if err != nil {
		return err
	}
	u.metrics.RecordWordcountLatency(time.Since(start))

	return u.setWordcount(ctx, log, thread, wordcount.Round(raw))
}

// setWordcount は丸め済み語数をタイトルに書き込む。
// 既存のエンコード値と一致する場合は何もしない（冪等）。
// アーカイブ済みスレッドは解除してからリネームし、状態を必ず復元する。
func (u *Updater) setWordcount(ctx context.Context, log *slog.Logger, thread model.Thread, count int) error {
	t, existing, err := title.Parse(thread.Name)
	if err != nil {
		return err
	}
	if count == existing {
		log.Info("タイトルの語数表記は最新です", slog.Int("wordcount", count))
		return nil
	}

	name := title.Format(t, count)
	err = platform.WithUnarchived(ctx, u.editor, thread, func() error {
		if renameErr := u.editor.RenameThread(ctx, thread.ID, name); renameErr != nil {
			return model.NewPlatformFailedError("rename thread "+thread.ID, renameErr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("タイトルに語数を設定しました", slog.Int("wordcount", count))
	u.metrics.RecordStoryUpdated()
	return nil
}
