// Package story はストーリースレッドの語数解決とタイトル更新を提供する。
package story

import (
	"context"

	"github.com/hitoshi/storybot/internal/model"
	"github.com/hitoshi/storybot/internal/platform"
	"github.com/hitoshi/storybot/internal/source"
)

// SourceDetector は文書ソースの判別と取得のインターフェース。
type SourceDetector interface {
	// FromMessage はメッセージから最初の語数カウント対象ソースを判別する。
	FromMessage(ctx context.Context, m model.Message) (*source.File, error)
	// Fetch はソースの文書バイト列を取得する。
	Fetch(ctx context.Context, f *source.File) ([]byte, error)
}

// Resolver はスレッドから語数カウント対象の文書ソースを解決する。
// メッセージ履歴を古い順に走査し、スレッド所有者のメッセージのみを対象に、
// 最初に見つかった対象ソースを返す。先行メッセージに対象がない場合のみ
// 後続メッセージが評価される。
type Resolver struct {
	history  platform.ThreadHistorian
	detector SourceDetector
}

// NewResolver はResolverの新しいインスタンスを生成する。
func NewResolver(history platform.ThreadHistorian, detector SourceDetector) *Resolver {
	return &Resolver{
		history:  history,
		detector: detector,
	}
}

// Resolve はスレッドから最初の対象ソースを解決する。
// 対象がない場合は(nil, nil)を返す。スターターメッセージが削除されていても
// 全履歴の走査により後続メッセージから解決できる。
func (r *Resolver) Resolve(ctx context.Context, thread model.Thread) (*source.File, error) {
	messages, err := r.history.ThreadHistory(ctx, thread.ID)
	if err != nil {
		return nil, model.NewPlatformFailedError("thread history "+thread.ID, err)
	}

	for _, m := range messages {
		if m.AuthorID != thread.OwnerID {
			continue
		}
		f, err := r.detector.FromMessage(ctx, m)
		if err != nil {
			return nil, err
		}
		if f != nil {
			return f, nil
		}
	}
	return nil, nil
}
