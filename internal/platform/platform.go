// Package platform はチャットプラットフォームSDKとの境界インターフェースを定義する。
// コアはここで定義された値オブジェクトと操作のみを通じてプラットフォームと対話する。
package platform

import (
	"context"
	"log/slog"

	"github.com/hitoshi/storybot/internal/model"
)

// ThreadHistorian はスレッドのメッセージ履歴を取得するインターフェース。
type ThreadHistorian interface {
	// ThreadHistory はスレッドの全メッセージを古い順で返す。
	ThreadHistory(ctx context.Context, threadID string) ([]model.Message, error)
}

// ForumLister はフォーラム内のスレッド一覧を取得するインターフェース。
type ForumLister interface {
	// ForumThreads はフォーラム内の全スレッド（アーカイブ済みを含む）を返す。
	ForumThreads(ctx context.Context, forumID string) ([]model.Thread, error)
}

// ThreadEditor はスレッドの表示名とアーカイブ状態を変更するインターフェース。
type ThreadEditor interface {
	// RenameThread はスレッドの表示名を変更する。
	RenameThread(ctx context.Context, threadID, name string) error
	// SetArchived はスレッドのアーカイブ状態を変更する。
	SetArchived(ctx context.Context, threadID string, archived bool) error
}

// MessagePoster はスレッドへのメッセージ投稿と編集を行うインターフェース。
type MessagePoster interface {
	// PostMessage はスレッドに新規メッセージを投稿し、メッセージIDを返す。
	PostMessage(ctx context.Context, threadID, content string) (string, error)
	// EditMessage は既存メッセージの本文を書き換える。
	EditMessage(ctx context.Context, threadID, messageID, content string) error
}

// UserFetcher はユーザー情報を取得するインターフェース。
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) (model.User, error)
}

// AttachmentReader は添付ファイルの保存コピーを読み出すインターフェース。
type AttachmentReader interface {
	ReadAttachment(ctx context.Context, a model.Attachment) ([]byte, error)
}

// WithUnarchived はアーカイブ済みスレッドを一時的に解除してfnを実行する。
// fnが失敗してもアーカイブ状態は必ず復元される。
// アーカイブされていないスレッドではfnをそのまま実行する。
func WithUnarchived(ctx context.Context, editor ThreadEditor, thread model.Thread, fn func() error) error {
	if !thread.Archived {
		return fn()
	}

	if err := editor.SetArchived(ctx, thread.ID, false); err != nil {
		return model.NewPlatformFailedError("unarchive thread "+thread.ID, err)
	}

	fnErr := fn()

	if err := editor.SetArchived(ctx, thread.ID, true); err != nil {
		if fnErr != nil {
			// fn側のエラーを優先して返すため、復元失敗はログにのみ残す
			slog.Error("スレッドの再アーカイブに失敗しました",
				slog.String("thread_id", thread.ID),
				slog.String("error", err.Error()))
			return fnErr
		}
		return model.NewPlatformFailedError("re-archive thread "+thread.ID, err)
	}
	return fnErr
}
