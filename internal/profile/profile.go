// Package profile は著者ごとのプロフィールスレッドの生成と更新を提供する。
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/storybot/internal/logger"
	"github.com/hitoshi/storybot/internal/metrics"
	"github.com/hitoshi/storybot/internal/model"
	"github.com/hitoshi/storybot/internal/platform"
)

// noStoriesContent はストーリーが1つもない著者のプロフィールに掲載する定型文。
const noStoriesContent = "This author hasn't posted any stories yet. " +
	"Links to the stories will appear here if they do."

// contentHeader はストーリー一覧の前に置くヘッダ行。
const contentHeader = "Stories by this author:"

// Platform はプロフィール更新に必要なプラットフォーム操作の集合。
type Platform interface {
	platform.ForumLister
	platform.ThreadHistorian
	platform.ThreadEditor
	platform.MessagePoster
}

// Generator は著者のプロフィールスレッド内のボットメッセージを生成・更新する。
// 対象は著者がプロフィールフォーラムに持つ最古のスレッド。
// 既存のボットメッセージと内容が一致する場合は何もしない（冪等）。
type Generator struct {
	platform       Platform
	profileForumID string
	storyForumID   string
	botUserID      string
	sanitizer      *bluemonday.Policy
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
}

// NewGenerator はGeneratorの新しいインスタンスを生成する。
func NewGenerator(
	p Platform,
	profileForumID, storyForumID, botUserID string,
	collector metrics.MetricsCollector,
	log *slog.Logger,
) *Generator {
	return &Generator{
		platform:       p,
		profileForumID: profileForumID,
		storyForumID:   storyForumID,
		botUserID:      botUserID,
		sanitizer:      bluemonday.StrictPolicy(),
		metrics:        collector,
		logger:         log,
	}
}

// Update は著者のプロフィールスレッド内のボットメッセージを望ましい内容に揃える。
// プロフィールスレッドがない著者は何もしない。
// 失敗はスコープ付きでログに記録し、呼び出し元に再送出する。
func (g *Generator) Update(ctx context.Context, user model.User) error {
	scope := logger.NewScope(g.logger).Enter(
		fmt.Sprintf("profile thread %s (%s)", user.ID, user.DisplayName))
	log := scope.Log()

	err := g.update(ctx, log, user)
	if err != nil {
		log.Error("更新に失敗しました", slog.String("error", err.Error()))
	}
	log.Info("更新が完了しました")
	return err
}

func (g *Generator) update(ctx context.Context, log *slog.Logger, user model.User) error {
	thread, err := g.findProfile(ctx, user.ID)
	if err != nil {
		return err
	}
	if thread == nil {
		log.Info("プロフィールスレッドがないためスキップします")
		return nil
	}

	message, err := g.findBotMessage(ctx, thread.ID)
	if err != nil {
		return err
	}

	content, err := g.generateContent(ctx, user.ID)
	if err != nil {
		return err
	}

	if message == nil {
		if _, err := g.platform.PostMessage(ctx, thread.ID, content); err != nil {
			return model.NewPlatformFailedError("post message to thread "+thread.ID, err)
		}
		log.Info("新規メッセージに一覧を投稿しました")
		g.metrics.RecordProfileUpdated()
		return nil
	}

	if message.Content == content {
		log.Info("既存メッセージは最新の内容です")
		return nil
	}

	err = platform.WithUnarchived(ctx, g.platform, *thread, func() error {
		if editErr := g.platform.EditMessage(ctx, thread.ID, message.ID, content); editErr != nil {
			return model.NewPlatformFailedError("edit message "+message.ID, editErr)
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info("既存メッセージの一覧を更新しました")
	g.metrics.RecordProfileUpdated()
	return nil
}

// findProfile はプロフィールフォーラム内で著者が所有する最古のスレッドを返す。
// 該当がない場合はnilを返す。
func (g *Generator) findProfile(ctx context.Context, userID string) (*model.Thread, error) {
	threads, err := g.platform.ForumThreads(ctx, g.profileForumID)
	if err != nil {
		return nil, model.NewPlatformFailedError("list profile forum threads", err)
	}

	var out *model.Thread
	for i := range threads {
		t := &threads[i]
		if t.OwnerID != userID {
			continue
		}
		if out == nil || t.CreatedAt.Before(out.CreatedAt) {
			out = t
		}
	}
	return out, nil
}

// findBotMessage はスレッド内で最初（最古）のボット自身のメッセージを返す。
// 該当がない場合はnilを返す。
func (g *Generator) findBotMessage(ctx context.Context, threadID string) (*model.Message, error) {
	messages, err := g.platform.ThreadHistory(ctx, threadID)
	if err != nil {
		return nil, model.NewPlatformFailedError("thread history "+threadID, err)
	}
	for i := range messages {
		if messages[i].AuthorID == g.botUserID {
			return &messages[i], nil
		}
	}
	return nil, nil
}

// generateContent は著者のストーリー一覧から望ましいメッセージ本文を生成する。
// ストーリーは作成日時の新しい順に並べ、markdownのリンク箇条書きで出力する。
// ストーリーが1つもない場合は定型文を返す。
func (g *Generator) generateContent(ctx context.Context, userID string) (string, error) {
	threads, err := g.platform.ForumThreads(ctx, g.storyForumID)
	if err != nil {
		return "", model.NewPlatformFailedError("list story forum threads", err)
	}

	var stories []model.Thread
	for _, t := range threads {
		if t.OwnerID == userID {
			stories = append(stories, t)
		}
	}

	if len(stories) == 0 {
		return noStoriesContent, nil
	}

	// 作成日時が不明なスレッドは最も古いものとして扱う
	fallback := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	createdAt := func(t model.Thread) time.Time {
		if t.CreatedAt.IsZero() {
			return fallback
		}
		return t.CreatedAt
	}
	sort.SliceStable(stories, func(i, j int) bool {
		return createdAt(stories[i]).After(createdAt(stories[j]))
	})

	lines := []string{contentHeader, ""}
	for _, s := range stories {
		name := g.sanitizer.Sanitize(s.Name)
		lines = append(lines, fmt.Sprintf("* [%s](%s)", name, s.JumpURL))
	}
	return strings.Join(lines, "\n"), nil
}
