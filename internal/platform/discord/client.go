// Package discord はdiscordgoを用いたプラットフォームアダプタを提供する。
// コアのplatformインターフェースを実装し、ゲートウェイイベントを
// ディスパッチャのイベントに変換する。
package discord

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/hitoshi/storybot/internal/model"
)

// historyPageSize はメッセージ履歴の1ページあたりの取得件数（APIの上限）。
const historyPageSize = 100

// session はClientが利用するdiscordgoのREST操作の集合。
// テストではフェイク実装に差し替える。
type session interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildThreadsActive(guildID string, options ...discordgo.RequestOption) (*discordgo.ThreadsList, error)
	ThreadsArchived(channelID string, before *time.Time, limit int, options ...discordgo.RequestOption) (*discordgo.ThreadsList, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
}

// Client はplatformインターフェースのdiscordgo実装。
// 書き込み系の呼び出しはレートリミッタで平滑化する。
type Client struct {
	session      session
	httpClient   *http.Client
	limiter      *rate.Limiter
	maxFetchSize int64
	logger       *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
// ratePerSecondは書き込み系API呼び出しの秒間上限。
func NewClient(s session, ratePerSecond int, maxFetchSize int64, log *slog.Logger) *Client {
	if ratePerSecond <= 0 {
		ratePerSecond = 5
	}
	return &Client{
		session:      s,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond),
		maxFetchSize: maxFetchSize,
		logger:       log,
	}
}

// threadFromChannel はdiscordgoのチャンネルをスレッドモデルに変換する。
func threadFromChannel(ch *discordgo.Channel, guildID string) model.Thread {
	if guildID == "" {
		guildID = ch.GuildID
	}
	t := model.Thread{
		ID:       ch.ID,
		Name:     ch.Name,
		OwnerID:  ch.OwnerID,
		ParentID: ch.ParentID,
		JumpURL:  fmt.Sprintf("https://discord.com/channels/%s/%s", guildID, ch.ID),
	}
	if ch.ThreadMetadata != nil {
		t.Archived = ch.ThreadMetadata.Archived
	}
	// スレッドIDはsnowflakeなので作成日時が埋め込まれている
	if ts, err := discordgo.SnowflakeTimestamp(ch.ID); err == nil {
		t.CreatedAt = ts
	}
	return t
}

func messageFromDiscord(m *discordgo.Message) model.Message {
	out := model.Message{
		ID:      m.ID,
		Content: m.Content,
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
	}
	for _, a := range m.Attachments {
		out.Attachments = append(out.Attachments, model.Attachment{
			URL:         a.URL,
			ContentType: a.ContentType,
			Size:        int64(a.Size),
		})
	}
	return out
}

// ThreadHistory はスレッドの全メッセージを古い順で返す。
// APIは新しい順でページを返すため、全ページ取得後に反転する。
func (c *Client) ThreadHistory(ctx context.Context, threadID string) ([]model.Message, error) {
	var all []model.Message
	beforeID := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := c.session.ChannelMessages(threadID, historyPageSize, beforeID, "", "")
		if err != nil {
			return nil, model.NewPlatformFailedError("channel messages "+threadID, err)
		}
		for _, m := range page {
			all = append(all, messageFromDiscord(m))
		}
		if len(page) < historyPageSize {
			break
		}
		beforeID = page[len(page)-1].ID
	}

	// 新しい順 → 古い順
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// ForumThreads はフォーラム内の全スレッド（アーカイブ済みを含む）を返す。
func (c *Client) ForumThreads(ctx context.Context, forumID string) ([]model.Thread, error) {
	forum, err := c.session.Channel(forumID)
	if err != nil {
		return nil, model.NewPlatformFailedError("channel "+forumID, err)
	}

	seen := make(map[string]struct{})
	var out []model.Thread

	// アクティブスレッドはギルド単位でしか取得できないため親IDで絞る
	active, err := c.session.GuildThreadsActive(forum.GuildID)
	if err != nil {
		return nil, model.NewPlatformFailedError("active threads of guild "+forum.GuildID, err)
	}
	for _, ch := range active.Threads {
		if ch.ParentID != forumID {
			continue
		}
		seen[ch.ID] = struct{}{}
		out = append(out, threadFromChannel(ch, forum.GuildID))
	}

	// アーカイブ済みスレッドはアーカイブ日時でページングする
	var before *time.Time
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		archived, err := c.session.ThreadsArchived(forumID, before, historyPageSize)
		if err != nil {
			return nil, model.NewPlatformFailedError("archived threads of "+forumID, err)
		}
		var last *discordgo.Channel
		for _, ch := range archived.Threads {
			last = ch
			if _, ok := seen[ch.ID]; ok {
				continue
			}
			seen[ch.ID] = struct{}{}
			out = append(out, threadFromChannel(ch, forum.GuildID))
		}
		if !archived.HasMore || last == nil || last.ThreadMetadata == nil {
			break
		}
		ts := last.ThreadMetadata.ArchiveTimestamp
		before = &ts
	}

	return out, nil
}

// RenameThread はスレッドの表示名を変更する。
func (c *Client) RenameThread(ctx context.Context, threadID, name string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.session.ChannelEditComplex(threadID, &discordgo.ChannelEdit{Name: name}); err != nil {
		return model.NewPlatformFailedError("rename thread "+threadID, err)
	}
	return nil
}

// SetArchived はスレッドのアーカイブ状態を変更する。
func (c *Client) SetArchived(ctx context.Context, threadID string, archived bool) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.session.ChannelEditComplex(threadID, &discordgo.ChannelEdit{Archived: &archived}); err != nil {
		return model.NewPlatformFailedError("set archived of thread "+threadID, err)
	}
	return nil
}

// PostMessage はスレッドに新規メッセージを投稿し、メッセージIDを返す。
func (c *Client) PostMessage(ctx context.Context, threadID, content string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	m, err := c.session.ChannelMessageSend(threadID, content)
	if err != nil {
		return "", model.NewPlatformFailedError("send message to "+threadID, err)
	}
	return m.ID, nil
}

// EditMessage は既存メッセージの本文を書き換える。
func (c *Client) EditMessage(ctx context.Context, threadID, messageID, content string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.session.ChannelMessageEdit(threadID, messageID, content); err != nil {
		return model.NewPlatformFailedError("edit message "+messageID, err)
	}
	return nil
}

// FetchUser はユーザー情報を取得する。
// 表示名はグローバル名を優先し、なければユーザー名を使う。
func (c *Client) FetchUser(ctx context.Context, userID string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	u, err := c.session.User(userID)
	if err != nil {
		return model.User{}, model.NewPlatformFailedError("user "+userID, err)
	}
	name := u.GlobalName
	if name == "" {
		name = u.Username
	}
	return model.User{ID: u.ID, DisplayName: name}, nil
}

// ReadAttachment は添付ファイルのCDN上のコピーを読み出す。
func (c *Client) ReadAttachment(ctx context.Context, a model.Attachment) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return nil, model.NewFetchFailedError(a.URL, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewFetchFailedError(a.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.NewFetchFailedError(a.URL,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	reader := io.Reader(resp.Body)
	if c.maxFetchSize > 0 {
		reader = io.LimitReader(resp.Body, c.maxFetchSize)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, model.NewFetchFailedError(a.URL, err)
	}
	return data, nil
}
