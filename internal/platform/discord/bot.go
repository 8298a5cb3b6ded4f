package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/hitoshi/storybot/internal/dispatcher"
	"github.com/hitoshi/storybot/internal/model"
)

// 埋め込みメッセージの色コード
const (
	embedColorSuccess = 0x2ecc71
	embedColorWarning = 0xf1c40f
	embedColorError   = 0xe74c3c
)

// EventSink はゲートウェイイベントの送り先。
type EventSink interface {
	HandleEvent(ctx context.Context, e dispatcher.Event)
	RefreshAll(ctx context.Context) (failures int, started bool)
}

// Bot はDiscordゲートウェイに接続し、イベントをディスパッチャに変換して渡す。
// スラッシュコマンド /stories refresh で一括リフレッシュを起動できる。
type Bot struct {
	session        *discordgo.Session
	client         *Client
	storyForumID   string
	profileForumID string
	logger         *slog.Logger

	sinkMu sync.RWMutex
	sink   EventSink

	ready   atomic.Bool
	baseCtx context.Context
}

// NewBot はBotの新しいインスタンスを生成する。
// 接続はStartが行う。イベントの送り先は接続後にSetSinkで設定する。
func NewBot(
	token string,
	storyForumID, profileForumID string,
	ratePerSecond int,
	maxFetchSize int64,
	log *slog.Logger,
) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, model.NewPlatformFailedError("create session", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	return &Bot{
		session:        session,
		client:         NewClient(session, ratePerSecond, maxFetchSize, log),
		storyForumID:   storyForumID,
		profileForumID: profileForumID,
		logger:         log,
	}, nil
}

// SetSink はイベントの送り先を設定する。
// 設定されるまでに届いたイベントは落とされる。
func (b *Bot) SetSink(sink EventSink) {
	b.sinkMu.Lock()
	defer b.sinkMu.Unlock()
	b.sink = sink
}

func (b *Bot) eventSink() EventSink {
	b.sinkMu.RLock()
	defer b.sinkMu.RUnlock()
	return b.sink
}

// Client はplatformインターフェースを実装するRESTクライアントを返す。
func (b *Bot) Client() *Client {
	return b.client
}

// Healthy はゲートウェイ接続が確立済みの場合にtrueを返す。
func (b *Bot) Healthy() bool {
	return b.ready.Load()
}

// Start はゲートウェイに接続し、起動時検証とコマンド登録を行う。
// ctxはイベントハンドラの基底コンテキストとして保持される。
func (b *Bot) Start(ctx context.Context) error {
	b.baseCtx = ctx

	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onThreadCreate)
	b.session.AddHandler(b.onThreadUpdate)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onMessageUpdate)
	b.session.AddHandler(b.onMessageDelete)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return model.NewPlatformFailedError("open gateway", err)
	}

	if err := b.validate(); err != nil {
		_ = b.session.Close()
		return err
	}

	if err := b.registerCommands(); err != nil {
		_ = b.session.Close()
		return err
	}

	b.logger.Info("Discordゲートウェイに接続しました",
		slog.String("bot_user", b.session.State.User.ID),
		slog.String("story_forum", b.storyForumID),
		slog.String("profile_forum", b.profileForumID),
	)
	return nil
}

// Close はゲートウェイ接続を閉じる。
func (b *Bot) Close() error {
	b.ready.Store(false)
	return b.session.Close()
}

// BotUserID はログイン中のボット自身のユーザーIDを返す。
func (b *Bot) BotUserID() string {
	if b.session.State == nil || b.session.State.User == nil {
		return ""
	}
	return b.session.State.User.ID
}

// validate はログイン状態と両フォーラムのチャンネル種別を検証する。
func (b *Bot) validate() error {
	if b.session.State == nil || b.session.State.User == nil {
		return model.NewNotLoggedInError()
	}
	for _, forumID := range []string{b.storyForumID, b.profileForumID} {
		ch, err := b.session.Channel(forumID)
		if err != nil {
			return model.NewPlatformFailedError("channel "+forumID, err)
		}
		if ch.Type != discordgo.ChannelTypeGuildForum {
			return model.NewNotForumChannelError(forumID)
		}
	}
	return nil
}

// registerCommands はスラッシュコマンド /stories refresh を登録する。
func (b *Bot) registerCommands() error {
	cmd := &discordgo.ApplicationCommand{
		Name:        "stories",
		Description: "Story forum maintenance commands",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "refresh",
				Description: "Recount the words of every story thread",
			},
		},
	}
	if _, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, "", cmd); err != nil {
		return model.NewPlatformFailedError("register command "+cmd.Name, err)
	}
	return nil
}

func (b *Bot) onReady(_ *discordgo.Session, _ *discordgo.Ready) {
	b.ready.Store(true)
	b.logger.Info("ゲートウェイの準備が完了しました")
}

func (b *Bot) onThreadCreate(_ *discordgo.Session, t *discordgo.ThreadCreate) {
	b.dispatchThread(dispatcher.EventThreadCreated, t.Channel)
}

func (b *Bot) onThreadUpdate(_ *discordgo.Session, t *discordgo.ThreadUpdate) {
	b.dispatchThread(dispatcher.EventThreadUpdated, t.Channel)
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// 自分の投稿によるループを防ぐ
	if m.Author != nil && m.Author.ID == b.BotUserID() {
		return
	}
	ch, ok := b.storyThread(s, m.ChannelID)
	if !ok {
		return
	}
	b.dispatchEvent(dispatcher.EventMessageCreated, ch)
}

func (b *Bot) onMessageUpdate(s *discordgo.Session, m *discordgo.MessageUpdate) {
	if m.Author != nil && m.Author.ID == b.BotUserID() {
		return
	}
	ch, ok := b.storyThread(s, m.ChannelID)
	if !ok {
		return
	}
	// 所有者以外のメッセージの編集はソース解決の結果を変えない
	if m.Author == nil || m.Author.ID != ch.OwnerID {
		return
	}
	b.dispatchEvent(dispatcher.EventMessageEdited, ch)
}

func (b *Bot) onMessageDelete(s *discordgo.Session, m *discordgo.MessageDelete) {
	ch, ok := b.storyThread(s, m.ChannelID)
	if !ok {
		return
	}
	b.dispatchEvent(dispatcher.EventMessageDeleted, ch)
}

// dispatchThread はスレッドイベントをディスパッチャに渡す。
// ストーリーフォーラムとプロフィールフォーラム以外のスレッドはここで落とす。
func (b *Bot) dispatchThread(kind dispatcher.EventKind, ch *discordgo.Channel) {
	if ch == nil {
		return
	}
	if ch.ParentID != b.storyForumID && ch.ParentID != b.profileForumID {
		return
	}
	b.dispatchEvent(kind, ch)
}

// storyThread はメッセージイベントの属するストーリースレッドを解決する。
// スレッド以外のチャンネルとストーリーフォーラム外のスレッドは(nil, false)を返す。
func (b *Bot) storyThread(s *discordgo.Session, channelID string) (*discordgo.Channel, bool) {
	ch, err := s.State.Channel(channelID)
	if err != nil {
		ch, err = s.Channel(channelID)
		if err != nil {
			b.logger.Warn("メッセージのチャンネル解決に失敗しました",
				slog.String("channel_id", channelID),
				slog.String("error", err.Error()),
			)
			return nil, false
		}
	}
	if !ch.IsThread() || ch.ParentID != b.storyForumID {
		return nil, false
	}
	return ch, true
}

// dispatchEvent はスレッドをモデルに変換してディスパッチャに渡す。
func (b *Bot) dispatchEvent(kind dispatcher.EventKind, ch *discordgo.Channel) {
	sink := b.eventSink()
	if sink == nil {
		return
	}
	thread := threadFromChannel(ch, ch.GuildID)
	// ゲートウェイのイベントループをブロックしない
	go sink.HandleEvent(b.baseCtx, dispatcher.Event{Kind: kind, Thread: thread})
}

// onInteractionCreate は /stories refresh の実行を処理する。
// 応答はいったん遅延させ、リフレッシュ完了後にフォローアップの埋め込みで報告する。
func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != "stories" || len(data.Options) == 0 || data.Options[0].Name != "refresh" {
		return
	}
	sink := b.eventSink()
	if sink == nil {
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		b.logger.Error("インタラクション応答に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	go func() {
		failures, started := sink.RefreshAll(b.baseCtx)
		embed := refreshResultEmbed(failures, started)
		if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Embeds: []*discordgo.MessageEmbed{embed},
		}); err != nil {
			b.logger.Error("フォローアップ送信に失敗しました",
				slog.String("error", err.Error()),
			)
		}
	}()
}

// refreshResultEmbed はリフレッシュ結果を報告する埋め込みを生成する。
func refreshResultEmbed(failures int, started bool) *discordgo.MessageEmbed {
	switch {
	case !started:
		return &discordgo.MessageEmbed{
			Title:       "Refresh already running",
			Description: "A refresh is already in progress. Try again later.",
			Color:       embedColorError,
		}
	case failures > 0:
		return &discordgo.MessageEmbed{
			Title:       "Refresh finished with errors",
			Description: fmt.Sprintf("%d thread(s) could not be updated. Check the logs for details.", failures),
			Color:       embedColorWarning,
		}
	default:
		return &discordgo.MessageEmbed{
			Title:       "Refresh complete",
			Description: "All story threads are up to date.",
			Color:       embedColorSuccess,
		}
	}
}
