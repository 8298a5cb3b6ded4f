// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/storybot/internal/config"
	"github.com/hitoshi/storybot/internal/dispatcher"
	"github.com/hitoshi/storybot/internal/handler"
	"github.com/hitoshi/storybot/internal/logger"
	"github.com/hitoshi/storybot/internal/metrics"
	"github.com/hitoshi/storybot/internal/platform/discord"
	"github.com/hitoshi/storybot/internal/profile"
	"github.com/hitoshi/storybot/internal/security"
	"github.com/hitoshi/storybot/internal/source"
	"github.com/hitoshi/storybot/internal/story"
	"github.com/hitoshi/storybot/internal/wordcount"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込みの失敗もログに出せるよう、先にログを初期化する
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	return runBot(cfg)
}

// runBot はボットモードで起動する。
// ゲートウェイ接続、全依存関係のワイヤリング、運用HTTPサーバーと
// 日次スケジューラの起動を行う。SIGINTまたはSIGTERMシグナルを受信すると
// グレースフルシャットダウンを行う。
func runBot(cfg *config.Config) error {
	log := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. ゲートウェイ接続（ボットユーザーIDとフォーラム検証はここで確定する）
	bot, err := discord.NewBot(
		cfg.DiscordToken,
		cfg.StoryForumID,
		cfg.ProfileForumID,
		cfg.APIRatePerSecond,
		cfg.FetchMaxSize,
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	if err := bot.Start(ctx); err != nil {
		return fmt.Errorf("failed to connect to Discord: %w", err)
	}
	defer bot.Close()

	client := bot.Client()

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. 語数カウンタの選択
	var counter wordcount.Counter
	if cfg.WordcountHelper != "" {
		slog.Info("using external wordcount helper",
			slog.String("helper", cfg.WordcountHelper),
		)
		counter = wordcount.NewHelperCounter(cfg.WordcountHelper, log)
	} else {
		counter = wordcount.NewInProcessCounter()
	}

	// 4. ソース判別と更新処理のワイヤリング
	ssrfGuard := security.NewSSRFGuard()
	safeClient := ssrfGuard.NewSafeClient(cfg.FetchTimeout)
	detector := source.NewDetector(safeClient, ssrfGuard, client, cfg.GoogleAPIKey, cfg.FetchMaxSize, log)

	storyUpdater := story.NewUpdater(client, client, detector, counter, collector, log)
	profileUpdater := profile.NewGenerator(
		client,
		cfg.ProfileForumID,
		cfg.StoryForumID,
		bot.BotUserID(),
		collector,
		log,
	)

	// 5. ディスパッチャをイベントの送り先として接続
	disp := dispatcher.NewDispatcher(
		storyUpdater,
		profileUpdater,
		client,
		client,
		cfg.StoryForumID,
		cfg.ProfileForumID,
		collector,
		log,
	)
	bot.SetSink(disp)

	// 6. 日次リフレッシュスケジューラをバックグラウンドで起動
	scheduler := dispatcher.NewScheduler(disp, cfg.RefreshHour, log)
	go scheduler.Start(ctx)

	// 7. 運用HTTPサーバーの起動
	router := handler.NewRouter(bot, registry, log)
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("ops server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := bot.Close(); err != nil {
		return fmt.Errorf("gateway close failed: %w", err)
	}

	slog.Info("stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
