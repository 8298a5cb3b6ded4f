package wordcount

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/hitoshi/storybot/internal/model"
)

// HelperCounter は外部の語数カウントヘルパープロセスを呼び出す実装。
// ペイロードを一時ファイルに書き出し、`<helper> <file> <content-type>`として起動する。
// ヘルパーは成功時に非負整数1つを標準出力に出力し、終了コード0で終了する契約。
type HelperCounter struct {
	helperPath string
	logger     *slog.Logger
}

// NewHelperCounter はHelperCounterの新しいインスタンスを生成する。
func NewHelperCounter(helperPath string, logger *slog.Logger) *HelperCounter {
	return &HelperCounter{
		helperPath: helperPath,
		logger:     logger,
	}
}

// Count はペイロードを一時ファイル経由でヘルパーに渡し、語数を取得する。
// 一時ファイルは成功・失敗を問わず必ず削除される。
// 非ゼロ終了、非整数出力、負の整数はすべてエラーとして扱い、stderrを診断用に記録する。
func (c *HelperCounter) Count(ctx context.Context, data []byte, contentType string) (int, error) {
	f, err := os.CreateTemp("", "storybot-wordcount-*")
	if err != nil {
		return 0, model.NewHelperFailedError("一時ファイルの作成に失敗", err)
	}
	filename := f.Name()
	defer func() {
		if removeErr := os.Remove(filename); removeErr != nil {
			c.logger.Error("一時ファイルの削除に失敗しました",
				slog.String("file", filename),
				slog.String("error", removeErr.Error()),
			)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return 0, model.NewHelperFailedError("一時ファイルへの書き込みに失敗", err)
	}
	if err := f.Close(); err != nil {
		return 0, model.NewHelperFailedError("一時ファイルのクローズに失敗", err)
	}

	cmd := exec.CommandContext(ctx, c.helperPath, filename, contentType)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		c.logger.Error("語数カウントヘルパーが失敗しました",
			slog.String("helper", c.helperPath),
			slog.String("content_type", contentType),
			slog.String("stderr", stderr.String()),
			slog.String("error", err.Error()),
		)
		return 0, model.NewHelperFailedError(
			fmt.Sprintf("ヘルパーの実行に失敗: %s", strings.TrimSpace(stderr.String())), err)
	}

	out := strings.TrimSpace(stdout.String())
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, model.NewHelperFailedError(
			fmt.Sprintf("ヘルパー出力が整数ではありません: %q", out), err)
	}
	if n < 0 {
		return 0, model.NewHelperFailedError(
			fmt.Sprintf("ヘルパーが負の語数を返しました: %d", n), nil)
	}
	return n, nil
}
