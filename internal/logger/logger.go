// Package logger はJSON構造化ログのセットアップとログスコープを提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// writerが指定された場合はそのwriterに出力する。
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// writerが指定された場合はそのwriterに出力する。
// 本番ではos.Stdoutを渡すことを想定している。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	logger := Setup(w)
	slog.SetDefault(logger)
}

// Scope は入れ子のログスコープを保持する値型。
// セグメントは": "で連結され、scope属性としてログに付与される。
// 値渡しのため、Enterで派生したスコープは呼び出し元のスコープに影響しない。
type Scope struct {
	base *slog.Logger
	path string
}

// NewScope はルートスコープを生成する。
// loggerがnilの場合はslog.Defaultを使用する。
func NewScope(logger *slog.Logger) Scope {
	if logger == nil {
		logger = slog.Default()
	}
	return Scope{base: logger}
}

// Enter は現在のスコープにセグメントを連結した新しいスコープを返す。
func (s Scope) Enter(segment string) Scope {
	path := segment
	if s.path != "" {
		path = s.path + ": " + segment
	}
	return Scope{base: s.base, path: path}
}

// Path は現在のスコープ文字列を返す。ルートスコープでは空文字列。
func (s Scope) Path() string {
	return s.path
}

// Log はscope属性を付与したロガーを返す。
// ルートスコープの場合は属性を付与しない。
func (s Scope) Log() *slog.Logger {
	if s.path == "" {
		return s.base
	}
	return s.base.With(slog.String("scope", s.path))
}
