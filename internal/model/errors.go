package model

import "fmt"

// BotError は統一エラーフォーマットを表す。
// ログと手動コマンド応答で使用する原因カテゴリを含む。
type BotError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: fetch, data, platform, config
	Err      error  // ラップされた原因（省略可）
}

// Error はerrorインターフェースを実装する。
func (e *BotError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap はラップされた原因エラーを返す。
func (e *BotError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeFetchFailed            = "FETCH_FAILED"
	ErrCodeUnsupportedContentType = "UNSUPPORTED_CONTENT_TYPE"
	ErrCodeExtractFailed          = "EXTRACT_FAILED"
	ErrCodeHelperFailed           = "HELPER_FAILED"
	ErrCodeTitleParseFailed       = "TITLE_PARSE_FAILED"
	ErrCodePlatformFailed         = "PLATFORM_FAILED"
	ErrCodeNotForumChannel        = "NOT_FORUM_CHANNEL"
	ErrCodeNotLoggedIn            = "NOT_LOGGED_IN"
)

// NewFetchFailedError は文書取得の一時的な失敗エラーを生成する。
// ネットワークエラー、非2xxステータス、I/Oエラーが対象。
func NewFetchFailedError(description string, err error) *BotError {
	return &BotError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("文書の取得に失敗しました: %s: %v", description, err),
		Category: "fetch",
		Err:      err,
	}
}

// NewUnsupportedContentTypeError は語数カウント非対応のコンテンツタイプエラーを生成する。
func NewUnsupportedContentTypeError(contentType string) *BotError {
	return &BotError{
		Code:     ErrCodeUnsupportedContentType,
		Message:  fmt.Sprintf("語数をカウントできないコンテンツタイプです: %s", contentType),
		Category: "data",
	}
}

// NewExtractFailedError はPDF等からのテキスト抽出失敗エラーを生成する。
func NewExtractFailedError(err error) *BotError {
	return &BotError{
		Code:     ErrCodeExtractFailed,
		Message:  fmt.Sprintf("テキスト抽出に失敗しました: %v", err),
		Category: "data",
		Err:      err,
	}
}

// NewHelperFailedError は外部語数カウントヘルパーの失敗エラーを生成する。
func NewHelperFailedError(reason string, err error) *BotError {
	return &BotError{
		Code:     ErrCodeHelperFailed,
		Message:  fmt.Sprintf("語数カウントヘルパーが失敗しました: %s", reason),
		Category: "data",
		Err:      err,
	}
}

// NewTitleParseFailedError はスレッド名が語数マーカー文法に従わない場合のエラーを生成する。
// 本システムがスレッド名の唯一の書き込み元であるため、発生は手動改変かバグを示す。
func NewTitleParseFailedError(name string, err error) *BotError {
	return &BotError{
		Code:     ErrCodeTitleParseFailed,
		Message:  fmt.Sprintf("スレッド名から題名と語数を抽出できませんでした: %q", name),
		Category: "data",
		Err:      err,
	}
}

// NewPlatformFailedError はチャットプラットフォームAPI呼び出しの失敗エラーを生成する。
func NewPlatformFailedError(operation string, err error) *BotError {
	return &BotError{
		Code:     ErrCodePlatformFailed,
		Message:  fmt.Sprintf("プラットフォーム操作に失敗しました: %s: %v", operation, err),
		Category: "platform",
		Err:      err,
	}
}

// NewNotForumChannelError は指定されたチャンネルIDがフォーラムでない場合のエラーを生成する。
// 起動時の設定検証で使用し、リトライしない。
func NewNotForumChannelError(channelID string) *BotError {
	return &BotError{
		Code:     ErrCodeNotForumChannel,
		Message:  fmt.Sprintf("チャンネルはフォーラムではありません: %s", channelID),
		Category: "config",
	}
}

// NewNotLoggedInError はボットが未ログインの場合のエラーを生成する。
func NewNotLoggedInError() *BotError {
	return &BotError{
		Code:     ErrCodeNotLoggedIn,
		Message:  "ボットはログインしていません",
		Category: "config",
	}
}
