// Package source はスレッド内メッセージから語数カウント対象の文書ソースを
// 判別し、そのバイト列を取得する機能を提供する。
// ソースは {リンク, 添付ファイル, Googleドキュメント} の閉じたタグ付きバリアント。
package source

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hitoshi/storybot/internal/model"
)

const (
	// MaxWordcountSize は語数カウント対象の最大サイズ（30MiB）。
	MaxWordcountSize = 30 * 1024 * 1024
)

// wordcountContentTypes は語数カウント対象のコンテンツタイプ。
var wordcountContentTypes = map[string]struct{}{
	"text/plain":      {},
	"application/pdf": {},
}

// Kind は文書ソースの種別。
type Kind string

const (
	// KindLink はメッセージ本文から抽出したURL。
	KindLink Kind = "link"
	// KindAttachment はプラットフォームの添付ファイル。
	KindAttachment Kind = "attachment"
	// KindGoogleDoc はGoogleドキュメントのエクスポート。
	KindGoogleDoc Kind = "google doc"
)

// File は解決された文書ソースを表す。
// 解決時に構築され、1回のフェッチに使用された後は破棄される一時オブジェクト。
type File struct {
	kind        Kind
	messageID   string
	locator     string // URLまたはドキュメントID
	contentType string // MIMEパラメータ除去済み
	size        int64  // 0は不明を表す
	attachment  model.Attachment
}

// Kind はソースの種別を返す。
func (f *File) Kind() Kind {
	return f.kind
}

// ContentType はMIMEパラメータ除去済みのコンテンツタイプを返す。
func (f *File) ContentType() string {
	return f.contentType
}

// Description はログ用の由来説明文字列を返す。
func (f *File) Description() string {
	size := "unknown"
	if f.size > 0 {
		size = fmt.Sprintf("%d", f.size)
	}
	return fmt.Sprintf("message %s %s %s (%s, %s bytes)",
		f.messageID, f.kind, f.locator, f.contentType, size)
}

// CanWordcount は語数カウント対象かを判定する。
// コンテンツタイプが対象であり、かつサイズが不明または30MiB以下の場合に真。
func (f *File) CanWordcount() bool {
	if _, ok := wordcountContentTypes[f.contentType]; !ok {
		return false
	}
	return f.size == 0 || f.size <= MaxWordcountSize
}

// stripContentTypeParams は";charset=..."等のMIMEパラメータを除去する。
func stripContentTypeParams(contentType string) string {
	return strings.TrimSpace(strings.Split(contentType, ";")[0])
}

// parseGoogleDocID はGoogleドキュメントURLからドキュメントIDを抽出する。
// https://docs.google.com/document/d/<id>[/...] の形のみ認識し、
// それ以外は空文字列を返す。
func parseGoogleDocID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if u.Scheme != "https" || u.Hostname() != "docs.google.com" {
		return ""
	}
	var parts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 3 || parts[0] != "document" || parts[1] != "d" {
		return ""
	}
	return parts[2]
}
