// Package wordcount は文書バイト列からの語数カウントと表示用の丸めを提供する。
// インプロセスカウンタと外部ヘルパープロセスの2実装をCounterインターフェースで切り替える。
package wordcount

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/hitoshi/storybot/internal/model"
)

// Counter は文書バイト列から生の語数を算出するインターフェース。
type Counter interface {
	// Count はコンテンツタイプに応じて語数をカウントする。
	// 非対応のコンテンツタイプやデコード失敗はタグ付きエラーを返す。
	Count(ctx context.Context, data []byte, contentType string) (int, error)
}

// InProcessCounter はプロセス内で語数をカウントする実装。
// text/plainは空白区切り、application/pdfはテキスト抽出後に空白区切りでカウントする。
type InProcessCounter struct{}

// NewInProcessCounter はInProcessCounterの新しいインスタンスを生成する。
func NewInProcessCounter() *InProcessCounter {
	return &InProcessCounter{}
}

// Count はコンテンツタイプに応じて語数をカウントする。
func (c *InProcessCounter) Count(_ context.Context, data []byte, contentType string) (int, error) {
	switch contentType {
	case "text/plain":
		return countText(data)
	case "application/pdf":
		return countPDF(data)
	default:
		return 0, model.NewUnsupportedContentTypeError(contentType)
	}
}

// countText はUTF-8テキストを空白で分割して語数を返す。
func countText(data []byte) (int, error) {
	if !utf8.Valid(data) {
		return 0, model.NewExtractFailedError(fmt.Errorf("invalid UTF-8 text"))
	}
	return len(strings.Fields(string(data))), nil
}

// countPDF はPDFからテキストを抽出して語数を返す。
// 不正なPDFストリームはタグ付き抽出エラーとして返す。
// pdfライブラリは不正入力でpanicすることがあるため、ここで回収してエラーに変換する。
func countPDF(data []byte) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			count = 0
			err = model.NewExtractFailedError(fmt.Errorf("pdf panic: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, model.NewExtractFailedError(err)
	}

	text, err := reader.GetPlainText()
	if err != nil {
		return 0, model.NewExtractFailedError(err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(text); err != nil {
		return 0, model.NewExtractFailedError(err)
	}

	return len(strings.Fields(buf.String())), nil
}
