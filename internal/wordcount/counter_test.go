package wordcount

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/storybot/internal/model"
)

// TestInProcessCounter_PlainText は空白区切りの語数カウントをテストする。
func TestInProcessCounter_PlainText(t *testing.T) {
	c := NewInProcessCounter()
	n, err := c.Count(context.Background(), []byte("foo bar baz"), "text/plain")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if n != 3 {
		t.Errorf("期待: 3, 結果: %d", n)
	}
}

// TestInProcessCounter_PlainTextWhitespace は連続空白・改行・タブを1区切りとして扱うことをテストする。
func TestInProcessCounter_PlainTextWhitespace(t *testing.T) {
	c := NewInProcessCounter()
	n, err := c.Count(context.Background(), []byte("  foo\n\nbar\tbaz  qux\n"), "text/plain")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if n != 4 {
		t.Errorf("期待: 4, 結果: %d", n)
	}
}

// TestInProcessCounter_EmptyText は空テキストの語数が0になることをテストする。
func TestInProcessCounter_EmptyText(t *testing.T) {
	c := NewInProcessCounter()
	n, err := c.Count(context.Background(), []byte(""), "text/plain")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if n != 0 {
		t.Errorf("期待: 0, 結果: %d", n)
	}
}

// TestInProcessCounter_InvalidUTF8 は不正なUTF-8が抽出エラーになることをテストする。
func TestInProcessCounter_InvalidUTF8(t *testing.T) {
	c := NewInProcessCounter()
	_, err := c.Count(context.Background(), []byte{0xff, 0xfe, 0xfd}, "text/plain")
	if err == nil {
		t.Fatal("不正なUTF-8にはエラーを返すべき")
	}
	var botErr *model.BotError
	if !errors.As(err, &botErr) || botErr.Code != model.ErrCodeExtractFailed {
		t.Errorf("期待コード: %s, 結果: %v", model.ErrCodeExtractFailed, err)
	}
}

// TestInProcessCounter_UnsupportedContentType は非対応コンテンツタイプが
// I/O失敗とは別のタグ付きエラーになることをテストする。
func TestInProcessCounter_UnsupportedContentType(t *testing.T) {
	c := NewInProcessCounter()
	_, err := c.Count(context.Background(), []byte("foo"), "text/html")
	if err == nil {
		t.Fatal("非対応コンテンツタイプにはエラーを返すべき")
	}
	var botErr *model.BotError
	if !errors.As(err, &botErr) || botErr.Code != model.ErrCodeUnsupportedContentType {
		t.Errorf("期待コード: %s, 結果: %v", model.ErrCodeUnsupportedContentType, err)
	}
}

// TestInProcessCounter_MalformedPDF は不正なPDFがクラッシュせず抽出エラーになることをテストする。
func TestInProcessCounter_MalformedPDF(t *testing.T) {
	c := NewInProcessCounter()
	_, err := c.Count(context.Background(), []byte("%PDF-1.4 broken stream"), "application/pdf")
	if err == nil {
		t.Fatal("不正なPDFにはエラーを返すべき")
	}
	var botErr *model.BotError
	if !errors.As(err, &botErr) || botErr.Code != model.ErrCodeExtractFailed {
		t.Errorf("期待コード: %s, 結果: %v", model.ErrCodeExtractFailed, err)
	}
}
