package title

import (
	"errors"
	"testing"

	"github.com/hitoshi/storybot/internal/model"
)

// TestParse_NoMarker はマーカーなしのスレッド名が語数0でパースされることをテストする。
func TestParse_NoMarker(t *testing.T) {
	name, wc, err := Parse("foo bar")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if name != "foo bar" || wc != 0 {
		t.Errorf("期待: (foo bar, 0), 結果: (%q, %d)", name, wc)
	}
}

// TestParse_MarkerWithNoise は題名中の角括弧や前後の空白を許容することをテストする。
func TestParse_MarkerWithNoise(t *testing.T) {
	name, wc, err := Parse("  foo bar [baz]  [100 words]  ")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if name != "foo bar [baz]" || wc != 100 {
		t.Errorf("期待: (foo bar [baz], 100), 結果: (%q, %d)", name, wc)
	}
}

// TestParse_MarkerOnly はマーカーのみのスレッド名が空題名でパースされることをテストする。
func TestParse_MarkerOnly(t *testing.T) {
	name, wc, err := Parse("[100 words]")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if name != "" || wc != 100 {
		t.Errorf("期待: (\"\", 100), 結果: (%q, %d)", name, wc)
	}
}

// TestParse_CorruptedCount は整数としてパースできない語数がデータエラーになることをテストする。
func TestParse_CorruptedCount(t *testing.T) {
	_, _, err := Parse("foo [99999999999999999999999999 words] ")
	if err == nil {
		t.Fatal("破損した語数にはエラーを返すべき")
	}
	var botErr *model.BotError
	if !errors.As(err, &botErr) || botErr.Code != model.ErrCodeTitleParseFailed {
		t.Errorf("期待コード: %s, 結果: %v", model.ErrCodeTitleParseFailed, err)
	}
}

// TestFormat_ZeroCount は語数0でマーカーが省略されることをテストする。
func TestFormat_ZeroCount(t *testing.T) {
	if got := Format("foo bar", 0); got != "foo bar" {
		t.Errorf("期待: foo bar, 結果: %q", got)
	}
}

// TestFormat_PositiveCount は語数がマーカーとして付与されることをテストする。
func TestFormat_PositiveCount(t *testing.T) {
	if got := Format("foo bar", 100); got != "foo bar [100 words]" {
		t.Errorf("期待: foo bar [100 words], 結果: %q", got)
	}
}

// TestRoundTrip はParse(Format(t, n)) == (t, n) の往復則をテストする。
func TestRoundTrip(t *testing.T) {
	titles := []string{"foo bar", "", "タイトル", "a [weird] title", "trailing  "}
	counts := []int{0, 100, 1000, 12000}

	for _, title := range titles {
		for _, n := range counts {
			name := Format(title, n)
			gotTitle, gotCount, err := Parse(name)
			if err != nil {
				t.Fatalf("Parse(%q) が失敗: %v", name, err)
			}
			wantTitle := title
			if wantTitle == "trailing  " {
				// Parseは題名の前後空白を除去する
				wantTitle = "trailing"
			}
			if gotTitle != wantTitle || gotCount != n {
				t.Errorf("往復則が破れた: Format(%q, %d)=%q -> (%q, %d)",
					title, n, name, gotTitle, gotCount)
			}
		}
	}
}
