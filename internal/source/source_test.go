package source

import (
	"testing"
)

func testFile(contentType string, size int64) *File {
	return &File{
		kind:        KindLink,
		messageID:   "1",
		locator:     "https://example.com/story.txt",
		contentType: contentType,
		size:        size,
	}
}

// TestCanWordcount は対象コンテンツタイプとサイズ上限の判定をテストする。
func TestCanWordcount(t *testing.T) {
	cases := []struct {
		contentType string
		size        int64
		want        bool
	}{
		{"text/plain", 0, true},
		{"text/plain", 10, true},
		{"text/plain", 30 * 1024 * 1024, true},
		{"text/plain", 40 * 1024 * 1024, false},
		{"application/pdf", 0, true},
		{"application/pdf", 10, true},
		{"application/pdf", 40 * 1024 * 1024, false},
		{"text/html", 0, false},
		{"text/html", 10, false},
		{"image/png", 10, false},
	}
	for _, c := range cases {
		if got := testFile(c.contentType, c.size).CanWordcount(); got != c.want {
			t.Errorf("CanWordcount(%s, %d) = %v, 期待: %v", c.contentType, c.size, got, c.want)
		}
	}
}

// TestDescription は由来説明文字列の形式をテストする。
func TestDescription(t *testing.T) {
	f := testFile("text/plain", 10)
	want := "message 1 link https://example.com/story.txt (text/plain, 10 bytes)"
	if f.Description() != want {
		t.Errorf("期待: %q, 結果: %q", want, f.Description())
	}

	f = testFile("text/plain", 0)
	want = "message 1 link https://example.com/story.txt (text/plain, unknown bytes)"
	if f.Description() != want {
		t.Errorf("期待: %q, 結果: %q", want, f.Description())
	}
}

// TestStripContentTypeParams はMIMEパラメータの除去をテストする。
func TestStripContentTypeParams(t *testing.T) {
	cases := map[string]string{
		"text/plain":                "text/plain",
		"text/plain; charset=utf-8": "text/plain",
		"application/pdf;foo=bar":   "application/pdf",
		"":                          "",
	}
	for in, want := range cases {
		if got := stripContentTypeParams(in); got != want {
			t.Errorf("stripContentTypeParams(%q) = %q, 期待: %q", in, got, want)
		}
	}
}

// TestParseGoogleDocID はGoogleドキュメントURLの認識をテストする。
func TestParseGoogleDocID(t *testing.T) {
	cases := map[string]string{
		"https://docs.google.com/document/d/abc123":             "abc123",
		"https://docs.google.com/document/d/abc123/edit":        "abc123",
		"https://docs.google.com/document/d/abc123/edit?usp=sh": "abc123",
		"http://docs.google.com/document/d/abc123":              "",
		"https://docs.google.com/spreadsheets/d/abc123":         "",
		"https://docs.google.com/document/abc123":               "",
		"https://example.com/document/d/abc123":                 "",
		"https://docs.google.com/document/d":                    "",
	}
	for in, want := range cases {
		if got := parseGoogleDocID(in); got != want {
			t.Errorf("parseGoogleDocID(%q) = %q, 期待: %q", in, got, want)
		}
	}
}

// TestExtractURLs はURLの初出順・重複除去の抽出をテストする。
func TestExtractURLs(t *testing.T) {
	content := "read https://example.com/a and https://example.com/b " +
		"then https://example.com/a again, but not example.com/c"
	got := extractURLs(content)
	want := []string{"https://example.com/a", "https://example.com/b"}
	if len(got) != len(want) {
		t.Fatalf("URL数: %d, 期待: %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("urls[%d] = %q, 期待: %q", i, got[i], want[i])
		}
	}
}
