package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/hitoshi/storybot/internal/logger"
	"github.com/hitoshi/storybot/internal/model"
)

// fakeAttachmentReader はAttachmentReaderのテスト用実装。
type fakeAttachmentReader struct {
	data map[string][]byte
	err  error
}

func (f *fakeAttachmentReader) ReadAttachment(_ context.Context, a model.Attachment) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data[a.URL], nil
}

func newTestDetector(t *testing.T, client *http.Client, attachments *fakeAttachmentReader) *Detector {
	t.Helper()
	if client == nil {
		client = &http.Client{}
	}
	if attachments == nil {
		attachments = &fakeAttachmentReader{}
	}
	return NewDetector(client, nil, attachments, "test-api-key", 0, logger.Setup(os.Stderr))
}

// textServer はHEAD/GETに応答するtext/plainサーバーを起動する。
func textServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
		if r.Method == http.MethodHead {
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

// TestFromMessage_EligibleAttachment は対象の添付ファイルが最優先で採用されることをテストする。
func TestFromMessage_EligibleAttachment(t *testing.T) {
	d := newTestDetector(t, nil, nil)
	m := model.Message{
		ID: "10",
		Attachments: []model.Attachment{
			{URL: "https://cdn.example.com/story.txt", ContentType: "text/plain; charset=utf-8", Size: 12},
		},
	}

	f, err := d.FromMessage(context.Background(), m)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if f == nil {
		t.Fatal("添付ファイルが採用されるべき")
	}
	if f.Kind() != KindAttachment {
		t.Errorf("期待種別: attachment, 結果: %s", f.Kind())
	}
	if f.ContentType() != "text/plain" {
		t.Errorf("charsetパラメータが除去されるべき, 結果: %s", f.ContentType())
	}
}

// TestFromMessage_IneligibleAttachmentThenLink は非対象の添付ファイルが飛ばされ、
// 本文中の対象リンクが採用されることをテストする。
func TestFromMessage_IneligibleAttachmentThenLink(t *testing.T) {
	ts := textServer(t, "foo bar baz")
	d := newTestDetector(t, ts.Client(), nil)
	m := model.Message{
		ID:      "10",
		Content: "story here: " + ts.URL + "/story.txt",
		Attachments: []model.Attachment{
			{URL: "https://cdn.example.com/cover.png", ContentType: "image/png", Size: 1000},
		},
	}

	f, err := d.FromMessage(context.Background(), m)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if f == nil {
		t.Fatal("リンクが採用されるべき")
	}
	if f.Kind() != KindLink {
		t.Errorf("期待種別: link, 結果: %s", f.Kind())
	}
}

// TestFromMessage_GoogleDocBeforeLink はGoogleドキュメント判定が
// 汎用リンク判定より先に適用されることをテストする。
func TestFromMessage_GoogleDocBeforeLink(t *testing.T) {
	// リンク判定に到達するとHEADが飛んで失敗するHTTPクライアントなし構成でも、
	// GoogleドキュメントURLはプローブなしで採用される
	d := newTestDetector(t, &http.Client{}, nil)
	m := model.Message{
		ID:      "10",
		Content: "https://docs.google.com/document/d/abc123/edit",
	}

	f, err := d.FromMessage(context.Background(), m)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if f == nil || f.Kind() != KindGoogleDoc {
		t.Fatalf("Googleドキュメントが採用されるべき, 結果: %+v", f)
	}
	if f.ContentType() != "text/plain" {
		t.Errorf("Googleドキュメントのコンテンツタイプはtext/plain固定, 結果: %s", f.ContentType())
	}
}

// TestFromMessage_IneligibleLink は非対象コンテンツタイプのリンクが飛ばされることをテストする。
func TestFromMessage_IneligibleLink(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	}))
	defer ts.Close()

	d := newTestDetector(t, ts.Client(), nil)
	m := model.Message{ID: "10", Content: ts.URL + "/page.html"}

	f, err := d.FromMessage(context.Background(), m)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if f != nil {
		t.Errorf("非対象リンクは採用されるべきではない: %s", f.Description())
	}
}

// fakeURLValidator は指定した部分文字列を含むURLを拒否するURLValidatorのテスト用実装。
type fakeURLValidator struct {
	blocked string
}

func (f *fakeURLValidator) ValidateURL(rawURL string) error {
	if f.blocked != "" && strings.Contains(rawURL, f.blocked) {
		return fmt.Errorf("拒否されたURL: %s", rawURL)
	}
	return nil
}

// TestFromMessage_UnsafeLinkSkipped は検証で拒否されたURLがプローブなしで
// 対象外として飛ばされることをテストする。
func TestFromMessage_UnsafeLinkSkipped(t *testing.T) {
	probed := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probed = true
		w.Header().Set("Content-Type", "text/plain")
	}))
	defer ts.Close()

	d := newTestDetector(t, ts.Client(), nil)
	d.validator = &fakeURLValidator{blocked: "169.254.169.254"}
	m := model.Message{
		ID:      "10",
		Content: "http://169.254.169.254/latest/doc.txt",
	}

	f, err := d.FromMessage(context.Background(), m)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if f != nil {
		t.Errorf("拒否されたURLは採用されるべきではない: %s", f.Description())
	}
	if probed {
		t.Error("拒否されたURLにリクエストを発行すべきではない")
	}
}

// TestFromMessage_UnsafeLinkThenSafeLink は拒否されたURLの後続の安全なURLが
// 引き続き評価されることをテストする。
func TestFromMessage_UnsafeLinkThenSafeLink(t *testing.T) {
	ts := textServer(t, "foo bar baz")
	d := newTestDetector(t, ts.Client(), nil)
	d.validator = &fakeURLValidator{blocked: "169.254.169.254"}
	m := model.Message{
		ID:      "10",
		Content: "http://169.254.169.254/meta.txt and " + ts.URL + "/story.txt",
	}

	f, err := d.FromMessage(context.Background(), m)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if f == nil {
		t.Fatal("後続の安全なリンクが採用されるべき")
	}
	if f.Kind() != KindLink {
		t.Errorf("期待種別: link, 結果: %s", f.Kind())
	}
}

// TestFromMessage_ProbeFailure はプローブの転送エラーがフェッチエラーとして返ることをテストする。
func TestFromMessage_ProbeFailure(t *testing.T) {
	ts := textServer(t, "x")
	url := ts.URL
	ts.Close() // 接続エラーを起こす

	d := newTestDetector(t, &http.Client{}, nil)
	m := model.Message{ID: "10", Content: url + "/story.txt"}

	_, err := d.FromMessage(context.Background(), m)
	if err == nil {
		t.Fatal("プローブ失敗にはエラーを返すべき")
	}
	var botErr *model.BotError
	if !errors.As(err, &botErr) || botErr.Code != model.ErrCodeFetchFailed {
		t.Errorf("期待コード: %s, 結果: %v", model.ErrCodeFetchFailed, err)
	}
}

// TestFromMessage_NoCandidates は候補なしのメッセージが(nil, nil)を返すことをテストする。
func TestFromMessage_NoCandidates(t *testing.T) {
	d := newTestDetector(t, nil, nil)
	f, err := d.FromMessage(context.Background(), model.Message{ID: "10", Content: "just words"})
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if f != nil {
		t.Errorf("候補なしではnilを返すべき: %+v", f)
	}
}

// TestFetch_Link はリンクの本文取得をテストする。
func TestFetch_Link(t *testing.T) {
	ts := textServer(t, "foo bar baz")
	d := newTestDetector(t, ts.Client(), nil)

	f, err := d.FromMessage(context.Background(), model.Message{ID: "10", Content: ts.URL})
	if err != nil || f == nil {
		t.Fatalf("リンク解決に失敗: f=%v err=%v", f, err)
	}

	data, err := d.Fetch(context.Background(), f)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if string(data) != "foo bar baz" {
		t.Errorf("期待: foo bar baz, 結果: %q", data)
	}
}

// TestFetch_LinkNon2xx は非2xxステータスが回復可能なフェッチエラーになることをテストする。
func TestFetch_LinkNon2xx(t *testing.T) {
	status := http.StatusOK
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(status)
	}))
	defer ts.Close()

	d := newTestDetector(t, ts.Client(), nil)
	f, err := d.FromMessage(context.Background(), model.Message{ID: "10", Content: ts.URL})
	if err != nil || f == nil {
		t.Fatalf("リンク解決に失敗: f=%v err=%v", f, err)
	}

	status = http.StatusInternalServerError
	_, err = d.Fetch(context.Background(), f)
	if err == nil {
		t.Fatal("非2xxにはエラーを返すべき")
	}
	var botErr *model.BotError
	if !errors.As(err, &botErr) || botErr.Code != model.ErrCodeFetchFailed {
		t.Errorf("期待コード: %s, 結果: %v", model.ErrCodeFetchFailed, err)
	}
}

// TestFetch_Attachment は添付ファイルの保存コピー読み出しをテストする。
func TestFetch_Attachment(t *testing.T) {
	reader := &fakeAttachmentReader{data: map[string][]byte{
		"https://cdn.example.com/story.txt": []byte("foo bar"),
	}}
	d := newTestDetector(t, nil, reader)
	m := model.Message{
		ID: "10",
		Attachments: []model.Attachment{
			{URL: "https://cdn.example.com/story.txt", ContentType: "text/plain", Size: 7},
		},
	}

	f, err := d.FromMessage(context.Background(), m)
	if err != nil || f == nil {
		t.Fatalf("添付解決に失敗: f=%v err=%v", f, err)
	}

	data, err := d.Fetch(context.Background(), f)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if string(data) != "foo bar" {
		t.Errorf("期待: foo bar, 結果: %q", data)
	}
}

// TestFetch_GoogleDocExport はエクスポートエンドポイントの呼び出し形式をテストする。
func TestFetch_GoogleDocExport(t *testing.T) {
	var gotPath, gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, "exported doc text")
	}))
	defer ts.Close()

	d := newTestDetector(t, ts.Client(), nil)
	d.endpoint = ts.URL

	f, err := d.FromMessage(context.Background(), model.Message{
		ID:      "10",
		Content: "https://docs.google.com/document/d/abc123/edit",
	})
	if err != nil || f == nil {
		t.Fatalf("Googleドキュメント解決に失敗: f=%v err=%v", f, err)
	}

	data, err := d.Fetch(context.Background(), f)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if string(data) != "exported doc text" {
		t.Errorf("期待: exported doc text, 結果: %q", data)
	}
	if gotPath != "/abc123/export" {
		t.Errorf("期待パス: /abc123/export, 結果: %s", gotPath)
	}
	if gotQuery != "mimeType=text/plain&key=test-api-key" {
		t.Errorf("期待クエリ: mimeType=text/plain&key=test-api-key, 結果: %s", gotQuery)
	}
}

// TestFetch_GoogleDocExportFailure はエクスポートの非2xxが回復可能エラーになることをテストする。
func TestFetch_GoogleDocExportFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	d := newTestDetector(t, ts.Client(), nil)
	d.endpoint = ts.URL

	f, err := d.FromMessage(context.Background(), model.Message{
		ID:      "10",
		Content: "https://docs.google.com/document/d/abc123",
	})
	if err != nil || f == nil {
		t.Fatalf("Googleドキュメント解決に失敗: f=%v err=%v", f, err)
	}

	_, err = d.Fetch(context.Background(), f)
	if err == nil {
		t.Fatal("非2xxエクスポートにはエラーを返すべき")
	}
}
