package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"mvdan.cc/xurls/v2"

	"github.com/hitoshi/storybot/internal/model"
	"github.com/hitoshi/storybot/internal/platform"
)

const (
	// defaultExportEndpoint はGoogle DriveエクスポートAPIのベースURL。
	defaultExportEndpoint = "https://www.googleapis.com/drive/v3/files"

	userAgent = "Storybot/1.0 Wordcount Bot"
)

// URLValidator はリクエスト発行前にURLの安全性を静的に検証する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Detector はメッセージから文書ソースを判別し、バイト列を取得する。
// 判別順序: 添付ファイル（メッセージ内の順）、次に本文から抽出したURL
// （初出順、重複除去）。URLごとにGoogleドキュメント判定をリンク判定より先に試す。
// 最初に見つかった対象ソースが採用され、以降の候補は評価されない。
type Detector struct {
	httpClient   *http.Client
	validator    URLValidator
	attachments  platform.AttachmentReader
	googleAPIKey string
	maxFetchSize int64
	logger       *slog.Logger
	endpoint     string // テスト用にエンドポイントを差し替え可能
}

// NewDetector はDetectorの新しいインスタンスを生成する。
// httpClientにはSSRF防止付きクライアントを渡すことを想定している。
// validatorはプローブ前の静的URL検証に使う。nilの場合は検証を省略する
// （クライアント側のダイヤラ検証だけが残る）。
func NewDetector(
	httpClient *http.Client,
	validator URLValidator,
	attachments platform.AttachmentReader,
	googleAPIKey string,
	maxFetchSize int64,
	logger *slog.Logger,
) *Detector {
	if maxFetchSize <= 0 {
		maxFetchSize = MaxWordcountSize
	}
	return &Detector{
		httpClient:   httpClient,
		validator:    validator,
		attachments:  attachments,
		googleAPIKey: googleAPIKey,
		maxFetchSize: maxFetchSize,
		logger:       logger,
		endpoint:     defaultExportEndpoint,
	}
}

// FromMessage はメッセージから最初の語数カウント対象ソースを判別する。
// 対象がない場合は(nil, nil)を返す。リンクのメタデータプローブの失敗は
// 回復可能なフェッチエラーとして返す。
func (d *Detector) FromMessage(ctx context.Context, m model.Message) (*File, error) {
	for _, a := range m.Attachments {
		f := d.fromAttachment(m, a)
		if f != nil {
			return f, nil
		}
	}

	for _, u := range extractURLs(m.Content) {
		if f := d.fromGoogleDocURL(m, u); f != nil {
			return f, nil
		}

		f, err := d.fromLinkURL(ctx, m, u)
		if err != nil {
			return nil, err
		}
		if f != nil {
			return f, nil
		}
	}

	return nil, nil
}

// urlRe は本文からのURL抽出に使用する（スキーム必須の厳格モード）。
var urlRe = xurls.Strict()

// extractURLs はメッセージ本文からURLを初出順・重複除去で抽出する。
func extractURLs(content string) []string {
	found := urlRe.FindAllString(content, -1)
	seen := make(map[string]struct{}, len(found))
	urls := make([]string, 0, len(found))
	for _, u := range found {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}

// fromAttachment は添付ファイルを判別する。
// コンテンツタイプとサイズはプラットフォームのメタデータから既知。
func (d *Detector) fromAttachment(m model.Message, a model.Attachment) *File {
	f := &File{
		kind:        KindAttachment,
		messageID:   m.ID,
		locator:     a.URL,
		contentType: stripContentTypeParams(a.ContentType),
		size:        a.Size,
		attachment:  a,
	}
	if !f.CanWordcount() {
		d.logger.Info("語数カウント対象外: "+f.Description(), slog.String("message_id", m.ID))
		return nil
	}
	d.logger.Info("語数カウント対象: "+f.Description(), slog.String("message_id", m.ID))
	return f
}

// fromGoogleDocURL はGoogleドキュメントURLを判別する。
// コンテンツタイプはtext/plain固定、サイズはエクスポートまで不明のため常に対象。
func (d *Detector) fromGoogleDocURL(m model.Message, rawURL string) *File {
	docID := parseGoogleDocID(rawURL)
	if docID == "" {
		return nil
	}
	f := &File{
		kind:        KindGoogleDoc,
		messageID:   m.ID,
		locator:     docID,
		contentType: "text/plain",
	}
	d.logger.Info("語数カウント対象: "+f.Description(), slog.String("message_id", m.ID))
	return f
}

// fromLinkURL はURLにメタデータのみのプローブ（HEAD）を発行して判別する。
// 対象か否かの判断のために本文をダウンロードしてはならない。
// プローブの転送エラーは回復可能なフェッチエラーとして返す。
func (d *Detector) fromLinkURL(ctx context.Context, m model.Message, rawURL string) (*File, error) {
	// 安全でないURLは対象外ソースとして静かにスキップする
	if d.validator != nil {
		if err := d.validator.ValidateURL(rawURL); err != nil {
			d.logger.Info("安全でないURLをスキップします",
				slog.String("message_id", m.ID),
				slog.String("url", rawURL),
				slog.String("error", err.Error()),
			)
			return nil, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, model.NewFetchFailedError("link "+rawURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, model.NewFetchFailedError("link "+rawURL, err)
	}
	defer resp.Body.Close()

	size := resp.ContentLength
	if size < 0 {
		size = 0 // 不明
	}
	f := &File{
		kind:        KindLink,
		messageID:   m.ID,
		locator:     rawURL,
		contentType: stripContentTypeParams(resp.Header.Get("Content-Type")),
		size:        size,
	}
	if !f.CanWordcount() {
		d.logger.Info("語数カウント対象外: "+f.Description(), slog.String("message_id", m.ID))
		return nil, nil
	}
	d.logger.Info("語数カウント対象: "+f.Description(), slog.String("message_id", m.ID))
	return f, nil
}

// Fetch はソース種別に応じて文書バイト列を取得する。
// 転送エラーと非2xxステータスは回復可能なフェッチエラーとして返す。
func (d *Detector) Fetch(ctx context.Context, f *File) ([]byte, error) {
	d.logger.Info("ダウンロードを開始します: " + f.Description())

	var data []byte
	var err error
	switch f.kind {
	case KindLink:
		data, err = d.fetchURL(ctx, f, f.locator)
	case KindAttachment:
		data, err = d.attachments.ReadAttachment(ctx, f.attachment)
		if err != nil {
			err = model.NewFetchFailedError(f.Description(), err)
		}
	case KindGoogleDoc:
		exportURL := fmt.Sprintf("%s/%s/export?mimeType=text/plain&key=%s",
			d.endpoint, f.locator, d.googleAPIKey)
		data, err = d.fetchURL(ctx, f, exportURL)
	default:
		err = model.NewFetchFailedError(f.Description(), fmt.Errorf("unknown source kind: %s", f.kind))
	}
	if err != nil {
		return nil, err
	}

	d.logger.Info("ダウンロードが完了しました",
		slog.String("kind", string(f.kind)),
		slog.Int("bytes", len(data)),
	)
	return data, nil
}

// fetchURL はURLから本文を取得する（最大サイズ制限付き）。
func (d *Detector) fetchURL(ctx context.Context, f *File, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewFetchFailedError(f.Description(), err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, model.NewFetchFailedError(f.Description(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, model.NewFetchFailedError(f.Description(),
			fmt.Errorf("unexpected HTTP status: %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxFetchSize))
	if err != nil {
		return nil, model.NewFetchFailedError(f.Description(), err)
	}
	return data, nil
}
