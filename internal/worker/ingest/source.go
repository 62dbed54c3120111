package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// xlsxContentType はネットワーク取得時に要求するContent-Type。
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Source はパーク定義ドキュメントの取得元。
type Source interface {
	// Describe はログ出力用の取得元の説明を返す。
	Describe() string
	// Fetch はドキュメントのバイト列を取得する。
	Fetch(ctx context.Context) ([]byte, error)
}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// StatusRecorder はソース取得時のHTTPステータスを記録する。
type StatusRecorder interface {
	RecordSourceStatus(statusCode int)
}

// HTTPSource はURLからスプレッドシートを1回だけ取得する。リトライは行わない。
type HTTPSource struct {
	url      string
	guard    SSRFValidator
	timeout  time.Duration
	maxSize  int64
	recorder StatusRecorder
}

// NewHTTPSource はHTTPSourceを生成する。recorderはnilでもよい。
func NewHTTPSource(url string, guard SSRFValidator, timeout time.Duration, maxSize int64, recorder StatusRecorder) *HTTPSource {
	return &HTTPSource{
		url:      url,
		guard:    guard,
		timeout:  timeout,
		maxSize:  maxSize,
		recorder: recorder,
	}
}

// Describe は取得元URLを返す。
func (s *HTTPSource) Describe() string {
	return s.url
}

// Fetch はURLを検証してからGETし、ステータスとContent-Typeを確認してボディを返す。
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := s.guard.ValidateURL(s.url); err != nil {
		return nil, fmt.Errorf("%w: SSRF検証に失敗: %v", ErrSourceUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: リクエスト作成に失敗: %v", ErrSourceUnavailable, err)
	}
	req.Header.Set("User-Agent", "Perkbot/1.0")
	req.Header.Set("Accept", xlsxContentType)

	resp, err := s.guard.NewSafeClient(s.timeout).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: HTTPリクエスト失敗: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if s.recorder != nil {
		s.recorder.RecordSourceStatus(resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTPステータス %d", ErrSourceUnavailable, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), xlsxContentType) {
		return nil, fmt.Errorf("%w: unexpected Content-Type %q", ErrSourceUnavailable, contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: レスポンス読み取り失敗: %v", ErrSourceUnavailable, err)
	}
	if int64(len(body)) > s.maxSize {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrSourceUnavailable, s.maxSize)
	}

	return body, nil
}

// FileSource はローカルの.xlsxファイルを読み込む。Content-Typeの代わりに拡張子を信頼する。
type FileSource struct {
	path    string
	maxSize int64
}

// NewFileSource はFileSourceを生成する。
func NewFileSource(path string, maxSize int64) *FileSource {
	return &FileSource{path: path, maxSize: maxSize}
}

// Describe はファイルパスを返す。
func (s *FileSource) Describe() string {
	return s.path
}

// Fetch はファイルを読み込む。
func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if !strings.EqualFold(filepath.Ext(s.path), ".xlsx") {
		return nil, fmt.Errorf("%w: %s is not an .xlsx file", ErrSourceUnavailable, s.path)
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrSourceUnavailable, s.path)
	}
	if info.Size() > s.maxSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrSourceUnavailable, s.maxSize)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return data, nil
}
