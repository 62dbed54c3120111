package ingest

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

// buildWorkbook は指定行を先頭シートに書き込んだxlsxのバイト列を返す。
func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName: %v", err)
		}
		r := row
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

var perkHeader = []any{"Name", "Type", "Specialization", "Specialization Effects"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// captureLogger はログ出力をバッファに書き込むロガーを返す。
func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// mockGuard はSSRFValidatorのモック。httptestのループバックに接続できるよう通常のクライアントを返す。
type mockGuard struct {
	validateFn func(rawURL string) error
	client     *http.Client
}

func (m *mockGuard) ValidateURL(rawURL string) error {
	if m.validateFn != nil {
		return m.validateFn(rawURL)
	}
	return nil
}

func (m *mockGuard) NewSafeClient(timeout time.Duration) *http.Client {
	if m.client != nil {
		return m.client
	}
	return &http.Client{Timeout: timeout}
}

// mockMetrics はMetricsRecorderのモック。
type mockMetrics struct {
	results     []string
	statuses    []int
	catalogSize int
}

func (m *mockMetrics) RecordIngest(result string, duration time.Duration) {
	m.results = append(m.results, result)
}

func (m *mockMetrics) RecordSourceStatus(statusCode int) {
	m.statuses = append(m.statuses, statusCode)
}

func (m *mockMetrics) RecordCatalogSize(perks int) {
	m.catalogSize = perks
}

// staticSource は固定のバイト列またはエラーを返すSource。
type staticSource struct {
	data []byte
	err  error
}

func (s *staticSource) Describe() string { return "static" }

func (s *staticSource) Fetch(ctx context.Context) ([]byte, error) {
	return s.data, s.err
}
