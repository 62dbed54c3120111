package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/perkbot/internal/model"
	"github.com/hitoshi/perkbot/internal/worker/ingest"
)

// CatalogRefresher はカタログ手動更新に必要なインターフェース。
// ingest.Pipelineが実装する。
type CatalogRefresher interface {
	UpdatePerks(ctx context.Context) (*ingest.Result, error)
	UpdatePerksFromURL(ctx context.Context, url string) (*ingest.Result, error)
	UpdatePerksFromFile(ctx context.Context, path string) (*ingest.Result, error)
}

// AdminHandler は管理者操作のHTTPハンドラー。
type AdminHandler struct {
	refresher CatalogRefresher
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(refresher CatalogRefresher) *AdminHandler {
	return &AdminHandler{refresher: refresher}
}

// refreshRequest はカタログ更新リクエストのボディ。
// どちらも空の場合は設定済みの取得元を使う。
type refreshRequest struct {
	SourceURL string `json:"source_url"`
	FilePath  string `json:"file_path"`
}

type refreshResponse struct {
	Notice *model.Notice  `json:"notice"`
	Result *ingest.Result `json:"result"`
}

// RefreshCatalog はカタログを即時に取り込み直す。
// POST /api/admin/catalog/refresh
func (h *AdminHandler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(r, &req); err != nil {
		writeInvalidRequest(w, "malformed JSON body")
		return
	}
	req.SourceURL = strings.TrimSpace(req.SourceURL)
	req.FilePath = strings.TrimSpace(req.FilePath)
	if req.SourceURL != "" && req.FilePath != "" {
		writeInvalidRequest(w, "specify either source_url or file_path, not both")
		return
	}

	var (
		result *ingest.Result
		err    error
	)
	switch {
	case req.SourceURL != "":
		result, err = h.refresher.UpdatePerksFromURL(r.Context(), req.SourceURL)
	case req.FilePath != "":
		result, err = h.refresher.UpdatePerksFromFile(r.Context(), req.FilePath)
	default:
		result, err = h.refresher.UpdatePerks(r.Context())
	}
	if err != nil {
		handleServiceError(w, ingestAPIError(err))
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		Notice: model.NewNotice("Database updated!", model.NoticeDefault),
		Result: result,
	})
}

// ingestAPIError は取り込みエラーを利用者向けのAPIErrorに変換する。
func ingestAPIError(err error) error {
	switch {
	case errors.Is(err, ingest.ErrSourceUnavailable):
		return model.NewSourceUnavailableError(err.Error())
	case errors.Is(err, ingest.ErrSchemaInvalid):
		return model.NewSchemaInvalidError(err.Error())
	case errors.Is(err, ingest.ErrEmptySource):
		return model.NewEmptySourceError()
	case errors.Is(err, ingest.ErrNoSource):
		return model.NewInvalidRequestError("no perk source configured")
	default:
		slog.Error("カタログの手動更新に失敗しました", slog.String("error", err.Error()))
		return model.NewStorageFaultError("updating the database")
	}
}
