package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// SelectionHandler はパーク選択セッションのHTTPハンドラー。
type SelectionHandler struct {
	service PerkServiceInterface
}

// NewSelectionHandler はSelectionHandlerを生成する。
func NewSelectionHandler(service PerkServiceInterface) *SelectionHandler {
	return &SelectionHandler{service: service}
}

// selectPageRequest はページ選択変更リクエストのボディ。
type selectPageRequest struct {
	Values []string `json:"values"`
}

// Open は選択セッションを開始する。
// POST /api/selections
func (h *SelectionHandler) Open(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	prompt, err := h.service.OpenSelection(r.Context(), actor.ID, actor.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, prompt)
}

// SelectPage はページの選択変更を反映する。
// PUT /api/selections/{id}/pages/{page}
func (h *SelectionHandler) SelectPage(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		writeInvalidRequest(w, "page must be a number")
		return
	}

	var req selectPageRequest
	if err := decodeBody(r, &req); err != nil {
		writeInvalidRequest(w, "malformed JSON body")
		return
	}

	prompt, err := h.service.SelectPage(r.Context(), chi.URLParam(r, "id"), actor.ID, page, req.Values)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, prompt)
}

// Submit は選択内容を保存する。
// POST /api/selections/{id}/submit
func (h *SelectionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	prompt, err := h.service.Submit(r.Context(), chi.URLParam(r, "id"), actor.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, prompt)
}

// Cancel は選択セッションを破棄する。
// POST /api/selections/{id}/cancel
func (h *SelectionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	prompt, err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"), actor.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, prompt)
}
