package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SearchHandler は保持パーク検索のHTTPハンドラー。
type SearchHandler struct {
	service PerkServiceInterface
}

// NewSearchHandler はSearchHandlerを生成する。
func NewSearchHandler(service PerkServiceInterface) *SearchHandler {
	return &SearchHandler{service: service}
}

type searchByTypeRequest struct {
	Type string `json:"type"`
}

type searchBySpecializationRequest struct {
	Specialization string `json:"specialization"`
}

type searchByNameRequest struct {
	Name string `json:"name"`
}

// Open は検索セッションを開始する。
// POST /api/searches
func (h *SearchHandler) Open(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	prompt, err := h.service.OpenSearch(r.Context(), actor.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, prompt)
}

// ByType はタイプで検索する。
// POST /api/searches/{id}/type
func (h *SearchHandler) ByType(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req searchByTypeRequest
	if err := decodeBody(r, &req); err != nil {
		writeInvalidRequest(w, "malformed JSON body")
		return
	}

	result, err := h.service.SearchByType(r.Context(), chi.URLParam(r, "id"), actor.ID, req.Type)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// BySpecialization は専門で検索する。
// POST /api/searches/{id}/specialization
func (h *SearchHandler) BySpecialization(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req searchBySpecializationRequest
	if err := decodeBody(r, &req); err != nil {
		writeInvalidRequest(w, "malformed JSON body")
		return
	}

	result, err := h.service.SearchBySpecialization(r.Context(), chi.URLParam(r, "id"), actor.ID, req.Specialization)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ByName はパーク名の部分一致で検索する。
// POST /api/searches/{id}/name
func (h *SearchHandler) ByName(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req searchByNameRequest
	if err := decodeBody(r, &req); err != nil {
		writeInvalidRequest(w, "malformed JSON body")
		return
	}

	result, err := h.service.SearchByName(r.Context(), chi.URLParam(r, "id"), actor.ID, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// All は全ユーザーの保持パークを返す。
// POST /api/searches/{id}/all
func (h *SearchHandler) All(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	result, err := h.service.SearchAll(r.Context(), chi.URLParam(r, "id"), actor.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
