package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/perkbot/internal/model"
)

// PerkHandler はカタログ参照と保持パーク削除のHTTPハンドラー。
type PerkHandler struct {
	service PerkServiceInterface
}

// NewPerkHandler はPerkHandlerを生成する。
func NewPerkHandler(service PerkServiceInterface) *PerkHandler {
	return &PerkHandler{service: service}
}

type perkListResponse struct {
	Perks []model.Perk `json:"perks"`
}

// List はカタログのパーク一覧を返す。
// GET /api/perks
func (h *PerkHandler) List(w http.ResponseWriter, r *http.Request) {
	perks, err := h.service.ListPerks(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if perks == nil {
		perks = []model.Perk{}
	}

	writeJSON(w, http.StatusOK, perkListResponse{Perks: perks})
}

// Get はパークの詳細を返す。
// GET /api/perks/{id}
func (h *PerkHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeInvalidRequest(w, "perk id must be a number")
		return
	}

	perk, err := h.service.PerkInfo(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, perk)
}

// Clear は操作者の保持パークをすべて削除する。
// DELETE /api/me/perks
func (h *PerkHandler) Clear(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	notice, err := h.service.ClearPerks(r.Context(), actor.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, noticeResponse{Notice: notice})
}
