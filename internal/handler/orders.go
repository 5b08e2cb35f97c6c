package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) GetOpenOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListOpenOrders()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取工单成功", orders)
}

func (h *Handler) SetOrderBlacklisted(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Blacklisted *bool `json:"blacklisted" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.store.SetOrderBlacklisted(id, *req.Blacklisted); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "工单不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if *req.Blacklisted {
		h.successResponse(w, r, "工单已加入黑名单", nil)
	} else {
		h.successResponse(w, r, "工单已移出黑名单", nil)
	}
}
