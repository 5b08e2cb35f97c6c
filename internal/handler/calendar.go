package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

func (h *Handler) CreateDowntime(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Machine string    `json:"machine" validate:"required"`
		Start   time.Time `json:"start" validate:"required"`
		End     time.Time `json:"end" validate:"required,gtfield=Start"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if h.plant.Machine(req.Machine) == nil {
		h.errorResponse(w, r, fmt.Sprintf("机器 %s 不存在", req.Machine))
		return
	}

	downtime := &domain.Downtime{Machine: req.Machine, Start: req.Start, End: req.End}
	if err := h.store.CreateDowntime(downtime); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "停机计划已保存", downtime)
}

// UpsertOvertimeGrant 机器为空表示全厂加班
func (h *Handler) UpsertOvertimeGrant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Machine string  `json:"machine"`
		Date    string  `json:"date" validate:"required,datetime=2006-01-02"`
		Hours   float64 `json:"hours" validate:"required,gt=0,lte=24"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if req.Machine != "" && h.plant.Machine(req.Machine) == nil {
		h.errorResponse(w, r, fmt.Sprintf("机器 %s 不存在", req.Machine))
		return
	}

	// 加班日期按年月日解释，不做时区转换
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	grant := &domain.OvertimeGrant{Machine: req.Machine, Date: date, Hours: req.Hours}
	if err := h.store.UpsertOvertimeGrant(grant); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "加班已保存", grant)
}
