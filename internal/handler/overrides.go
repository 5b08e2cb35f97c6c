package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

// 外键错误说明引用的工单不存在
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func (h *Handler) GetOverrides(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.store.ListTaskOverrides()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	priorities, err := h.store.ListMachinePriorities()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取人工覆盖成功", map[string]any{
		"tasks":             tasks,
		"machinePriorities": priorities,
	})
}

func (h *Handler) UpsertTaskOverrides(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Overrides []struct {
			OrderID    string  `json:"orderID" validate:"required"`
			Process    string  `json:"process" validate:"required,process"`
			Priority   *int    `json:"priority" validate:"omitempty,min=0"`
			Machine    *string `json:"machine"`
			Outsourced bool    `json:"outsourced"`
			Skipped    bool    `json:"skipped"`
			Deleted    bool    `json:"deleted"`
		} `json:"overrides" validate:"required,min=1,dive"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 先整体检查机器，避免只写入一部分
	for _, o := range req.Overrides {
		if o.Machine != nil && *o.Machine != "" && h.plant.Machine(*o.Machine) == nil {
			h.errorResponse(w, r, fmt.Sprintf("机器 %s 不存在", *o.Machine))
			return
		}
	}

	saved := make([]*domain.TaskOverride, 0, len(req.Overrides))
	for _, o := range req.Overrides {
		override := &domain.TaskOverride{
			OrderID:    o.OrderID,
			Process:    domain.Process(o.Process),
			Priority:   o.Priority,
			Machine:    o.Machine,
			Outsourced: o.Outsourced,
			Skipped:    o.Skipped,
			Deleted:    o.Deleted,
		}
		if err := h.store.UpsertTaskOverride(override); err != nil {
			switch {
			case isForeignKeyViolation(err):
				h.errorResponse(w, r, fmt.Sprintf("工单 %s 不存在", o.OrderID))
			default:
				h.internalServerError(w, r, err)
			}
			return
		}
		saved = append(saved, override)
	}

	h.successResponse(w, r, "保存人工覆盖成功", saved)
}

func (h *Handler) UpsertMachinePriorities(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Priorities []struct {
			OrderID  string `json:"orderID" validate:"required"`
			Machine  string `json:"machine" validate:"required"`
			Priority *int   `json:"priority" validate:"required,min=0"`
		} `json:"priorities" validate:"required,min=1,dive"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	for _, p := range req.Priorities {
		if h.plant.Machine(p.Machine) == nil {
			h.errorResponse(w, r, fmt.Sprintf("机器 %s 不存在", p.Machine))
			return
		}
	}

	saved := make([]*domain.MachinePriority, 0, len(req.Priorities))
	for _, p := range req.Priorities {
		priority := &domain.MachinePriority{OrderID: p.OrderID, Machine: p.Machine, Priority: *p.Priority}
		if err := h.store.UpsertMachinePriority(priority); err != nil {
			switch {
			case isForeignKeyViolation(err):
				h.errorResponse(w, r, fmt.Sprintf("工单 %s 不存在", p.OrderID))
			default:
				h.internalServerError(w, r, err)
			}
			return
		}
		saved = append(saved, priority)
	}

	h.successResponse(w, r, "保存机器优先级成功", saved)
}
