package handler

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/events"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/scheduler"
)

var (
	errPlanRunning = errors.New("已有排产任务正在运行，请稍后再试")
	errPlanTimeout = errors.New("排产超时，请稍后再试")
)

type PlanPreview struct {
	RunID string       `json:"runID"`
	Plan  *domain.Plan `json:"plan"`
}

func (h *Handler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HorizonStart *time.Time `json:"horizonStart"` // 缺省为当前时刻
	}

	// 请求体可以为空
	if err := h.readJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		h.badRequest(w, r, err)
		return
	}

	horizon := time.Now().In(h.location()).Truncate(time.Minute)
	if req.HorizonStart != nil {
		horizon = req.HorizonStart.In(h.location())
	}

	v, err, shared := h.group.Do(horizon.Format(time.RFC3339), func() (any, error) {
		return h.generate(horizon)
	})
	if err != nil {
		switch {
		case errors.Is(err, errPlanRunning), errors.Is(err, errPlanTimeout):
			h.errorResponse(w, r, err.Error())
		case errors.Is(err, scheduler.ErrInvalidParameters), errors.Is(err, scheduler.ErrNoMachineForProcess):
			h.errorResponse(w, r, err.Error())
		default:
			h.internalServerError(w, r, err)
		}
		return
	}
	if shared {
		slog.Info("排产请求已合并", "horizonStart", horizon)
	}

	h.successResponse(w, r, "生成排产计划成功", v)
}

// generate 读取工单、人工覆盖、锁定和日历，运行调度器并把结果缓存为预览
func (h *Handler) generate(horizon time.Time) (*PlanPreview, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.Planner.RunTimeout)*time.Second)
	defer cancel()

	// 多个实例之间互斥
	token := uuid.NewString()
	ok, err := h.previews.AcquireRunLock(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errPlanRunning
	}
	defer func() {
		if err := h.previews.ReleaseRunLock(context.Background(), token); err != nil {
			slog.Error("无法释放排产锁", "error", err)
		}
	}()

	orders, err := h.store.ListOpenOrders()
	if err != nil {
		return nil, err
	}

	overrides, err := h.store.GetOverrides()
	if err != nil {
		return nil, err
	}

	day := h.midnight(horizon)
	locks, err := h.store.GetLocks(day)
	if err != nil {
		return nil, err
	}
	for _, l := range locks {
		overrides.AddLock(l)
	}

	plant, err := h.plantFor(day)
	if err != nil {
		return nil, err
	}

	s, err := scheduler.New(h.parameters(horizon), plant, orders, overrides)
	if err != nil {
		return nil, err
	}

	type result struct {
		plan *domain.Plan
		err  error
	}
	done := make(chan result, 1)
	go func() {
		plan, err := s.WithLogger(slog.Default()).Schedule()
		done <- result{plan: plan, err: err}
	}()

	var plan *domain.Plan
	select {
	case <-ctx.Done():
		return nil, errPlanTimeout
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		plan = res.plan
	}

	// 排产可能已经用掉了大部分超时时间，缓存预览使用单独的超时
	saveCtx, saveCancel := context.WithTimeout(context.Background(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
	defer saveCancel()

	runID := uuid.NewString()
	if err := h.previews.SavePreview(saveCtx, runID, plan); err != nil {
		return nil, err
	}

	return &PlanPreview{RunID: runID, Plan: plan}, nil
}

// plantFor 在车间配置的日历上叠加数据库中的停机和加班
func (h *Handler) plantFor(day time.Time) (*domain.Plant, error) {
	downtimes, err := h.store.ListDowntimes(day)
	if err != nil {
		return nil, err
	}
	grants, err := h.store.ListOvertimeGrants(day)
	if err != nil {
		return nil, err
	}

	plant := *h.plant
	plant.Calendar.Downtimes = append(slices.Clone(h.plant.Calendar.Downtimes), downtimes...)
	plant.Calendar.Overtime = append(slices.Clone(h.plant.Calendar.Overtime), grants...)
	return &plant, nil
}

func (h *Handler) parameters(horizon time.Time) *scheduler.Parameters {
	p := scheduler.DefaultParameters(horizon)
	p.HighVolumeQuantity = h.config.Planner.HighVolumeQuantity
	p.HighCavityCount = h.config.Planner.HighCavityCount
	p.ColorClusterWindow = time.Duration(h.config.Planner.ColorClusterWindowHours) * time.Hour
	p.SoftLockPriority = h.config.Planner.SoftLockPriority
	return p
}

func (h *Handler) GetPlanPreview(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(PreviewCtx).(*domain.Plan)

	h.successResponse(w, r, "获取预览计划成功", PlanPreview{RunID: chi.URLParam(r, "runID"), Plan: plan})
}

func (h *Handler) GetLatestPlan(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetLatestScheduleRun()
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.successResponse(w, r, "还没有已确认的计划", nil)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "获取最新计划成功", run)
}

// CommitPlan 保存预览计划，用它替换所有锁定，并通知计划员延期风险
func (h *Handler) CommitPlan(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(PreviewCtx).(*domain.Plan)
	sub := r.Context().Value(SubCtxKey).(string)
	runID := chi.URLParam(r, "runID")

	run := &domain.ScheduleRun{
		ID:          runID,
		Plan:        plan,
		CommittedBy: sub,
	}
	locks := plan.Locks(h.midnight(plan.HorizonStart))

	if err := h.store.InsertScheduleRun(run, locks); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr):
			switch pgErr.ConstraintName {
			case "schedule_runs_pkey":
				h.errorResponse(w, r, "该计划已经确认过")
			case "schedule_locks_order_id_fkey":
				h.errorResponse(w, r, "计划中的工单不存在，请重新生成计划")
			default:
				h.internalServerError(w, r, err)
			}
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	// 计划已经持久化，预览删除失败只会让它自然过期
	if err := h.previews.DeletePreview(r.Context(), runID); err != nil {
		slog.Warn("无法删除预览计划", "runID", runID, "error", err)
	}

	if err := h.publisher.PublishPlanEvent(r.Context(), events.NewPlanEvent(run)); err != nil {
		h.logInternalServerError(r, err)
		h.successResponse(w, r, "计划已确认，但延期预警发送失败", run)
		return
	}

	h.successResponse(w, r, "计划已确认", run)
}
