package handler

import (
	"context"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/config"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Store 是 handler 用到的持久化操作，由 repository.Repository 实现
type Store interface {
	ListOpenOrders() ([]*domain.WorkOrder, error)
	SetOrderBlacklisted(id string, blacklisted bool) error

	GetOverrides() (*domain.Overrides, error)
	ListTaskOverrides() ([]*domain.TaskOverride, error)
	ListMachinePriorities() ([]*domain.MachinePriority, error)
	UpsertTaskOverride(o *domain.TaskOverride) error
	UpsertMachinePriority(p *domain.MachinePriority) error

	ListDowntimes(from time.Time) ([]domain.Downtime, error)
	CreateDowntime(d *domain.Downtime) error
	ListOvertimeGrants(from time.Time) ([]domain.OvertimeGrant, error)
	UpsertOvertimeGrant(g *domain.OvertimeGrant) error

	GetLocks(day time.Time) ([]domain.LockRecord, error)
	InsertScheduleRun(run *domain.ScheduleRun, locks []domain.LockRecord) error
	GetLatestScheduleRun() (*domain.ScheduleRun, error)
}

// PreviewCache 由 cache.PreviewCache 实现
type PreviewCache interface {
	SavePreview(ctx context.Context, runID string, plan *domain.Plan) error
	GetPreview(ctx context.Context, runID string) (*domain.Plan, error)
	DeletePreview(ctx context.Context, runID string) error
	AcquireRunLock(ctx context.Context, token string) (bool, error)
	ReleaseRunLock(ctx context.Context, token string) error
}

// Publisher 由 events.Publisher 实现
type Publisher interface {
	PublishPlanEvent(ctx context.Context, event domain.PlanEvent) error
}

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	store      Store
	translator ut.Translator
	previews   PreviewCache
	publisher  Publisher
	plant      *domain.Plant
	group      singleflight.Group // 合并同一时刻发起的排产请求

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, store Store, previews PreviewCache, publisher Publisher, plant *domain.Plant) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	// 工序必须是车间配置中的标准工序
	if err := validate.RegisterValidation("process", func(fl validator.FieldLevel) bool {
		return slices.Contains(plant.ProcessOrder, domain.Process(fl.Field().String()))
	}); err != nil {
		return nil, err
	}
	if err := validate.RegisterTranslation("process", trans,
		func(ut ut.Translator) error {
			return ut.Add("process", "{0}不是有效的工序", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("process", fe.Field())
			return t
		},
	); err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		store:      store,
		translator: trans,
		previews:   previews,
		publisher:  publisher,
		plant:      plant,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 所有 API 都需要携带工厂统一认证签发的令牌
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.GetOpenOrders)
			r.With(h.RequiredRole([]domain.Role{domain.RolePlanner})).Put("/{id}/blacklist", h.SetOrderBlacklisted)
		})

		r.Route("/plans", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RolePlanner})).Post("/generate", h.GeneratePlan)
			r.Get("/latest", h.GetLatestPlan)
			r.Route("/{runID}", func(r chi.Router) {
				r.Use(h.preview)
				r.Get("/", h.GetPlanPreview)
				r.With(h.RequiredRole([]domain.Role{domain.RolePlanner})).Post("/commit", h.CommitPlan)
			})
		})

		r.Route("/overrides", func(r chi.Router) {
			r.Get("/", h.GetOverrides)
			r.Group(func(r chi.Router) {
				r.Use(h.RequiredRole([]domain.Role{domain.RolePlanner}))
				r.Put("/tasks", h.UpsertTaskOverrides)
				r.Put("/machine-priorities", h.UpsertMachinePriorities)
			})
		})

		r.Route("/calendar", func(r chi.Router) {
			r.Use(h.RequiredRole([]domain.Role{domain.RolePlanner}))
			r.Post("/downtimes", h.CreateDowntime)
			r.Put("/overtime", h.UpsertOvertimeGrant)
		})
	})
}

func (h *Handler) location() *time.Location {
	if loc := h.plant.Calendar.Location; loc != nil {
		return loc
	}
	return time.Local
}

// midnight 返回 t 在车间时区所在日期的零点
func (h *Handler) midnight(t time.Time) time.Time {
	t = t.In(h.location())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
