package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/cache"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/config"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/plant"
)

const testSecret = "test-secret"

type fakeStore struct {
	orders     []*domain.WorkOrder
	overrides  []*domain.TaskOverride
	priorities []*domain.MachinePriority
	downtimes  []domain.Downtime
	grants     []domain.OvertimeGrant
	locks      []domain.LockRecord
	runs       []*domain.ScheduleRun
	insertErr  error
}

func (s *fakeStore) hasOrder(id string) bool {
	for _, o := range s.orders {
		if o.ID == id {
			return true
		}
	}
	return false
}

func (s *fakeStore) ListOpenOrders() ([]*domain.WorkOrder, error) { return s.orders, nil }

func (s *fakeStore) SetOrderBlacklisted(id string, _ bool) error {
	if !s.hasOrder(id) {
		return sql.ErrNoRows
	}
	return nil
}

func (s *fakeStore) GetOverrides() (*domain.Overrides, error) {
	ov := domain.NewOverrides()
	for _, o := range s.overrides {
		ov.AddTaskOverride(*o)
	}
	for _, p := range s.priorities {
		ov.PriorityByMachine[domain.OrderMachineKey{OrderID: p.OrderID, Machine: p.Machine}] = p.Priority
	}
	return ov, nil
}

func (s *fakeStore) ListTaskOverrides() ([]*domain.TaskOverride, error) { return s.overrides, nil }

func (s *fakeStore) ListMachinePriorities() ([]*domain.MachinePriority, error) {
	return s.priorities, nil
}

func (s *fakeStore) UpsertTaskOverride(o *domain.TaskOverride) error {
	if !s.hasOrder(o.OrderID) {
		return &pgconn.PgError{Code: "23503", ConstraintName: "task_overrides_order_id_fkey"}
	}
	s.overrides = append(s.overrides, o)
	return nil
}

func (s *fakeStore) UpsertMachinePriority(p *domain.MachinePriority) error {
	if !s.hasOrder(p.OrderID) {
		return &pgconn.PgError{Code: "23503", ConstraintName: "machine_priorities_order_id_fkey"}
	}
	s.priorities = append(s.priorities, p)
	return nil
}

func (s *fakeStore) ListDowntimes(time.Time) ([]domain.Downtime, error) { return s.downtimes, nil }

func (s *fakeStore) CreateDowntime(d *domain.Downtime) error {
	s.downtimes = append(s.downtimes, *d)
	return nil
}

func (s *fakeStore) ListOvertimeGrants(time.Time) ([]domain.OvertimeGrant, error) {
	return s.grants, nil
}

func (s *fakeStore) UpsertOvertimeGrant(g *domain.OvertimeGrant) error {
	s.grants = append(s.grants, *g)
	return nil
}

func (s *fakeStore) GetLocks(time.Time) ([]domain.LockRecord, error) { return s.locks, nil }

func (s *fakeStore) InsertScheduleRun(run *domain.ScheduleRun, locks []domain.LockRecord) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	run.CreatedAt = time.Now()
	s.runs = append(s.runs, run)
	s.locks = locks
	return nil
}

func (s *fakeStore) GetLatestScheduleRun() (*domain.ScheduleRun, error) {
	if len(s.runs) == 0 {
		return nil, sql.ErrNoRows
	}
	return s.runs[len(s.runs)-1], nil
}

type fakeCache struct {
	mu       sync.Mutex
	previews map[string]*domain.Plan
	holder   string
	saveTTL  time.Duration // 保存预览时上下文的剩余时间
}

func (c *fakeCache) SavePreview(ctx context.Context, runID string, plan *domain.Plan) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		c.saveTTL = time.Until(deadline)
	}
	c.previews[runID] = plan
	return nil
}

func (c *fakeCache) GetPreview(_ context.Context, runID string) (*domain.Plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	plan, ok := c.previews[runID]
	if !ok {
		return nil, cache.ErrPreviewNotFound
	}
	return plan, nil
}

func (c *fakeCache) DeletePreview(_ context.Context, runID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.previews, runID)
	return nil
}

func (c *fakeCache) AcquireRunLock(_ context.Context, token string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holder != "" {
		return false, nil
	}
	c.holder = token
	return true, nil
}

func (c *fakeCache) ReleaseRunLock(_ context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holder == token {
		c.holder = ""
	}
	return nil
}

type fakePublisher struct {
	events []domain.PlanEvent
	err    error
}

func (p *fakePublisher) PublishPlanEvent(_ context.Context, event domain.PlanEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type testEnv struct {
	h         *Handler
	store     *fakeStore
	cache     *fakeCache
	publisher *fakePublisher
	plant     *domain.Plant
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	p, err := plant.Load(filepath.Join("..", "..", "configs", "plant.yaml"))
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.JWT.Secret = testSecret
	cfg.Planner.HighVolumeQuantity = 3000
	cfg.Planner.HighCavityCount = 4
	cfg.Planner.ColorClusterWindowHours = 24
	cfg.Planner.SoftLockPriority = 1000
	cfg.Planner.RunTimeout = 45
	cfg.Redis.OperationTimeout = 2

	env := &testEnv{
		store:     &fakeStore{orders: []*domain.WorkOrder{testOrder()}},
		cache:     &fakeCache{previews: make(map[string]*domain.Plan)},
		publisher: &fakePublisher{},
		plant:     p,
	}
	env.h, err = NewHandler(cfg, env.store, env.cache, env.publisher, p)
	require.NoError(t, err)
	env.h.RegisterRoutes()

	return env
}

func testOrder() *domain.WorkOrder {
	return &domain.WorkOrder{
		ID:          "CJ10023-01",
		ProductCode: "CJ10023",
		SubCode:     "01",
		Client:      "立白日化",
		DueDate:     time.Date(2026, time.October, 23, 17, 0, 0, 0, time.UTC),
		Quantity:    1500,
		Material:    "cartulina 350g",
		Color:       "CMYK",
		DieCode:     "D-118",
		SheetWidth:  70,
		SheetLength: 100,
		UpsPerSheet: 1,
		Cavities:    1,
		Pending:     map[domain.Process]bool{domain.ProcessPrint: true, domain.ProcessDieCut: true},
	}
}

func token(t *testing.T, role domain.Role) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	ss, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return ss
}

func (e *testEnv) do(t *testing.T, method, path string, role domain.Role, body any) Response {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, role))
	}
	rec := httptest.NewRecorder()
	e.h.Mux.ServeHTTP(rec, req)

	var res Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	return res
}

var horizon = map[string]any{"horizonStart": "2026-10-19T07:00:00-06:00"}

func TestAuth(t *testing.T) {
	env := newTestEnv(t)

	res := env.do(t, http.MethodGet, "/orders", "", nil)
	assert.False(t, res.Success)
	assert.Equal(t, "用户未登录", res.Message)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	env.h.Mux.ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), "无效的令牌")

	res = env.do(t, http.MethodGet, "/orders", domain.RoleViewer, nil)
	assert.True(t, res.Success)
	assert.Len(t, res.Data, 1)

	res = env.do(t, http.MethodPost, "/plans/generate", domain.RoleViewer, horizon)
	assert.False(t, res.Success)
	assert.Equal(t, "权限不足", res.Message)
}

func TestGenerateAndCommit(t *testing.T) {
	env := newTestEnv(t)

	res := env.do(t, http.MethodPost, "/plans/generate", domain.RolePlanner, horizon)
	require.True(t, res.Success, res.Message)

	data := res.Data.(map[string]any)
	runID := data["runID"].(string)
	_, err := uuid.Parse(runID)
	require.NoError(t, err)
	entries := data["plan"].(map[string]any)["entries"].([]any)
	assert.Len(t, entries, 2)
	assert.Empty(t, env.cache.holder, "排产结束后应释放锁")
	// 缓存预览不沿用排产的超时
	assert.Positive(t, env.cache.saveTTL)
	assert.LessOrEqual(t, env.cache.saveTTL, 2*time.Second)

	res = env.do(t, http.MethodGet, "/plans/"+runID, domain.RoleViewer, nil)
	require.True(t, res.Success, res.Message)

	res = env.do(t, http.MethodPost, "/plans/"+runID+"/commit", domain.RolePlanner, nil)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "计划已确认", res.Message)

	require.Len(t, env.store.runs, 1)
	assert.Equal(t, runID, env.store.runs[0].ID)
	assert.Equal(t, "alice", env.store.runs[0].CommittedBy)

	// 两道工序都在起始日完成，全部成为严格锁定
	require.Len(t, env.store.locks, 2)
	for _, l := range env.store.locks {
		assert.Equal(t, domain.LockStrict, l.Kind)
		assert.Equal(t, "2026-10-19", l.Date.Format(time.DateOnly))
	}

	require.Len(t, env.publisher.events, 1)
	assert.Equal(t, domain.EventPlanCommitted, env.publisher.events[0].Type)
	assert.Equal(t, runID, env.publisher.events[0].RunID)

	res = env.do(t, http.MethodGet, "/plans/"+runID, domain.RoleViewer, nil)
	assert.False(t, res.Success)
	assert.Equal(t, "预览计划不存在或已过期", res.Message)

	res = env.do(t, http.MethodGet, "/plans/latest", domain.RoleViewer, nil)
	require.True(t, res.Success)
	assert.Equal(t, runID, res.Data.(map[string]any)["id"])

	// 再次排产时读取到锁定，条目原样保留
	res = env.do(t, http.MethodPost, "/plans/generate", domain.RolePlanner, horizon)
	require.True(t, res.Success, res.Message)
	for _, e := range res.Data.(map[string]any)["plan"].(map[string]any)["entries"].([]any) {
		assert.Contains(t, e.(map[string]any)["flags"], string(domain.FlagLocked))
	}
}

func TestGenerateWhileRunning(t *testing.T) {
	env := newTestEnv(t)
	env.cache.holder = "another-instance"

	res := env.do(t, http.MethodPost, "/plans/generate", domain.RolePlanner, horizon)
	assert.False(t, res.Success)
	assert.Equal(t, errPlanRunning.Error(), res.Message)
	assert.Empty(t, env.cache.previews)
}

func TestCommitErrors(t *testing.T) {
	env := newTestEnv(t)

	res := env.do(t, http.MethodPost, "/plans/not-a-uuid/commit", domain.RolePlanner, nil)
	assert.Equal(t, "计划ID无效", res.Message)

	res = env.do(t, http.MethodPost, "/plans/"+uuid.NewString()+"/commit", domain.RolePlanner, nil)
	assert.Equal(t, "预览计划不存在或已过期", res.Message)

	runID := uuid.NewString()
	env.cache.previews[runID] = &domain.Plan{HorizonStart: time.Date(2026, time.October, 19, 13, 0, 0, 0, time.UTC)}

	env.store.insertErr = &pgconn.PgError{Code: "23505", ConstraintName: "schedule_runs_pkey"}
	res = env.do(t, http.MethodPost, "/plans/"+runID+"/commit", domain.RolePlanner, nil)
	assert.False(t, res.Success)
	assert.Equal(t, "该计划已经确认过", res.Message)

	env.store.insertErr = nil
	env.publisher.err = errors.New("amqp: channel closed")
	res = env.do(t, http.MethodPost, "/plans/"+runID+"/commit", domain.RolePlanner, nil)
	assert.True(t, res.Success)
	assert.Equal(t, "计划已确认，但延期预警发送失败", res.Message)
}

func TestOverrides(t *testing.T) {
	env := newTestEnv(t)

	res := env.do(t, http.MethodPut, "/overrides/tasks", domain.RolePlanner, map[string]any{
		"overrides": []map[string]any{{"orderID": "CJ10023-01", "process": "laminate"}},
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "不是有效的工序")

	res = env.do(t, http.MethodPut, "/overrides/tasks", domain.RolePlanner, map[string]any{
		"overrides": []map[string]any{{"orderID": "CJ10023-01", "process": "die_cut", "machine": "TROQUELADORA 9"}},
	})
	assert.Equal(t, "机器 TROQUELADORA 9 不存在", res.Message)

	res = env.do(t, http.MethodPut, "/overrides/tasks", domain.RolePlanner, map[string]any{
		"overrides": []map[string]any{{"orderID": "XX00000-00", "process": "print", "outsourced": true}},
	})
	assert.Equal(t, "工单 XX00000-00 不存在", res.Message)

	res = env.do(t, http.MethodPut, "/overrides/tasks", domain.RolePlanner, map[string]any{
		"overrides": []map[string]any{{"orderID": "CJ10023-01", "process": "die_cut", "machine": "TROQUELADORA AUTO BOBST", "priority": 2}},
	})
	require.True(t, res.Success, res.Message)

	res = env.do(t, http.MethodPut, "/overrides/machine-priorities", domain.RolePlanner, map[string]any{
		"priorities": []map[string]any{{"orderID": "CJ10023-01", "machine": "HEIDELBERG CD102", "priority": 1}},
	})
	require.True(t, res.Success, res.Message)

	res = env.do(t, http.MethodGet, "/overrides", domain.RoleViewer, nil)
	require.True(t, res.Success)
	data := res.Data.(map[string]any)
	assert.Len(t, data["tasks"], 1)
	assert.Len(t, data["machinePriorities"], 1)

	// 人工指定的机器在排产中生效
	res = env.do(t, http.MethodPost, "/plans/generate", domain.RolePlanner, horizon)
	require.True(t, res.Success, res.Message)
	machines := map[string]string{}
	for _, e := range res.Data.(map[string]any)["plan"].(map[string]any)["entries"].([]any) {
		entry := e.(map[string]any)
		machines[entry["process"].(string)] = entry["machine"].(string)
	}
	assert.Equal(t, "TROQUELADORA AUTO BOBST", machines["die_cut"])
	assert.Equal(t, "HEIDELBERG CD102", machines["print"])
}

func TestBlacklist(t *testing.T) {
	env := newTestEnv(t)

	res := env.do(t, http.MethodPut, "/orders/CJ10023-01/blacklist", domain.RolePlanner, map[string]any{})
	assert.False(t, res.Success)

	res = env.do(t, http.MethodPut, "/orders/XX00000-00/blacklist", domain.RolePlanner, map[string]any{"blacklisted": true})
	assert.Equal(t, "工单不存在", res.Message)

	res = env.do(t, http.MethodPut, "/orders/CJ10023-01/blacklist", domain.RolePlanner, map[string]any{"blacklisted": true})
	assert.True(t, res.Success)
	assert.Equal(t, "工单已加入黑名单", res.Message)
}

func TestCalendar(t *testing.T) {
	env := newTestEnv(t)

	res := env.do(t, http.MethodPost, "/calendar/downtimes", domain.RolePlanner, map[string]any{
		"machine": "FLEXO 1",
		"start":   "2026-10-19T10:00:00-06:00",
		"end":     "2026-10-19T09:00:00-06:00",
	})
	assert.False(t, res.Success)

	res = env.do(t, http.MethodPost, "/calendar/downtimes", domain.RolePlanner, map[string]any{
		"machine": "FLEXO 1",
		"start":   "2026-10-19T09:00:00-06:00",
		"end":     "2026-10-19T11:00:00-06:00",
	})
	require.True(t, res.Success, res.Message)
	assert.Len(t, env.store.downtimes, 1)

	res = env.do(t, http.MethodPut, "/calendar/overtime", domain.RolePlanner, map[string]any{"date": "2026/10/24", "hours": 4})
	assert.False(t, res.Success)

	res = env.do(t, http.MethodPut, "/calendar/overtime", domain.RolePlanner, map[string]any{"date": "2026-10-24", "hours": 4})
	require.True(t, res.Success, res.Message)
	require.Len(t, env.store.grants, 1)
	assert.Equal(t, "", env.store.grants[0].Machine)
	assert.Equal(t, "2026-10-24", env.store.grants[0].Date.Format(time.DateOnly))

	res = env.do(t, http.MethodPut, "/calendar/overtime", domain.RoleViewer, map[string]any{"date": "2026-10-24", "hours": 4})
	assert.Equal(t, "权限不足", res.Message)
}
