// Package plant 读取车间配置文件（机器表、工作日历、标准工序顺序），转换为调度器使用的 domain.Plant。
//
// 机器能力在这里一次性解析：配置中显式给出的能力优先，缺省时才根据机器名称推断。
package plant

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // 容器镜像里可能没有时区数据

	"github.com/go-playground/validator/v10"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
	"gopkg.in/yaml.v3"
)

type File struct {
	Timezone     string              `yaml:"timezone" validate:"required"`
	Calendar     CalendarSpec        `yaml:"calendar" validate:"required"`
	ProcessOrder []string            `yaml:"processOrder" validate:"required,min=1,unique,dive,process"`
	InkKeywords  map[string][]string `yaml:"inkKeywords" validate:"dive,keys,oneof=flexo offset,endkeys"`
	Machines     []MachineSpec       `yaml:"machines" validate:"required,min=1,unique=Name,dive"`
}

type CalendarSpec struct {
	DayStart    string   `yaml:"dayStart" validate:"required,clock"`
	HoursPerDay float64  `yaml:"hoursPerDay" validate:"gt=0,lte=24"`
	LunchStart  string   `yaml:"lunchStart" validate:"omitempty,clock"`
	LunchEnd    string   `yaml:"lunchEnd" validate:"omitempty,clock"`
	Holidays    []string `yaml:"holidays" validate:"dive,datetime=2006-01-02"`
}

type MachineSpec struct {
	Name                string    `yaml:"name" validate:"required"`
	Process             string    `yaml:"process" validate:"required,process"`
	SharedProcesses     []string  `yaml:"sharedProcesses" validate:"dive,process"`
	Throughput          float64   `yaml:"throughput" validate:"gte=0"` // 0 表示尚未标定，任务会以 0 时长排入并标记
	BaseSetupMinutes    float64   `yaml:"baseSetupMinutes" validate:"gte=0"`
	ReducedSetupMinutes float64   `yaml:"reducedSetupMinutes" validate:"gte=0,ltefield=BaseSetupMinutes"`
	Ink                 string    `yaml:"ink" validate:"omitempty,oneof=flexo offset"`
	Automatic           *bool     `yaml:"automatic"`
	Window              *bool     `yaml:"window"`
	GlueTypes           []string  `yaml:"glueTypes"`
	MinSheet            []float64 `yaml:"minSheet" validate:"omitempty,len=2,dive,gt=0"`
	MaxSheet            []float64 `yaml:"maxSheet" validate:"omitempty,len=2,dive,gt=0"`
}

var processes = map[string]domain.Process{
	string(domain.ProcessBobbinCut): domain.ProcessBobbinCut,
	string(domain.ProcessPrint):     domain.ProcessPrint,
	string(domain.ProcessVarnish):   domain.ProcessVarnish,
	string(domain.ProcessDieCut):    domain.ProcessDieCut,
	string(domain.ProcessWindow):    domain.ProcessWindow,
	string(domain.ProcessGlue):      domain.ProcessGlue,
}

func newValidator() (*validator.Validate, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("process", func(fl validator.FieldLevel) bool {
		_, ok := processes[fl.Field().String()]
		return ok
	}); err != nil {
		return nil, err
	}
	if err := validate.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := parseClock(fl.Field().String())
		return err == nil
	}); err != nil {
		return nil, err
	}
	return validate, nil
}

// Load 读取并解析车间配置文件
func Load(path string) (*domain.Plant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取车间配置文件 %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*domain.Plant, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("车间配置文件格式错误: %w", err)
	}

	validate, err := newValidator()
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("车间配置校验失败: %w", err)
	}

	return f.toPlant()
}

func (f *File) toPlant() (*domain.Plant, error) {
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return nil, fmt.Errorf("无法识别的时区 %s: %w", f.Timezone, err)
	}

	cal := domain.CalendarConfig{HoursPerDay: f.Calendar.HoursPerDay, Location: loc}
	cal.DayStart, _ = parseClock(f.Calendar.DayStart)
	if (f.Calendar.LunchStart == "") != (f.Calendar.LunchEnd == "") {
		return nil, fmt.Errorf("午休开始和结束时间必须同时配置")
	}
	if f.Calendar.LunchStart != "" {
		cal.LunchStart, _ = parseClock(f.Calendar.LunchStart)
		cal.LunchEnd, _ = parseClock(f.Calendar.LunchEnd)
		if cal.LunchEnd <= cal.LunchStart {
			return nil, fmt.Errorf("午休结束时间必须晚于开始时间")
		}
	}
	for _, h := range f.Calendar.Holidays {
		day, _ := time.ParseInLocation(time.DateOnly, h, loc)
		cal.Holidays = append(cal.Holidays, day)
	}

	p := &domain.Plant{Calendar: cal}
	for _, name := range f.ProcessOrder {
		p.ProcessOrder = append(p.ProcessOrder, processes[name])
	}
	if len(f.InkKeywords) > 0 {
		p.InkKeywords = make(map[domain.InkTech][]string, len(f.InkKeywords))
		for tech, kws := range f.InkKeywords {
			p.InkKeywords[domain.InkTech(tech)] = kws
		}
	}
	for i := range f.Machines {
		p.Machines = append(p.Machines, f.Machines[i].toMachine())
	}

	for _, proc := range p.ProcessOrder {
		if len(p.MachinesFor(proc)) == 0 {
			return nil, fmt.Errorf("工序 %s 没有配置任何机器", proc)
		}
	}

	return p, nil
}

func (s *MachineSpec) toMachine() *domain.Machine {
	m := &domain.Machine{
		Name:                s.Name,
		Process:             processes[s.Process],
		Throughput:          s.Throughput,
		BaseSetupMinutes:    s.BaseSetupMinutes,
		ReducedSetupMinutes: s.ReducedSetupMinutes,
		Capabilities: domain.Capabilities{
			InkTech:   domain.InkTech(s.Ink),
			Automatic: inferFlag(s.Automatic, s.Name, "auto"),
			Window:    inferFlag(s.Window, s.Name, "ventana", "window"),
			GlueTypes: s.GlueTypes,
			MinSheet:  envelope(s.MinSheet),
			MaxSheet:  envelope(s.MaxSheet),
		},
	}
	for _, sp := range s.SharedProcesses {
		m.SharedProcesses = append(m.SharedProcesses, processes[sp])
	}
	return m
}

// inferFlag 显式配置优先，否则根据机器名称中的关键字推断
func inferFlag(explicit *bool, name string, keywords ...string) bool {
	if explicit != nil {
		return *explicit
	}
	name = strings.ToLower(name)
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

func envelope(dims []float64) *domain.Envelope {
	if len(dims) != 2 {
		return nil
	}
	e := domain.NewEnvelope(dims[0], dims[1])
	return &e
}

// parseClock 解析 "07:30" 格式的时刻，返回距离零点的时长
func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
