package domain

import "slices"

type InkTech string

const (
	InkUnknown InkTech = ""
	InkFlexo   InkTech = "flexo"
	InkOffset  InkTech = "offset"
)

// Envelope 描述尺寸包络，比较时与方向无关（短边比短边，长边比长边）
type Envelope struct {
	Short float64 `json:"short"`
	Long  float64 `json:"long"`
}

func NewEnvelope(a, b float64) Envelope {
	if a > b {
		a, b = b, a
	}
	return Envelope{Short: a, Long: b}
}

// Capabilities 在加载配置时一次性解析，调度时不再从机器名称中推断
type Capabilities struct {
	InkTech   InkTech   `json:"inkTech"`
	Automatic bool      `json:"automatic"`
	Window    bool      `json:"window"`
	GlueTypes []string  `json:"glueTypes"`
	MinSheet  *Envelope `json:"minSheet"`
	MaxSheet  *Envelope `json:"maxSheet"`
}

type Machine struct {
	Name                string       `json:"name"`
	Process             Process      `json:"process"`
	SharedProcesses     []Process    `json:"sharedProcesses"`
	Throughput          float64      `json:"throughput"` // 单位/小时
	BaseSetupMinutes    float64      `json:"baseSetupMinutes"`
	ReducedSetupMinutes float64      `json:"reducedSetupMinutes"`
	Capabilities        Capabilities `json:"capabilities"`
}

func (m *Machine) Performs(p Process) bool {
	return m.Process == p || slices.Contains(m.SharedProcesses, p)
}

// Fits 检查板材尺寸是否落在机器声明的尺寸范围内
func (m *Machine) Fits(width, length float64) bool {
	sheet := NewEnvelope(width, length)
	if lo := m.Capabilities.MinSheet; lo != nil {
		if sheet.Short < lo.Short || sheet.Long < lo.Long {
			return false
		}
	}
	if hi := m.Capabilities.MaxSheet; hi != nil {
		if sheet.Short > hi.Short || sheet.Long > hi.Long {
			return false
		}
	}
	return true
}

type Plant struct {
	Machines     []*Machine           `json:"machines"`
	ProcessOrder []Process            `json:"processOrder"`
	Calendar     CalendarConfig       `json:"calendar"`
	InkKeywords  map[InkTech][]string `json:"inkKeywords"`
}

func (p *Plant) MachinesFor(process Process) []*Machine {
	var ms []*Machine
	for _, m := range p.Machines {
		if m.Performs(process) {
			ms = append(ms, m)
		}
	}
	return ms
}

func (p *Plant) Machine(name string) *Machine {
	for _, m := range p.Machines {
		if m.Name == name {
			return m
		}
	}
	return nil
}
