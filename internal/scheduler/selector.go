package scheduler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

// 默认的材料关键字，用于推断印刷所需的油墨工艺
var defaultInkKeywords = map[domain.InkTech][]string{
	domain.InkFlexo:  {"corrugado", "microcanal", "canal", "corrugated", "flute"},
	domain.InkOffset: {"cartulina", "carton", "cartón", "cardboard", "papel", "paper", "folding"},
}

type Selector struct {
	plant      *domain.Plant
	parameters *Parameters
	keywords   map[domain.InkTech][]string
}

func NewSelector(plant *domain.Plant, parameters *Parameters) *Selector {
	keywords := plant.InkKeywords
	if len(keywords) == 0 {
		keywords = defaultInkKeywords
	}
	return &Selector{
		plant:      plant,
		parameters: parameters,
		keywords:   keywords,
	}
}

// InferInk 根据材料描述推断油墨工艺，柔印关键字优先匹配
func (s *Selector) InferInk(material string) domain.InkTech {
	material = strings.ToLower(material)
	for _, tech := range []domain.InkTech{domain.InkFlexo, domain.InkOffset} {
		for _, kw := range s.keywords[tech] {
			if kw != "" && strings.Contains(material, strings.ToLower(kw)) {
				return tech
			}
		}
	}
	return domain.InkUnknown
}

// Select 为某道工序选择机器，没有合适的机器时返回 nil
func (s *Selector) Select(process domain.Process, order *domain.WorkOrder) *domain.Machine {
	candidates := s.plant.MachinesFor(process)
	if len(candidates) == 0 {
		return nil
	}

	switch process {
	case domain.ProcessDieCut:
		return s.selectDieCutter(candidates, order)
	case domain.ProcessPrint:
		ink := s.InferInk(order.Material)
		if m := firstWhere(candidates, func(m *domain.Machine) bool {
			return ink != domain.InkUnknown && m.Capabilities.InkTech == ink
		}); m != nil {
			return m
		}
	case domain.ProcessWindow:
		if m := firstWhere(candidates, func(m *domain.Machine) bool { return m.Capabilities.Window }); m != nil {
			return m
		}
	case domain.ProcessGlue:
		if m := firstWhere(candidates, func(m *domain.Machine) bool {
			return order.GlueType != "" && slices.Contains(m.Capabilities.GlueTypes, order.GlueType)
		}); m != nil {
			return m
		}
		if m := firstWhere(candidates, func(m *domain.Machine) bool { return len(m.Capabilities.GlueTypes) == 0 }); m != nil {
			return m
		}
	}

	return candidates[0]
}

// isHighVolume 大批量或多穴刀模的任务优先使用自动模切机
func (s *Selector) isHighVolume(order *domain.WorkOrder) bool {
	if s.parameters.HighVolumeQuantity > 0 && order.Quantity > s.parameters.HighVolumeQuantity {
		return true
	}
	return s.parameters.HighCavityCount > 0 && order.Cavities >= s.parameters.HighCavityCount
}

func (s *Selector) selectDieCutter(candidates []*domain.Machine, order *domain.WorkOrder) *domain.Machine {
	fits := func(automatic bool) func(*domain.Machine) bool {
		return func(m *domain.Machine) bool {
			return m.Capabilities.Automatic == automatic && m.Fits(order.SheetWidth, order.SheetLength)
		}
	}

	// 小批量的任务优先用手动机，把自动机的产能留给大批量任务
	preferred, fallback := fits(false), fits(true)
	if s.isHighVolume(order) {
		preferred, fallback = fallback, preferred
	}

	if m := firstWhere(candidates, preferred); m != nil {
		return m
	}
	return firstWhere(candidates, fallback)
}

// Validate 检查人工指定的机器是否满足工序的物理和业务约束
func (s *Selector) Validate(m *domain.Machine, process domain.Process, order *domain.WorkOrder) error {
	if !m.Performs(process) {
		return fmt.Errorf("机器 %s 不能执行工序 %s", m.Name, process)
	}

	switch process {
	case domain.ProcessDieCut:
		if !m.Fits(order.SheetWidth, order.SheetLength) {
			return fmt.Errorf("机器 %s 不支持 %.1fx%.1f 的板材尺寸", m.Name, order.SheetWidth, order.SheetLength)
		}
	case domain.ProcessPrint:
		ink := s.InferInk(order.Material)
		if ink != domain.InkUnknown && m.Capabilities.InkTech != domain.InkUnknown && m.Capabilities.InkTech != ink {
			return fmt.Errorf("机器 %s 的油墨工艺 %s 与材料 %s 不匹配", m.Name, m.Capabilities.InkTech, order.Material)
		}
	case domain.ProcessGlue:
		if order.GlueType != "" && len(m.Capabilities.GlueTypes) > 0 && !slices.Contains(m.Capabilities.GlueTypes, order.GlueType) {
			return fmt.Errorf("机器 %s 不支持胶水类型 %s", m.Name, order.GlueType)
		}
	}

	return nil
}

func firstWhere(ms []*domain.Machine, pred func(*domain.Machine) bool) *domain.Machine {
	for _, m := range ms {
		if pred(m) {
			return m
		}
	}
	return nil
}
