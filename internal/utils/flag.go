package utils

import (
	"fmt"
	"strings"
)

// 导入订单数据时可接受的布尔值写法，统一在这里维护
var (
	trueTokens  = []string{"1", "true", "t", "yes", "y", "si", "sí", "s", "x", "pendiente", "pending", "是", "待处理"}
	falseTokens = []string{"", "0", "false", "f", "no", "n", "-", "listo", "done", "否", "已完成"}
)

var flagTokens = func() map[string]bool {
	m := make(map[string]bool, len(trueTokens)+len(falseTokens))
	for _, t := range trueTokens {
		m[t] = true
	}
	for _, t := range falseTokens {
		m[t] = false
	}
	return m
}()

// ParseFlag 将导入数据中的各种布尔写法转换成 bool，无法识别的写法返回错误
func ParseFlag(raw string) (bool, error) {
	v, ok := flagTokens[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return false, fmt.Errorf("无法识别的布尔值 %q", raw)
	}
	return v, nil
}
