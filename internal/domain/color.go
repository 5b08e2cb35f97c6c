package domain

import (
	"slices"
	"strings"
	"unicode"
)

// NormalizeColor 将颜色签名归一化：大写、按非字母数字字符切分、排序后用 + 连接
func NormalizeColor(sig string) string {
	tokens := strings.FieldsFunc(strings.ToUpper(sig), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	slices.Sort(tokens)
	tokens = slices.Compact(tokens)
	return strings.Join(tokens, "+")
}

// IsProcessColor 判断是否为四色（CMYK）印刷
func IsProcessColor(sig string) bool {
	tokens := strings.Split(NormalizeColor(sig), "+")
	if len(tokens) == 1 && (tokens[0] == "CMYK" || tokens[0] == "4C") {
		return true
	}
	for _, c := range []string{"C", "M", "Y", "K"} {
		if !slices.Contains(tokens, c) {
			return false
		}
	}
	return true
}
