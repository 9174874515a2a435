package transfer

import (
	"strconv"
	"strings"
)

// parseConfirmation 识别确认类输入。第二个返回值表示输入是否可识别；
// 不可识别时状态机原地等待，不推进也不终止。
func parseConfirmation(input string) (confirmed, ok bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "yes", "y", "confirm", "ok", "是", "确认", "好", "好的":
		return true, true
	case "no", "n", "cancel", "否", "取消", "不", "不要":
		return false, true
	default:
		return false, false
	}
}

// parseAmount 从自由文本中解析金额与可选的币种代码（三位字母）。
// 例如 "1000"、"1000 INR"、"INR 1000"。
func parseAmount(input string) (amount float64, currency string, ok bool) {
	fields := strings.Fields(strings.TrimSpace(input))
	if len(fields) == 0 {
		return 0, "", false
	}
	found := false
	for _, field := range fields {
		token := strings.TrimRight(field, ",.;")
		if !found {
			if value, err := strconv.ParseFloat(strings.ReplaceAll(token, ",", ""), 64); err == nil {
				amount = value
				found = true
				continue
			}
		}
		if currency == "" && isCurrencyCode(token) {
			currency = strings.ToUpper(token)
		}
	}
	return amount, currency, found
}

func isCurrencyCode(token string) bool {
	if len(token) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		c := token[i]
		if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')) {
			return false
		}
	}
	return true
}
