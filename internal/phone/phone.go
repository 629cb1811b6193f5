// Package phone нормализует номера, приходящие от WhatsApp-шлюза.
package phone

import "strings"

// Normalize приводит номер из шлюза к каноническому виду:
// отрезается суффикс "@c.us", остаются только цифры, ведущая 8 меняется
// на 7, десятизначный номер дополняется кодом страны 7.
func Normalize(raw string) string {
	if i := strings.Index(raw, "@"); i >= 0 {
		raw = raw[:i]
	}

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 11 && digits[0] == '8':
		return "7" + digits[1:]
	case len(digits) == 10:
		return "7" + digits
	default:
		return digits
	}
}

// ToGatewayFormat возвращает адрес чата в формате шлюза.
func ToGatewayFormat(normalized string) string {
	return normalized + "@c.us"
}
