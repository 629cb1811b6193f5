// Package classify распознаёт, является ли входящее сообщение
// коммерческим предложением или обычной перепиской.
package classify

import (
	"strings"
	"unicode"
)

// Фиксированный набор ключевых слов: цена/предложение/валюта.
// Ключи сопоставляются только как целые слова (см. containsWord), поэтому
// словоформы вне списка не распознаются: "ценой" или "стоимостью" не
// совпадут с "цена"/"стоимость". Нужную форму добавляют в список явно.
var offerKeywords = []string{
	"цена",
	"цены",
	"стоимость",
	"прайс",
	"кп",
	"коммерческое предложение",
	"предложение",
	"счет",
	"счёт",
	"тенге",
	"тг",
	"руб",
	"usd",
	"eur",
	"quote",
	"offer",
	"price",
}

// IsCommercialOffer: сообщение считается КП, если в тексте (в нижнем
// регистре) встречается любое ключевое слово, либо к сообщению приложен
// документ/изображение и в тексте есть хотя бы одна цифра.
func IsCommercialOffer(text string, hasAttachment bool) bool {
	lower := strings.ToLower(text)
	for _, kw := range offerKeywords {
		if containsWord(lower, kw) {
			return true
		}
	}
	if hasAttachment && containsDigit(lower) {
		return true
	}
	return false
}

// IsAttachmentType сообщает, несёт ли тип сообщения шлюза вложение.
func IsAttachmentType(msgType string) bool {
	switch strings.ToLower(msgType) {
	case "document", "image", "file", "pdf":
		return true
	}
	return false
}

// containsWord ищет ключ как отдельное слово, чтобы короткие ключи
// ("кп", "тг") не срабатывали внутри других слов.
func containsWord(text, kw string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], kw)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(kw)
		beforeOK := start == 0 || !isWordRune(lastRuneBefore(text, start))
		afterOK := end == len(text) || !isWordRune(firstRuneAt(text, end))
		if beforeOK && afterOK {
			return true
		}
		idx = start + len(kw)
		if idx >= len(text) {
			return false
		}
	}
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func lastRuneBefore(s string, idx int) rune {
	r := rune(0)
	for _, rr := range s[:idx] {
		r = rr
	}
	return r
}

func firstRuneAt(s string, idx int) rune {
	for _, rr := range s[idx:] {
		return rr
	}
	return 0
}
