package classify_test

import (
	"testing"

	"procurement/internal/classify"

	"github.com/stretchr/testify/require"
)

func TestIsCommercialOffer(t *testing.T) {
	cases := []struct {
		name       string
		text       string
		attachment bool
		want       bool
	}{
		{"цена с суммой", "Цена 15000 тенге, поставка 3 дня", false, true},
		{"приветствие", "привет, как дела?", false, false},
		{"прайс", "Отправляю наш прайс", false, true},
		{"кп отдельным словом", "Наше КП во вложении", false, true},
		{"документ с цифрами", "смотрите файл, позиций 12", true, true},
		{"документ без цифр", "смотрите вложение", true, false},
		{"валюта руб", "Итого 44 500 руб с НДС", false, true},
		{"вопрос о статусе", "когда будет оплата?", false, false},
		{"тг внутри слова", "отгрузка завтра утром", false, false},
		{"словоформа вне списка", "интересуюсь ценой поставки", false, false},
		{"ключ внутри английского слова", "a priceless offering", false, false},
		{"пустой текст", "", false, false},
		{"пустой текст с вложением", "", true, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, classify.IsCommercialOffer(c.text, c.attachment))
		})
	}
}

func TestIsAttachmentType(t *testing.T) {
	require.True(t, classify.IsAttachmentType("document"))
	require.True(t, classify.IsAttachmentType("Image"))
	require.False(t, classify.IsAttachmentType("chat"))
	require.False(t, classify.IsAttachmentType("text"))
}
