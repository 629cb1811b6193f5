package excel_test

import (
	"testing"

	"procurement/internal/excel"

	"github.com/stretchr/testify/require"
)

func wellFormedRows() [][]string {
	return [][]string{
		{"Заявка на закупку № 1042 от 15.03.2026"},
		{""},
		{"Важность: Высокая"},
		{"Валюта: KZT"},
		{"Исполнитель: Ахметов А."},
		{""},
		{"Номенклатура", "Артикул", "Кол-во", "Ед. изм."},
		{"Кабель ВВГнг 3x2.5", "KB-325", "120,5", "м"},
		{"Автомат защиты 16А", "AV-16", "40", "шт"},
		{"Щит распределительный", "", "2", "шт"},
		{"Подпись ответственного: ____________"},
	}
}

func TestParseRowsWellFormed(t *testing.T) {
	pr := excel.ParseRows(wellFormedRows())

	require.Equal(t, "1042", pr.Number)
	require.NotNil(t, pr.Date)
	require.Equal(t, "2026-03-15", pr.Date.Format("2006-01-02"))
	require.Equal(t, 2, pr.Priority)
	require.Equal(t, "KZT", pr.Currency)
	require.Equal(t, "Ахметов А.", pr.Executor)

	require.Len(t, pr.Items, 3)
	require.Equal(t, "Кабель ВВГнг 3x2.5", pr.Items[0].Name)
	require.Equal(t, "KB-325", pr.Items[0].SKU)
	require.InDelta(t, 120.5, pr.Items[0].Quantity, 1e-9)
	require.Equal(t, "м", pr.Items[0].Unit)
	require.InDelta(t, 40, pr.Items[1].Quantity, 1e-9)
	require.Equal(t, "шт", pr.Items[2].Unit)

	require.Empty(t, excel.Validate(pr))
}

func TestParseRowsMissingNumberFallsBack(t *testing.T) {
	rows := [][]string{
		{"Заявка на закупку"},
		{"Номенклатура", "", "Кол-во", "Ед."},
		{"Болт М8", "", "100", "шт"},
		{"Виза руководителя"},
	}
	pr := excel.ParseRows(rows)
	require.NotEmpty(t, pr.Number, "missing number must generate a fallback")
	require.Len(t, pr.Items, 1)
}

func TestParseImportance(t *testing.T) {
	require.Equal(t, 2, excel.ParseImportance("Высокая"))
	require.Equal(t, 2, excel.ParseImportance("высокий"))
	require.Equal(t, 1, excel.ParseImportance("Средняя"))
	require.Equal(t, 0, excel.ParseImportance("Низкая"))
	require.Equal(t, 0, excel.ParseImportance(""))
}

func TestParseQuantity(t *testing.T) {
	require.InDelta(t, 120.5, excel.ParseQuantity("120,5"), 1e-9)
	require.InDelta(t, 1000, excel.ParseQuantity("1 000"), 1e-9)
	require.InDelta(t, 3.25, excel.ParseQuantity("3.25"), 1e-9)
	require.InDelta(t, 0, excel.ParseQuantity("много"), 1e-9)
}

func TestValidateReportsProblems(t *testing.T) {
	pr := &excel.ParsedRequest{
		Number: "7",
		Items: []excel.ParsedItem{
			{Name: "Болт", Quantity: 0, Unit: ""},
		},
	}
	errs := excel.Validate(pr)
	require.Len(t, errs, 2)

	require.Equal(t, []string{"разбор не дал результата"}, excel.Validate(nil))
}
