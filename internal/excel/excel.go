// Package excel разбирает заявку на закупку из полуструктурированной
// таблицы: шапка с номером и датой, блок метаданных, таблица позиций.
package excel

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ParsedItem — одна строка номенклатуры.
type ParsedItem struct {
	Name     string  `json:"name"`
	SKU      string  `json:"sku"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// ParsedRequest — результат разбора книги.
type ParsedRequest struct {
	Number   string       `json:"number"`
	Date     *time.Time   `json:"date,omitempty"`
	Priority int          `json:"priority"`
	Currency string       `json:"currency"`
	Executor string       `json:"executor"`
	Items    []ParsedItem `json:"items"`
}

var (
	numberRe = regexp.MustCompile(`№\s*(\d+)`)
	dateRe   = regexp.MustCompile(`от\s+(\d{2}\.\d{2}\.\d{4})`)
)

// Метки, после которых таблица позиций заканчивается.
var terminators = []string{"подпис", "виза", "соглас", "утверд"}

// Parse читает первый лист книги и разбирает его построчно.
func Parse(r io.Reader) (*ParsedRequest, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return ParseRows(rows), nil
}

// ParseRows — чистое ядро разбора, работает по срезу строк.
func ParseRows(rows [][]string) *ParsedRequest {
	pr := &ParsedRequest{Priority: 0}

	itemsStart := -1
	var nameCol, qtyCol, unitCol, skuCol int

	for i, row := range rows {
		line := strings.TrimSpace(strings.Join(row, " "))
		lower := strings.ToLower(line)

		if pr.Number == "" {
			if m := numberRe.FindStringSubmatch(line); m != nil {
				pr.Number = m[1]
			}
		}
		if pr.Date == nil {
			if m := dateRe.FindStringSubmatch(line); m != nil {
				if d, err := time.Parse("02.01.2006", m[1]); err == nil {
					pr.Date = &d
				}
			}
		}
		if strings.HasPrefix(lower, "важность") {
			pr.Priority = ParseImportance(afterColon(line))
		}
		if strings.HasPrefix(lower, "валюта") {
			pr.Currency = strings.TrimSpace(afterColon(line))
		}
		if strings.HasPrefix(lower, "исполнител") {
			pr.Executor = strings.TrimSpace(afterColon(line))
		}

		if firstCell(row) == "Номенклатура" {
			itemsStart = i
			nameCol, qtyCol, unitCol, skuCol = detectColumns(row)
			break
		}
	}

	if itemsStart >= 0 {
		for _, row := range rows[itemsStart+1:] {
			lower := strings.ToLower(strings.Join(row, " "))
			if isTerminator(lower) {
				break
			}
			name := cell(row, nameCol)
			if strings.TrimSpace(name) == "" {
				continue
			}
			item := ParsedItem{
				Name: strings.TrimSpace(name),
				SKU:  strings.TrimSpace(cell(row, skuCol)),
				Unit: strings.TrimSpace(cell(row, unitCol)),
			}
			item.Quantity = ParseQuantity(cell(row, qtyCol))
			pr.Items = append(pr.Items, item)
		}
	}

	// Номер не найден — генерируем запасной на основе текущего времени.
	if pr.Number == "" {
		pr.Number = time.Now().Format("20060102150405")
	}
	return pr
}

// ParseImportance переводит важность в числовой приоритет.
func ParseImportance(s string) int {
	lower := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(lower, "высок"):
		return 2
	case strings.HasPrefix(lower, "средн"):
		return 1
	default:
		return 0
	}
}

// ParseQuantity разбирает количество; запятая — десятичный разделитель.
func ParseQuantity(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// Validate — чистая проверка результата разбора: возвращает список
// человекочитаемых ошибок и никогда не паникует. Принимать ли данные
// частично — решает вызывающая сторона.
func Validate(pr *ParsedRequest) []string {
	var errs []string
	if pr == nil {
		return []string{"разбор не дал результата"}
	}
	if pr.Number == "" {
		errs = append(errs, "не найден номер заявки")
	}
	if len(pr.Items) == 0 {
		errs = append(errs, "не найдено ни одной позиции")
	}
	for i, it := range pr.Items {
		if it.Name == "" {
			errs = append(errs, fmt.Sprintf("позиция %d: пустое наименование", i+1))
		}
		if it.Quantity <= 0 {
			errs = append(errs, fmt.Sprintf("позиция %d (%s): количество не задано", i+1, it.Name))
		}
		if it.Unit == "" {
			errs = append(errs, fmt.Sprintf("позиция %d (%s): не указана единица измерения", i+1, it.Name))
		}
	}
	return errs
}

func detectColumns(header []string) (name, qty, unit, sku int) {
	name, qty, unit, sku = 0, -1, -1, -1
	for i, h := range header {
		lower := strings.ToLower(strings.TrimSpace(h))
		switch {
		case lower == "номенклатура":
			name = i
		case strings.HasPrefix(lower, "кол-во") || strings.HasPrefix(lower, "количество"):
			qty = i
		case strings.HasPrefix(lower, "ед"):
			unit = i
		case strings.HasPrefix(lower, "артикул") || lower == "код":
			sku = i
		}
	}
	return name, qty, unit, sku
}

func isTerminator(lower string) bool {
	for _, t := range terminators {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func afterColon(s string) string {
	if i := strings.Index(s, ":"); i >= 0 {
		return s[i+1:]
	}
	// Допускаем «Важность Высокая» без двоеточия.
	if i := strings.IndexRune(s, ' '); i >= 0 {
		return s[i+1:]
	}
	return ""
}

func firstCell(row []string) string {
	for _, c := range row {
		if t := strings.TrimSpace(c); t != "" {
			return t
		}
	}
	return ""
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
