package ai

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Writer генерирует текст первого обращения к поставщику.
type Writer struct {
	completer Completer
	logger    *zap.SugaredLogger
}

func NewWriter(completer Completer, logger *zap.SugaredLogger) *Writer {
	return &Writer{completer: completer, logger: logger}
}

const outreachSystemPrompt = `Ты — менеджер по закупкам. Напиши короткое вежливое
сообщение поставщику в WhatsApp с запросом коммерческого предложения.
Укажи наименование, количество и единицу измерения. Без приветствий-клише,
2-4 предложения, на русском.`

// OutreachMessage возвращает текст запроса КП; при сбое модели —
// детерминированный шаблон.
func (w *Writer) OutreachMessage(ctx context.Context, company string, req Requirement) string {
	user := fmt.Sprintf("Компания: %s. Позиция: %s, %g %s. %s",
		company, req.Name, req.Quantity, req.Unit, req.Description)

	text, err := w.completer.Complete(ctx, outreachSystemPrompt, user)
	if err != nil {
		w.logger.Warnw("outreach message fell back to template", "error", err)
		return fallbackOutreach(req)
	}
	return text
}

func fallbackOutreach(req Requirement) string {
	return fmt.Sprintf(
		"Добрый день! Прошу выставить коммерческое предложение: %s — %g %s. "+
			"Интересуют цена, срок поставки и условия оплаты. Спасибо!",
		req.Name, req.Quantity, req.Unit)
}
