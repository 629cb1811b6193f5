package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"procurement/db"
)

// OfferRanking — одно КП в сравнении: позиция в рейтинге и переплата
// относительно самого дешёвого.
type OfferRanking struct {
	Offer     db.CommercialOffer `json:"offer"`
	Rank      int                `json:"rank"`
	Savings   float64            `json:"savings"`
	Best      bool               `json:"best"`
	Qualified bool               `json:"qualified"`
}

// RankOffers сортирует КП строго по возрастанию totalPrice; самое дешёвое —
// базовая линия, переплата остальных считается от него. Функция чистая и
// ничего не мутирует в хранилище.
func RankOffers(offers []db.CommercialOffer) []OfferRanking {
	sorted := make([]db.CommercialOffer, len(offers))
	copy(sorted, offers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalPrice < sorted[j].TotalPrice
	})

	out := make([]OfferRanking, 0, len(sorted))
	for i, o := range sorted {
		r := OfferRanking{Offer: o, Rank: i + 1, Best: i == 0, Qualified: o.Qualifies()}
		if len(sorted) > 0 {
			r.Savings = o.TotalPrice - sorted[0].TotalPrice
		}
		out = append(out, r)
	}
	return out
}

// Comparator добавляет к ценовому рейтингу пояснение от модели.
// Пояснение — только совещательный текст: оно никогда не меняет порядок
// и не трогает статусы КП.
type Comparator struct {
	completer Completer
	logger    *zap.SugaredLogger
}

func NewComparator(completer Completer, logger *zap.SugaredLogger) *Comparator {
	return &Comparator{completer: completer, logger: logger}
}

const comparisonSystemPrompt = `Ты — закупщик. Кратко поясни сравнение коммерческих предложений:
сильные и слабые стороны каждого, на что обратить внимание кроме цены
(сроки, условия оплаты, срок действия). Ответ — связный текст, без JSON.`

// Rationale возвращает пояснение к готовому рейтингу; при недоступной
// модели — детерминированный текст по тем же данным.
func (c *Comparator) Rationale(ctx context.Context, rankings []OfferRanking) string {
	if len(rankings) == 0 {
		return "Нет предложений для сравнения."
	}

	var sb strings.Builder
	for _, r := range rankings {
		fmt.Fprintf(&sb, "%d. %s: %.2f %s, доставка: %s, оплата: %s\n",
			r.Rank, r.Offer.CompanyName, r.Offer.TotalPrice, r.Offer.Currency,
			r.Offer.DeliveryTerms, r.Offer.PaymentTerms)
	}

	text, err := c.completer.Complete(ctx, comparisonSystemPrompt, sb.String())
	if err != nil {
		c.logger.Warnw("comparison rationale fell back to deterministic text", "error", err)
		return fallbackRationale(rankings)
	}
	return text
}

func fallbackRationale(rankings []OfferRanking) string {
	best := rankings[0]
	var sb strings.Builder
	fmt.Fprintf(&sb, "Лучшая цена — %s: %.2f %s.",
		best.Offer.CompanyName, best.Offer.TotalPrice, best.Offer.Currency)
	for _, r := range rankings[1:] {
		fmt.Fprintf(&sb, " %s дороже на %.2f %s.",
			r.Offer.CompanyName, r.Savings, r.Offer.Currency)
	}
	return sb.String()
}
