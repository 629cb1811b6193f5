package db

import "sort"

// Статусы заявки (Request).
const (
	RequestUploaded      = "UPLOADED"
	RequestSearching     = "SEARCHING"
	RequestPendingQuotes = "PENDING_QUOTES"
	RequestComparing     = "COMPARING"
	RequestApproved      = "APPROVED"
	RequestCompleted     = "COMPLETED"
	RequestRejected      = "REJECTED"
	RequestArchived      = "ARCHIVED"
)

// Рабочие статусы позиции (search_status).
const (
	PositionNew             = "NEW"
	PositionQuotesRequested = "QUOTES_REQUESTED"
	PositionQuotesReceived  = "QUOTES_RECEIVED"
	PositionAIAnalyzed      = "AI_ANALYZED"
	PositionUserDecided     = "USER_DECIDED"
)

// Статусы связи позиция–чат (PositionChat).
const (
	PositionChatRequested = "REQUESTED"
	PositionChatSent      = "SENT"
	PositionChatReceived  = "RECEIVED"
	PositionChatSelected  = "SELECTED"
	PositionChatRejected  = "REJECTED"
)

// Статусы коммерческого предложения.
const (
	OfferPending  = "PENDING"
	OfferApproved = "APPROVED"
	OfferRejected = "REJECTED"
)

// Направление и статус доставки сообщения.
const (
	DirectionIncoming = "INCOMING"
	DirectionOutgoing = "OUTGOING"

	MessageSent      = "SENT"
	MessageDelivered = "DELIVERED"
	MessageFailed    = "FAILED"
)

// requestTransitions — таблица допустимых переходов статуса заявки.
// ARCHIVED терминален: выход из него только через полное удаление.
var requestTransitions = map[string][]string{
	RequestUploaded:      {RequestSearching, RequestRejected, RequestArchived},
	RequestSearching:     {RequestPendingQuotes, RequestComparing, RequestCompleted, RequestRejected, RequestArchived},
	RequestPendingQuotes: {RequestComparing, RequestCompleted, RequestRejected, RequestArchived},
	RequestComparing:     {RequestApproved, RequestCompleted, RequestRejected, RequestArchived},
	RequestApproved:      {RequestCompleted, RequestRejected, RequestArchived},
	RequestCompleted:     {RequestArchived},
	RequestRejected:      {RequestArchived},
	RequestArchived:      {},
}

var positionChatTransitions = map[string][]string{
	PositionChatRequested: {PositionChatSent, PositionChatReceived, PositionChatRejected},
	PositionChatSent:      {PositionChatReceived, PositionChatRejected},
	PositionChatReceived:  {PositionChatSelected, PositionChatRejected},
	PositionChatSelected:  {},
	PositionChatRejected:  {},
}

var offerTransitions = map[string][]string{
	OfferPending:  {OfferApproved, OfferRejected},
	OfferApproved: {},
	OfferRejected: {},
}

// transitionsInto перечисляет статусы, из которых разрешён переход в to;
// SQL-предикаты массовых обновлений строятся из таблицы, а не дублируют её.
func transitionsInto(table map[string][]string, to string) []string {
	var out []string
	for from, tos := range table {
		for _, s := range tos {
			if s == to {
				out = append(out, from)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func allowed(table map[string][]string, from, to string) bool {
	for _, s := range table[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanRequestTransition проверяет допустимость перехода статуса заявки.
func CanRequestTransition(from, to string) bool {
	return allowed(requestTransitions, from, to)
}

// CanPositionChatTransition проверяет переход статуса связи позиция–чат.
func CanPositionChatTransition(from, to string) bool {
	return allowed(positionChatTransitions, from, to)
}

// CanOfferTransition проверяет переход статуса КП.
func CanOfferTransition(from, to string) bool {
	return allowed(offerTransitions, from, to)
}

// ValidRequestStatus сообщает, известен ли статус заявки вообще.
func ValidRequestStatus(status string) bool {
	_, ok := requestTransitions[status]
	return ok
}
