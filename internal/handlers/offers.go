package handlers

import (
	"net/http"
	"strconv"
	"time"

	"procurement/db"
)

// CreateOfferHandler обрабатывает POST /api/requests/{requestId}/offers:
// ручной ввод КП оператором по данным из переписки.
func (h *Handler) CreateOfferHandler(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.intParam(w, r, "requestId")
	if !ok {
		return
	}

	var input struct {
		PositionID        *int       `json:"positionId"`
		ChatID            *int       `json:"chatId"`
		SupplierID        *int       `json:"supplierId"`
		CompanyName       string     `json:"companyName"`
		TotalPrice        float64    `json:"totalPrice"`
		Currency          string     `json:"currency"`
		DeliveryTerms     string     `json:"deliveryTerms"`
		PaymentTerms      string     `json:"paymentTerms"`
		ValidUntil        *time.Time `json:"validUntil"`
		Confidence        *int       `json:"confidence"`
		NeedsManualReview bool       `json:"needsManualReview"`
		FileRef           string     `json:"fileRef"`
	}
	if err := decodeBody(r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON format")
		return
	}
	if input.CompanyName == "" {
		h.respondError(w, http.StatusBadRequest, "companyName is required")
		return
	}
	if input.TotalPrice <= 0 {
		h.respondError(w, http.StatusBadRequest, "totalPrice must be positive")
		return
	}
	if input.Currency == "" {
		input.Currency = "KZT"
	}
	// Ручной ввод считается достоверным, если не указано иное.
	confidence := 100
	if input.Confidence != nil {
		if *input.Confidence < 0 || *input.Confidence > 100 {
			h.respondError(w, http.StatusBadRequest, "confidence must be within 0..100")
			return
		}
		confidence = *input.Confidence
	}

	if _, err := h.Store.GetRequest(r.Context(), requestID); err != nil {
		h.respondStorageError(w, err, "request")
		return
	}
	if input.PositionID != nil {
		pos, err := h.Store.GetPosition(r.Context(), *input.PositionID)
		if err != nil {
			h.respondStorageError(w, err, "position")
			return
		}
		if pos.RequestID != requestID {
			h.respondError(w, http.StatusBadRequest, "position belongs to another request")
			return
		}
	}

	offer := &db.CommercialOffer{
		RequestID:         requestID,
		PositionID:        input.PositionID,
		ChatID:            input.ChatID,
		SupplierID:        input.SupplierID,
		CompanyName:       input.CompanyName,
		TotalPrice:        input.TotalPrice,
		Currency:          input.Currency,
		DeliveryTerms:     input.DeliveryTerms,
		PaymentTerms:      input.PaymentTerms,
		ValidUntil:        input.ValidUntil,
		Confidence:        confidence,
		NeedsManualReview: input.NeedsManualReview,
		FileRef:           input.FileRef,
	}
	if err := h.Store.CreateOffer(r.Context(), offer); err != nil {
		h.respondStorageError(w, err, "offer")
		return
	}

	h.audit(r.Context(), currentUser(r), "offer.create", "offer", strconv.Itoa(offer.ID),
		map[string]interface{}{"requestId": requestID, "companyName": offer.CompanyName})
	h.respondData(w, http.StatusOK, offer)
}

// GetRequestOffersHandler возвращает все КП заявки по возрастанию цены
func (h *Handler) GetRequestOffersHandler(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.intParam(w, r, "requestId")
	if !ok {
		return
	}

	offers, err := h.Store.GetOffersByRequest(r.Context(), requestID)
	if err != nil {
		h.respondStorageError(w, err, "offers")
		return
	}
	h.respondData(w, http.StatusOK, offers)
}

// GetOfferHandler возвращает одно КП по идентификатору
func (h *Handler) GetOfferHandler(w http.ResponseWriter, r *http.Request) {
	offerID, ok := h.intParam(w, r, "offerId")
	if !ok {
		return
	}

	offer, err := h.Store.GetOffer(r.Context(), offerID)
	if err != nil {
		h.respondStorageError(w, err, "offer")
		return
	}
	h.respondData(w, http.StatusOK, offer)
}

// GetRequestDecisionHandler возвращает итоговое решение по заявке
func (h *Handler) GetRequestDecisionHandler(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.intParam(w, r, "requestId")
	if !ok {
		return
	}

	decision, err := h.Store.GetRequestDecision(r.Context(), requestID)
	if err != nil {
		h.respondStorageError(w, err, "decision")
		return
	}
	h.respondData(w, http.StatusOK, decision)
}
