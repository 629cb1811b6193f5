package handlers

import (
	"net/http"
	"strconv"

	"procurement/db"
)

// CreatePositionHandler обрабатывает POST /api/requests/{requestId}/positions:
// ручное добавление строки номенклатуры к уже существующей заявке.
func (h *Handler) CreatePositionHandler(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.intParam(w, r, "requestId")
	if !ok {
		return
	}

	var input struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		SKU         string  `json:"sku"`
		Quantity    float64 `json:"quantity"`
		Unit        string  `json:"unit"`
	}
	if err := decodeBody(r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON format")
		return
	}
	if input.Name == "" {
		h.respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if input.Quantity <= 0 {
		h.respondError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	if _, err := h.Store.GetRequest(r.Context(), requestID); err != nil {
		h.respondStorageError(w, err, "request")
		return
	}

	pos := &db.Position{
		RequestID:   requestID,
		Name:        input.Name,
		Description: input.Description,
		SKU:         input.SKU,
		Quantity:    input.Quantity,
		Unit:        input.Unit,
	}
	if err := h.Store.CreatePosition(r.Context(), pos); err != nil {
		h.respondStorageError(w, err, "position")
		return
	}

	h.audit(r.Context(), currentUser(r), "position.create", "position", strconv.Itoa(pos.ID),
		map[string]interface{}{"requestId": requestID, "name": pos.Name})
	h.respondData(w, http.StatusOK, pos)
}

// GetPositionsHandler возвращает позиции заявки со счётчиками
func (h *Handler) GetPositionsHandler(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.intParam(w, r, "requestId")
	if !ok {
		return
	}

	positions, err := h.Store.GetPositionsByRequest(r.Context(), requestID)
	if err != nil {
		h.respondStorageError(w, err, "positions")
		return
	}
	h.respondData(w, http.StatusOK, positions)
}

// SelectOfferHandler обрабатывает POST /api/positions/{positionId}/select-offer.
// Если выбранная позиция была последней незакрытой, заявка финализируется
// тем же путём, что и пользовательский финализ.
func (h *Handler) SelectOfferHandler(w http.ResponseWriter, r *http.Request) {
	positionID, ok := h.intParam(w, r, "positionId")
	if !ok {
		return
	}

	var input struct {
		OfferID int    `json:"offerId"`
		Reason  string `json:"reason"`
	}
	if err := decodeBody(r, &input); err != nil || input.OfferID <= 0 {
		h.respondError(w, http.StatusBadRequest, "offerId is required")
		return
	}

	completed, decision, err := h.Store.SelectOfferForPosition(r.Context(),
		positionID, input.OfferID, currentUser(r), input.Reason)
	if err != nil {
		h.respondStorageError(w, err, "position")
		return
	}

	h.audit(r.Context(), currentUser(r), "position.select_offer", "position", strconv.Itoa(positionID),
		map[string]interface{}{"offerId": input.OfferID, "requestCompleted": completed})

	resp := map[string]interface{}{"requestCompleted": completed}
	if decision != nil {
		resp["decision"] = decision
	}
	h.respondData(w, http.StatusOK, resp)
}

// GetPositionOffersHandler возвращает КП одной позиции по возрастанию цены
func (h *Handler) GetPositionOffersHandler(w http.ResponseWriter, r *http.Request) {
	positionID, ok := h.intParam(w, r, "positionId")
	if !ok {
		return
	}

	offers, err := h.Store.GetOffersByPosition(r.Context(), positionID)
	if err != nil {
		h.respondStorageError(w, err, "offers")
		return
	}
	h.respondData(w, http.StatusOK, offers)
}
