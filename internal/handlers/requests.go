package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"procurement/db"
	"procurement/internal/ai"
	"procurement/internal/excel"
)

// CreateRequestHandler обрабатывает POST /api/requests/new
func (h *Handler) CreateRequestHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Number      string     `json:"number"`
		Description string     `json:"description"`
		Deadline    *time.Time `json:"deadline"`
		Budget      float64    `json:"budget"`
		Currency    string     `json:"currency"`
		Priority    int        `json:"priority"`
	}
	if err := decodeBody(r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON format")
		return
	}
	if input.Number == "" {
		h.respondError(w, http.StatusBadRequest, "number is required")
		return
	}
	if input.Priority < 0 || input.Priority > 2 {
		h.respondError(w, http.StatusBadRequest, "priority must be 0, 1 or 2")
		return
	}
	if input.Currency == "" {
		input.Currency = "KZT"
	}

	req := &db.Request{
		Number:      input.Number,
		Description: input.Description,
		Deadline:    input.Deadline,
		Budget:      input.Budget,
		Currency:    input.Currency,
		Priority:    input.Priority,
		Status:      db.RequestUploaded,
		CreatedBy:   currentUser(r),
	}
	if err := h.Store.CreateRequest(r.Context(), req); err != nil {
		h.respondStorageError(w, err, "request")
		return
	}

	h.audit(r.Context(), currentUser(r), "request.create", "request", strconv.Itoa(req.ID), input)
	h.respondData(w, http.StatusOK, req)
}

// GetRequestsHandler возвращает список заявок с типизированным фильтром
func (h *Handler) GetRequestsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	filter := db.RequestFilter{Limit: params.Limit, Offset: params.Offset}
	for _, s := range r.URL.Query()["status"] {
		if !db.ValidRequestStatus(s) {
			h.respondError(w, http.StatusBadRequest, "unknown status: "+s)
			return
		}
		filter.Statuses = append(filter.Statuses, s)
	}
	if pStr := r.URL.Query().Get("priority"); pStr != "" {
		p, err := strconv.Atoi(pStr)
		if err != nil || p < 0 || p > 2 {
			h.respondError(w, http.StatusBadRequest, "invalid priority")
			return
		}
		filter.Priority = &p
	}

	requests, err := h.Store.GetRequests(r.Context(), filter)
	if err != nil {
		h.respondStorageError(w, err, "requests")
		return
	}
	h.respondData(w, http.StatusOK, requests)
}

// GetRequestHandler возвращает заявку вместе с позициями
func (h *Handler) GetRequestHandler(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.intParam(w, r, "requestId")
	if !ok {
		return
	}

	req, err := h.Store.GetRequest(r.Context(), requestID)
	if err != nil {
		h.respondStorageError(w, err, "request")
		return
	}
	positions, err := h.Store.GetPositionsByRequest(r.Context(), requestID)
	if err != nil {
		h.respondStorageError(w, err, "positions")
		return
	}

	h.respondData(w, http.StatusOK, map[string]interface{}{
		"request":   req,
		"positions": positions,
	})
}

// EditRequestHandler обрабатывает PATCH /api/requests/{requestId}
func (h *Handler) EditRequestHandler(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.intParam(w, r, "requestId")
	if !ok {
		return
	}

	var input struct {
		Description *string    `json:"description"`
		Deadline    *time.Time `json:"deadline"`
		Budget      *float64   `json:"budget"`
		Currency    *string    `json:"currency"`
		Priority    *int       `json:"priority"`
	}
	if err := decodeBody(r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON format")
		return
	}

	req, err := h.Store.GetRequest(r.Context(), requestID)
	if err != nil {
		h.respondStorageError(w, err, "request")
		return
	}

	if input.Description != nil {
		req.Description = *input.Description
	}
	if input.Deadline != nil {
		req.Deadline = input.Deadline
	}
	if input.Budget != nil {
		req.Budget = *input.Budget
	}
	if input.Currency != nil {
		req.Currency = *input.Currency
	}
	if input.Priority != nil {
		if *input.Priority < 0 || *input.Priority > 2 {
			h.respondError(w, http.StatusBadRequest, "priority must be 0, 1 or 2")
			return
		}
		req.Priority = *input.Priority
	}

	if err := h.Store.UpdateRequest(r.Context(), req); err != nil {
		h.respondStorageError(w, err, "request")
		return
	}
	h.respondData(w, http.StatusOK, req)
}

// ChangeRequestStatusHandler обрабатывает PUT /api/requests/{requestId}/status.
// Переход проверяется по таблице; недопустимый отклоняется.
func (h *Handler) ChangeRequestStatusHandler(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.intParam(w, r, "requestId")
	if !ok {
		return
	}

	var input struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &input); err != nil || input.Status == "" {
		h.respondError(w, http.StatusBadRequest, "missing status")
		return
	}
	if !db.ValidRequestStatus(input.Status) {
		h.respondError(w, http.StatusBadRequest, "unknown status: "+input.Status)
		return
	}

	req, err := h.Store.ChangeRequestStatus(r.Context(), requestID, input.Status)
	if err != nil {
		h.respondStorageError(w, err, "request")
		return
	}

	h.audit(r.Context(), currentUser(r), "request.status", "request", strconv.Itoa(requestID),
		map[string]string{"status": input.Status})
	h.respondData(w, http.StatusOK, req)
}

// ImportRequestHandler обрабатывает POST /api/requests/import: тело —
// книга Excel (или multipart с полем file). Частичные данные принимаются,
// ошибки валидации возвращаются вместе с результатом.
func (h *Handler) ImportRequestHandler(w http.ResponseWriter, r *http.Request) {
	var src io.Reader = r.Body
	defer r.Body.Close()

	if f, _, err := r.FormFile("file"); err == nil {
		defer f.Close()
		src = f
	}

	parsed, err := excel.Parse(src)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "cannot parse workbook: "+err.Error())
		return
	}
	validationErrors := excel.Validate(parsed)

	req := &db.Request{
		Number:    parsed.Number,
		Currency:  parsed.Currency,
		Priority:  parsed.Priority,
		Status:    db.RequestUploaded,
		CreatedBy: currentUser(r),
	}
	if req.Currency == "" {
		req.Currency = "KZT"
	}
	if parsed.Executor != "" {
		req.Description = "Исполнитель: " + parsed.Executor
	}

	positions := make([]db.Position, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		positions = append(positions, db.Position{
			Name:     it.Name,
			SKU:      it.SKU,
			Quantity: it.Quantity,
			Unit:     it.Unit,
		})
	}

	if err := h.Store.CreateRequestWithPositions(r.Context(), req, positions); err != nil {
		h.respondStorageError(w, err, "request")
		return
	}

	h.audit(r.Context(), currentUser(r), "request.import", "request", strconv.Itoa(req.ID),
		map[string]interface{}{"items": len(positions), "number": req.Number})
	h.respondData(w, http.StatusOK, map[string]interface{}{
		"request":          req,
		"positionsCreated": len(positions),
		"validationErrors": validationErrors,
	})
}

// FinalizeRequestHandler обрабатывает POST /api/requests/{requestId}/finalize
func (h *Handler) FinalizeRequestHandler(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.intParam(w, r, "requestId")
	if !ok {
		return
	}

	var input struct {
		SelectedOfferID int    `json:"selectedOfferId"`
		Reason          string `json:"reason"`
	}
	if err := decodeBody(r, &input); err != nil || input.SelectedOfferID <= 0 {
		h.respondError(w, http.StatusBadRequest, "selectedOfferId is required")
		return
	}

	decision, err := h.Store.FinalizeRequest(r.Context(), requestID, input.SelectedOfferID,
		currentUser(r), input.Reason)
	if err != nil {
		h.respondStorageError(w, err, "request")
		return
	}

	h.audit(r.Context(), currentUser(r), "request.finalize", "request", strconv.Itoa(requestID),
		map[string]interface{}{"offerId": input.SelectedOfferID, "reason": input.Reason})
	h.respondData(w, http.StatusOK, decision)
}

// CompareOffersHandler обрабатывает GET /api/requests/{requestId}/offers/compare.
// Рейтинг строго ценовой; пояснение модели — совещательный текст, статусы
// КП не меняются.
func (h *Handler) CompareOffersHandler(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.intParam(w, r, "requestId")
	if !ok {
		return
	}

	offers, err := h.Store.GetOffersByRequest(r.Context(), requestID)
	if err != nil {
		h.respondStorageError(w, err, "offers")
		return
	}

	rankings := ai.RankOffers(offers)
	rationale := ""
	if h.Comparator != nil {
		rationale = h.Comparator.Rationale(r.Context(), rankings)
	}

	h.respondData(w, http.StatusOK, map[string]interface{}{
		"rankings":  rankings,
		"rationale": rationale,
	})
}

// RecountRequestHandler обрабатывает POST /api/requests/{requestId}/recount —
// единственная точка пересчёта счётчиков.
func (h *Handler) RecountRequestHandler(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.intParam(w, r, "requestId")
	if !ok {
		return
	}

	positions, err := h.Store.RecountRequestCounters(r.Context(), requestID)
	if err != nil {
		h.respondStorageError(w, err, "request")
		return
	}

	h.audit(r.Context(), currentUser(r), "request.recount", "request", strconv.Itoa(requestID), nil)
	h.respondData(w, http.StatusOK, positions)
}

// DeleteRequestHandler обрабатывает DELETE /api/requests/{requestId}.
// Необратимая операция: пароль перепроверяется по хэшу независимо от
// сессии.
func (h *Handler) DeleteRequestHandler(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.intParam(w, r, "requestId")
	if !ok {
		return
	}

	var input struct {
		Password string `json:"password"`
	}
	if err := decodeBody(r, &input); err != nil || input.Password == "" {
		h.respondError(w, http.StatusBadRequest, "password is required")
		return
	}

	username := currentUser(r)
	user, err := h.Store.GetUserByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.respondError(w, http.StatusUnauthorized, "unknown user")
			return
		}
		h.respondStorageError(w, err, "user")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		h.respondError(w, http.StatusForbidden, "invalid password")
		return
	}

	if err := h.Store.DeleteRequestCascade(r.Context(), requestID); err != nil {
		h.respondStorageError(w, err, "request")
		return
	}

	h.audit(r.Context(), username, "request.delete", "request", strconv.Itoa(requestID), nil)
	h.respondData(w, http.StatusOK, map[string]interface{}{"deleted": requestID})
}

// intParam извлекает положительный целочисленный параметр пути.
func (h *Handler) intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}
