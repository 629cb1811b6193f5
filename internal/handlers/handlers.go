package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"procurement/db"
	"procurement/internal/ai"
	"procurement/internal/search"
	"procurement/internal/whatsapp"
)

// SupplierRanker оценивает кандидатов-поставщиков.
type SupplierRanker interface {
	RankSuppliers(ctx context.Context, req ai.Requirement, candidates []ai.Candidate, topN int) []ai.SupplierAnalysis
}

// OfferComparator даёт совещательное пояснение к сравнению КП.
type OfferComparator interface {
	Rationale(ctx context.Context, rankings []ai.OfferRanking) string
}

// OutreachWriter генерирует текст запроса КП.
type OutreachWriter interface {
	OutreachMessage(ctx context.Context, company string, req ai.Requirement) string
}

// Searcher объединяет поисковых провайдеров.
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Result, error)
}

// Handler оборачивает Storage и внешние сервисы для обработчиков HTTP.
type Handler struct {
	Store      StorageInterface
	Logger     *zap.SugaredLogger
	Gateway    whatsapp.Sender
	Searcher   Searcher
	Ranker     SupplierRanker
	Comparator OfferComparator
	Writer     OutreachWriter
}

// NewHandler создает новый Handler; внешние клиенты подставляются полями.
func NewHandler(store StorageInterface, logger *zap.SugaredLogger) *Handler {
	return &Handler{Store: store, Logger: logger}
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// envelope — единый формат ответа {success, data, error}.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (h *Handler) respondData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		h.Logger.Errorw("encode response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: false, Error: msg})
}

// respondStorageError переводит ошибку хранилища в таксономию статусов.
func (h *Handler) respondStorageError(w http.ResponseWriter, err error, context string) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		h.respondError(w, http.StatusNotFound, context+" not found")
	case errors.Is(err, db.ErrIllegalTransition):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case db.IsUniqueViolation(err):
		h.respondError(w, http.StatusConflict, context+" already exists")
	default:
		h.Logger.Errorw("storage error", "context", context, "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1048576))
	return dec.Decode(dst)
}

// currentUser — имя пользователя из заголовка; аутентификация как таковая
// вне зоны ответственности сервиса.
func currentUser(r *http.Request) string {
	if u := r.Header.Get("X-User"); u != "" {
		return u
	}
	return "system"
}

// audit пишет запись журнала по принципу best-effort: сбой журналирования
// логируется и никогда не валит основную операцию.
func (h *Handler) audit(ctx context.Context, username, action, entity, entityID string, details interface{}) {
	var raw []byte
	if details != nil {
		var err error
		raw, err = json.Marshal(details)
		if err != nil {
			h.Logger.Warnw("audit details marshal failed", "action", action, "error", err)
			raw = nil
		}
	}
	entry := &db.AuditLog{
		ID:       uuid.NewString(),
		Username: username,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Details:  raw,
	}
	if err := h.Store.CreateAuditLog(ctx, entry); err != nil {
		h.Logger.Warnw("audit write failed", "action", action, "error", err)
	}
}

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams парсит limit и offset из query, с дефолтами и ограничениями
func parsePaginationParams(r *http.Request) PaginationParams {
	params := PaginationParams{Limit: 20, Offset: 0}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			params.Limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}
