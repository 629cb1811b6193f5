package handlers

import (
	"net/http"

	"procurement/db"
)

// GetAuditHandler возвращает журнал действий с типизированным фильтром
func (h *Handler) GetAuditHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	filter := db.AuditFilter{
		Entity: r.URL.Query().Get("entity"),
		Action: r.URL.Query().Get("action"),
		Limit:  params.Limit,
		Offset: params.Offset,
	}

	logs, err := h.Store.GetAuditLogs(r.Context(), filter)
	if err != nil {
		h.respondStorageError(w, err, "audit")
		return
	}
	h.respondData(w, http.StatusOK, logs)
}
