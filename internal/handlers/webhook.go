package handlers

import (
	"encoding/json"
	"net/http"

	"procurement/db"
	"procurement/internal/classify"
	"procurement/internal/phone"
	"procurement/internal/whatsapp"
)

// WebhookHandler обрабатывает POST /api/whatsapp/webhook. Обработчик
// всегда отвечает 200: провайдер повторяет недоставленные вызовы, и
// отдавать ему ошибку — значит получить шторм ретраев. Все сбои уходят
// в лог.
func (h *Handler) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload whatsapp.WebhookPayload
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1048576)).Decode(&payload); err != nil {
		h.Logger.Warnw("webhook: bad payload", "error", err)
		h.respondData(w, http.StatusOK, map[string]bool{"received": true})
		return
	}
	if payload.Type != "message" || payload.Data.From == "" {
		h.respondData(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	h.processIncoming(r, &payload)
	h.respondData(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) processIncoming(r *http.Request, payload *whatsapp.WebhookPayload) {
	ctx := r.Context()
	normalized := phone.Normalize(payload.Data.From)

	chat, err := h.Store.GetOrCreateChatByPhone(ctx, normalized, "")
	if err != nil {
		h.Logger.Errorw("webhook: chat lookup failed", "phone", normalized, "error", err)
		return
	}

	hasAttachment := classify.IsAttachmentType(payload.Data.Type)

	msg := &db.ChatMessage{
		ChatID:     chat.ID,
		ExternalID: payload.Data.ID,
		Direction:  db.DirectionIncoming,
		Content:    payload.Data.Body,
		Type:       payload.Data.Type,
		Status:     db.MessageDelivered,
	}
	if hasAttachment {
		// Для документов сохраняется сырой payload провайдера.
		if raw, err := json.Marshal(payload); err == nil {
			msg.Metadata = raw
		}
	}
	if err := h.Store.SaveMessage(ctx, msg); err != nil {
		h.Logger.Errorw("webhook: save message failed", "chat", chat.ID, "error", err)
		return
	}

	if !classify.IsCommercialOffer(payload.Data.Body, hasAttachment) {
		// Приветствия и вопросы о статусе только логируются.
		h.Logger.Debugw("webhook: non-offer message", "chat", chat.ID)
		return
	}

	requestIDs, err := h.Store.RegisterIncomingQuote(ctx, chat.ID)
	if err != nil {
		h.Logger.Errorw("webhook: register quote failed", "chat", chat.ID, "error", err)
		return
	}

	for _, requestID := range requestIDs {
		promoted, err := h.Store.PromoteRequestIfReady(ctx, requestID)
		if err != nil {
			h.Logger.Errorw("webhook: readiness check failed", "request", requestID, "error", err)
			continue
		}
		if promoted {
			h.Logger.Infow("request ready for comparison", "request", requestID)
		}
	}
}
