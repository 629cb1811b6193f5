package handlers

import (
	"net/http"
	"strconv"

	"procurement/db"
	"procurement/internal/ai"
)

// GetChatsHandler возвращает список чатов, опционально по заявке
func (h *Handler) GetChatsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	var requestID *int
	if s := r.URL.Query().Get("requestId"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			h.respondError(w, http.StatusBadRequest, "invalid requestId")
			return
		}
		requestID = &v
	}

	chats, err := h.Store.GetChats(r.Context(), requestID, params.Limit, params.Offset)
	if err != nil {
		h.respondStorageError(w, err, "chats")
		return
	}
	h.respondData(w, http.StatusOK, chats)
}

// GetChatHandler возвращает чат вместе со связями позиция–чат
func (h *Handler) GetChatHandler(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.intParam(w, r, "chatId")
	if !ok {
		return
	}

	chat, err := h.Store.GetChat(r.Context(), chatID)
	if err != nil {
		h.respondStorageError(w, err, "chat")
		return
	}
	links, err := h.Store.GetPositionChatsByChat(r.Context(), chatID)
	if err != nil {
		h.respondStorageError(w, err, "links")
		return
	}

	h.respondData(w, http.StatusOK, map[string]interface{}{
		"chat":  chat,
		"links": links,
	})
}

// GetChatMessagesHandler возвращает сообщения чата
func (h *Handler) GetChatMessagesHandler(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.intParam(w, r, "chatId")
	if !ok {
		return
	}
	params := parsePaginationParams(r)

	msgs, err := h.Store.GetMessages(r.Context(), chatID, params.Limit, params.Offset)
	if err != nil {
		h.respondStorageError(w, err, "messages")
		return
	}
	h.respondData(w, http.StatusOK, msgs)
}

// LinkPositionHandler обрабатывает POST /api/chats/{chatId}/link-position.
// Привязка идемпотентна: повторный вызов только освежает отметку времени.
func (h *Handler) LinkPositionHandler(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.intParam(w, r, "chatId")
	if !ok {
		return
	}

	var input struct {
		PositionID int `json:"positionId"`
	}
	if err := decodeBody(r, &input); err != nil || input.PositionID <= 0 {
		h.respondError(w, http.StatusBadRequest, "positionId is required")
		return
	}

	// Существование обеих сторон проверяется до записи.
	if _, err := h.Store.GetChat(r.Context(), chatID); err != nil {
		h.respondStorageError(w, err, "chat")
		return
	}
	if _, err := h.Store.GetPosition(r.Context(), input.PositionID); err != nil {
		h.respondStorageError(w, err, "position")
		return
	}

	pc, err := h.Store.LinkPositionChat(r.Context(), input.PositionID, chatID)
	if err != nil {
		h.respondStorageError(w, err, "link")
		return
	}

	h.audit(r.Context(), currentUser(r), "chat.link_position", "chat", strconv.Itoa(chatID),
		map[string]int{"positionId": input.PositionID})
	h.respondData(w, http.StatusOK, pc)
}

// UnlinkPositionHandler обрабатывает DELETE /api/chats/{chatId}/positions/{positionId}
func (h *Handler) UnlinkPositionHandler(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.intParam(w, r, "chatId")
	if !ok {
		return
	}
	positionID, ok := h.intParam(w, r, "positionId")
	if !ok {
		return
	}

	if err := h.Store.UnlinkPositionChat(r.Context(), positionID, chatID); err != nil {
		h.respondStorageError(w, err, "link")
		return
	}

	h.audit(r.Context(), currentUser(r), "chat.unlink_position", "chat", strconv.Itoa(chatID),
		map[string]int{"positionId": positionID})
	h.respondData(w, http.StatusOK, map[string]bool{"unlinked": true})
}

// LinkRequestHandler обрабатывает PUT /api/chats/{chatId}/request: ставится
// только внешний ключ, строки позиция–чат создаются отдельно по позициям.
func (h *Handler) LinkRequestHandler(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.intParam(w, r, "chatId")
	if !ok {
		return
	}

	var input struct {
		RequestID int `json:"requestId"`
	}
	if err := decodeBody(r, &input); err != nil || input.RequestID <= 0 {
		h.respondError(w, http.StatusBadRequest, "requestId is required")
		return
	}

	if _, err := h.Store.GetRequest(r.Context(), input.RequestID); err != nil {
		h.respondStorageError(w, err, "request")
		return
	}
	if err := h.Store.LinkChatToRequest(r.Context(), chatID, input.RequestID); err != nil {
		h.respondStorageError(w, err, "chat")
		return
	}

	h.audit(r.Context(), currentUser(r), "chat.link_request", "chat", strconv.Itoa(chatID),
		map[string]int{"requestId": input.RequestID})
	h.respondData(w, http.StatusOK, map[string]bool{"linked": true})
}

// UnlinkRequestHandler обрабатывает DELETE /api/chats/{chatId}/request:
// каскад — снимаются все связи с позициями, счётчики уменьшаются.
func (h *Handler) UnlinkRequestHandler(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.intParam(w, r, "chatId")
	if !ok {
		return
	}

	if _, err := h.Store.GetChat(r.Context(), chatID); err != nil {
		h.respondStorageError(w, err, "chat")
		return
	}
	if err := h.Store.UnlinkChatFromRequest(r.Context(), chatID); err != nil {
		h.respondStorageError(w, err, "chat")
		return
	}

	h.audit(r.Context(), currentUser(r), "chat.unlink_request", "chat", strconv.Itoa(chatID), nil)
	h.respondData(w, http.StatusOK, map[string]bool{"unlinked": true})
}

// SendMessageHandler обрабатывает POST /api/chats/{chatId}/send. Пустой
// текст при заданной позиции генерируется моделью (с шаблонным запасным
// вариантом). Сбой шлюза не теряет сообщение: оно сохраняется со статусом
// FAILED.
func (h *Handler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.intParam(w, r, "chatId")
	if !ok {
		return
	}

	var input struct {
		Text       string `json:"text"`
		PositionID int    `json:"positionId"`
	}
	if err := decodeBody(r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON format")
		return
	}
	if input.Text == "" && input.PositionID <= 0 {
		h.respondError(w, http.StatusBadRequest, "text or positionId is required")
		return
	}

	chat, err := h.Store.GetChat(r.Context(), chatID)
	if err != nil {
		h.respondStorageError(w, err, "chat")
		return
	}

	text := input.Text
	if text == "" {
		pos, err := h.Store.GetPosition(r.Context(), input.PositionID)
		if err != nil {
			h.respondStorageError(w, err, "position")
			return
		}
		text = h.Writer.OutreachMessage(r.Context(), chat.Name, ai.Requirement{
			Name:        pos.Name,
			Description: pos.Description,
			Quantity:    pos.Quantity,
			Unit:        pos.Unit,
		})
	}

	status := db.MessageSent
	sendErr := h.Gateway.SendMessage(r.Context(), chat.Phone, text)
	if sendErr != nil {
		h.Logger.Warnw("gateway send failed", "chat", chatID, "error", sendErr)
		status = db.MessageFailed
	}

	msg := &db.ChatMessage{
		ChatID:    chatID,
		Direction: db.DirectionOutgoing,
		Content:   text,
		Type:      "text",
		Status:    status,
	}
	if err := h.Store.SaveMessage(r.Context(), msg); err != nil {
		h.respondStorageError(w, err, "message")
		return
	}

	// Исходящий запрос по позиции переводит связь в SENT.
	if input.PositionID > 0 && sendErr == nil {
		if err := h.Store.MarkPositionChatSent(r.Context(), input.PositionID, chatID); err != nil {
			h.Logger.Warnw("mark sent failed", "chat", chatID, "position", input.PositionID, "error", err)
		}
	}

	if sendErr != nil {
		h.respondError(w, http.StatusInternalServerError, "gateway error: "+sendErr.Error())
		return
	}
	h.respondData(w, http.StatusOK, msg)
}
