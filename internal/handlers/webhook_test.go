package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"procurement/db"
)

func TestWebhookHandler_OfferMessage(t *testing.T) {
	mockStore := &MockStorage{quoteRequestIDs: []int{1}, promoted: true}
	handler := newTestHandler(mockStore)

	payload := `{"type": "message", "data": {"id": "wamid.1", "from": "77011234567@c.us", "body": "Цена 15000 тенге за метр, срок поставки 5 дней", "type": "chat"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/whatsapp/webhook", strings.NewReader(payload))
	w := httptest.NewRecorder()

	handler.WebhookHandler(w, req)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.Equal(t, 1, mockStore.quoteCalls)
	require.Equal(t, 1, mockStore.promoteCalls)
	require.Len(t, mockStore.saved, 1)
	require.Equal(t, db.DirectionIncoming, mockStore.saved[0].Direction)
	require.Equal(t, "wamid.1", mockStore.saved[0].ExternalID)
}

func TestWebhookHandler_NonOfferMessage(t *testing.T) {
	mockStore := &MockStorage{}
	handler := newTestHandler(mockStore)

	payload := `{"type": "message", "data": {"id": "wamid.2", "from": "77011234567@c.us", "body": "привет, как дела?", "type": "chat"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/whatsapp/webhook", strings.NewReader(payload))
	w := httptest.NewRecorder()

	handler.WebhookHandler(w, req)

	// Сообщение сохранено, но предложением не считается.
	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.Equal(t, 0, mockStore.quoteCalls)
	require.Len(t, mockStore.saved, 1)
}

func TestWebhookHandler_DocumentWithDigits(t *testing.T) {
	mockStore := &MockStorage{quoteRequestIDs: []int{1}}
	handler := newTestHandler(mockStore)

	payload := `{"type": "message", "data": {"id": "wamid.3", "from": "77011234567@c.us", "body": "счёт 12345", "type": "document"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/whatsapp/webhook", strings.NewReader(payload))
	w := httptest.NewRecorder()

	handler.WebhookHandler(w, req)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.Equal(t, 1, mockStore.quoteCalls)
	// Для вложений сохраняется сырой payload.
	require.NotEmpty(t, mockStore.saved[0].Metadata)
}

func TestWebhookHandler_BadPayload(t *testing.T) {
	mockStore := &MockStorage{}
	handler := newTestHandler(mockStore)

	req := httptest.NewRequest(http.MethodPost, "/api/whatsapp/webhook", strings.NewReader(`{broken`))
	w := httptest.NewRecorder()

	handler.WebhookHandler(w, req)

	// Вебхук никогда не отвечает ошибкой, иначе провайдер начнёт ретраить.
	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.Empty(t, mockStore.saved)
}

func TestWebhookHandler_NonMessageEvent(t *testing.T) {
	mockStore := &MockStorage{}
	handler := newTestHandler(mockStore)

	req := httptest.NewRequest(http.MethodPost, "/api/whatsapp/webhook",
		strings.NewReader(`{"type": "status", "data": {"id": "wamid.4"}}`))
	w := httptest.NewRecorder()

	handler.WebhookHandler(w, req)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.Empty(t, mockStore.saved)
}
