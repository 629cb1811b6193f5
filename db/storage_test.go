package db_test

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"procurement/db"
	"procurement/db/migrations"
)

// Интеграционные тесты хранилища: гоняются против реального Postgres,
// строка подключения берётся из POSTGRES_TEST_CONN. Без неё — skip.
func testStorage(t *testing.T) *db.Storage {
	t.Helper()
	conn := os.Getenv("POSTGRES_TEST_CONN")
	if conn == "" {
		t.Skip("POSTGRES_TEST_CONN не задан, интеграционные тесты хранилища пропущены")
	}

	dbc, err := sqlx.Connect("postgres", conn)
	require.NoError(t, err)
	t.Cleanup(func() { dbc.Close() })

	require.NoError(t, migrations.Run(dbc.DB))
	for _, table := range []string{
		"request_decision", "commercial_offer", "chat_message", "position_chat",
		"chat", "position", "request", "audit_log", "system_setting",
	} {
		_, err := dbc.Exec(`DELETE FROM ` + table)
		require.NoError(t, err)
	}
	return db.NewStorage(dbc)
}

func seedRequestWithPosition(t *testing.T, store *db.Storage) (*db.Request, *db.Position) {
	t.Helper()
	ctx := context.Background()
	r := &db.Request{Number: "REQ-IT-1", Description: "закупка кабеля", Currency: "KZT", CreatedBy: "admin"}
	require.NoError(t, store.CreateRequest(ctx, r))
	p := &db.Position{RequestID: r.ID, Name: "Кабель ВВГ 3x2.5", Quantity: 100, Unit: "м"}
	require.NoError(t, store.CreatePosition(ctx, p))
	return r, p
}

func advanceRequest(t *testing.T, store *db.Storage, id int, statuses ...string) {
	t.Helper()
	for _, st := range statuses {
		_, err := store.ChangeRequestStatus(context.Background(), id, st)
		require.NoError(t, err)
	}
}

func TestLinkPositionChatIdempotent(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()
	_, p := seedRequestWithPosition(t, store)
	chat, err := store.GetOrCreateChatByPhone(ctx, "77010000001", "ТОО Поставщик")
	require.NoError(t, err)

	first, err := store.LinkPositionChat(ctx, p.ID, chat.ID)
	require.NoError(t, err)
	require.Equal(t, db.PositionChatRequested, first.Status)

	second, err := store.LinkPositionChat(ctx, p.ID, chat.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	got, err := store.GetPosition(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.QuotesRequested)
	require.Equal(t, db.PositionQuotesRequested, got.SearchStatus)
}

func TestUnlinkPositionChatClampsCounters(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()
	_, p := seedRequestWithPosition(t, store)
	chat, err := store.GetOrCreateChatByPhone(ctx, "77010000002", "")
	require.NoError(t, err)

	_, err = store.LinkPositionChat(ctx, p.ID, chat.ID)
	require.NoError(t, err)

	require.NoError(t, store.UnlinkPositionChat(ctx, p.ID, chat.ID))

	got, err := store.GetPosition(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.QuotesRequested)
	require.Equal(t, 0, got.QuotesReceived)

	// Повторное снятие связи — её уже нет.
	err = store.UnlinkPositionChat(ctx, p.ID, chat.ID)
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestRegisterIncomingQuoteOncePerLink(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()
	r, p := seedRequestWithPosition(t, store)
	chat, err := store.GetOrCreateChatByPhone(ctx, "77010000003", "")
	require.NoError(t, err)
	_, err = store.LinkPositionChat(ctx, p.ID, chat.ID)
	require.NoError(t, err)

	ids, err := store.RegisterIncomingQuote(ctx, chat.ID)
	require.NoError(t, err)
	require.Equal(t, []int{r.ID}, ids)

	// Связь уже RECEIVED: второе входящее по тому же чату счётчик не двигает.
	ids, err = store.RegisterIncomingQuote(ctx, chat.ID)
	require.NoError(t, err)
	require.Empty(t, ids)

	got, err := store.GetPosition(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.QuotesReceived)
	require.Equal(t, db.PositionQuotesReceived, got.SearchStatus)
}

func TestPromoteRequestIfReadyHonorsThresholdSetting(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()
	r, p := seedRequestWithPosition(t, store)
	advanceRequest(t, store, r.ID, db.RequestSearching)
	chat, err := store.GetOrCreateChatByPhone(ctx, "77010000004", "")
	require.NoError(t, err)
	_, err = store.LinkPositionChat(ctx, p.ID, chat.ID)
	require.NoError(t, err)
	_, err = store.RegisterIncomingQuote(ctx, chat.ID)
	require.NoError(t, err)

	// С порогом по умолчанию одного предложения мало.
	promoted, err := store.PromoteRequestIfReady(ctx, r.ID)
	require.NoError(t, err)
	require.False(t, promoted)

	require.NoError(t, store.SetSetting(ctx, &db.SystemSetting{
		Key: db.SettingQuoteThreshold, Value: "1", Type: "int",
	}))

	promoted, err = store.PromoteRequestIfReady(ctx, r.ID)
	require.NoError(t, err)
	require.True(t, promoted)

	got, err := store.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, db.RequestComparing, got.Status)
}

func TestFinalizeRequestUpsertsSingleDecision(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()
	r, _ := seedRequestWithPosition(t, store)
	advanceRequest(t, store, r.ID, db.RequestSearching, db.RequestComparing)

	a := &db.CommercialOffer{RequestID: r.ID, CompanyName: "ТОО Альфа", TotalPrice: 150000, Currency: "KZT", Confidence: 90}
	b := &db.CommercialOffer{RequestID: r.ID, CompanyName: "ТОО Бета", TotalPrice: 180000, Currency: "KZT", Confidence: 85}
	require.NoError(t, store.CreateOffer(ctx, a))
	require.NoError(t, store.CreateOffer(ctx, b))

	d, err := store.FinalizeRequest(ctx, r.ID, a.ID, "admin", "лучшая цена")
	require.NoError(t, err)
	require.Equal(t, a.ID, d.OfferID)
	require.InDelta(t, 150000, d.FinalPrice, 1e-9)

	gotA, err := store.GetOffer(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, db.OfferApproved, gotA.Status)
	gotB, err := store.GetOffer(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, db.OfferRejected, gotB.Status)

	// Повторная фиксация того же КП — апсерт, строка решения одна.
	d2, err := store.FinalizeRequest(ctx, r.ID, a.ID, "admin", "подтверждено")
	require.NoError(t, err)
	require.Equal(t, d.ID, d2.ID)
	require.Equal(t, "подтверждено", d2.Reason)

	// Отклонённое КП итоговым стать не может.
	_, err = store.FinalizeRequest(ctx, r.ID, b.ID, "admin", "передумали")
	require.ErrorIs(t, err, db.ErrIllegalTransition)
}

func TestSelectOfferForPositionCascadeGuard(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()
	r, p := seedRequestWithPosition(t, store)
	o := &db.CommercialOffer{RequestID: r.ID, PositionID: &p.ID, CompanyName: "ТОО Гамма", TotalPrice: 99000, Currency: "KZT", Confidence: 80}
	require.NoError(t, store.CreateOffer(ctx, o))

	// Заявка ещё UPLOADED: COMPLETED отсюда недостижим, но решение по
	// позиции всё равно фиксируется.
	completed, decision, err := store.SelectOfferForPosition(ctx, p.ID, o.ID, "admin", "единственное предложение")
	require.NoError(t, err)
	require.False(t, completed)
	require.Nil(t, decision)

	gotP, err := store.GetPosition(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, db.PositionUserDecided, gotP.SearchStatus)
	require.Contains(t, gotP.FinalChoice, "ТОО Гамма")

	gotR, err := store.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, db.RequestUploaded, gotR.Status)
}

func TestSelectOfferForPositionCompletesRequest(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()
	r, p := seedRequestWithPosition(t, store)
	advanceRequest(t, store, r.ID, db.RequestSearching, db.RequestComparing)
	o := &db.CommercialOffer{RequestID: r.ID, PositionID: &p.ID, CompanyName: "ТОО Дельта", TotalPrice: 120000, Currency: "KZT", Confidence: 95}
	require.NoError(t, store.CreateOffer(ctx, o))

	completed, decision, err := store.SelectOfferForPosition(ctx, p.ID, o.ID, "admin", "лучшие условия")
	require.NoError(t, err)
	require.True(t, completed)
	require.NotNil(t, decision)
	require.True(t, decision.Automatic)
	require.Equal(t, o.ID, decision.OfferID)

	gotR, err := store.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, db.RequestCompleted, gotR.Status)
}

func TestDeleteRequestCascade(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()
	r, p := seedRequestWithPosition(t, store)
	advanceRequest(t, store, r.ID, db.RequestSearching, db.RequestComparing)

	chat, err := store.GetOrCreateChatByPhone(ctx, "77010000005", "")
	require.NoError(t, err)
	require.NoError(t, store.LinkChatToRequest(ctx, chat.ID, r.ID))
	_, err = store.LinkPositionChat(ctx, p.ID, chat.ID)
	require.NoError(t, err)
	require.NoError(t, store.SaveMessage(ctx, &db.ChatMessage{
		ChatID: chat.ID, Direction: db.DirectionIncoming, Content: "цена 99000", Type: "chat", Status: db.MessageDelivered,
	}))
	o := &db.CommercialOffer{RequestID: r.ID, PositionID: &p.ID, ChatID: &chat.ID, CompanyName: "ТОО Эпсилон", TotalPrice: 99000, Currency: "KZT", Confidence: 90}
	require.NoError(t, store.CreateOffer(ctx, o))
	_, err = store.FinalizeRequest(ctx, r.ID, o.ID, "admin", "единственное")
	require.NoError(t, err)

	require.NoError(t, store.DeleteRequestCascade(ctx, r.ID))

	_, err = store.GetRequest(ctx, r.ID)
	require.ErrorIs(t, err, db.ErrNotFound)
	_, err = store.GetPosition(ctx, p.ID)
	require.ErrorIs(t, err, db.ErrNotFound)
	_, err = store.GetOffer(ctx, o.ID)
	require.ErrorIs(t, err, db.ErrNotFound)
	_, err = store.GetRequestDecision(ctx, r.ID)
	require.ErrorIs(t, err, db.ErrNotFound)
	msgs, err := store.GetMessages(ctx, chat.ID, 10, 0)
	require.NoError(t, err)
	require.Empty(t, msgs)
}
