package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Chat (WhatsApp-диалог, ключ — нормализованный номер телефона)
type Chat struct {
	ID            int        `db:"id" json:"id"`
	Phone         string     `db:"phone" json:"phone"`
	Name          string     `db:"name" json:"name"`
	RequestID     *int       `db:"request_id" json:"requestId,omitempty"`
	SupplierID    *int       `db:"supplier_id" json:"supplierId,omitempty"`
	LastMessage   string     `db:"last_message" json:"lastMessage"`
	LastMessageAt *time.Time `db:"last_message_at" json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
}

// PositionChat (связь позиция–чат со статусом переписки)
type PositionChat struct {
	ID              int        `db:"id" json:"id"`
	PositionID      int        `db:"position_id" json:"positionId"`
	ChatID          int        `db:"chat_id" json:"chatId"`
	Status          string     `db:"status" json:"status"`
	RequestSentAt   *time.Time `db:"request_sent_at" json:"requestSentAt,omitempty"`
	QuoteReceivedAt *time.Time `db:"quote_received_at" json:"quoteReceivedAt,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
}

// ChatMessage (сообщение в чате)
type ChatMessage struct {
	ID         int       `db:"id" json:"id"`
	ChatID     int       `db:"chat_id" json:"chatId"`
	ExternalID string    `db:"external_id" json:"externalId"`
	Direction  string    `db:"direction" json:"direction"`
	Content    string    `db:"content" json:"content"`
	Type       string    `db:"type" json:"type"`
	Status     string    `db:"status" json:"status"`
	Metadata   []byte    `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// GetOrCreateChatByPhone возвращает чат по номеру, создавая его при
// первом входящем сообщении.
func (s *Storage) GetOrCreateChatByPhone(ctx context.Context, phone, name string) (*Chat, error) {
	c := &Chat{}
	err := s.db.GetContext(ctx, c, `SELECT * FROM chat WHERE phone=$1`, phone)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	query := `
        INSERT INTO chat (phone, name)
        VALUES ($1, $2)
        ON CONFLICT (phone) DO UPDATE SET name = chat.name
        RETURNING id, phone, name, request_id, supplier_id, last_message, last_message_at, created_at`
	if err := s.db.GetContext(ctx, c, query, phone, name); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Storage) GetChat(ctx context.Context, id int) (*Chat, error) {
	c := &Chat{}
	err := s.db.GetContext(ctx, c, `SELECT * FROM chat WHERE id=$1`, id)
	if err != nil {
		return nil, notFoundOr(err, "get chat")
	}
	return c, nil
}

func (s *Storage) GetChats(ctx context.Context, requestID *int, limit, offset int) ([]Chat, error) {
	chats := []Chat{}
	if requestID != nil {
		err := s.db.SelectContext(ctx, &chats,
			`SELECT * FROM chat WHERE request_id=$1 ORDER BY last_message_at DESC NULLS LAST LIMIT $2 OFFSET $3`,
			*requestID, limit, offset)
		return chats, err
	}
	err := s.db.SelectContext(ctx, &chats,
		`SELECT * FROM chat ORDER BY last_message_at DESC NULLS LAST LIMIT $1 OFFSET $2`,
		limit, offset)
	return chats, err
}

// SaveMessage пишет сообщение и обновляет денормализованные поля чата.
func (s *Storage) SaveMessage(ctx context.Context, m *ChatMessage) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
            INSERT INTO chat_message (chat_id, external_id, direction, content, type, status, metadata)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
            RETURNING id, created_at`
		err := tx.QueryRowContext(ctx, query,
			m.ChatID, m.ExternalID, m.Direction, m.Content, m.Type, m.Status, m.Metadata).
			Scan(&m.ID, &m.CreatedAt)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE chat SET last_message=$1, last_message_at=NOW() WHERE id=$2`,
			m.Content, m.ChatID)
		return err
	})
}

func (s *Storage) GetMessages(ctx context.Context, chatID, limit, offset int) ([]ChatMessage, error) {
	msgs := []ChatMessage{}
	err := s.db.SelectContext(ctx, &msgs,
		`SELECT * FROM chat_message WHERE chat_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		chatID, limit, offset)
	return msgs, err
}

// LinkPositionChat связывает чат с позицией идемпотентно: первая связь
// создаёт строку REQUESTED и увеличивает quotes_requested, повторная лишь
// обновляет отметку времени и счётчик не трогает.
func (s *Storage) LinkPositionChat(ctx context.Context, positionID, chatID int) (*PositionChat, error) {
	pc := &PositionChat{}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, pc,
			`SELECT * FROM position_chat WHERE position_id=$1 AND chat_id=$2`, positionID, chatID)
		if err == nil {
			// Повторная привязка: освежить отметку, счётчик не менять.
			return tx.GetContext(ctx, pc, `
                UPDATE position_chat SET request_sent_at=NOW()
                WHERE position_id=$1 AND chat_id=$2
                RETURNING *`, positionID, chatID)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		err = tx.GetContext(ctx, pc, `
            INSERT INTO position_chat (position_id, chat_id, status, request_sent_at)
            VALUES ($1, $2, $3, NOW())
            RETURNING *`, positionID, chatID, PositionChatRequested)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
            UPDATE position
            SET quotes_requested = quotes_requested + 1, search_status = $2, updated_at = NOW()
            WHERE id = $1`, positionID, PositionQuotesRequested)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pc, nil
}

// UnlinkPositionChat удаляет связь и уменьшает счётчики позиции,
// прижимая их к нулю на случай рассинхронизации.
func (s *Storage) UnlinkPositionChat(ctx context.Context, positionID, chatID int) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM position_chat WHERE position_id=$1 AND chat_id=$2`, positionID, chatID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		_, err = tx.ExecContext(ctx, `
            UPDATE position SET
                quotes_requested = GREATEST(quotes_requested - 1, 0),
                quotes_received  = GREATEST(quotes_received - 1, 0),
                updated_at = NOW()
            WHERE id = $1`, positionID)
		return err
	})
}

// LinkChatToRequest только проставляет внешний ключ; строки position_chat
// создаются отдельно по каждой позиции.
func (s *Storage) LinkChatToRequest(ctx context.Context, chatID, requestID int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat SET request_id=$1 WHERE id=$2`, requestID, chatID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UnlinkChatFromRequest — каскад: удалить все связи чата с позициями,
// уменьшить счётчики каждой затронутой позиции, затем снять request_id.
func (s *Storage) UnlinkChatFromRequest(ctx context.Context, chatID int) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var positionIDs []int
		err := tx.SelectContext(ctx, &positionIDs,
			`SELECT position_id FROM position_chat WHERE chat_id=$1`, chatID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM position_chat WHERE chat_id=$1`, chatID); err != nil {
			return err
		}
		if len(positionIDs) > 0 {
			_, err = tx.ExecContext(ctx, `
                UPDATE position SET
                    quotes_requested = GREATEST(quotes_requested - 1, 0),
                    quotes_received  = GREATEST(quotes_received - 1, 0),
                    updated_at = NOW()
                WHERE id = ANY($1)`, pq.Array(positionIDs))
			if err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `UPDATE chat SET request_id=NULL WHERE id=$1`, chatID)
		return err
	})
}

// RegisterIncomingQuote помечает все активные связи чата как RECEIVED и
// увеличивает quotes_received по каждой затронутой позиции. Возвращает
// идентификаторы заявок, которые стоит перепроверить на готовность.
func (s *Storage) RegisterIncomingQuote(ctx context.Context, chatID int) ([]int, error) {
	var requestIDs []int
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var positionIDs []int
		err := tx.SelectContext(ctx, &positionIDs, `
            UPDATE position_chat
            SET status=$2, quote_received_at=NOW()
            WHERE chat_id=$1 AND status = ANY($3)
            RETURNING position_id`,
			chatID, PositionChatReceived,
			pq.Array(transitionsInto(positionChatTransitions, PositionChatReceived)))
		if err != nil {
			return err
		}
		if len(positionIDs) == 0 {
			return nil
		}
		return tx.SelectContext(ctx, &requestIDs, `
            UPDATE position SET
                quotes_received = quotes_received + 1,
                search_status = $2,
                updated_at = NOW()
            WHERE id = ANY($1)
            RETURNING request_id`, pq.Array(positionIDs), PositionQuotesReceived)
	})
	if err != nil {
		return nil, err
	}
	return dedupeInts(requestIDs), nil
}

// PromoteRequestIfReady переводит заявку в COMPARING, когда каждая её
// позиция набрала порог предложений; позиции получают статус AI_ANALYZED.
// Порог берётся из настройки quote_threshold, константа — запасное
// значение. Пересканирует все позиции заявки на каждом подходящем
// входящем — кэширование не требуется на ожидаемых объёмах.
func (s *Storage) PromoteRequestIfReady(ctx context.Context, requestID int) (bool, error) {
	threshold := s.GetSettingInt(ctx, SettingQuoteThreshold, QuoteThreshold)
	promoted := false
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var total, ready int
		err := tx.QueryRowContext(ctx, `
            SELECT COUNT(*), COUNT(*) FILTER (WHERE quotes_received >= $2)
            FROM position WHERE request_id=$1`, requestID, threshold).
			Scan(&total, &ready)
		if err != nil {
			return err
		}
		if total == 0 || ready < total {
			return nil
		}

		var status string
		if err := tx.GetContext(ctx, &status,
			`SELECT status FROM request WHERE id=$1`, requestID); err != nil {
			return notFoundOr(err, "get request status")
		}
		if !CanRequestTransition(status, RequestComparing) {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE request SET status=$1, updated_at=NOW() WHERE id=$2`,
			RequestComparing, requestID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE position SET search_status=$1, updated_at=NOW() WHERE request_id=$2`,
			PositionAIAnalyzed, requestID); err != nil {
			return err
		}
		promoted = true
		return nil
	})
	return promoted, err
}

// MarkPositionChatSent отмечает фактическую отправку запроса. Переход
// проверяется по таблице: двигается только REQUESTED, связь в более
// позднем статусе не откатывается.
func (s *Storage) MarkPositionChatSent(ctx context.Context, positionID, chatID int) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var status string
		err := tx.GetContext(ctx, &status,
			`SELECT status FROM position_chat WHERE position_id=$1 AND chat_id=$2`,
			positionID, chatID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if !CanPositionChatTransition(status, PositionChatSent) {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
            UPDATE position_chat SET status=$3
            WHERE position_id=$1 AND chat_id=$2`,
			positionID, chatID, PositionChatSent)
		return err
	})
}

func (s *Storage) GetPositionChatsByChat(ctx context.Context, chatID int) ([]PositionChat, error) {
	pcs := []PositionChat{}
	err := s.db.SelectContext(ctx, &pcs,
		`SELECT * FROM position_chat WHERE chat_id=$1 ORDER BY id ASC`, chatID)
	return pcs, err
}

func dedupeInts(in []int) []int {
	seen := make(map[int]struct{}, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
