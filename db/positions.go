package db

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Position (Позиция заявки — одна строка номенклатуры)
type Position struct {
	ID               int       `db:"id" json:"id"`
	RequestID        int       `db:"request_id" json:"requestId"`
	Name             string    `db:"name" json:"name"`
	Description      string    `db:"description" json:"description"`
	SKU              string    `db:"sku" json:"sku"`
	Quantity         float64   `db:"quantity" json:"quantity"`
	Unit             string    `db:"unit" json:"unit"`
	QuotesRequested  int       `db:"quotes_requested" json:"quotesRequested"`
	QuotesReceived   int       `db:"quotes_received" json:"quotesReceived"`
	SearchStatus     string    `db:"search_status" json:"searchStatus"`
	FinalChoice      string    `db:"final_choice" json:"finalChoice"`
	AIRecommendation string    `db:"ai_recommendation" json:"aiRecommendation"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"-"`
}

func (s *Storage) CreatePosition(ctx context.Context, p *Position) error {
	if p.SearchStatus == "" {
		p.SearchStatus = PositionNew
	}
	query := `
        INSERT INTO position (request_id, name, description, sku, quantity, unit, search_status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`
	return s.db.QueryRowContext(ctx, query,
		p.RequestID, p.Name, p.Description, p.SKU, p.Quantity, p.Unit, p.SearchStatus).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (s *Storage) GetPosition(ctx context.Context, id int) (*Position, error) {
	p := &Position{}
	err := s.db.GetContext(ctx, p, `SELECT * FROM position WHERE id=$1`, id)
	if err != nil {
		return nil, notFoundOr(err, "get position")
	}
	return p, nil
}

func (s *Storage) GetPositionsByRequest(ctx context.Context, requestID int) ([]Position, error) {
	positions := []Position{}
	err := s.db.SelectContext(ctx, &positions,
		`SELECT * FROM position WHERE request_id=$1 ORDER BY id ASC`, requestID)
	return positions, err
}

// RecountRequestCounters — единственная авторитетная точка пересчёта
// счётчиков позиций: значения выводятся из строк position_chat, а не
// правятся по месту. Возвращает позиции после пересчёта.
func (s *Storage) RecountRequestCounters(ctx context.Context, requestID int) ([]Position, error) {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
            UPDATE position p SET
                quotes_requested = (
                    SELECT COUNT(*) FROM position_chat pc WHERE pc.position_id = p.id),
                quotes_received = (
                    SELECT COUNT(*) FROM position_chat pc
                    WHERE pc.position_id = p.id AND pc.status IN ($2, $3)),
                updated_at = NOW()
            WHERE p.request_id = $1`
		_, err := tx.ExecContext(ctx, query, requestID, PositionChatReceived, PositionChatSelected)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetPositionsByRequest(ctx, requestID)
}

// PositionCompleted: позиция закрыта, если по ней есть одобренное КП
// либо пользователь уже зафиксировал выбор текстом.
func positionCompleted(ctx context.Context, tx *sqlx.Tx, p *Position) (bool, error) {
	if p.FinalChoice != "" || p.SearchStatus == PositionUserDecided {
		return true, nil
	}
	var approved int
	err := tx.GetContext(ctx, &approved,
		`SELECT COUNT(1) FROM commercial_offer WHERE position_id=$1 AND status=$2`,
		p.ID, OfferApproved)
	if err != nil {
		return false, err
	}
	return approved > 0, nil
}
