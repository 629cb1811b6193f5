package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// RequestDecision (Итоговое решение по заявке, уникально на заявку)
type RequestDecision struct {
	ID           int       `db:"id" json:"id"`
	RequestID    int       `db:"request_id" json:"requestId"`
	OfferID      int       `db:"offer_id" json:"offerId"`
	DecidedBy    string    `db:"decided_by" json:"decidedBy"`
	Reason       string    `db:"reason" json:"reason"`
	FinalPrice   float64   `db:"final_price" json:"finalPrice"`
	Currency     string    `db:"currency" json:"currency"`
	SupplierName string    `db:"supplier_name" json:"supplierName"`
	Automatic    bool      `db:"automatic" json:"automatic"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

func (s *Storage) GetRequestDecision(ctx context.Context, requestID int) (*RequestDecision, error) {
	d := &RequestDecision{}
	err := s.db.GetContext(ctx, d,
		`SELECT * FROM request_decision WHERE request_id=$1`, requestID)
	if err != nil {
		return nil, notFoundOr(err, "get decision")
	}
	return d, nil
}

// finalizeInTx — единый путь фиксации решения по заявке, общий для
// пользовательского финализа и автоматического каскада после закрытия
// последней позиции. Выбранное КП одобряется, все остальные КП заявки
// отклоняются, решение апсертится (на заявку — не больше одной строки),
// статус заявки становится COMPLETED.
func finalizeInTx(ctx context.Context, tx *sqlx.Tx, requestID, offerID int, decidedBy, reason string, automatic bool) (*RequestDecision, error) {
	o := &CommercialOffer{}
	err := tx.GetContext(ctx, o,
		`SELECT * FROM commercial_offer WHERE id=$1 AND request_id=$2`, offerID, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	// Выбранное КП одобряется по таблице переходов; повторная фиксация
	// уже одобренного — допустимый no-op. Отклонённое КП итоговым стать
	// не может: исправленные условия заводятся новым КП.
	if o.Status != OfferApproved && !CanOfferTransition(o.Status, OfferApproved) {
		return nil, fmt.Errorf("%w: offer %s -> %s", ErrIllegalTransition, o.Status, OfferApproved)
	}

	var status string
	if err := tx.GetContext(ctx, &status, `SELECT status FROM request WHERE id=$1`, requestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if status != RequestCompleted && !CanRequestTransition(status, RequestCompleted) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, status, RequestCompleted)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE commercial_offer SET status=$1, updated_at=NOW() WHERE id=$2`,
		OfferApproved, offerID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE commercial_offer SET status=$1, updated_at=NOW() WHERE request_id=$2 AND id<>$3`,
		OfferRejected, requestID, offerID); err != nil {
		return nil, err
	}

	d := &RequestDecision{}
	err = tx.GetContext(ctx, d, `
        INSERT INTO request_decision
            (request_id, offer_id, decided_by, reason, final_price, currency, supplier_name, automatic)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (request_id) DO UPDATE SET
            offer_id = EXCLUDED.offer_id,
            decided_by = EXCLUDED.decided_by,
            reason = EXCLUDED.reason,
            final_price = EXCLUDED.final_price,
            currency = EXCLUDED.currency,
            supplier_name = EXCLUDED.supplier_name,
            automatic = EXCLUDED.automatic,
            created_at = NOW()
        RETURNING *`,
		requestID, offerID, decidedBy, reason, o.TotalPrice, o.Currency, o.CompanyName, automatic)
	if err != nil {
		return nil, err
	}

	if status != RequestCompleted {
		if _, err := tx.ExecContext(ctx,
			`UPDATE request SET status=$1, updated_at=NOW() WHERE id=$2`,
			RequestCompleted, requestID); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// FinalizeRequest — финализация всей заявки одним выбранным КП.
func (s *Storage) FinalizeRequest(ctx context.Context, requestID, offerID int, decidedBy, reason string) (*RequestDecision, error) {
	var d *RequestDecision
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var txErr error
		d, txErr = finalizeInTx(ctx, tx, requestID, offerID, decidedBy, reason, false)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// SelectOfferForPosition — выбор победителя по одной позиции. Если после
// выбора закрыты все позиции заявки, тем же путём фиксируется решение на
// уровне заявки (последнее выбранное КП становится итоговым).
func (s *Storage) SelectOfferForPosition(ctx context.Context, positionID, offerID int, decidedBy, reason string) (completed bool, decision *RequestDecision, err error) {
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		p := &Position{}
		if err := tx.GetContext(ctx, p, `SELECT * FROM position WHERE id=$1`, positionID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		o := &CommercialOffer{}
		if err := tx.GetContext(ctx, o,
			`SELECT * FROM commercial_offer WHERE id=$1 AND request_id=$2`,
			offerID, p.RequestID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if o.Status != OfferApproved && !CanOfferTransition(o.Status, OfferApproved) {
			return fmt.Errorf("%w: offer %s -> %s", ErrIllegalTransition, o.Status, OfferApproved)
		}

		// Привязать КП к позиции, если ещё не привязано.
		if o.PositionID == nil || *o.PositionID != positionID {
			if _, err := tx.ExecContext(ctx,
				`UPDATE commercial_offer SET position_id=$1, updated_at=NOW() WHERE id=$2`,
				positionID, offerID); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE commercial_offer SET status=$1, updated_at=NOW() WHERE id=$2`,
			OfferApproved, offerID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE commercial_offer SET status=$1, updated_at=NOW() WHERE position_id=$2 AND id<>$3`,
			OfferRejected, positionID, offerID); err != nil {
			return err
		}

		finalChoice := fmt.Sprintf("%s — %.2f %s", o.CompanyName, o.TotalPrice, o.Currency)
		if _, err := tx.ExecContext(ctx, `
            UPDATE position SET final_choice=$1, search_status=$2, updated_at=NOW()
            WHERE id=$3`, finalChoice, PositionUserDecided, positionID); err != nil {
			return err
		}

		// Перепроверить: закрыты ли теперь все позиции заявки.
		positions := []Position{}
		if err := tx.SelectContext(ctx, &positions,
			`SELECT * FROM position WHERE request_id=$1`, p.RequestID); err != nil {
			return err
		}
		for i := range positions {
			if positions[i].ID == positionID {
				continue
			}
			done, err := positionCompleted(ctx, tx, &positions[i])
			if err != nil {
				return err
			}
			if !done {
				return nil
			}
		}

		// Каскад не должен ронять решение по позиции: если заявка в
		// статусе, из которого COMPLETED недостижим, фиксируем только
		// позицию и оставляем заявку как есть.
		var reqStatus string
		if err := tx.GetContext(ctx, &reqStatus,
			`SELECT status FROM request WHERE id=$1`, p.RequestID); err != nil {
			return err
		}
		if reqStatus != RequestCompleted && !CanRequestTransition(reqStatus, RequestCompleted) {
			return nil
		}

		d, err := finalizeInTx(ctx, tx, p.RequestID, offerID, decidedBy,
			"автоматическая фиксация после закрытия последней позиции", true)
		if err != nil {
			return err
		}
		completed = true
		decision = d
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return completed, decision, nil
}
