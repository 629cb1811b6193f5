package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Request (Заявка на закупку)
type Request struct {
	ID          int        `db:"id" json:"id"`
	Number      string     `db:"number" json:"number"`
	Description string     `db:"description" json:"description"`
	Deadline    *time.Time `db:"deadline" json:"deadline,omitempty"`
	Budget      float64    `db:"budget" json:"budget"`
	Currency    string     `db:"currency" json:"currency"`
	Priority    int        `db:"priority" json:"priority"`
	Status      string     `db:"status" json:"status"`
	CreatedBy   string     `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"-"`
}

func (s *Storage) CreateRequest(ctx context.Context, r *Request) error {
	if r.Status == "" {
		r.Status = RequestUploaded
	}
	query := `
        INSERT INTO request (number, description, deadline, budget, currency, priority, status, created_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at, updated_at`
	return s.db.QueryRowContext(ctx, query,
		r.Number, r.Description, r.Deadline, r.Budget, r.Currency, r.Priority, r.Status, r.CreatedBy).
		Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
}

func (s *Storage) GetRequest(ctx context.Context, id int) (*Request, error) {
	r := &Request{}
	err := s.db.GetContext(ctx, r, `SELECT * FROM request WHERE id=$1`, id)
	if err != nil {
		return nil, notFoundOr(err, "get request")
	}
	return r, nil
}

func (s *Storage) UpdateRequest(ctx context.Context, r *Request) error {
	query := `
        UPDATE request
        SET description=$1, deadline=$2, budget=$3, currency=$4, priority=$5, updated_at=NOW()
        WHERE id=$6`
	_, err := s.db.ExecContext(ctx, query,
		r.Description, r.Deadline, r.Budget, r.Currency, r.Priority, r.ID)
	return err
}

// CreateRequestWithPositions создаёт заявку вместе с позициями одной
// транзакцией — импорт из Excel не оставляет заявку без строк.
func (s *Storage) CreateRequestWithPositions(ctx context.Context, r *Request, positions []Position) error {
	if r.Status == "" {
		r.Status = RequestUploaded
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowContext(ctx, `
            INSERT INTO request (number, description, deadline, budget, currency, priority, status, created_by)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
            RETURNING id, created_at, updated_at`,
			r.Number, r.Description, r.Deadline, r.Budget, r.Currency, r.Priority, r.Status, r.CreatedBy).
			Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return err
		}
		for i := range positions {
			p := &positions[i]
			p.RequestID = r.ID
			if p.SearchStatus == "" {
				p.SearchStatus = PositionNew
			}
			err := tx.QueryRowContext(ctx, `
                INSERT INTO position (request_id, name, description, sku, quantity, unit, search_status)
                VALUES ($1, $2, $3, $4, $5, $6, $7)
                RETURNING id, created_at, updated_at`,
				p.RequestID, p.Name, p.Description, p.SKU, p.Quantity, p.Unit, p.SearchStatus).
				Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// RequestFilter — типизированный фильтр списка заявок вместо произвольных
// параметров запроса.
type RequestFilter struct {
	Statuses []string
	Priority *int
	Limit    int
	Offset   int
}

func (s *Storage) GetRequests(ctx context.Context, f RequestFilter) ([]Request, error) {
	var conds []string
	var args []interface{}

	if len(f.Statuses) > 0 {
		placeholders := make([]string, len(f.Statuses))
		for i, v := range f.Statuses {
			args = append(args, v)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conds = append(conds, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if f.Priority != nil {
		args = append(args, *f.Priority)
		conds = append(conds, fmt.Sprintf("priority = $%d", len(args)))
	}

	query := `SELECT * FROM request`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)

	requests := []Request{}
	if err := s.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, err
	}
	return requests, nil
}

// ChangeRequestStatus меняет статус заявки, проверяя переход по таблице.
func (s *Storage) ChangeRequestStatus(ctx context.Context, id int, newStatus string) (*Request, error) {
	r, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanRequestTransition(r.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.Status, newStatus)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE request SET status=$1, updated_at=NOW() WHERE id=$2`, newStatus, id)
	if err != nil {
		return nil, err
	}
	r.Status = newStatus
	return r, nil
}

// DeleteRequestCascade удаляет заявку и всё достижимое от неё в порядке
// зависимостей. Проверка пароля выполняется на уровне обработчика до вызова.
func (s *Storage) DeleteRequestCascade(ctx context.Context, requestID int) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, `SELECT COUNT(1) FROM request WHERE id=$1`, requestID); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}

		steps := []string{
			`DELETE FROM request_decision WHERE request_id=$1`,
			`DELETE FROM commercial_offer WHERE request_id=$1`,
			`DELETE FROM chat_message WHERE chat_id IN (SELECT id FROM chat WHERE request_id=$1)`,
			`DELETE FROM position_chat WHERE position_id IN (SELECT id FROM position WHERE request_id=$1)`,
			`DELETE FROM position_chat WHERE chat_id IN (SELECT id FROM chat WHERE request_id=$1)`,
			`DELETE FROM chat WHERE request_id=$1`,
			`DELETE FROM position WHERE request_id=$1`,
			`DELETE FROM request WHERE id=$1`,
		}
		for _, q := range steps {
			if _, err := tx.ExecContext(ctx, q, requestID); err != nil {
				return fmt.Errorf("cascade delete: %w", err)
			}
		}
		return nil
	})
}

// User (Пользователь) — нужен для привязки действий и проверки пароля
// при каскадном удалении.
type User struct {
	ID           int       `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FirstName    string    `db:"first_name" json:"firstName"`
	LastName     string    `db:"last_name" json:"lastName"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"-"`
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u := &User{}
	err := s.db.GetContext(ctx, u, `SELECT * FROM app_user WHERE username=$1`, username)
	if err != nil {
		return nil, notFoundOr(err, "get user")
	}
	return u, nil
}

func (s *Storage) CreateUser(ctx context.Context, u *User) error {
	query := `
        INSERT INTO app_user (username, password_hash, first_name, last_name)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`
	return s.db.QueryRowContext(ctx, query, u.Username, u.PasswordHash, u.FirstName, u.LastName).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}
