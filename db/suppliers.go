package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Supplier (Поставщик — найден поиском или заведён вручную)
type Supplier struct {
	ID            int            `db:"id" json:"id"`
	Name          string         `db:"name" json:"name"`
	TaxID         *string        `db:"tax_id" json:"taxId,omitempty"`
	Email         string         `db:"email" json:"email"`
	Phone         string         `db:"phone" json:"phone"`
	Whatsapp      string         `db:"whatsapp" json:"whatsapp"`
	Website       string         `db:"website" json:"website"`
	Tags          pq.StringArray `db:"tags" json:"tags"`
	Rating        float64        `db:"rating" json:"rating"`
	ContractFrom  *time.Time     `db:"contract_from" json:"contractFrom,omitempty"`
	ContractUntil *time.Time     `db:"contract_until" json:"contractUntil,omitempty"`
	IsActive      bool           `db:"is_active" json:"isActive"`
	Source        string         `db:"source" json:"source"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `db:"updated_at" json:"-"`
}

func (s *Storage) CreateSupplier(ctx context.Context, sup *Supplier) error {
	query := `
        INSERT INTO supplier
            (name, tax_id, email, phone, whatsapp, website, tags, rating,
             contract_from, contract_until, is_active, source)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING id, created_at, updated_at`
	return s.db.QueryRowContext(ctx, query,
		sup.Name, sup.TaxID, sup.Email, sup.Phone, sup.Whatsapp, sup.Website,
		sup.Tags, sup.Rating, sup.ContractFrom, sup.ContractUntil, sup.IsActive, sup.Source).
		Scan(&sup.ID, &sup.CreatedAt, &sup.UpdatedAt)
}

func (s *Storage) GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	sup := &Supplier{}
	err := s.db.GetContext(ctx, sup, `SELECT * FROM supplier WHERE id=$1`, id)
	if err != nil {
		return nil, notFoundOr(err, "get supplier")
	}
	return sup, nil
}

func (s *Storage) UpdateSupplier(ctx context.Context, sup *Supplier) error {
	query := `
        UPDATE supplier
        SET name=$1, tax_id=$2, email=$3, phone=$4, whatsapp=$5, website=$6,
            tags=$7, rating=$8, contract_from=$9, contract_until=$10, is_active=$11,
            updated_at=NOW()
        WHERE id=$12`
	_, err := s.db.ExecContext(ctx, query,
		sup.Name, sup.TaxID, sup.Email, sup.Phone, sup.Whatsapp, sup.Website,
		sup.Tags, sup.Rating, sup.ContractFrom, sup.ContractUntil, sup.IsActive, sup.ID)
	return err
}

// SupplierFilter — типизированный фильтр списка поставщиков.
type SupplierFilter struct {
	ActiveOnly bool
	Tag        string
	Limit      int
	Offset     int
}

func (s *Storage) GetSuppliers(ctx context.Context, f SupplierFilter) ([]Supplier, error) {
	var conds []string
	var args []interface{}

	if f.ActiveOnly {
		conds = append(conds, "is_active = TRUE")
	}
	if f.Tag != "" {
		args = append(args, f.Tag)
		conds = append(conds, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}

	query := `SELECT * FROM supplier`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY rating DESC, name ASC"
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)

	suppliers := []Supplier{}
	if err := s.db.SelectContext(ctx, &suppliers, query, args...); err != nil {
		return nil, err
	}
	return suppliers, nil
}
