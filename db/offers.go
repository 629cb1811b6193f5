package db

import (
	"context"
	"time"
)

// CommercialOffer (Коммерческое предложение, КП)
type CommercialOffer struct {
	ID                int        `db:"id" json:"id"`
	RequestID         int        `db:"request_id" json:"requestId"`
	PositionID        *int       `db:"position_id" json:"positionId,omitempty"`
	ChatID            *int       `db:"chat_id" json:"chatId,omitempty"`
	SupplierID        *int       `db:"supplier_id" json:"supplierId,omitempty"`
	CompanyName       string     `db:"company_name" json:"companyName"`
	TotalPrice        float64    `db:"total_price" json:"totalPrice"`
	Currency          string     `db:"currency" json:"currency"`
	DeliveryTerms     string     `db:"delivery_terms" json:"deliveryTerms"`
	PaymentTerms      string     `db:"payment_terms" json:"paymentTerms"`
	ValidUntil        *time.Time `db:"valid_until" json:"validUntil,omitempty"`
	Confidence        int        `db:"confidence" json:"confidence"`
	NeedsManualReview bool       `db:"needs_manual_review" json:"needsManualReview"`
	Status            string     `db:"status" json:"status"`
	FileRef           string     `db:"file_ref" json:"fileRef"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"-"`
}

// Qualifies: КП засчитывается в "достаточно предложений" только при
// уверенности парсера не ниже порога и без ручной проверки.
func (o *CommercialOffer) Qualifies() bool {
	return o.Confidence >= MinOfferConfidence && !o.NeedsManualReview
}

func (s *Storage) CreateOffer(ctx context.Context, o *CommercialOffer) error {
	if o.Status == "" {
		o.Status = OfferPending
	}
	query := `
        INSERT INTO commercial_offer
            (request_id, position_id, chat_id, supplier_id, company_name, total_price,
             currency, delivery_terms, payment_terms, valid_until, confidence,
             needs_manual_review, status, file_ref)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        RETURNING id, created_at, updated_at`
	return s.db.QueryRowContext(ctx, query,
		o.RequestID, o.PositionID, o.ChatID, o.SupplierID, o.CompanyName, o.TotalPrice,
		o.Currency, o.DeliveryTerms, o.PaymentTerms, o.ValidUntil, o.Confidence,
		o.NeedsManualReview, o.Status, o.FileRef).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (s *Storage) GetOffer(ctx context.Context, id int) (*CommercialOffer, error) {
	o := &CommercialOffer{}
	err := s.db.GetContext(ctx, o, `SELECT * FROM commercial_offer WHERE id=$1`, id)
	if err != nil {
		return nil, notFoundOr(err, "get offer")
	}
	return o, nil
}

func (s *Storage) GetOffersByRequest(ctx context.Context, requestID int) ([]CommercialOffer, error) {
	offers := []CommercialOffer{}
	err := s.db.SelectContext(ctx, &offers,
		`SELECT * FROM commercial_offer WHERE request_id=$1 ORDER BY total_price ASC`, requestID)
	return offers, err
}

func (s *Storage) GetOffersByPosition(ctx context.Context, positionID int) ([]CommercialOffer, error) {
	offers := []CommercialOffer{}
	err := s.db.SelectContext(ctx, &offers,
		`SELECT * FROM commercial_offer WHERE position_id=$1 ORDER BY total_price ASC`, positionID)
	return offers, err
}
