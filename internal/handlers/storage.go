package handlers

import (
	"context"

	"procurement/db"
)

// StorageInterface — всё, что обработчикам нужно от хранилища.
type StorageInterface interface {
	GetUserByUsername(ctx context.Context, username string) (*db.User, error)

	CreateRequest(ctx context.Context, r *db.Request) error
	GetRequest(ctx context.Context, id int) (*db.Request, error)
	UpdateRequest(ctx context.Context, r *db.Request) error
	CreateRequestWithPositions(ctx context.Context, r *db.Request, positions []db.Position) error
	GetRequests(ctx context.Context, f db.RequestFilter) ([]db.Request, error)
	ChangeRequestStatus(ctx context.Context, id int, newStatus string) (*db.Request, error)
	DeleteRequestCascade(ctx context.Context, requestID int) error

	CreatePosition(ctx context.Context, p *db.Position) error
	GetPosition(ctx context.Context, id int) (*db.Position, error)
	GetPositionsByRequest(ctx context.Context, requestID int) ([]db.Position, error)
	RecountRequestCounters(ctx context.Context, requestID int) ([]db.Position, error)

	CreateOffer(ctx context.Context, o *db.CommercialOffer) error
	GetOffer(ctx context.Context, id int) (*db.CommercialOffer, error)
	GetOffersByRequest(ctx context.Context, requestID int) ([]db.CommercialOffer, error)
	GetOffersByPosition(ctx context.Context, positionID int) ([]db.CommercialOffer, error)

	GetRequestDecision(ctx context.Context, requestID int) (*db.RequestDecision, error)
	FinalizeRequest(ctx context.Context, requestID, offerID int, decidedBy, reason string) (*db.RequestDecision, error)
	SelectOfferForPosition(ctx context.Context, positionID, offerID int, decidedBy, reason string) (bool, *db.RequestDecision, error)

	GetOrCreateChatByPhone(ctx context.Context, phone, name string) (*db.Chat, error)
	GetChat(ctx context.Context, id int) (*db.Chat, error)
	GetChats(ctx context.Context, requestID *int, limit, offset int) ([]db.Chat, error)
	SaveMessage(ctx context.Context, m *db.ChatMessage) error
	GetMessages(ctx context.Context, chatID, limit, offset int) ([]db.ChatMessage, error)
	LinkPositionChat(ctx context.Context, positionID, chatID int) (*db.PositionChat, error)
	UnlinkPositionChat(ctx context.Context, positionID, chatID int) error
	LinkChatToRequest(ctx context.Context, chatID, requestID int) error
	UnlinkChatFromRequest(ctx context.Context, chatID int) error
	MarkPositionChatSent(ctx context.Context, positionID, chatID int) error
	GetPositionChatsByChat(ctx context.Context, chatID int) ([]db.PositionChat, error)
	RegisterIncomingQuote(ctx context.Context, chatID int) ([]int, error)
	PromoteRequestIfReady(ctx context.Context, requestID int) (bool, error)

	CreateSupplier(ctx context.Context, sup *db.Supplier) error
	GetSupplier(ctx context.Context, id int) (*db.Supplier, error)
	UpdateSupplier(ctx context.Context, sup *db.Supplier) error
	GetSuppliers(ctx context.Context, f db.SupplierFilter) ([]db.Supplier, error)

	CreateAuditLog(ctx context.Context, a *db.AuditLog) error
	GetAuditLogs(ctx context.Context, f db.AuditFilter) ([]db.AuditLog, error)

	GetSetting(ctx context.Context, key string) (*db.SystemSetting, error)
	SetSetting(ctx context.Context, set *db.SystemSetting) error
	GetSettingInt(ctx context.Context, key string, def int) int
}
