package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/bcrypt"

	"procurement/config"
	"procurement/db"
	"procurement/db/migrations"
	"procurement/internal/ai"
	"procurement/internal/handlers"
	"procurement/internal/search"
	"procurement/internal/whatsapp"
)

func main() {
	// .env есть только в локальной разработке.
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	logger := newLogger(cfg.Logger)
	defer logger.Sync()

	if cfg.Postgres.ConnString == "" {
		logger.Fatal("POSTGRES_CONN env variable is not set")
	}
	dbConn, err := sqlx.Connect("postgres", cfg.Postgres.ConnString)
	if err != nil {
		logger.Fatalw("cannot connect to DB", "error", err)
	}
	defer dbConn.Close()

	if err := migrations.Run(dbConn.DB); err != nil {
		logger.Fatalw("migrations failed", "error", err)
	}

	store := db.NewStorage(dbConn)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ensureAdminUser(ctx, store, cfg.Admin); err != nil {
		logger.Fatalw("seed admin user failed", "error", err)
	}

	// Токен шлюза читается на каждую отправку: настройка перекрывает
	// окружение и редактируется без перезапуска сервиса.
	tokenSource := func(ctx context.Context) string {
		if set, err := store.GetSetting(ctx, db.SettingWhatsappToken); err == nil && set.Value != "" {
			return set.Value
		}
		return cfg.Whatsapp.Token
	}
	gateway := whatsapp.NewClient(cfg.Whatsapp.BaseURL, tokenSource, cfg.Whatsapp.Timeout)

	completer := ai.NewClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout)

	var providers []search.Provider
	if cfg.Search.WebBaseURL != "" {
		providers = append(providers, search.NewWebProvider(cfg.Search.WebBaseURL, cfg.Search.WebAPIKey))
	}
	if cfg.Search.RegionalBaseURL != "" {
		providers = append(providers, search.NewRegionalProvider(cfg.Search.RegionalBaseURL, cfg.Search.RegionalAPIKey))
	}
	if cfg.Search.AggregatorBaseURL != "" {
		providers = append(providers, search.NewAggregatorProvider(cfg.Search.AggregatorBaseURL, cfg.Search.AggregatorAPIKey))
	}

	h := handlers.NewHandler(store, logger)
	h.Gateway = gateway
	h.Searcher = search.NewService(providers, cfg.Search.Timeout, logger)
	h.Ranker = ai.NewRanker(completer, logger)
	h.Comparator = ai.NewComparator(completer, logger)
	h.Writer = ai.NewWriter(completer, logger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)

		// заявки
		r.Post("/requests/new", h.CreateRequestHandler)
		r.Get("/requests", h.GetRequestsHandler)
		r.Post("/requests/import", h.ImportRequestHandler)
		r.Get("/requests/{requestId}", h.GetRequestHandler)
		r.Patch("/requests/{requestId}", h.EditRequestHandler)
		r.Delete("/requests/{requestId}", h.DeleteRequestHandler)
		r.Put("/requests/{requestId}/status", h.ChangeRequestStatusHandler)
		r.Post("/requests/{requestId}/finalize", h.FinalizeRequestHandler)
		r.Post("/requests/{requestId}/recount", h.RecountRequestHandler)
		r.Get("/requests/{requestId}/decision", h.GetRequestDecisionHandler)

		// позиции
		r.Get("/requests/{requestId}/positions", h.GetPositionsHandler)
		r.Post("/requests/{requestId}/positions", h.CreatePositionHandler)
		r.Post("/positions/{positionId}/select-offer", h.SelectOfferHandler)
		r.Get("/positions/{positionId}/offers", h.GetPositionOffersHandler)

		// коммерческие предложения
		r.Get("/requests/{requestId}/offers", h.GetRequestOffersHandler)
		r.Post("/requests/{requestId}/offers", h.CreateOfferHandler)
		r.Get("/requests/{requestId}/offers/compare", h.CompareOffersHandler)
		r.Get("/offers/{offerId}", h.GetOfferHandler)

		// чаты и переписка
		r.Get("/chats", h.GetChatsHandler)
		r.Get("/chats/{chatId}", h.GetChatHandler)
		r.Get("/chats/{chatId}/messages", h.GetChatMessagesHandler)
		r.Post("/chats/{chatId}/link-position", h.LinkPositionHandler)
		r.Delete("/chats/{chatId}/positions/{positionId}", h.UnlinkPositionHandler)
		r.Put("/chats/{chatId}/request", h.LinkRequestHandler)
		r.Delete("/chats/{chatId}/request", h.UnlinkRequestHandler)
		r.Post("/chats/{chatId}/send", h.SendMessageHandler)
		r.Post("/whatsapp/webhook", h.WebhookHandler)

		// поставщики
		r.Post("/suppliers/new", h.CreateSupplierHandler)
		r.Get("/suppliers", h.GetSuppliersHandler)
		r.Patch("/suppliers/{supplierId}", h.EditSupplierHandler)
		r.Post("/suppliers/search", h.SearchSuppliersHandler)

		// журнал и настройки
		r.Get("/audit", h.GetAuditHandler)
		r.Get("/settings/{key}", h.GetSettingHandler)
		r.Put("/settings/{key}", h.PutSettingHandler)
	})

	logger.Infow("starting server", "addr", cfg.Server.Addr)
	if err := http.ListenAndServe(cfg.Server.Addr, r); err != nil {
		logger.Fatalw("server stopped", "error", err)
	}
}

// ensureAdminUser заводит пользователя для парольной проверки удаления,
// если его ещё нет. Без пароля в окружении ничего не создаётся.
func ensureAdminUser(ctx context.Context, store *db.Storage, cfg config.AdminConfig) error {
	if cfg.Password == "" {
		return nil
	}
	if _, err := store.GetUserByUsername(ctx, cfg.Username); err == nil {
		return nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return store.CreateUser(ctx, &db.User{
		Username:     cfg.Username,
		PasswordHash: string(hash),
	})
}

func newLogger(cfg config.LoggerConfig) *zap.SugaredLogger {
	zcfg := zap.NewProductionConfig()
	if cfg.Encoding == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.Level); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := zcfg.Build()
	if err != nil {
		log.Fatalf("cannot build logger: %v", err)
	}
	return logger.Sugar()
}
