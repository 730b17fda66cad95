package handlers

import (
	"github.com/jmoiron/sqlx"

	"agriconnect/internal/cache"
	"agriconnect/internal/config"
	"agriconnect/internal/events"
	"agriconnect/internal/repos"
	"agriconnect/internal/services"
)

type Deps struct {
	Auth             *services.AuthService
	AuthHandler      *AuthHandler
	ProductHandler   *ProductHandler
	InventoryHandler *InventoryHandler
	OrderHandler     *OrderHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, pub events.Publisher, idem cache.Idempotency) *Deps {
	store := repos.NewSQLStore(db)
	prodRepo := repos.NewProductRepo(db)
	invRepo := repos.NewInventoryRepo(db)
	userRepo := repos.NewUserRepo(db)

	authSvc := services.NewAuthService(userRepo, cfg.BcryptCost)
	catalogSvc := services.NewCatalogService(prodRepo)
	invSvc := services.NewInventoryService(invRepo)
	orderSvc := services.NewOrderService(store, pub)
	fulfillSvc := services.NewFulfillmentService(store, pub)
	orderSvc.Producer = cfg.ServiceName
	fulfillSvc.Producer = cfg.ServiceName
	reportSvc := services.NewReportService(store)

	return &Deps{
		Auth:             authSvc,
		AuthHandler:      &AuthHandler{Auth: authSvc, SecureCookie: cfg.SecureCookies},
		ProductHandler:   &ProductHandler{Catalog: catalogSvc, Inv: invSvc},
		InventoryHandler: &InventoryHandler{Inv: invSvc},
		OrderHandler: &OrderHandler{
			Order:   orderSvc,
			Fulfill: fulfillSvc,
			Reports: reportSvc,
			Orders:  store,
			Idem:    idem,
		},
	}
}
