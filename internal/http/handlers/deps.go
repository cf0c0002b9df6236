package handlers

import (
	"github.com/jmoiron/sqlx"

	"stockhold/internal/config"
	"stockhold/internal/lock"
	applog "stockhold/internal/log"
	"stockhold/internal/repos"
	"stockhold/internal/services"
)

type Deps struct {
	Tx           *repos.TxManager
	Reservations *services.ReservationService
	Sweeper      *services.ExpirationSweeper
	Auth         *services.AdminAuth

	ReservationHandler *ReservationHandler
	ProductHandler     *ProductHandler
	InventoryHandler   *InventoryHandler
	AdminHandler       *AdminHandler
}

// NewDeps builds every service and handler over one lock registry so the
// sweeper and the API serialize on the same product locks.
func NewDeps(db *sqlx.DB, cfg config.Config, events services.Publisher) *Deps {
	mode, ok := lock.ParseMode(cfg.LockMode)
	if !ok {
		dl := applog.Component("deps")
		dl.Warn().Str("lock_mode", cfg.LockMode).Msg("unknown lock mode, using wait")
	}
	txm := repos.NewTxManager(db, lock.NewKeyed(mode, cfg.LockWaitTimeout))

	resSvc := services.NewReservationService(txm, events, cfg.HoldDuration)
	invSvc := services.NewInventoryService(repos.NewProductRepo(db))
	sweeper := services.NewExpirationSweeper(txm, events, cfg.SweepInterval, cfg.SweepBatch)

	return &Deps{
		Tx:           txm,
		Reservations: resSvc,
		Sweeper:      sweeper,
		Auth:         services.NewAdminAuth(cfg.AdminUser, cfg.AdminPasswordHash),

		ReservationHandler: &ReservationHandler{Svc: resSvc},
		ProductHandler:     &ProductHandler{Svc: resSvc},
		InventoryHandler:   &InventoryHandler{Inv: invSvc},
		AdminHandler:       &AdminHandler{Svc: resSvc},
	}
}
