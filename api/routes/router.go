package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tradebazaar/finance-backend/api/controllers"
	webhookcontrollers "github.com/tradebazaar/finance-backend/api/controllers/webhooks"
	"github.com/tradebazaar/finance-backend/api/middleware"
	"github.com/tradebazaar/finance-backend/internal/audit"
	"github.com/tradebazaar/finance-backend/internal/fraud"
	"github.com/tradebazaar/finance-backend/internal/limits"
	"github.com/tradebazaar/finance-backend/internal/refunds"
	"github.com/tradebazaar/finance-backend/internal/returns"
	"github.com/tradebazaar/finance-backend/internal/wallet"
	"github.com/tradebazaar/finance-backend/internal/withdrawals"
	"github.com/tradebazaar/finance-backend/pkg/config"
	"github.com/tradebazaar/finance-backend/pkg/logger"
	pkgredis "github.com/tradebazaar/finance-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *pkgredis.Client,
	registry *prometheus.Registry,
	walletService wallet.Service,
	withdrawalsService withdrawals.Service,
	limitsService limits.Service,
	fraudService fraud.Service,
	returnsService returns.Service,
	refundsService refunds.Service,
	auditReader audit.Reader,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payout", webhookcontrollers.PayoutWebhook(withdrawalsService, cfg.Payout.WebhookSecret, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ActorContext(logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/wallets/{walletId}", func(r chi.Router) {
			r.Get("/", controllers.WalletSnapshot(walletService, logg))
			r.Get("/transactions", controllers.WalletTransactions(walletService, logg))
			r.Post("/credit", controllers.CreditWallet(walletService, logg))
			r.Post("/debit", controllers.DebitWallet(walletService, logg))
			r.Post("/withdraw", controllers.RequestWithdrawal(withdrawalsService, logg))
		})

		r.Route("/owners/{ownerId}", func(r chi.Router) {
			r.Get("/wallets", controllers.OwnerWallets(walletService, logg))
			r.Get("/withdrawals", controllers.OwnerWithdrawals(withdrawalsService, logg))
			r.Get("/limits", controllers.GetLimits(limitsService, logg))
			r.With(middleware.RequireRole("admin", logg)).Put("/limits", controllers.UpdateLimits(limitsService, logg))
		})

		r.Route("/withdrawals/{withdrawalId}", func(r chi.Router) {
			r.Get("/", controllers.GetWithdrawal(withdrawalsService, logg))
			r.Post("/cancel", controllers.CancelWithdrawal(withdrawalsService, logg))
		})

		r.Post("/transactions/{transactionId}/fraud-check", controllers.FraudCheck(fraudService, logg))
		r.Route("/fraud", func(r chi.Router) {
			r.Use(middleware.RequireRole("admin", logg))
			r.Get("/review-queue", controllers.FraudReviewQueue(fraudService, logg))
			r.Post("/{scoreId}/review", controllers.FraudMarkReviewed(fraudService, logg))
		})

		r.Route("/returns", func(r chi.Router) {
			r.Post("/", controllers.CreateReturn(returnsService, logg))
			r.Get("/", controllers.ListReturns(returnsService, logg))
			r.Route("/{returnId}", func(r chi.Router) {
				r.Get("/", controllers.ReturnDetail(returnsService, logg))
				r.Post("/approve", controllers.ApproveReturn(returnsService, logg))
				r.Post("/pickup", controllers.SchedulePickup(returnsService, logg))
				r.Post("/picked-up", controllers.MarkPickedUp(returnsService, logg))
				r.Post("/received", controllers.MarkReceived(returnsService, logg))
				r.Post("/quality-check/start", controllers.StartQualityCheck(returnsService, logg))
				r.Post("/quality-check", controllers.SubmitQualityCheck(returnsService, logg))
				r.With(middleware.RequireRole("admin", logg)).Post("/finalize", controllers.FinalizeReturn(refundsService, logg))
				r.Post("/cancel", controllers.CancelReturn(returnsService, logg))
			})
		})

		r.With(middleware.RequireRole("admin", logg)).Get("/audit", controllers.AuditTrail(auditReader, logg))
	})

	return r
}
