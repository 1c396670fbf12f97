package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-ops/internal/appointment"
	"github.com/hackgods/clinic-ops/internal/billing"
	"github.com/hackgods/clinic-ops/internal/domain"
	"github.com/hackgods/clinic-ops/internal/inventory"
	"github.com/hackgods/clinic-ops/internal/metrics"
	"github.com/hackgods/clinic-ops/internal/query"
	"github.com/hackgods/clinic-ops/internal/scheduling"
	"github.com/hackgods/clinic-ops/internal/store"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Scheduling   *scheduling.Service
	Inventory    *inventory.Service
	Billing      *billing.Service
	Query        *query.Service
	Store        store.Store
	Redis        *redis.Client
	Logger       zerolog.Logger
	SlotWindows  []domain.Window
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(metrics.InstrumentHandler)

	health := NewHealthHandler(cfg.Store, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(ActorMiddleware)

		r.Post("/appointments", createAppointmentHandler(cfg.Appointments))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/hearing-tests", recordHearingTestHandler(cfg.Appointments))
		r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/invoice", invoiceAppointmentHandler(cfg.Billing))
		r.Patch("/records/{id}", updateRecordHandler(cfg.Appointments))
		r.Patch("/hearing-tests/{id}", updateTestNotesHandler(cfg.Appointments))
		r.Post("/admin/reconcile", reconcileHandler(cfg.Appointments))

		r.Post("/schedules", createScheduleHandler(cfg.Scheduling))
		r.Post("/schedules/setup-week", setupWeekHandler(cfg.Scheduling, cfg.SlotWindows))
		r.Post("/schedules/{id}/slots", generateSlotsHandler(cfg.Scheduling))
		r.Get("/audiologists/{id}/slots", slotsForDateHandler(cfg.Scheduling))
		r.Get("/audiologists/{id}/appointments", audiologistDayHandler(cfg.Query))
		r.Get("/patients/{id}/appointments", patientAppointmentsHandler(cfg.Query))
		r.Get("/patients/{id}/hearing-history", hearingHistoryHandler(cfg.Query))

		r.Route("/options", func(r chi.Router) {
			r.Get("/audiologists", optionsHandler(func(r *http.Request) ([]query.SelectionItem, error) {
				return cfg.Query.AudiologistOptions(r.Context())
			}))
			r.Get("/patients", optionsHandler(func(r *http.Request) ([]query.SelectionItem, error) {
				return cfg.Query.PatientOptions(r.Context())
			}))
			r.Get("/products", optionsHandler(func(r *http.Request) ([]query.SelectionItem, error) {
				return cfg.Query.ProductOptions(r.Context())
			}))
			r.Get("/slots", optionsHandler(freeSlotOptions(cfg.Query)))
		})

		r.Get("/products", listProductsHandler(cfg.Query))
		r.Post("/products", createProductHandler(cfg.Inventory))
		r.Put("/products/{id}/price", setPriceHandler(cfg.Inventory))
		r.Post("/products/{id}/restock", restockHandler(cfg.Inventory))
		r.Post("/products/{id}/remove", removeStockHandler(cfg.Inventory))
		r.Post("/products/{id}/adjust", adjustStockHandler(cfg.Inventory))
		r.Get("/products/{id}/ledger", ledgerHandler(cfg.Inventory))
		r.Get("/products/{id}/verify", verifyStockHandler(cfg.Inventory))

		r.Post("/orders", placeOrderHandler(cfg.Billing))
		r.Post("/orders/{id}/invoice", invoiceOrderHandler(cfg.Billing))
		r.Post("/invoices/{id}/payments", recordPaymentHandler(cfg.Billing))
		r.Get("/invoices/{id}/outstanding", outstandingHandler(cfg.Billing))
	})

	return r
}
