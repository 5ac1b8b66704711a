package router

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/audit"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/calendar"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/gate"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/identity"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/refill"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/shift"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/mail"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/metrics"
)

const prefix = "/shift-api"

// Deps carries storage, transport and settings for the whole API.
type Deps struct {
	store.Repos

	Mailer mail.Sender
	Hasher identity.PasswordHasher

	Auth   auth.Config
	Refill refill.Options

	// Registry receives the service metrics and is served at /metrics.
	// Nil disables both.
	Registry *prometheus.Registry
}

func (d Deps) validate() error {
	switch {
	case d.Identities == nil, d.Shifts == nil, d.Sessions == nil, d.Audit == nil:
		return errors.New("router: all repositories are required")
	case d.Mailer == nil:
		return errors.New("router: mailer is required")
	case d.Auth.Secret == "":
		return errors.New("router: auth secret is required")
	}
	return nil
}

// RegisterRoutes wires services and mounts every endpoint on a stdlib
// http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, deps Deps) (http.Handler, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	var reg prometheus.Registerer
	if deps.Registry != nil {
		reg = deps.Registry
	}
	httpMetrics := metrics.NewHTTPMetrics(reg)

	auditSvc := audit.NewService(deps.Audit, logger)
	g := gate.New(auditSvc, metrics.NewGateMetrics(reg), logger)
	auditSvc.SetGate(g)

	identitySvc := identity.NewService(deps.Identities, deps.Hasher, g, logger)
	tokens := auth.NewTokenService(deps.Auth, deps.Sessions)
	shiftSvc := shift.NewService(deps.Shifts, g, logger)
	calendarSvc := calendar.NewService(deps.Shifts, g, logger)

	refillOpts := deps.Refill
	refillOpts.Metrics = metrics.NewRefillMetrics(reg)
	refillOpts.Recorder = auditSvc
	dispatcher := refill.NewDispatcher(deps.Mailer, identitySvc, g, refillOpts, logger)

	authH := auth.NewHandler(tokens, identitySvc, identitySvc, logger)
	identityH := identity.NewHandler(identitySvc, logger)
	shiftH := shift.NewHandler(shiftSvc, logger)
	calendarH := calendar.NewHandler(calendarSvc, logger)
	refillH := refill.NewHandler(dispatcher, logger)
	auditH := audit.NewHandler(auditSvc, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET "+prefix+"/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if deps.Registry != nil {
		mux.Handle("GET "+prefix+"/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	// sessions
	mux.HandleFunc("POST "+prefix+"/auth/login", authH.Login)
	mux.HandleFunc("POST "+prefix+"/auth/refresh", authH.Refresh)
	mux.HandleFunc("POST "+prefix+"/auth/logout", authH.Logout)

	// identities
	mux.HandleFunc("POST "+prefix+"/identities", identityH.Register)
	mux.HandleFunc("GET "+prefix+"/identities", identityH.List)
	mux.HandleFunc("DELETE "+prefix+"/identities/{username}", identityH.Delete)
	mux.HandleFunc("PATCH "+prefix+"/identities/{username}/role", identityH.ChangeRole)

	// shifts
	mux.HandleFunc("POST "+prefix+"/shifts", shiftH.Create)
	mux.HandleFunc("GET "+prefix+"/shifts", shiftH.List)
	mux.HandleFunc("GET "+prefix+"/shifts/mine", shiftH.ListMine)
	mux.HandleFunc("PATCH "+prefix+"/shifts/{id}", shiftH.Update)
	mux.HandleFunc("DELETE "+prefix+"/shifts/{id}", shiftH.Delete)

	mux.HandleFunc("GET "+prefix+"/calendar", calendarH.Feed)
	mux.HandleFunc("POST "+prefix+"/refill", refillH.Request)
	mux.HandleFunc("GET "+prefix+"/history", auditH.List)

	handler := auth.Middleware(tokens, identitySvc, logger)(mux)
	handler = SecurityHeadersMiddleware()(handler)
	handler = LoggingMiddleware(logger, httpMetrics)(handler)
	return handler, nil
}
