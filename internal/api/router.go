package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Nexus-Agni/ShadowSpeak/internal/api/handlers"
	"github.com/Nexus-Agni/ShadowSpeak/internal/config"
	"github.com/Nexus-Agni/ShadowSpeak/internal/metrics"
	"github.com/Nexus-Agni/ShadowSpeak/internal/middleware"
	"github.com/Nexus-Agni/ShadowSpeak/internal/services"
)

type RouterDeps struct {
	Cfg      config.Config
	Accounts *services.AccountService
	Messages *services.MessageService
	Sessions *middleware.Sessions
	Log      *slog.Logger
}

func NewRouter(d RouterDeps) http.Handler {
	authH := handlers.NewAuthHandler(d.Accounts, d.Sessions, d.Log)
	accountH := handlers.NewAccountHandler(d.Accounts, d.Sessions, d.Log)
	msgH := handlers.NewMessageHandler(d.Messages, d.Log)
	pageH := handlers.NewPageHandler(d.Accounts, d.Log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.SpanRoute, middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.RatePerMin))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(d.Sessions.Load)

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	// pages
	r.Group(func(r chi.Router) {
		r.Use(middleware.PageGate)
		r.Get("/", pageH.Static("home"))
		r.Get("/sign-in", pageH.Static("sign-in"))
		r.Get("/sign-up", pageH.Static("sign-up"))
		r.Get("/verify/{username}", pageH.Verify)
		r.Get("/dashboard", pageH.Dashboard)
		r.Get("/dashboard/*", pageH.Dashboard)
		r.Get("/u/{username}", pageH.Profile)
	})

	r.Route("/api", func(r chi.Router) {
		// ---------- public ----------
		r.Post("/sign-up", authH.SignUp)
		r.Post("/verify-code", authH.VerifyCode)
		r.Post("/resend-code", authH.ResendCode)
		r.Post("/sign-in", authH.SignIn)
		r.Post("/sign-out", authH.SignOut)
		r.Get("/check-username-unique", accountH.CheckUsername)
		r.Get("/check-user-status", accountH.RecipientStatus)
		r.Post("/send-message", msgH.Send)

		// ---------- session ----------
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession)
			r.Get("/auth/session", authH.Session)
			r.Get("/accept-messages", accountH.GetAcceptMessages)
			r.Post("/accept-messages", accountH.SetAcceptMessages)
			r.Get("/get-messages", msgH.List)
			r.Delete("/delete-message/{messageID}", msgH.Delete)
		})
	})

	// the span is renamed to the route pattern by middleware.SpanRoute
	return otelhttp.NewHandler(r, "shadowspeak",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method
		}),
	)
}
