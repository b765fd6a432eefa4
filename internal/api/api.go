package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/oauth2"

	"github.com/susu3304/sessionbook/internal/booking"
	"github.com/susu3304/sessionbook/internal/config"
)

type API struct {
	router      *mux.Router
	engine      *booking.Engine
	directory   booking.Directory
	config      *config.Config
	oauthConfig *oauth2.Config
	jwtSecret   []byte
}

func New(cfg *config.Config, engine *booking.Engine, directory booking.Directory) *API {
	api := &API{
		router:    mux.NewRouter(),
		engine:    engine,
		directory: directory,
		config:    cfg,
		jwtSecret: []byte(cfg.JWTSecret),
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURI,
			Scopes:       []string{"identify"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/api/oauth2/authorize",
				TokenURL: "https://discord.com/api/oauth2/token",
			},
		},
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.router.Use(requestID, requestLogger, recoverer)

	a.router.HandleFunc("/healthz", a.handleHealth).Methods("GET")

	// Auth endpoints
	a.router.HandleFunc("/api/auth/login", a.handleLogin).Methods("GET")
	a.router.HandleFunc("/api/auth/callback", a.handleCallback).Methods("GET")
	a.router.HandleFunc("/api/auth/logout", a.handleLogout).Methods("POST")

	// Public endpoints
	a.router.HandleFunc("/api/sessions/{id}", a.handleGetSession).Methods("GET")
	a.router.HandleFunc("/api/counselors/{counselor}/sessions", a.handleCounselorSessions).Methods("GET")

	// Protected endpoints
	protected := a.router.PathPrefix("/api").Subrouter()
	protected.Use(a.authMiddleware)

	protected.HandleFunc("/register", a.handleRegister).Methods("POST")
	protected.HandleFunc("/sessions", a.handleOffer).Methods("POST")
	protected.HandleFunc("/sessions/{id}/book", a.handleBook).Methods("POST")
	protected.HandleFunc("/sessions/{id}/cancel", a.handleCancelByUser).Methods("POST")
	protected.HandleFunc("/sessions/{id}/counselor-cancel", a.handleCancelByCounselor).Methods("POST")
	protected.HandleFunc("/sessions/{id}/complete", a.handleComplete).Methods("POST")
	protected.HandleFunc("/sessions/{id}/no-show", a.handleNoShow).Methods("POST")
	protected.HandleFunc("/sessions/{id}/details", a.handleSessionDetails).Methods("GET")
	protected.HandleFunc("/sessions/{id}/history", a.handleSessionHistory).Methods("GET")
	protected.HandleFunc("/me/sessions", a.handleMySessions).Methods("GET")
	protected.HandleFunc("/me/balance", a.handleMyBalance).Methods("GET")
}

// Handler returns the router wrapped in the CORS policy.
func (a *API) Handler() http.Handler {
	origins := a.config.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Credentials are only allowed with an explicit origin list
	allowCredentials := true
	for _, o := range origins {
		if o == "*" {
			allowCredentials = false
		}
	}

	corsOptions := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: allowCredentials,
	}

	return cors.New(corsOptions).Handler(a.router)
}

func (a *API) Start() error {
	log.Printf("API server listening on http://%s", a.config.WebBind)
	return http.ListenAndServe(a.config.WebBind, a.Handler())
}
