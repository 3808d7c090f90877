package routes

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/mediconnect/platform/pkg/common/models"
	"github.com/mediconnect/platform/pkg/consultation"
	gatewayauth "github.com/mediconnect/platform/pkg/gateway/auth"
	"github.com/mediconnect/platform/pkg/gateway/middleware"
	"github.com/mediconnect/platform/pkg/identity"
	"github.com/mediconnect/platform/pkg/observability/metrics"
	"github.com/mediconnect/platform/pkg/prescription"
	"github.com/mediconnect/platform/pkg/storage"
)

type Dependencies struct {
	Identity      *identity.Service
	Consultations *consultation.Service
	Prescriptions *prescription.Service
	Tokens        *gatewayauth.JWTManager

	// Uploads stores profile pictures; UploadsDir is served at /uploads/.
	Uploads    storage.ObjectStore
	UploadsDir string

	AuthLimiter    *middleware.RateLimiter
	CORSOrigins    []string
	MaxRequestBody int64
}

// NewRouter assembles the public API. CORS wraps the router so preflight
// requests are answered before route matching.
func NewRouter(deps Dependencies) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	if deps.MaxRequestBody > 0 {
		router.Use(middleware.BodyLimit(deps.MaxRequestBody))
	}

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("MediConnect API is running..."))
	}).Methods(http.MethodGet)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}).Methods(http.MethodGet)

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	if deps.UploadsDir != "" {
		router.PathPrefix("/uploads/").
			Handler(http.StripPrefix("/uploads/", http.FileServer(noListing{http.Dir(deps.UploadsDir)}))).
			Methods(http.MethodGet, http.MethodHead)
	}

	api := router.PathPrefix("/api").Subrouter()

	authRouter := api.PathPrefix("/auth").Subrouter()
	if deps.AuthLimiter != nil {
		authRouter.Use(middleware.RateLimit(deps.AuthLimiter))
	}
	NewAuthHandler(deps.Identity, deps.Tokens, deps.Uploads).Register(authRouter)

	doctorRouter := api.PathPrefix("/doctor").Subrouter()
	doctorRouter.Use(middleware.Authenticate(deps.Tokens))
	doctorRouter.Use(middleware.Authorize(models.RoleDoctor))
	NewDoctorHandler(deps.Identity, deps.Consultations, deps.Prescriptions).Register(doctorRouter)

	patientRouter := api.PathPrefix("/patient").Subrouter()
	patientRouter.Use(middleware.Authenticate(deps.Tokens))
	NewPatientHandler(deps.Identity, deps.Consultations).Register(patientRouter)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondMessage(w, http.StatusNotFound, "Route not found")
	})

	return middleware.CORS(deps.CORSOrigins)(router)
}

// noListing hides directory indexes under /uploads.
type noListing struct {
	fs http.FileSystem
}

func (n noListing) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if stat.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
