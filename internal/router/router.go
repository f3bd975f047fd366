package router

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "pet-vaccination-clinic/docs"
	"pet-vaccination-clinic/internal/adapters/storage/cache"
	mem "pet-vaccination-clinic/internal/adapters/storage/memory"
	pg "pet-vaccination-clinic/internal/adapters/storage/postgres"
	"pet-vaccination-clinic/internal/domain/authz"
	"pet-vaccination-clinic/internal/domain/identity"
	"pet-vaccination-clinic/internal/domain/pets"
	"pet-vaccination-clinic/internal/domain/vaccinations"
	"pet-vaccination-clinic/internal/domain/vaccines"
	"pet-vaccination-clinic/internal/middleware"
	"pet-vaccination-clinic/internal/platform/logger"
	"pet-vaccination-clinic/internal/platform/metrics"
	"pet-vaccination-clinic/internal/ports/auth"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)
	TokenIssuer  auth.TokenIssuer  // nil = sin POST /auth/token

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	Logger  logger.Logger    // nil = Nop
	Metrics *metrics.Metrics // nil = sin /metrics

	CatalogCacheTTL    time.Duration // <= 0 desactiva el cache del catálogo
	RateLimitRPS       float64       // <= 0 desactiva el rate limit
	RateLimitBurst     int
	UpcomingReportDays int // default de /reports/upcoming; <= 0 usa vaccinations.DueSoonDays
}

type repos struct {
	identity     identity.Repository
	pets         pets.Repository
	vaccines     vaccines.Repository
	vaccinations vaccinations.Repository
}

func newRepos(db *sql.DB) repos {
	if db != nil {
		return repos{
			identity:     pg.NewIdentityRepo(db),
			pets:         pg.NewPetsRepo(db),
			vaccines:     pg.NewVaccinesRepo(db),
			vaccinations: pg.NewVaccinationsRepo(db),
		}
	}
	return repos{
		identity:     mem.NewIdentityRepo(),
		pets:         mem.NewPetRepo(),
		vaccines:     mem.NewVaccineRepo(),
		vaccinations: mem.NewVaccinationRepo(),
	}
}

func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLog(log, opts.Metrics))
	r.Use(middleware.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst).Middleware(log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// Política compartida por todos los módulos
	policy := authz.NewPolicy()
	if opts.Metrics != nil {
		policy.OnDeny = func(res authz.Resource, act authz.Action) {
			opts.Metrics.AuthorizationDenied.WithLabelValues(string(res), string(act)).Inc()
		}
	}

	rp := newRepos(opts.DB)

	// Services por módulo
	identitySvc := identity.NewService(rp.identity, policy, log)
	petsSvc := pets.NewService(rp.pets, identitySvc, policy, log)
	vaccinesSvc := vaccines.NewService(cache.NewVaccineRepo(rp.vaccines, opts.CatalogCacheTTL), policy, log)
	vaccinationsSvc := vaccinations.NewService(rp.vaccinations, petsSvc, vaccinesSvc, identitySvc, policy, log)

	if opts.UpcomingReportDays > 0 {
		vaccinationsSvc.SetReportDays(opts.UpcomingReportDays)
	}
	if opts.Metrics != nil {
		vaccinationsSvc.SetRecordedCounter(opts.Metrics.VaccinationsRecorded)
	}

	// Deletes protegidos: se cablean acá para no crear ciclos entre paquetes de dominio
	identitySvc.SetInUseChecks(petsSvc.HasPets, vaccinationsSvc.StaffHasRecords)
	petsSvc.SetInUseCheck(vaccinationsSvc.PetHasRecords)
	petsSvc.SetDoseReader(vaccinationsSvc)
	vaccinesSvc.SetInUseCheck(vaccinationsSvc.VaccineHasRecords)

	// Rutas autenticadas: claims -> caller resuelto una vez por request
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthContext(opts.AuthVerifier, log))
		r.Use(middleware.ResolveCaller(identitySvc, log))

		identity.RegisterRoutes(r, identitySvc, opts.TokenIssuer, log)
		pets.RegisterRoutes(r, petsSvc, log)
		vaccines.RegisterRoutes(r, vaccinesSvc, log)
		vaccinations.RegisterRoutes(r, vaccinationsSvc, log)
	})

	return r
}
