package router

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"net/http"
	"os"
	"time"

	token "medpal/internal/adapters/auth/token"
	blobmem "medpal/internal/adapters/blob/memory"
	mem "medpal/internal/adapters/storage/memory"
	pg "medpal/internal/adapters/storage/postgres"
	"medpal/internal/domain/chat"
	"medpal/internal/domain/medications"
	"medpal/internal/domain/reminders"
	"medpal/internal/domain/reports"
	"medpal/internal/domain/users"
	"medpal/internal/middleware"
	"medpal/internal/platform/logger"
	"medpal/internal/ports/auth"
	"medpal/internal/ports/blob"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type Options struct {
	// Si vienen nil, se arma un token service HS256 con secret aleatorio
	// (sesiones válidas solo mientras viva el proceso).
	AuthVerifier auth.AuthVerifier
	TokenIssuer  auth.TokenIssuer
	TokenRevoker auth.TokenRevoker

	// Dev habilita el header X-Debug-User-ID además del Bearer token.
	Dev bool

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	// Opcional: blob store para imágenes. Si no viene, in-memory.
	Blob blob.Store

	Logger *zerolog.Logger

	// Opcional: reloj inyectado (proyector y matcher); default time.Now.
	Now func() time.Time
}

// NewRouter arma el árbol completo de handlers y devuelve además el matcher
// de recordatorios para que main lo corra con su scheduler (y los tests lo
// tickeen sin esperas de wall-clock).
func NewRouter(opts Options) (http.Handler, *reminders.Matcher) {
	log := logger.NewFromEnv()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	// Sin verifier explícito asumimos modo dev: X-Debug-User-ID habilitado.
	dev := opts.Dev || opts.AuthVerifier == nil

	if opts.TokenIssuer == nil || opts.TokenRevoker == nil || opts.AuthVerifier == nil {
		ts := token.New(token.Config{Secret: randomSecret()})
		if opts.TokenIssuer == nil {
			opts.TokenIssuer = ts
		}
		if opts.TokenRevoker == nil {
			opts.TokenRevoker = ts
		}
		if opts.AuthVerifier == nil {
			opts.AuthVerifier = ts
		}
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier, dev))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var (
		medsRepo  medications.Repository
		usersRepo users.Repository
	)

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			} else {
				log.Warn().Err(err).Msg("DB_DSN set but connection failed, falling back to memory")
			}
		}
	}

	if db != nil {
		medsRepo = pg.NewMedicationsRepo(db)
		usersRepo = pg.NewUsersRepo(db)
	} else {
		medsRepo = mem.NewMedicationsRepo()
		usersRepo = mem.NewUsersRepo()
	}

	blobs := opts.Blob
	if blobs == nil {
		blobs = blobmem.New()
	}

	// Services por módulo
	broker := medications.NewBroker()
	medsSvc := medications.NewService(medsRepo, blobs, broker, log).WithNow(now)
	usersSvc := users.NewService(usersRepo)
	matcher := reminders.NewMatcher(medsRepo, log).WithNow(now)

	// Rutas por módulo
	users.RegisterRoutes(r, usersSvc, opts.TokenIssuer, opts.TokenRevoker)
	medications.RegisterRoutes(r, medsSvc)
	reminders.RegisterRoutes(r, matcher)
	chat.RegisterRoutes(r, chat.NewService())
	reports.RegisterRoutes(r, reports.NewService())

	return r, matcher
}

func randomSecret() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// rand.Read no falla en la práctica; dejamos un secret fijo de dev
		return []byte("medpal-dev-secret")
	}
	out := make([]byte, hex.EncodedLen(len(b)))
	hex.Encode(out, b)
	return out
}
