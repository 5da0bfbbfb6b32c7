package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"stratix.org/internal/audit"
	"stratix.org/internal/directory"
	"stratix.org/internal/httpapi"
	"stratix.org/internal/initiatives"
	"stratix.org/internal/obs"
	"stratix.org/internal/store/pg"
	"stratix.org/internal/superadmin"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

const defaultReapInterval = 5 * time.Minute

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		pgStore *pg.Store
		ready   httpapi.ReadyProbe

		auditStore audit.Store
		saStore    superadmin.Store
		dirStore   directory.Store
		initStore  initiatives.Store
	)
	if dsn := os.Getenv("STRATIX_PG_DSN"); dsn != "" {
		var err error
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		ready = httpapi.ReadyProbe{DB: pgStore.DB()}
		auditStore = pgStore.Audit()
		saStore = pgStore
		dirStore = pgStore.Directory()
		initStore = pgStore.Initiatives()
	} else {
		// No DSN: in-memory stores for local development. State is lost
		// on restart, including the audit trail.
		log.Print("STRATIX_PG_DSN not set, using in-memory stores")
		auditStore = audit.NewMemoryStore()
		saStore = superadmin.NewMemoryStore()
		dirStore = directory.NewMemoryStore()
		initStore = initiatives.NewMemoryStore()
	}

	writer := audit.NewWriter(auditStore)
	sessionOpts := []superadmin.SessionsOption{}
	if ttl := envDuration("STRATIX_SESSION_TTL"); ttl > 0 {
		sessionOpts = append(sessionOpts, superadmin.WithSessionTTL(ttl))
	}
	sessions := superadmin.NewSessions(saStore.Sessions(), sessionOpts...)
	limiter := superadmin.NewLimiter(saStore.Attempts())

	svcOpts := []superadmin.Option{}
	if raw := os.Getenv("STRATIX_ADMIN_ALLOWED_IPS"); raw != "" {
		svcOpts = append(svcOpts, superadmin.WithAllowedIPs(strings.Split(raw, ",")))
	}
	admins, err := superadmin.NewService(saStore.Superadmins(), sessions, limiter, writer, svcOpts...)
	if err != nil {
		log.Fatalf("superadmin service: %v", err)
	}

	bootstrapSuperadmin(saStore)

	dir := directory.NewCached(dirStore, envDuration("STRATIX_DIRECTORY_TTL"))

	api := httpapi.New(ready, version, dir, admins, initStore)
	srv := &http.Server{
		Addr:              listenAddr(),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	reapCtx, stopReaper := context.WithCancel(context.Background())
	go sessions.RunReaper(reapCtx, defaultReapInterval)

	log.Printf("Starting stratix-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("Shutting down...")

	stopReaper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}

// bootstrapSuperadmin creates the initial account from the environment when
// the variables are set and the account does not exist yet. Intended for
// first deploys and the in-memory development mode.
func bootstrapSuperadmin(store superadmin.Store) {
	email := strings.TrimSpace(os.Getenv("STRATIX_BOOTSTRAP_EMAIL"))
	password := os.Getenv("STRATIX_BOOTSTRAP_PASSWORD")
	if email == "" || password == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := store.Superadmins().FindByEmail(ctx, email); err == nil {
		return
	}
	hash, err := superadmin.HashPassword(password)
	if err != nil {
		log.Fatalf("bootstrap superadmin: %v", err)
	}
	_, err = store.Superadmins().Create(ctx, superadmin.Superadmin{
		Email:        email,
		Name:         "Bootstrap",
		PasswordHash: hash,
		Active:       true,
	})
	if err != nil {
		log.Fatalf("bootstrap superadmin: %v", err)
	}
	log.Printf("bootstrapped superadmin %s", email)
}

func listenAddr() string {
	if addr := os.Getenv("STRATIX_HTTP_ADDR"); addr != "" {
		return addr
	}
	return ":8080"
}

func envDuration(name string) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("%s: %v", name, err)
	}
	return d
}
