package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"waypoint/api/internal/app"
	"waypoint/api/internal/authpw"
	"waypoint/api/internal/blob"
	"waypoint/api/internal/config"
	"waypoint/api/internal/email"
	"waypoint/api/internal/export"
	"waypoint/api/internal/history"
	"waypoint/api/internal/notify"
	"waypoint/api/internal/search"
	"waypoint/api/internal/session"
	"waypoint/api/internal/store"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx, cfg.MigrationsDir); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	deps := app.Deps{
		History: history.New(cfg.SnapshotsDir),
		AuthPw:  authpw.New(db),
		Export:  export.NewService(db),
	}

	// Redis backs both token revocation and the step change feed. The API
	// stays up without it; realtime and logout-revocation degrade.
	sessions, err := session.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Printf("redis unavailable, realtime and revocation disabled: %v", err)
	} else {
		defer sessions.Close()
		deps.Sessions = sessions
		deps.Notifier = notify.New(sessions.Client())
	}

	meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	defer meili.Close()
	deps.Search = search.NewService(meili, search.NewPgFTS(db.DB()))

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	deps.Email = mailer
	if !mailer.IsConfigured() {
		log.Printf("smtp not configured, outbound email disabled")
	}

	if cfg.MinioEndpoint != "" {
		blobSvc, err := blob.New(ctx, blob.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Printf("object store unavailable, attachments disabled: %v", err)
		} else {
			deps.Blob = blobSvc
		}
	}

	service := app.NewService(cfg, db, deps)
	go service.Bootstrap(context.Background())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.NewHTTPServer(service, cfg.CORSOrigin).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("waypoint api listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
