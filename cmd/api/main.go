package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sergiogc4/taskhub/internal/audit"
	"github.com/sergiogc4/taskhub/internal/httpapi"
	"github.com/sergiogc4/taskhub/internal/obs"
	"github.com/sergiogc4/taskhub/internal/rbac"
	"github.com/sergiogc4/taskhub/internal/store/pg"
	"github.com/sergiogc4/taskhub/internal/task"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("TASKHUB_COMMIT"))

	dsn := os.Getenv("TASKHUB_PG_DSN")
	if dsn == "" {
		log.Fatal("missing DSN: set TASKHUB_PG_DSN")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	taskStore := pg.NewTaskStore(store.DB())
	tasks, err := task.NewService(taskStore)
	if err != nil {
		log.Fatalf("task service: %v", err)
	}

	rbacSvc, err := rbac.NewService(store,
		rbac.WithOwnedResourceCleaner(tasks),
	)
	if err != nil {
		log.Fatalf("rbac service: %v", err)
	}

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	if err := rbacSvc.EnsureSeed(seedCtx); err != nil {
		cancelSeed()
		log.Fatalf("seed rbac catalog: %v", err)
	}
	cancelSeed()

	auditStore := pg.NewAuditStore(store.DB())
	audits, err := audit.NewService(auditStore)
	if err != nil {
		log.Fatalf("audit service: %v", err)
	}
	recorder := audit.NewRecorder(auditStore)

	api := httpapi.New(httpapi.Config{
		RBAC:     rbacSvc,
		Tasks:    tasks,
		Audits:   audits,
		Recorder: recorder,
		ReadyProbe: func(ctx context.Context) error {
			return store.DB().PingContext(ctx)
		},
		Version: version,
	})

	addr := os.Getenv("TASKHUB_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting taskhub-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	// Let in-flight audit writes land before closing the pool.
	recorder.Wait()
	log.Println("Stopped")
}
