package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "pkworld.ai/internal/persistence/log"
	"pkworld.ai/internal/platform/config"
	"pkworld.ai/internal/platform/otel"
	"pkworld.ai/internal/sim/catalogs"
	"pkworld.ai/internal/sim/tuning"
	"pkworld.ai/internal/sim/world"
	"pkworld.ai/internal/transport/ws"
)

func main() {
	var env config.Server
	if err := config.ParseEnv(&env); err != nil {
		log.Fatalf("config: %v", err)
	}

	var (
		addr       = flag.String("addr", env.Addr, "http listen address")
		worldID    = flag.String("world", env.WorldID, "world id")
		configDir  = flag.String("configs", env.ConfigDir, "config directory")
		dataDir    = flag.String("data", env.DataDir, "runtime data directory")
		tuningPath = flag.String("tuning", env.TuningPath, "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", env.DisableDB, "disable the sqlite index (audits + pvp stats)")
		strict     = flag.Bool("strict_protocol", env.StrictProtocol, "validate inbound and outbound messages against schemas")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	ctx, cancel := signalContext()
	defer cancel()

	shutdownTracing, err := otel.Setup(ctx, "pkworld-server", otel.Config{Endpoint: env.OTelEndpoint, Enabled: env.OTelEnabled})
	if err != nil {
		logger.Fatalf("otel: %v", err)
	}
	defer func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		if err := shutdownTracing(ctx2); err != nil {
			logger.Printf("otel shutdown: %v", err)
		}
	}()

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	w, err := world.New(world.Config{ID: *worldID, Tuning: tune, StrictProtocol: *strict}, cats, logger)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	idx, err := openRuntimeIndex(worldDir, env.IndexBackend, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}

	auditLog := persistlog.NewAuditLogger(worldDir)
	defer auditLog.Close()
	sinks := []world.AuditLogger{auditLog}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
		loaded, err := idx.LoadPvPStats(ctx)
		if err != nil {
			logger.Fatalf("load pvp stats: %v", err)
		}
		w.SetPvPStore(idx, loaded)
		sinks = append(sinks, idx)
		logger.Printf("index backend: sqlite (%d pvp stat rows)", len(loaded))
	} else {
		logger.Printf("index backend disabled; pvp stats are not persisted")
	}
	w.SetAuditLogger(world.MultiAudit(sinks...))

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		fmt.Fprintf(rw, "# HELP pkworld_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE pkworld_world_tick gauge\n")
		fmt.Fprintf(rw, "pkworld_world_tick{world=%q} %d\n", *worldID, w.CurrentTick())

		if idx == nil {
			return
		}
		st := idx.Stats()
		fmt.Fprintf(rw, "# HELP pkworld_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE pkworld_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "pkworld_index_queue_depth{world=%q} %d\n", *worldID, st.QueueDepth)
		fmt.Fprintf(rw, "# HELP pkworld_index_dropped_total Index writes dropped because the queue was full.\n")
		fmt.Fprintf(rw, "# TYPE pkworld_index_dropped_total counter\n")
		fmt.Fprintf(rw, "pkworld_index_dropped_total{world=%q,kind=%q} %d\n", *worldID, "audit", st.DropAuditTotal)
		fmt.Fprintf(rw, "pkworld_index_dropped_total{world=%q,kind=%q} %d\n", *worldID, "pvp_stats", st.DropStatsTotal)
	})

	if env.EnableAdmin {
		api := adminAPI{world: w, token: strings.TrimSpace(env.AdminToken)}
		mux.HandleFunc("/v1/kill", api.killHandler())
		mux.HandleFunc("/v1/attack", api.attackHandler())
	} else {
		logger.Printf("admin endpoints disabled (PKWORLD_ENABLE_ADMIN_HTTP=false)")
	}

	wsSrv := ws.NewServer(w, logger)
	wsSrv.Strict = *strict
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s world=%s", *addr, *worldID)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
