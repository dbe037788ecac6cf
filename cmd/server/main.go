// main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aethermoor/server/config"
	"github.com/aethermoor/server/internal/authtoken"
	"github.com/aethermoor/server/internal/catalog"
	"github.com/aethermoor/server/internal/gateway"
	"github.com/aethermoor/server/internal/ops"
	"github.com/aethermoor/server/internal/store"
	"github.com/aethermoor/server/internal/world"
	"github.com/aethermoor/server/pkg/db"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the server config file")
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg := config.GlobalConfig

	if err := db.InitPostgres(); err != nil {
		log.Fatalf("init postgres: %v", err)
	}
	defer db.Close()
	if err := db.InitAllTables(); err != nil {
		log.Fatalf("init schema: %v", err)
	}

	if err := db.InitRedis(); err != nil {
		log.Fatalf("init redis: %v", err)
	}
	defer db.CloseRedis()

	cat, err := catalog.Load(cfg.Catalog.Dir)
	if err != nil {
		log.Fatalf("load catalog: %v", err)
	}

	st := store.NewPostgresStore(db.DB, db.RedisClient, cfg.Auth.LockoutThreshold, cfg.Auth.LockoutDuration())

	w := world.NewWorld(cfg.Game, cat, st, time.Now().UnixNano())
	if err := w.LoadMonsters(context.Background()); err != nil {
		log.Fatalf("load monster instances: %v", err)
	}
	w.Start()

	issuer := authtoken.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.ReconnectTokenTTL())
	gw := gateway.New(cfg.Server, cfg.Game.DefaultMaxSlots, st, w, issuer)

	wsMux := http.NewServeMux()
	wsMux.Handle("/ws", gw)
	wsServer := &http.Server{Addr: portAddr(cfg.Server.WSPort), Handler: wsMux}
	go func() {
		log.Printf("websocket gateway listening on %s", wsServer.Addr)
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("websocket server: %v", err)
		}
	}()

	opsServer := &http.Server{Addr: portAddr(cfg.Server.OpsPort), Handler: ops.New(st, w)}
	go func() {
		log.Printf("ops server listening on %s", opsServer.Addr)
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ops server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	wsServer.Shutdown(shutdownCtx)
	opsServer.Shutdown(shutdownCtx)

	w.Stop()
	w.PersistAll()

	log.Println("server shut down cleanly")
}

func portAddr(port int) string {
	if port <= 0 {
		port = 9000
	}
	return fmt.Sprintf(":%d", port)
}
