// The relay is the server half of realtime sync: it subscribes to backend
// change events on Redis and fans them out to devices over WebSocket. It also
// mints the feed tokens, so the signing key never leaves this process.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/punishroulette/roulette/internal/auth"
	"github.com/punishroulette/roulette/internal/backend"
	"github.com/punishroulette/roulette/internal/cache"
	"github.com/punishroulette/roulette/internal/middleware"
	"github.com/punishroulette/roulette/internal/relay"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}

	// A key pair on disk keeps feed tokens valid across restarts; without
	// one the relay signs with a fresh in-memory key and devices re-request
	// tokens after a restart.
	privPath := os.Getenv("JWT_PRIVATE_KEY_PATH")
	pubPath := os.Getenv("JWT_PUBLIC_KEY_PATH")
	if privPath != "" && pubPath != "" {
		if err := auth.InitFromPath(privPath, pubPath); err != nil {
			logger.Fatalf("failed to load signing keys: %v", err)
		}
	} else {
		auth.Init()
	}

	rdb, err := cache.Connect()
	if err != nil {
		logger.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()
	bus := cache.NewBus(rdb)

	ctx := context.Background()
	db, err := backend.Connect(ctx, bus, logger)
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	logged := middleware.LogMiddleware(logger)

	mux := http.NewServeMux()
	mux.Handle("/token", logged(relay.TokenHandler(logger, db)))
	// /feed skips the middleware: the connection is hijacked for WebSocket
	// and the handler does its own per-subscription logging.
	mux.Handle("/feed", relay.FeedHandler(logger, bus))

	server := &http.Server{
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8090"
	}
	l, err := net.Listen("tcp", fmt.Sprintf(":%s", port))
	if err != nil {
		logger.Fatalf("failed to listen: %v", err)
	}
	logger.Infof("relay listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		logger.Errorf("failed to serve: %v", err)
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
	}
}
