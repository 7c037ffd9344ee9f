package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"

	"github.com/crmkit/access-server/clientstate"
	"github.com/crmkit/access-server/credentials"
	"github.com/crmkit/access-server/internal/config"
	"github.com/crmkit/access-server/internal/logging"
	"github.com/crmkit/access-server/ipgate"
	"github.com/crmkit/access-server/notify"
	"github.com/crmkit/access-server/permissions"
	"github.com/crmkit/access-server/server"
	"github.com/crmkit/access-server/sessions"
	"github.com/crmkit/access-server/storage"
	"github.com/crmkit/access-server/tenantapi"
	"github.com/crmkit/access-server/token"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.Setup(c.GetEnv())
	displayAppname(c.GetAppName())

	handler, closeFn, err := buildServer(c)
	if err != nil {
		return err
	}
	defer closeFn()

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func buildServer(c config.Config) (*server.Server, func(), error) {
	db, err := storage.Open(c.GetDataFolder())
	if err != nil {
		return nil, nil, fmt.Errorf("storage.Open: %w", err)
	}

	cache, err := clientstate.Open(c.GetGateCacheFile())
	if err != nil {
		return nil, nil, fmt.Errorf("clientstate.Open: %w", err)
	}

	api := tenantapi.NewHTTPClient()
	router := credentials.NewRouter(db.Tenants(), api)
	ring := ipgate.NewRingLog(cache, c.GetAuditRingLimit())

	gateOptions := []ipgate.GateOption{}
	if c.GetGateBypassIP() != "" {
		gateOptions = append(gateOptions, ipgate.WithBypassIP(c.GetGateBypassIP()))
	}
	mailer := notify.NewMailer(c)
	if mailer.Configured() {
		gateOptions = append(gateOptions, ipgate.WithNotifier(mailer))
	}
	gate := ipgate.New(ipgate.NewHTTPEcho(c.GetIPEchoURL()), api, router, db.Tenants(), cache, ring, gateOptions...)

	deps := server.Deps{
		Accounts: db.Accounts(),
		Sessions: sessions.NewRegistry(db.Sessions()),
		Tokens:   token.New(c.GetTokenSecret(), token.WithExpiry(c.GetTokenExpiry())),
		Perms:    permissions.NewService(db.Permissions()),
		Sites:    db.Tenants(),
		API:      api,
		Router:   router,
		Contexts: credentials.NewContextRegistry(),
		Gate:     gate,
	}

	srv, err := server.New(context.Background(), c, deps)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("server.New: %w", err)
	}
	return srv, func() { db.Close() }, nil
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
