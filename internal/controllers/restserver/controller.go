// Package restserver serves the operator dashboard: an HTTP API for the
// latest snapshot, an embedded HTML page, and a WebSocket feed carrying the
// fixed-order CSV snapshot plus discrete event messages.
package restserver

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"sync"

	"github.com/Owen1B/fusionflow/internal/core"
	"github.com/Owen1B/fusionflow/internal/log"
	"github.com/Owen1B/fusionflow/internal/types"
	"github.com/Owen1B/fusionflow/pkg/config"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

var (
	//go:embed all:assets
	content embed.FS
)

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	cfg        *config.ConfigData
	restConfig config.RESTServerData
	Server     http.Server
	FS         *fs.FS
	core       *core.Core
	snapshots  <-chan types.Snapshot
	events     <-chan types.Event
	hub        *wsHub
	logger     *zap.SugaredLogger
	handlers   *Handlers

	evMu         sync.Mutex
	recentEvents []types.Event
}

// maxRecentEvents bounds the /events history.
const maxRecentEvents = 100

// RecentEvents returns a copy of the retained event history, oldest first.
func (c *Controller) RecentEvents() []types.Event {
	c.evMu.Lock()
	defer c.evMu.Unlock()
	out := make([]types.Event, len(c.recentEvents))
	copy(out, c.recentEvents)
	return out
}

func (c *Controller) recordEvent(ev types.Event) {
	c.evMu.Lock()
	defer c.evMu.Unlock()
	c.recentEvents = append(c.recentEvents, ev)
	if len(c.recentEvents) > maxRecentEvents {
		c.recentEvents = c.recentEvents[len(c.recentEvents)-maxRecentEvents:]
	}
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, cfg *config.ConfigData, rc config.RESTServerData,
	c *core.Core, snapshots <-chan types.Snapshot, events <-chan types.Event, logger *zap.SugaredLogger) (*Controller, error) {
	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		cfg:        cfg,
		restConfig: rc,
		core:       c,
		snapshots:  snapshots,
		events:     events,
		logger:     logger,
	}

	// If a DefaultListenAddr was not provided, listen on all interfaces
	if rc.DefaultListenAddr == "" {
		logger.Info("rest.default_listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.DefaultListenAddr = "0.0.0.0"
	}

	// Set default HTTP port if not specified
	if rc.HTTPPort == 0 {
		logger.Info("rest.http_port not provided; defaulting to 8080")
		rc.HTTPPort = 8080
	}

	ctrl.hub = newWsHub(c, cfg.Core)
	ctrl.handlers = NewHandlers(ctrl)

	// Set up embedded filesystem for assets
	assetsFS, _ := fs.Sub(fs.FS(content), "assets")
	ctrl.FS = &assetsFS

	router := ctrl.setupRouter()
	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.DefaultListenAddr, rc.HTTPPort)
	ctrl.Server.Handler = handlers.CombinedLoggingHandler(log.NewHTTPLogWriter(), router)

	return ctrl, nil
}

// StartController starts the REST server and the WebSocket broadcast pump
func (c *Controller) StartController() error {
	log.Info("Starting REST server controller...")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.broadcastPump()
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		if c.restConfig.TLSCertPath != "" && c.restConfig.TLSKeyPath != "" {
			if err := c.Server.ListenAndServeTLS(c.restConfig.TLSCertPath, c.restConfig.TLSKeyPath); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")
		c.Server.Shutdown(context.Background())
	}()

	return nil
}

// broadcastPump forwards core snapshots and events to every connected
// WebSocket client until the context is cancelled.
func (c *Controller) broadcastPump() {
	for {
		select {
		case snap, ok := <-c.snapshots:
			if !ok {
				return
			}
			c.hub.BroadcastSnapshot(snap)
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			c.recordEvent(ev)
			c.hub.BroadcastEvent(ev)
		case <-c.ctx.Done():
			c.hub.Close()
			return
		}
	}
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/latest", c.handlers.GetLatest)
	router.HandleFunc("/events", c.handlers.GetRecentEvents)
	router.HandleFunc("/ws", c.hub.ServeWs)

	// Template endpoint
	router.HandleFunc("/", c.handlers.ServeIndex)

	// Static file serving
	router.PathPrefix("/").Handler(http.FileServer(http.FS(*c.FS)))

	return router
}
