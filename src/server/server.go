package server

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"stock-tracker/src/engine"
	"stock-tracker/src/logger"
	"stock-tracker/src/models"
	"stock-tracker/src/prefs"
	"stock-tracker/src/utils"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// APIServer
// -----------------------------------------------------------------------------

// Status reporting uses NYSE hours; per-symbol calendars only matter inside
// the bar cache's live-merge guard.
var nyseCalendar = utils.GetCalendar("")

type APIServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	gin    *gin.Engine

	dataEngine *engine.Engine
	prefs      *prefs.Service

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan []models.MTickEntry
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// Mirror of len(s.clients), maintained by the hub loop for handlers
	clientCount int64

	unlisten func()
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(cfg *models.MConfig, e *engine.Engine, p *prefs.Service, log *logger.Logger) *APIServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &APIServer{
		Config:     cfg,
		Logger:     log,
		gin:        gin.Default(),
		dataEngine: e,
		prefs:      p,
		clients:    make(map[*Client]struct{}),
		// Buffered so a burst of tick batches never blocks the engine
		broadcast:  make(chan []models.MTickEntry, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}

	// Add CORS Middleware
	s.gin.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	// REST API endpoints
	s.gin.GET("/api/quotes", s.getQuotes)
	s.gin.GET("/api/bars", s.getBars)
	s.gin.GET("/api/status", s.getStatus)
	s.gin.GET("/api/preferences/:symbol", s.getPreferences)
	s.gin.PUT("/api/preferences/:symbol", s.putPreferences)
	s.gin.DELETE("/api/preferences", s.resetPreferences)
	s.gin.GET("/api/health", s.getHealth)

	// WebSocket endpoint
	s.gin.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *APIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	// Every accepted tick batch reaches connected websocket clients
	s.unlisten = s.dataEngine.Broadcaster.Register(func(batch []models.MTickEntry) {
		select {
		case s.broadcast <- batch:
		default:
			s.Logger.Warning("Broadcast queue full, dropping batch of %d", len(batch))
		}
	})

	go s.runHub()

	return s.gin.Run(addr)
}

// -----------------------------------------------------------------------------

func (s *APIServer) Stop() error {
	if s.unlisten != nil {
		s.unlisten()
	}
	// The broadcast channel stays open: a listener invocation that started
	// before unlisten may still be sending into it.
	close(s.done)
	return nil
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

// getQuotes serves the latest quotes for ?symbols=AAPL,MSFT after refreshing
// any stale ones over REST.
func (s *APIServer) getQuotes(c *gin.Context) {
	raw := c.Query("symbols")
	if raw == "" {
		c.JSON(400, gin.H{"error": "symbols query parameter is required"})
		return
	}
	symbols := utils.NormalizeSymbols(strings.Split(raw, ","))

	if err := s.dataEngine.Quotes.FetchIfStale(c.Request.Context(), symbols); err != nil {
		s.Logger.Error("Quote refresh failed: %v", err)
	}

	out := make(map[string]models.MQuote, len(symbols))
	for _, sym := range symbols {
		if q, ok := s.dataEngine.Quotes.Get(sym); ok {
			out[sym] = q
		}
	}
	c.JSON(200, out)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getBars(c *gin.Context) {
	symbol := c.Query("symbol")
	resolution := c.Query("resolution")
	if symbol == "" || resolution == "" {
		c.JSON(400, gin.H{"error": "symbol and resolution query parameters are required"})
		return
	}

	from, err := strconv.ParseInt(c.Query("from"), 10, 64)
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid from timestamp"})
		return
	}
	to, err := strconv.ParseInt(c.Query("to"), 10, 64)
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid to timestamp"})
		return
	}
	force := c.Query("force") == "true"

	series, err := s.dataEngine.Bars.Fetch(c.Request.Context(), symbol, resolution, from, to, force)
	if err != nil {
		c.JSON(502, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, series)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getStatus(c *gin.Context) {
	st := s.dataEngine.Status()
	st.MarketOpen = nyseCalendar.IsOpenOnMinute(time.Now())
	c.JSON(200, st)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getPreferences(c *gin.Context) {
	c.JSON(200, s.prefs.Get(c.Param("symbol")))
}

// -----------------------------------------------------------------------------

func (s *APIServer) putPreferences(c *gin.Context) {
	var p models.MChartPreferences
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	p.Symbol = c.Param("symbol")

	if err := s.prefs.Set(p); err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, p)
}

// -----------------------------------------------------------------------------

func (s *APIServer) resetPreferences(c *gin.Context) {
	if err := s.prefs.ResetAll(); err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"status": "ok"})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	status := s.dataEngine.Status()

	c.JSON(200, gin.H{
		"status":      "ok",
		"stream":      status.Stream.State,
		"connections": atomic.LoadInt64(&s.clientCount),
	})
}
