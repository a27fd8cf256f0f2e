package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"stock-tracker/src/config"
	"stock-tracker/src/engine"
	"stock-tracker/src/logger"
	"stock-tracker/src/marketapi"
	"stock-tracker/src/models"
	"stock-tracker/src/network"

	"github.com/gorilla/websocket"
)

// Manual harness: runs the engine against a local mock backend that serves
// random-walk quotes over both the REST and streaming surfaces.

const mockAddr = "127.0.0.1:9876"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func main() {
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Point everything at the local mock
	conf.API.BaseURL = "http://" + mockAddr + "/api"
	conf.API.StreamURL = "ws://" + mockAddr + "/stream"

	appLogger := logger.NewLogger(conf, "HarnessTest")

	go runMockBackend(appLogger)
	time.Sleep(200 * time.Millisecond)

	httpClient := network.NewClient(conf.MConfig, appLogger)
	api := marketapi.NewRESTClient(conf.MConfig, httpClient, appLogger)
	dataEngine := engine.New(conf, api, appLogger)

	// Print every accepted batch
	dataEngine.Broadcaster.Register(func(batch []models.MTickEntry) {
		for _, e := range batch {
			if e.Quote != nil {
				appLogger.Info("Tick %s: %.2f", e.Symbol, e.Quote.Current)
			}
		}
	})

	watch := dataEngine.Watch([]string{"AAPL", "MSFT", "TSLA"})
	defer watch.Release()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Harness shutting down...")
	dataEngine.Close()
}

// -----------------------------------------------------------------------------
// Mock backend
// -----------------------------------------------------------------------------

func runMockBackend(log *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/quotes", mockQuotes)
	mux.HandleFunc("/api/bars", mockBars)
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		mockStream(w, r, log)
	})

	log.Info("Mock backend listening on %s", mockAddr)
	if err := http.ListenAndServe(mockAddr, mux); err != nil {
		log.Critical("Mock backend failed: %v", err)
	}
}

// -----------------------------------------------------------------------------

func randomQuote(symbol string) models.MQuote {
	base := 100 + rand.Float64()*50
	return models.MQuote{
		Symbol:        symbol,
		Current:       base,
		High:          base * 1.01,
		Low:           base * 0.99,
		Open:          base * 0.995,
		PreviousClose: base * 0.99,
		Change:        base * 0.01,
		PercentChange: 1.0,
	}
}

// -----------------------------------------------------------------------------

func mockQuotes(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]models.MQuote)
	for _, sym := range strings.Split(r.URL.Query().Get("symbols"), ",") {
		if sym != "" {
			out[sym] = randomQuote(sym)
		}
	}
	json.NewEncoder(w).Encode(out)
}

// -----------------------------------------------------------------------------

func mockBars(w http.ResponseWriter, r *http.Request) {
	now := time.Now().Unix()
	n := 30
	resp := map[string]interface{}{"s": "ok"}

	t := make([]int64, n)
	o := make([]float64, n)
	h := make([]float64, n)
	l := make([]float64, n)
	c := make([]float64, n)
	v := make([]float64, n)
	price := 100.0
	for i := 0; i < n; i++ {
		t[i] = now - int64((n-i)*60)
		o[i] = price
		price += rand.Float64()*2 - 1
		c[i] = price
		h[i] = o[i] + 0.5
		l[i] = o[i] - 0.5
		v[i] = float64(rand.Intn(10000))
	}
	resp["t"], resp["o"], resp["h"], resp["l"], resp["c"], resp["v"] = t, o, h, l, c, v

	json.NewEncoder(w).Encode(resp)
}

// -----------------------------------------------------------------------------

func mockStream(w http.ResponseWriter, r *http.Request, log *logger.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Mock stream upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	symbols := strings.Split(r.URL.Query().Get("symbols"), ",")
	log.Info("Mock stream serving %d symbols", len(symbols))

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		sym := symbols[rand.Intn(len(symbols))]
		q := randomQuote(sym)
		msg := models.MTickMessage{
			Type: models.TickMessageType,
			Data: []models.MTickEntry{{Symbol: sym, Quote: &q}},
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
