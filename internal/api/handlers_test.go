package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"market-structure-engine/internal/analysis"
	"market-structure-engine/internal/notify"
	"market-structure-engine/internal/signal"
	"market-structure-engine/internal/trades"
)

type stubAnalyzer struct {
	result *analysis.Result
}

func (s *stubAnalyzer) Analyze(ctx context.Context, symbol string) *analysis.Result {
	r := *s.result
	r.Symbol = symbol
	return &r
}

func newTestServer(result *analysis.Result) (*Server, *trades.Tracker) {
	logger := zerolog.Nop()
	biases := signal.NewBiasStore(4*time.Hour, 8, logger)
	tracker := trades.NewTracker(24*time.Hour, nil, logger)
	debouncer := notify.NewDebouncer(notify.DefaultDebounceWindow, logger)
	engine := signal.NewEngine(&stubAnalyzer{result: result}, biases, tracker, debouncer, analysis.DefaultConfig(), logger)
	journal := trades.NewJournal(nil)

	server := NewServer(ServerConfig{Host: "127.0.0.1", Port: 0, ProductionMode: true}, engine, tracker, journal, debouncer, logger)
	return server, tracker
}

func directional(direction string, score int) *analysis.Result {
	return &analysis.Result{
		Score:     score,
		Direction: direction,
		Breakdown: []string{"HTF Trend: 3/3"},
		Reasoning: []string{"Strong bullish EMA stack (21>50>200)"},
	}
}

func doRequest(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(directional("LONG", 8))

	w := doRequest(t, server, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
}

func TestSignalEndpointRequiresPrice(t *testing.T) {
	server, _ := newTestServer(directional("LONG", 8))

	w := doRequest(t, server, http.MethodGet, "/api/signal/BTC", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 without price, got %d", w.Code)
	}
}

func TestSignalEndpointReturnsSignal(t *testing.T) {
	server, _ := newTestServer(directional("LONG", 8))

	w := doRequest(t, server, http.MethodGet, "/api/signal/btc?price=50000&change24h=2.5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var sig signal.Signal
	if err := json.Unmarshal(w.Body.Bytes(), &sig); err != nil {
		t.Fatalf("Response should be a signal: %v", err)
	}
	if sig.Symbol != "BTC" {
		t.Errorf("Symbol should be normalized to upper case, got %s", sig.Symbol)
	}
	if sig.Action != "BUY" {
		t.Errorf("Expected BUY, got %s", sig.Action)
	}
	if sig.Score != 8 {
		t.Errorf("Expected score 8, got %d", sig.Score)
	}
}

func TestBiasLifecycleOverHTTP(t *testing.T) {
	server, _ := newTestServer(directional("LONG", 8))

	doRequest(t, server, http.MethodGet, "/api/signal/BTC?price=50000", "")

	w := doRequest(t, server, http.MethodGet, "/api/biases", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var biasesResp struct {
		Biases map[string]*signal.Bias `json:"biases"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &biasesResp); err != nil {
		t.Fatal(err)
	}
	if _, ok := biasesResp.Biases["BTC"]; !ok {
		t.Fatal("Expected BTC bias to be active")
	}

	w = doRequest(t, server, http.MethodDelete, "/api/biases/BTC", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on clear, got %d", w.Code)
	}

	w = doRequest(t, server, http.MethodDelete, "/api/biases/BTC", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("Second clear should 404, got %d", w.Code)
	}
}

func TestTradeRegistrationAndGate(t *testing.T) {
	server, tracker := newTestServer(directional("LONG", 8))

	body := `{"symbol":"btc","action":"buy","entry_price":50000,"stop_loss":48500,"take_profit":55000,"leverage":10,"confidence":85}`
	w := doRequest(t, server, http.MethodPost, "/api/trades", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var trade trades.Trade
	if err := json.Unmarshal(w.Body.Bytes(), &trade); err != nil {
		t.Fatal(err)
	}
	if trade.Symbol != "BTC" || trade.Action != "BUY" {
		t.Errorf("Trade fields should be normalized, got %s %s", trade.Symbol, trade.Action)
	}

	if tracker.Active("BTC") == nil {
		t.Fatal("Trade should be registered in the tracker")
	}

	// While the trade is live, the signal endpoint returns HOLD.
	w = doRequest(t, server, http.MethodGet, "/api/signal/BTC?price=51000", "")
	var sig signal.Signal
	if err := json.Unmarshal(w.Body.Bytes(), &sig); err != nil {
		t.Fatal(err)
	}
	if sig.Action != "HOLD" {
		t.Errorf("Active trade should gate signals to HOLD, got %s", sig.Action)
	}
}

func TestTradeRegistrationValidation(t *testing.T) {
	server, _ := newTestServer(directional("LONG", 8))

	w := doRequest(t, server, http.MethodPost, "/api/trades", `{"symbol":"BTC"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Missing fields should 400, got %d", w.Code)
	}

	body := `{"symbol":"BTC","action":"WAIT","entry_price":50000,"stop_loss":48500,"take_profit":55000}`
	w = doRequest(t, server, http.MethodPost, "/api/trades", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Invalid action should 400, got %d", w.Code)
	}
}

func TestTradeCompletionEndpoint(t *testing.T) {
	server, _ := newTestServer(directional("LONG", 8))

	body := `{"symbol":"BTC","action":"BUY","entry_price":50000,"stop_loss":48500,"take_profit":55000}`
	doRequest(t, server, http.MethodPost, "/api/trades", body)

	w := doRequest(t, server, http.MethodGet, "/api/trades/BTC/completion?price=51000", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ACTIVE") {
		t.Errorf("Live trade should report ACTIVE, got %s", w.Body.String())
	}

	w = doRequest(t, server, http.MethodGet, "/api/trades/BTC/completion?price=55500", "")
	var completion trades.Completion
	if err := json.Unmarshal(w.Body.Bytes(), &completion); err != nil {
		t.Fatal(err)
	}
	if completion.Status != trades.StatusTPHit {
		t.Errorf("Expected TP_HIT, got %s", completion.Status)
	}

	w = doRequest(t, server, http.MethodGet, "/api/trades/BTC/completion?price=55500", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("Completed trade should 404 on re-check, got %d", w.Code)
	}
}

func TestNotificationEndpoints(t *testing.T) {
	server, _ := newTestServer(directional("LONG", 8))

	w := doRequest(t, server, http.MethodGet, "/api/bias-notifications", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	w = doRequest(t, server, http.MethodPost, "/api/bias-notifications/clear", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on clear, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(directional("LONG", 8))

	w := doRequest(t, server, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "signals_issued_total") {
		t.Error("Metrics output should include engine counters")
	}
}
