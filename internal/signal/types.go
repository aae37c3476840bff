package signal

import (
	"fmt"
	"time"

	"market-structure-engine/internal/analysis"
)

// Signal types.
const (
	TypeStructure  = "STRUCTURE_SIGNAL"
	TypeNoSetup    = "NO_SETUP"
	TypePersistent = "PERSISTENT_SIGNAL"
)

// OrderSettings is the exchange-ready order sketch attached to directional
// signals.
type OrderSettings struct {
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	Leverage    string `json:"leverage"`
	EntryPrice  string `json:"entryPrice"`
	EntryLow    string `json:"entryLow"`
	EntryHigh   string `json:"entryHigh"`
	StopLoss    string `json:"stopLoss"`
	TakeProfit  string `json:"takeProfit"`
	MarginMode  string `json:"marginMode"`
	TimeInForce string `json:"timeInForce"`
}

// AnalysisSummary is the condensed factor readout carried on every signal.
type AnalysisSummary struct {
	HTFTrend       string `json:"htf_trend"`
	LiquiditySweep string `json:"liquidity_sweep,omitempty"`
	MSSCHoCH       string `json:"mss_choch,omitempty"`
	ChecksPassed   int    `json:"checks_passed"`
	TotalChecks    int    `json:"total_checks"`
}

// Signal is the engine's verdict for one symbol at one price.
type Signal struct {
	Symbol            string          `json:"symbol"`
	Action            string          `json:"action"`
	Direction         string          `json:"direction"`
	Confidence        float64         `json:"confidence"`
	Score             int             `json:"score"`
	ScoreBreakdown    []string        `json:"score_breakdown"`
	SignalType        string          `json:"signal_type"`
	Prediction        string          `json:"prediction"`
	Reasoning         []string        `json:"reasoning"`
	Analysis          AnalysisSummary `json:"analysis"`
	EntryPrice        float64         `json:"entry_price"`
	StopLoss          float64         `json:"stop_loss"`
	TakeProfit        float64         `json:"take_profit"`
	Leverage          int             `json:"leverage"`
	RiskReward        float64         `json:"risk_reward"`
	Timestamp         time.Time       `json:"timestamp"`
	PersistenceReason string          `json:"persistence_reason,omitempty"`
	OrderSettings     *OrderSettings  `json:"bybit_settings"`
}

// Sizing parameters for the order sketch.
const (
	accountBalance = 50.0
	riskPercentage = 0.10
)

// leverageFor maps confidence to the leverage ladder.
func leverageFor(confidence float64) int {
	switch {
	case confidence >= 95:
		return 15
	case confidence >= 90:
		return 12
	case confidence >= 85:
		return 10
	default:
		return 7
	}
}

// NewDirectionalSignal builds a BUY or SELL signal from a passing analysis.
func NewDirectionalSignal(result *analysis.Result, currentPrice float64, stopLossPct, takeProfitPct float64) *Signal {
	var action, prediction string
	var stopLoss, takeProfit float64

	if result.Direction == "LONG" {
		action = "BUY"
		stopLoss = currentPrice * (1 - stopLossPct)
		takeProfit = currentPrice * (1 + takeProfitPct)
		prediction = "Expecting upward move - bottom structure confirmed"
	} else {
		action = "SELL"
		stopLoss = currentPrice * (1 + stopLossPct)
		takeProfit = currentPrice * (1 - takeProfitPct)
		prediction = "Expecting downward move - top structure confirmed"
	}

	confidence := 75 + float64(result.Score)*2
	if confidence > 98 {
		confidence = 98
	}
	leverage := leverageFor(confidence)

	riskReward := 0.0
	if diff := currentPrice - stopLoss; diff != 0 {
		riskReward = round2(abs(takeProfit-currentPrice) / abs(diff))
	}

	summary := AnalysisSummary{
		HTFTrend:     string(result.Trend.Bias),
		ChecksPassed: result.ChecksPassed,
		TotalChecks:  result.TotalChecks,
	}
	if result.Sweep.Detected {
		summary.LiquiditySweep = string(result.Sweep.Kind)
	}
	if result.Shift.Detected {
		summary.MSSCHoCH = string(result.Shift.Kind)
	}

	return &Signal{
		Symbol:         result.Symbol,
		Action:         action,
		Direction:      result.Direction,
		Confidence:     confidence,
		Score:          result.Score,
		ScoreBreakdown: result.Breakdown,
		SignalType:     TypeStructure,
		Prediction:     prediction,
		Reasoning:      result.Reasoning,
		Analysis:       summary,
		EntryPrice:     currentPrice,
		StopLoss:       stopLoss,
		TakeProfit:     takeProfit,
		Leverage:       leverage,
		RiskReward:     riskReward,
		Timestamp:      time.Now(),
		OrderSettings:  buildOrderSettings(result.Symbol, action, currentPrice, stopLoss, takeProfit, leverage),
	}
}

// NewHoldSignal builds the HOLD verdict carrying the reason no setup exists.
func NewHoldSignal(symbol string, currentPrice float64, reason string, score int, breakdown []string) *Signal {
	return &Signal{
		Symbol:         symbol,
		Action:         "HOLD",
		Direction:      "NEUTRAL",
		Confidence:     0,
		Score:          score,
		ScoreBreakdown: breakdown,
		SignalType:     TypeNoSetup,
		Prediction:     fmt.Sprintf("Waiting for high-probability setup: %s", reason),
		Reasoning:      []string{reason},
		Analysis: AnalysisSummary{
			HTFTrend:    "ANALYZING",
			TotalChecks: 100,
		},
		EntryPrice: currentPrice,
		StopLoss:   currentPrice * 0.97,
		TakeProfit: currentPrice * 1.06,
		Leverage:   0,
		RiskReward: 0,
		Timestamp:  time.Now(),
	}
}

func buildOrderSettings(symbol, action string, price, stopLoss, takeProfit float64, leverage int) *OrderSettings {
	riskAmount := accountBalance * riskPercentage
	positionValue := riskAmount * float64(leverage)

	qty := 0.0
	if price > 0 {
		qty = positionValue / price
	}
	var qtyStr string
	switch {
	case price < 1:
		qtyStr = fmt.Sprintf("%.0f", qty)
	default:
		qtyStr = fmt.Sprintf("%.2f", qty)
	}

	return &OrderSettings{
		Symbol:      symbol + "USDT",
		Side:        action,
		OrderType:   "Market",
		Qty:         qtyStr,
		Leverage:    fmt.Sprintf("%d", leverage),
		EntryPrice:  fmt.Sprintf("%.4f", price),
		EntryLow:    fmt.Sprintf("%.4f", price*0.995),
		EntryHigh:   fmt.Sprintf("%.4f", price*1.005),
		StopLoss:    fmt.Sprintf("%.4f", stopLoss),
		TakeProfit:  fmt.Sprintf("%.4f", takeProfit),
		MarginMode:  "isolated",
		TimeInForce: "GTC",
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
