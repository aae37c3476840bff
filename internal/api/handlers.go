package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// handleGetSignal evaluates one symbol at the caller-supplied live price.
func (s *Server) handleGetSignal(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	price, err := strconv.ParseFloat(c.Query("price"), 64)
	if err != nil || price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price query parameter required"})
		return
	}
	change24h, _ := strconv.ParseFloat(c.DefaultQuery("change24h", "0"), 64)

	sig := s.engine.GetSignal(c.Request.Context(), symbol, price, change24h)
	c.JSON(http.StatusOK, sig)
}

func (s *Server) handleGetBiases(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"biases": s.engine.ActiveBiases()})
}

func (s *Server) handleClearBias(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	if !s.engine.ClearBias(symbol) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active bias for symbol"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": symbol})
}

type registerTradeRequest struct {
	Symbol     string  `json:"symbol" binding:"required"`
	Action     string  `json:"action" binding:"required"`
	EntryPrice float64 `json:"entry_price" binding:"required"`
	StopLoss   float64 `json:"stop_loss" binding:"required"`
	TakeProfit float64 `json:"take_profit" binding:"required"`
	Leverage   int     `json:"leverage"`
	Confidence float64 `json:"confidence"`
}

func (s *Server) handleRegisterTrade(c *gin.Context) {
	var req registerTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	action := strings.ToUpper(req.Action)
	if action != "BUY" && action != "SELL" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be BUY or SELL"})
		return
	}

	trade := s.tracker.Register(
		c.Request.Context(),
		strings.ToUpper(req.Symbol),
		action,
		req.EntryPrice,
		req.StopLoss,
		req.TakeProfit,
		req.Leverage,
		req.Confidence,
	)
	c.JSON(http.StatusCreated, trade)
}

func (s *Server) handleGetTrades(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"trades": s.tracker.ActiveTrades()})
}

func (s *Server) handleTradeCompletion(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	price, err := strconv.ParseFloat(c.Query("price"), 64)
	if err != nil || price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price query parameter required"})
		return
	}

	completion := s.tracker.CheckCompletion(c.Request.Context(), symbol, price)
	if completion == nil {
		if s.tracker.Active(symbol) == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active trade for symbol"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ACTIVE"})
		return
	}
	c.JSON(http.StatusOK, completion)
}

func (s *Server) handleTradeSummary(c *gin.Context) {
	summary, err := s.journal.GetSummary(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("trade summary query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trade summary"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleGetNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notifications": s.debouncer.Notifications()})
}

func (s *Server) handleClearNotifications(c *gin.Context) {
	s.debouncer.Clear()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
