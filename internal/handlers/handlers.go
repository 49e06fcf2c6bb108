package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"zentrading/internal/models"
	"zentrading/internal/portfolio"
	"zentrading/internal/service"
	"zentrading/internal/zodiac"
)

// Handler exposes the trading and alignment API over gin. Authentication is
// out of scope; the user id travels in the path.
type Handler struct {
	svc         *portfolio.Service
	users       portfolio.UserStore
	store       portfolio.Store
	instruments portfolio.InstrumentStore
	prefs       portfolio.PreferenceStore
	quotes      service.QuoteProvider
	log         *logrus.Logger
}

func NewHandler(svc *portfolio.Service, users portfolio.UserStore, store portfolio.Store, instruments portfolio.InstrumentStore, prefs portfolio.PreferenceStore, quotes service.QuoteProvider, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, users: users, store: store, instruments: instruments, prefs: prefs, quotes: quotes, log: log}
}

// Register mounts all routes on the engine.
func (h *Handler) Register(rg *gin.Engine) {
	rg.GET("/stocks", h.ListStocks)
	rg.GET("/stocks/:ticker", h.GetStock)
	rg.GET("/market-status", h.MarketStatus)
	rg.GET("/compatibility", h.Compatibility)

	rg.POST("/users", h.CreateUser)
	rg.GET("/onboarding/:userId", h.GetOnboarding)
	rg.POST("/onboarding/:userId", h.PostOnboarding)

	rg.GET("/holdings/:userId", h.GetHoldings)
	rg.POST("/holdings/:userId", h.PostTransaction)
	rg.GET("/portfolio/:userId", h.GetPortfolio)
	rg.GET("/discovery/:userId", h.GetDiscovery)

	rg.GET("/watchlist/:userId", h.listPreferences(models.PrefWatchlist, "watchlist"))
	rg.POST("/watchlist/:userId", h.addPreference(models.PrefWatchlist))
	rg.DELETE("/watchlist/:userId", h.removePreference(models.PrefWatchlist))
	rg.GET("/dislikes/:userId", h.listPreferences(models.PrefDislike, "dislike_list"))
	rg.POST("/dislikes/:userId", h.addPreference(models.PrefDislike))
	rg.DELETE("/dislikes/:userId", h.removePreference(models.PrefDislike))
}

// fail maps domain error kinds onto HTTP responses with the API's
// {"error", "detail"} shape.
func (h *Handler) fail(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, portfolio.ErrInvalidTicker),
		errors.Is(err, portfolio.ErrInvalidAmount),
		errors.Is(err, portfolio.ErrInvalidQuantity),
		errors.Is(err, portfolio.ErrInvalidAction),
		errors.Is(err, portfolio.ErrInvalidCost),
		errors.Is(err, portfolio.ErrNoZodiacSign):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data", "detail": err.Error()})
	case errors.Is(err, portfolio.ErrInsufficientBalance):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient balance", "detail": err.Error()})
	case errors.Is(err, portfolio.ErrInsufficientShares):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient shares", "detail": err.Error()})
	case errors.Is(err, portfolio.ErrPositionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Position not found", "detail": err.Error()})
	case errors.Is(err, portfolio.ErrHoldingsNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Holdings not found", "detail": "User holdings have not been created yet. Complete onboarding first."})
	case errors.Is(err, portfolio.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found", "detail": err.Error()})
	case errors.Is(err, portfolio.ErrInstrumentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Stock not found", "detail": err.Error()})
	case errors.Is(err, portfolio.ErrPreferenceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "detail": err.Error()})
	case errors.Is(err, portfolio.ErrUserExists):
		c.JSON(http.StatusConflict, gin.H{"error": "User already exists", "detail": err.Error()})
	default:
		h.log.Errorf("%s: %v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}

/* ---- stocks ---- */

func (h *Handler) ListStocks(c *gin.Context) {
	instruments, err := h.instruments.Instruments(c.Request.Context())
	if err != nil {
		h.fail(c, err, "list stocks")
		return
	}
	c.JSON(http.StatusOK, instruments)
}

func (h *Handler) GetStock(c *gin.Context) {
	ticker := strings.ToUpper(strings.TrimSpace(c.Param("ticker")))
	inst, err := h.instruments.Instrument(c.Request.Context(), ticker)
	if err != nil {
		h.fail(c, err, "get stock")
		return
	}
	c.JSON(http.StatusOK, inst)
}

func (h *Handler) MarketStatus(c *gin.Context) {
	quote, err := h.quotes.GetQuote(c.Request.Context(), "SPY")
	if err != nil {
		h.log.Warnf("market status check failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch market status", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"is_open":      quote.MarketState == models.MarketStateRegular,
		"market_state": quote.MarketState,
		"as_of":        quote.AsOf,
	})
}

func (h *Handler) Compatibility(c *gin.Context) {
	userSign, err := zodiac.ParseSign(c.Query("user_sign"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data", "detail": err.Error()})
		return
	}
	stockSign, err := zodiac.ParseSign(c.Query("stock_sign"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data", "detail": err.Error()})
		return
	}
	tier := h.svc.Compatibility(userSign, stockSign)
	c.JSON(http.StatusOK, gin.H{
		"user_sign":       userSign,
		"stock_sign":      stockSign,
		"match_type":      tier,
		"alignment_score": tier.AlignmentScore(),
	})
}

/* ---- users and onboarding ---- */

type createUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username"`
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data", "detail": err.Error()})
		return
	}
	user, err := h.users.CreateUser(c.Request.Context(), req.Email, req.Username)
	if err != nil {
		h.fail(c, err, "create user")
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) GetOnboarding(c *gin.Context) {
	profile, err := h.users.Profile(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, err, "get onboarding")
		return
	}
	c.JSON(http.StatusOK, gin.H{"onboarding_completed": profile.OnboardingCompleted, "profile": profile})
}

type onboardingRequest struct {
	DateOfBirth     string      `json:"date_of_birth" binding:"required"`
	ZodiacSign      string      `json:"zodiac_sign" binding:"required"`
	ZodiacSymbol    string      `json:"zodiac_symbol"`
	InvestingStyle  string      `json:"investing_style" binding:"required"`
	StartingBalance json.Number `json:"starting_balance" binding:"required"`
}

// PostOnboarding stores the user's zodiac profile and opens their holdings
// with the chosen starting balance.
func (h *Handler) PostOnboarding(c *gin.Context) {
	userID := c.Param("userId")
	var req onboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data", "detail": err.Error()})
		return
	}

	sign, err := zodiac.ParseSign(req.ZodiacSign)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data", "detail": err.Error()})
		return
	}
	if !models.ValidInvestingStyle(req.InvestingStyle) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data", "detail": fmt.Sprintf("invalid investing style, must be one of: %s", strings.Join(models.InvestingStyles, ", "))})
		return
	}
	balance, err := decimal.NewFromString(req.StartingBalance.String())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data", "detail": "starting_balance must be a valid number"})
		return
	}
	if balance.LessThan(models.MinStartingBalance) || balance.GreaterThan(models.MaxStartingBalance) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data", "detail": "starting balance must be between $10,000 and $1,000,000"})
		return
	}

	ctx := c.Request.Context()
	profile, err := h.users.Profile(ctx, userID)
	if err != nil {
		h.fail(c, err, "load profile")
		return
	}
	profile.DateOfBirth = req.DateOfBirth
	profile.ZodiacSign = sign
	profile.ZodiacSymbol = req.ZodiacSymbol
	profile.ZodiacElement = sign.Element()
	profile.InvestingStyle = req.InvestingStyle
	profile.StartingBalance = decimal.NewNullDecimal(balance)
	profile.OnboardingCompleted = true

	if err := h.users.SaveProfile(ctx, profile); err != nil {
		h.fail(c, err, "save profile")
		return
	}
	if err := h.store.CreateHoldings(ctx, userID, balance); err != nil {
		h.fail(c, err, "create holdings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Onboarding completed successfully", "profile": profile})
}

/* ---- holdings and transactions ---- */

func holdingsPayload(h *portfolio.Holdings) gin.H {
	return gin.H{"balance": h.Balance, "positions": h.Ledger.List()}
}

func (h *Handler) GetHoldings(c *gin.Context) {
	holdings, err := h.svc.Holdings(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, err, "get holdings")
		return
	}
	c.JSON(http.StatusOK, holdingsPayload(holdings))
}

type transactionRequest struct {
	Ticker     string      `json:"ticker"`
	Quantity   json.Number `json:"quantity"`
	TotalValue json.Number `json:"total_value"`
	Action     string      `json:"action"`
}

func (h *Handler) PostTransaction(c *gin.Context) {
	userID := c.Param("userId")
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data", "detail": err.Error()})
		return
	}

	ord, err := portfolio.ParseOrder(req.Ticker, req.Quantity.String(), req.TotalValue.String(), req.Action)
	if err != nil {
		h.fail(c, err, "parse order")
		return
	}

	holdings, err := h.svc.ProcessTransaction(c.Request.Context(), userID, ord)
	if err != nil {
		h.fail(c, err, "process transaction")
		return
	}

	verb := "purchased"
	if ord.Action == portfolio.ActionSell {
		verb = "sold"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  fmt.Sprintf("Successfully %s %s shares of %s", verb, ord.Quantity.String(), ord.Ticker),
		"holdings": holdingsPayload(holdings),
	})
}

func (h *Handler) GetPortfolio(c *gin.Context) {
	summary, err := h.svc.Summary(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, err, "portfolio summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) GetDiscovery(c *gin.Context) {
	matchType := c.Query("match_type")
	switch matchType {
	case "", string(zodiac.MatchPositive), string(zodiac.MatchNeutral), string(zodiac.MatchNegative):
	default:
		matchType = ""
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}

	discovery, err := h.svc.Discover(c.Request.Context(), c.Param("userId"), matchType, limit)
	if err != nil {
		h.fail(c, err, "discovery")
		return
	}
	c.JSON(http.StatusOK, discovery)
}

/* ---- watchlist and dislikes ---- */

type preferenceRequest struct {
	Ticker string `json:"ticker"`
}

func (h *Handler) listPreferences(prefType, key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		prefs, err := h.prefs.Preferences(c.Request.Context(), c.Param("userId"), prefType)
		if err != nil {
			h.fail(c, err, "list preferences")
			return
		}
		c.JSON(http.StatusOK, gin.H{key: prefs})
	}
}

func (h *Handler) addPreference(prefType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		ticker, ok := h.bindTicker(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		// The ticker must be a known instrument before it can be marked.
		if _, err := h.instruments.Instrument(ctx, ticker); err != nil {
			h.fail(c, err, "check instrument")
			return
		}
		created, err := h.prefs.SetPreference(ctx, userID, ticker, prefType)
		if err != nil {
			h.fail(c, err, "set preference")
			return
		}
		status := http.StatusOK
		message := fmt.Sprintf("Updated to %s", prefType)
		if created {
			status = http.StatusCreated
			message = fmt.Sprintf("Added to %s", prefType)
		}
		c.JSON(status, gin.H{"message": message, "ticker": ticker})
	}
}

func (h *Handler) removePreference(prefType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		ticker, ok := h.bindTicker(c)
		if !ok {
			return
		}
		if err := h.prefs.RemovePreference(c.Request.Context(), userID, ticker, prefType); err != nil {
			h.fail(c, err, "remove preference")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Removed %s from %s", ticker, prefType)})
	}
}

func (h *Handler) bindTicker(c *gin.Context) (string, bool) {
	var req preferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data", "detail": err.Error()})
		return "", false
	}
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data", "detail": "Ticker is required"})
		return "", false
	}
	return ticker, true
}
