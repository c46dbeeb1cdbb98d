package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/asemenov/finledger/internal/domain"
	"github.com/asemenov/finledger/internal/normalize"
	"github.com/asemenov/finledger/internal/pipeline"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

type importRequest struct {
	Rows      []map[string]any `json:"rows"`
	Currency  string           `json:"currency"`
	AccountID string           `json:"account_id"`
}

// handleImportBatch runs one batch through the pipeline. Row failures are
// reported in the body, not as an HTTP error; only a malformed request is
// rejected outright.
func (s *Server) handleImportBatch(c *gin.Context) {
	var req importRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	result, err := s.importer.ImportBatch(c.Request.Context(), pipeline.BatchInput{
		UserID:         currentUser(c),
		Rows:           req.Rows,
		TargetCurrency: req.Currency,
		AccountID:      req.AccountID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidBatch) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.log.Error().Err(err).Msg("Import batch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "import failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": result.Results,
		"summary": result.Summary,
	})
}

type transactionRequest struct {
	Currency    string         `json:"currency"`
	AccountID   string         `json:"account_id"`
	Transaction map[string]any `json:"transaction"`
}

// handleCreateTransaction imports a single manually entered transaction via
// the same path as a batch row, so validation and account resolution cannot
// drift between the two entry points.
func (s *Server) handleCreateTransaction(c *gin.Context) {
	var req transactionRequest
	if err := c.BindJSON(&req); err != nil || req.Transaction == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	result, err := s.importer.ImportBatch(c.Request.Context(), pipeline.BatchInput{
		UserID:         currentUser(c),
		Rows:           []map[string]any{req.Transaction},
		TargetCurrency: req.Currency,
		AccountID:      req.AccountID,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Create transaction failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}

	row := result.Results[0]
	if !row.Success {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": row.Error})
		return
	}
	c.JSON(http.StatusCreated, row)
}

// handleUpdateTransaction normalizes the edited fields and applies the
// balance adjustment through the ledger writer.
func (s *Server) handleUpdateTransaction(c *gin.Context) {
	var req transactionRequest
	if err := c.BindJSON(&req); err != nil || req.Transaction == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	cand, reason := normalize.Row(req.Transaction, time.Now)
	if reason != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": reason})
		return
	}

	counterparty := cand.Counterparty
	if counterparty == "" {
		counterparty = cand.Description
	}
	tx := &domain.Transaction{
		ID:                c.Param("id"),
		UserID:            currentUser(c),
		Amount:            cand.Amount,
		Type:              cand.Type,
		Date:              cand.Date,
		Description:       cand.Description,
		Counterparty:      counterparty,
		Category:          cand.Category,
		IsRecurring:       cand.IsRecurring,
		RecurringInterval: cand.RecurringInterval,
	}

	if err := s.writer.Update(c.Request.Context(), tx); err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
			return
		}
		s.log.Error().Err(err).Str("transaction_id", tx.ID).Msg("Update transaction failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	if err := s.invalidator.InvalidateUser(c.Request.Context(), tx.UserID); err != nil {
		s.log.Warn().Err(err).Msg("Cache invalidation failed")
	}

	c.JSON(http.StatusOK, transactionResponse(tx))
}

func (s *Server) handleListAccounts(c *gin.Context) {
	accounts, err := s.store.Accounts().ListAccounts(c.Request.Context(), currentUser(c))
	if err != nil {
		s.log.Error().Err(err).Msg("List accounts failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	out := make([]gin.H, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountResponse(a))
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

func (s *Server) handleGetPreferences(c *gin.Context) {
	userID := currentUser(c)
	prefs, err := s.store.Preferences().GetPreferences(c.Request.Context(), userID)
	if errors.Is(err, domain.ErrPreferencesNotFound) {
		prefs = s.defaultPrefs(userID)
	} else if err != nil {
		s.log.Error().Err(err).Msg("Get preferences failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "preferences unavailable"})
		return
	}
	c.JSON(http.StatusOK, preferencesResponse(prefs))
}

type preferencesRequest struct {
	DefaultCurrency       string `json:"default_currency"`
	OnUnsupportedCurrency string `json:"on_unsupported_currency"`
}

func (s *Server) handlePutPreferences(c *gin.Context) {
	var req preferencesRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	currency := domain.NormalizeCurrency(req.DefaultCurrency)
	if !domain.SupportedCurrency(currency) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported currency " + req.DefaultCurrency})
		return
	}
	policy := domain.CurrencyPolicy(req.OnUnsupportedCurrency)
	if policy != domain.CurrencyFallback && policy != domain.CurrencyReject {
		c.JSON(http.StatusBadRequest, gin.H{"error": "policy must be fallback or reject"})
		return
	}

	prefs := &domain.Preferences{
		UserID:                currentUser(c),
		DefaultCurrency:       currency,
		OnUnsupportedCurrency: policy,
	}
	if err := s.store.Preferences().PutPreferences(c.Request.Context(), prefs); err != nil {
		s.log.Error().Err(err).Msg("Put preferences failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	c.JSON(http.StatusOK, preferencesResponse(prefs))
}

func transactionResponse(t *domain.Transaction) gin.H {
	resp := gin.H{
		"id":           t.ID,
		"account_id":   t.AccountID,
		"amount":       t.Amount.StringFixed(2),
		"type":         string(t.Type),
		"date":         t.Date.Format("2006-01-02"),
		"description":  t.Description,
		"counterparty": t.Counterparty,
		"category":     t.Category,
		"is_recurring": t.IsRecurring,
	}
	if t.NextRecurringDate != nil {
		resp["next_recurring_date"] = t.NextRecurringDate.Format("2006-01-02")
	}
	return resp
}

func accountResponse(a *domain.Account) gin.H {
	return gin.H{
		"id":         a.ID,
		"name":       a.Name,
		"currency":   a.Currency,
		"balance":    a.Balance.StringFixed(2),
		"is_default": a.IsDefault,
	}
}

func preferencesResponse(p *domain.Preferences) gin.H {
	return gin.H{
		"default_currency":        p.DefaultCurrency,
		"on_unsupported_currency": string(p.OnUnsupportedCurrency),
	}
}
