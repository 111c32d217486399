package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/poolfund/internal/ledger/domain"
	transactiondomain "github.com/smallbiznis/poolfund/internal/transaction/domain"
	"github.com/smallbiznis/poolfund/pkg/db/pagination"
)

type appendLedgerEntryRequest struct {
	Kind          string `json:"kind"`
	Amount        string `json:"amount"`
	Description   string `json:"description"`
	County        string `json:"county"`
	Month         string `json:"month"`
	ClientID      string `json:"client_id"`
	SiteID        string `json:"site_id"`
	TransactionID string `json:"transaction_id"`
}

func (s *Server) AppendLedgerEntry(c *gin.Context) {
	var req appendLedgerEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "invalid amount"))
		return
	}
	clientID, err := parseOptionalSnowflakeID(req.ClientID)
	if err != nil {
		AbortWithError(c, newValidationError("client_id", "invalid_client_id", "invalid client_id"))
		return
	}
	siteID, err := parseOptionalSnowflakeID(req.SiteID)
	if err != nil {
		AbortWithError(c, newValidationError("site_id", "invalid_site_id", "invalid site_id"))
		return
	}
	transactionID, err := parseOptionalSnowflakeID(req.TransactionID)
	if err != nil {
		AbortWithError(c, newValidationError("transaction_id", "invalid_transaction_id", "invalid transaction_id"))
		return
	}

	entry, err := s.ledgerSvc.Append(c.Request.Context(), ledgerdomain.AppendEntryRequest{
		Kind:          ledgerdomain.EntryKind(req.Kind),
		Amount:        amount,
		Description:   req.Description,
		County:        req.County,
		Month:         req.Month,
		ClientID:      clientID,
		SiteID:        siteID,
		TransactionID: transactionID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entry})
}

func (s *Server) ListLedgerEntries(c *gin.Context) {
	var query struct {
		pagination.Pagination
		County   string `form:"county"`
		ClientID string `form:"client_id"`
		Kind     string `form:"kind"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	sc, err := scopeFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	clientID, err := parseOptionalSnowflakeID(query.ClientID)
	if err != nil {
		AbortWithError(c, newValidationError("client_id", "invalid_client_id", "invalid client_id"))
		return
	}

	resp, err := s.ledgerSvc.List(c.Request.Context(), sc, ledgerdomain.ListEntriesRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		County:    strings.TrimSpace(query.County),
		ClientID:  clientID,
		Kind:      ledgerdomain.EntryKind(query.Kind),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetBalance(c *gin.Context) {
	sc, err := scopeFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	balance, err := s.ledgerSvc.Balance(c.Request.Context(), sc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (s *Server) GetCountyBalance(c *gin.Context) {
	sc, err := scopeFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	county := strings.TrimSpace(c.Param("county"))
	balance, err := s.ledgerSvc.BalanceByCounty(c.Request.Context(), sc, county)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"county": county, "balance": balance})
}

func (s *Server) GetCountySummary(c *gin.Context) {
	sc, err := scopeFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	summaries, err := s.ledgerSvc.SummaryByCounty(c.Request.Context(), sc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"counties": summaries})
}

type createTransactionRequest struct {
	Kind          string `json:"kind"`
	Amount        string `json:"amount"`
	Description   string `json:"description"`
	Month         string `json:"month"`
	ApplicationID string `json:"application_id"`
	ClientID      string `json:"client_id"`
}

func (s *Server) CreateTransaction(c *gin.Context) {
	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "invalid amount"))
		return
	}
	applicationID, err := parseOptionalSnowflakeID(req.ApplicationID)
	if err != nil {
		AbortWithError(c, newValidationError("application_id", "invalid_application_id", "invalid application_id"))
		return
	}
	clientID, err := parseOptionalSnowflakeID(req.ClientID)
	if err != nil {
		AbortWithError(c, newValidationError("client_id", "invalid_client_id", "invalid client_id"))
		return
	}

	transaction, err := s.transactionSvc.Create(c.Request.Context(), transactiondomain.CreateTransactionRequest{
		Kind:          transactiondomain.TransactionKind(req.Kind),
		Amount:        amount,
		Description:   req.Description,
		Month:         req.Month,
		ApplicationID: applicationID,
		ClientID:      clientID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": transaction})
}

func (s *Server) ListTransactions(c *gin.Context) {
	var query struct {
		Kind          string `form:"kind"`
		ApplicationID string `form:"application_id"`
		ClientID      string `form:"client_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	sc, err := scopeFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	applicationID, err := parseOptionalSnowflakeID(query.ApplicationID)
	if err != nil {
		AbortWithError(c, newValidationError("application_id", "invalid_application_id", "invalid application_id"))
		return
	}
	clientID, err := parseOptionalSnowflakeID(query.ClientID)
	if err != nil {
		AbortWithError(c, newValidationError("client_id", "invalid_client_id", "invalid client_id"))
		return
	}

	transactions, err := s.transactionSvc.List(c.Request.Context(), sc, transactiondomain.ListTransactionsRequest{
		Kind:          transactiondomain.TransactionKind(query.Kind),
		ApplicationID: applicationID,
		ClientID:      clientID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": transactions})
}
