package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	approvaldomain "github.com/smallbiznis/poolfund/internal/approval/domain"
)

type applicationApprovalRequest struct {
	ClientID              string  `json:"client_id"`
	RentPaid              string  `json:"rent_paid"`
	DepositPaid           string  `json:"deposit_paid"`
	ApplicationFee        string  `json:"application_fee"`
	CountyReimbursement   string  `json:"county_reimbursement"`
	PreviousReimbursement *string `json:"previous_reimbursement"`
}

func (s *Server) HandleApplicationApproval(c *gin.Context) {
	applicationID, err := parseSnowflakeParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_application", "invalid application id"))
		return
	}

	var req applicationApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	clientID, err := parseSnowflakeParam(req.ClientID)
	if err != nil {
		AbortWithError(c, newValidationError("client_id", "invalid_client_id", "invalid client_id"))
		return
	}

	amounts := make([]decimal.Decimal, 0, 4)
	for _, field := range []struct {
		name  string
		value string
	}{
		{"rent_paid", req.RentPaid},
		{"deposit_paid", req.DepositPaid},
		{"application_fee", req.ApplicationFee},
		{"county_reimbursement", req.CountyReimbursement},
	} {
		amount, err := parseAmount(field.value)
		if err != nil {
			AbortWithError(c, newValidationError(field.name, "invalid_amount", "invalid "+field.name))
			return
		}
		amounts = append(amounts, amount)
	}

	previous, err := parseOptionalAmount(req.PreviousReimbursement)
	if err != nil {
		AbortWithError(c, newValidationError("previous_reimbursement", "invalid_amount", "invalid previous_reimbursement"))
		return
	}

	result, err := s.approvalSvc.OnApplicationApproved(c.Request.Context(), approvaldomain.ApprovalEvent{
		ApplicationID:         applicationID,
		ClientID:              clientID,
		RentPaid:              amounts[0],
		DepositPaid:           amounts[1],
		ApplicationFee:        amounts[2],
		CountyReimbursement:   amounts[3],
		PreviousReimbursement: previous,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ListPartialCascades(c *gin.Context) {
	sc, err := scopeFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	partials, err := s.approvalSvc.FindPartialCascades(c.Request.Context(), sc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": partials})
}

func (s *Server) RepairPartialCascade(c *gin.Context) {
	transactionID, err := parseSnowflakeParam(c.Param("transactionId"))
	if err != nil {
		AbortWithError(c, newValidationError("transaction_id", "invalid_transaction_id", "invalid transaction id"))
		return
	}

	result, err := s.approvalSvc.RepairPartialCascade(c.Request.Context(), transactionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
