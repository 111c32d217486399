package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	contributiondomain "github.com/smallbiznis/poolfund/internal/contribution/domain"
)

type createContributionRequest struct {
	ClientID         string `json:"client_id"`
	Month            string `json:"month"`
	RentAmount       string `json:"rent_amount"`
	SubsidyAward     string `json:"subsidy_award"`
	SubsidyReceived  string `json:"subsidy_received"`
	ClientObligation string `json:"client_obligation"`
	ClientPaid       string `json:"client_paid"`
	ElectricityFee   string `json:"electricity_fee"`
	AdminFee         string `json:"admin_fee"`
	RentLateFee      string `json:"rent_late_fee"`
	Notes            string `json:"notes"`
}

func (s *Server) CreateContribution(c *gin.Context) {
	var req createContributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	clientID, err := parseSnowflakeParam(req.ClientID)
	if err != nil {
		AbortWithError(c, newValidationError("client_id", "invalid_client_id", "invalid client_id"))
		return
	}

	amounts := make(map[string]decimal.Decimal, 8)
	for _, field := range []struct {
		name  string
		value string
	}{
		{"rent_amount", req.RentAmount},
		{"subsidy_award", req.SubsidyAward},
		{"subsidy_received", req.SubsidyReceived},
		{"client_obligation", req.ClientObligation},
		{"client_paid", req.ClientPaid},
		{"electricity_fee", req.ElectricityFee},
		{"admin_fee", req.AdminFee},
		{"rent_late_fee", req.RentLateFee},
	} {
		value := field.value
		if strings.TrimSpace(value) == "" {
			value = "0"
		}
		amount, err := parseAmount(value)
		if err != nil {
			AbortWithError(c, newValidationError(field.name, "invalid_amount", "invalid "+field.name))
			return
		}
		amounts[field.name] = amount
	}

	record, err := s.contributionSvc.CreateRecord(c.Request.Context(), contributiondomain.CreateRecordRequest{
		ClientID:         clientID,
		Month:            req.Month,
		RentAmount:       amounts["rent_amount"],
		SubsidyAward:     amounts["subsidy_award"],
		SubsidyReceived:  amounts["subsidy_received"],
		ClientObligation: amounts["client_obligation"],
		ClientPaid:       amounts["client_paid"],
		ElectricityFee:   amounts["electricity_fee"],
		AdminFee:         amounts["admin_fee"],
		RentLateFee:      amounts["rent_late_fee"],
		Notes:            req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

type updateContributionRequest struct {
	RentAmount       *string `json:"rent_amount"`
	SubsidyAward     *string `json:"subsidy_award"`
	SubsidyReceived  *string `json:"subsidy_received"`
	ClientObligation *string `json:"client_obligation"`
	ClientPaid       *string `json:"client_paid"`
	ElectricityFee   *string `json:"electricity_fee"`
	AdminFee         *string `json:"admin_fee"`
	RentLateFee      *string `json:"rent_late_fee"`
	Notes            *string `json:"notes"`
}

func (s *Server) UpdateContribution(c *gin.Context) {
	id, err := parseSnowflakeParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid record id"))
		return
	}

	var req updateContributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := contributiondomain.UpdateRecordRequest{Notes: req.Notes}
	for _, field := range []struct {
		name string
		src  *string
		dst  **decimal.Decimal
	}{
		{"rent_amount", req.RentAmount, &update.RentAmount},
		{"subsidy_award", req.SubsidyAward, &update.SubsidyAward},
		{"subsidy_received", req.SubsidyReceived, &update.SubsidyReceived},
		{"client_obligation", req.ClientObligation, &update.ClientObligation},
		{"client_paid", req.ClientPaid, &update.ClientPaid},
		{"electricity_fee", req.ElectricityFee, &update.ElectricityFee},
		{"admin_fee", req.AdminFee, &update.AdminFee},
		{"rent_late_fee", req.RentLateFee, &update.RentLateFee},
	} {
		amount, err := parseOptionalAmount(field.src)
		if err != nil {
			AbortWithError(c, newValidationError(field.name, "invalid_amount", "invalid "+field.name))
			return
		}
		*field.dst = amount
	}

	record, err := s.contributionSvc.UpdateRecord(c.Request.Context(), id, update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) GetContribution(c *gin.Context) {
	id, err := parseSnowflakeParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid record id"))
		return
	}

	record, err := s.contributionSvc.GetRecord(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) ListContributions(c *gin.Context) {
	var query struct {
		ClientID string `form:"client_id"`
		Month    string `form:"month"`
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

	records, err := s.contributionSvc.ListRecords(c.Request.Context(), sc, contributiondomain.ListRecordsRequest{
		ClientID: clientID,
		Month:    strings.TrimSpace(query.Month),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (s *Server) GetMonthlyTotal(c *gin.Context) {
	sc, err := scopeFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	month := strings.TrimSpace(c.Query("month"))
	total, err := s.contributionSvc.MonthlyTotal(c.Request.Context(), sc, month)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"month": month, "total": total})
}

func (s *Server) GetRunningTotal(c *gin.Context) {
	sc, err := scopeFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	total, err := s.contributionSvc.RunningTotal(c.Request.Context(), sc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"total": total})
}
