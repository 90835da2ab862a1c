package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

// CreditHandler exposes the caller's ledger and the admin ledger operations.
type CreditHandler struct {
	service ports.LedgerService
}

func NewCreditHandler(service ports.LedgerService) *CreditHandler {
	return &CreditHandler{service: service}
}

// Balance returns the caller's current credit balance.
//
// @Summary      Credit balance
// @Tags         credits
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  balanceResponse
// @Failure      401  {object}  errorResponse
// @Router       /v1/credits [get]
func (h *CreditHandler) Balance(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	balance, err := h.service.Balance(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, balanceResponse{Balance: balance})
}

// Transactions returns the caller's credit history, newest first.
//
// @Summary      Credit history
// @Tags         credits
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Page size (default 20, max 100)"
// @Success      200    {object}  listTransactionsResponse
// @Failure      401    {object}  errorResponse
// @Router       /v1/credits/transactions [get]
func (h *CreditHandler) Transactions(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	page, limit, err := pageParams(c)
	if err != nil {
		return err
	}

	result, err := h.service.Transactions(c.Request().Context(), uid, page, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTransactionsResponse(result))
}

// Grant credits or debits a user's balance outside of generation billing.
//
// @Summary      Grant or adjust credits
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string        true  "User ID"
// @Param        body  body      grantRequest  true  "Grant"
// @Success      200   {object}  grantResponse
// @Failure      400   {object}  errorResponse
// @Failure      402   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /v1/admin/users/{id}/credits [post]
func (h *CreditHandler) Grant(c echo.Context) error {
	var req grantRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	target := c.Param("id")
	res, err := h.service.Grant(c.Request().Context(), ports.GrantInput{
		UserID:      target,
		Amount:      req.Amount,
		Type:        domain.TransactionType(req.Type),
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, grantResponse{UserID: target, Balance: res.NewBalance, TransactionID: res.TransactionID})
}

// Verify checks that a user's balance equals the sum of their transactions.
// An inconsistent ledger is frozen and reported with 423.
//
// @Summary      Verify a user's ledger
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  ledgerReportResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      423  {object}  ledgerReportResponse
// @Router       /v1/admin/users/{id}/ledger/verify [post]
func (h *CreditHandler) Verify(c echo.Context) error {
	report, err := h.service.Verify(c.Request().Context(), c.Param("id"))
	if err != nil && (report == nil || !errors.Is(err, domain.ErrLedgerInconsistency)) {
		return err
	}

	status := http.StatusOK
	if !report.Consistent {
		status = http.StatusLocked
	}
	return c.JSON(status, toLedgerReportResponse(report))
}
