package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smart-parking/internal/dto"
	"github.com/iliyamo/smart-parking/internal/service"
)

// WalletHandler exposes the caller's own wallet only.
type WalletHandler struct {
	ledger *service.Ledger
}

func NewWalletHandler(ledger *service.Ledger) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

func (h *WalletHandler) Balance(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	w, err := h.ledger.GetOrCreateWallet(ctx, uid)
	if err != nil {
		return err
	}
	return ok(c, dto.FromWallet(w))
}

func (h *WalletHandler) TopUp(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req dto.TopUpRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.ledger.TopUp(ctx, uid, req.AmountCents)
	if err != nil {
		return err
	}
	return done(c, dto.FromTransaction(t), "Wallet topped up successfully")
}

func (h *WalletHandler) Transactions(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	page := queryInt(c, "page", 1)
	size := queryInt(c, "limit", service.DefaultTransactionPage)
	ctx, cancel := reqCtx(c)
	defer cancel()

	ts, err := h.ledger.Transactions(ctx, uid, page, size)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"transactions": dto.FromTransactions(ts), "page": page})
}

// Verify replays the caller's history against the stored balance.
func (h *WalletHandler) Verify(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	a, err := h.ledger.Verify(ctx, uid)
	if err != nil {
		return err
	}
	return ok(c, dto.FromAudit(a))
}
