package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventhub/internal/model"
	"github.com/iliyamo/eventhub/internal/service"
)

// Registrar turns a registration request into a stored invoice.
type Registrar interface {
	Register(ctx context.Context, req service.RegistrationRequest) (*model.Invoice, error)
}

// InvoiceFinder lists the invoices of a user.
type InvoiceFinder interface {
	ListByOwner(ctx context.Context, userID uint64) ([]*model.Invoice, error)
}

// RegistrationHandler serves the client side of event registration.
type RegistrationHandler struct {
	Registrar Registrar
	Invoices  InvoiceFinder
}

type registerEventReq struct {
	Session      bool     `json:"session"`
	Workshops    []uint64 `json:"workshops" validate:"omitempty,max=100,dive,gt=0"`
	DiscountCode string   `json:"discount_code" validate:"omitempty,max=64"`
}

// Register buys the session and/or workshops of :event_id for the
// caller and returns the invoice.
func (h *RegistrationHandler) Register(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return respondError(c, err)
	}
	var req registerEventReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	inv, err := h.Registrar.Register(ctx, service.RegistrationRequest{
		UserID:       uid,
		EventID:      eventID,
		Session:      req.Session,
		WorkshopIDs:  req.Workshops,
		DiscountCode: strings.TrimSpace(req.DiscountCode),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, inv)
}

// ListInvoices returns the caller's invoices, newest first.
func (h *RegistrationHandler) ListInvoices(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	out, err := h.Invoices.ListByOwner(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	if out == nil {
		out = []*model.Invoice{}
	}
	return c.JSON(http.StatusOK, out)
}
