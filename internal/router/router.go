// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventhub/internal/handler"
	"github.com/iliyamo/eventhub/internal/middleware"
	"github.com/iliyamo/eventhub/internal/model"
)

// Handlers bundles every handler the API exposes.
type Handlers struct {
	Health       *handler.HealthHandler
	Auth         *handler.AuthHandler
	Friends      *handler.FriendHandler
	Events       *handler.EventHandler
	Discounts    *handler.DiscountHandler
	Registration *handler.RegistrationHandler
	Sessions     *handler.SessionHandler
	Workshops    *handler.WorkshopHandler
	Operators    *handler.OperatorHandler
	Agenda       *handler.AgendaHandler
}

// Options carries route-level middleware built by the caller.  Nil
// entries are skipped.
type Options struct {
	JWTSecret  string
	RateLimit  echo.MiddlewareFunc
	EventCache echo.MiddlewareFunc
}

// Register wires all routes onto e.
func Register(e *echo.Echo, h Handlers, opts Options) {
	RegisterRoutes(e, h.Health)
	RegisterAuth(e, h.Auth, opts)

	api := e.Group("/api", protected(opts)...)
	RegisterFriends(api, h.Friends)
	RegisterEvents(api, h, opts)
	RegisterSchedule(api, h.Sessions, h.Workshops)
}

// RegisterRoutes registers routes that need no authentication.
func RegisterRoutes(e *echo.Echo, health *handler.HealthHandler) {
	e.GET("/healthz", health.Health)
}

// RegisterAuth registers password and OTP authentication.  Token
// issuing routes are rate limited.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, opts Options) {
	g := e.Group("/api/auth", optional(opts.RateLimit)...)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/otp/request", a.RequestOTP)
	g.POST("/otp/verify", a.VerifyOTP)

	auth := e.Group("/api", protected(opts)...)
	auth.POST("/auth/logout", a.Logout)
	auth.GET("/users/me", a.Me)
}

// RegisterFriends registers connection management.
func RegisterFriends(g *echo.Group, f *handler.FriendHandler) {
	g.GET("/friends", f.List)
	g.POST("/friends/:user_id", f.Request)
	g.PATCH("/friends/:user_id/accept", f.Accept)
	g.DELETE("/friends/:user_id", f.Delete)
}

// RegisterEvents registers event management, operators, discounts, the
// personal agenda and the client registration flow.
func RegisterEvents(g *echo.Group, h Handlers, opts Options) {
	ev, d, r, op := h.Events, h.Discounts, h.Registration, h.Operators

	g.GET("/events", ev.ListPublished)
	g.POST("/events", ev.Create)
	g.POST("/events/cost", ev.Cost)
	g.GET("/events/client", ev.ListMine)
	g.GET("/events/:event_id", ev.Get, optional(opts.EventCache)...)
	g.PATCH("/events/:event_id", ev.Update)
	g.POST("/events/:event_id/publish", ev.Publish)
	g.DELETE("/events/:event_id", ev.Delete)

	g.POST("/events/admin/:event_id", ev.AddAdmin)
	g.GET("/events/admin/:event_id", ev.ListAdmins)
	g.DELETE("/events/admin/:event_id", ev.RemoveAdmin)
	g.GET("/events/participants/:event_id", ev.Participants)

	g.POST("/events/speaker/:event_id", op.AddSpeaker)
	g.DELETE("/events/speaker/:event_id", op.RemoveSpeaker)
	g.POST("/events/teacher/:event_id", op.AddTeacher)
	g.DELETE("/events/teacher/:event_id", op.RemoveTeacher)

	g.POST("/events/schedule/:event_id", h.Agenda.Replace)
	g.GET("/events/schedule/:event_id", h.Agenda.List)

	g.POST("/events/discount/:event_id", d.Create)
	g.GET("/events/discount/:event_id", d.List)
	g.POST("/events/discount/:event_id/:code", d.CodeAvailable)
	g.PATCH("/events/discount/:event_id/:code", d.Update)
	g.DELETE("/events/discount/:event_id/:code", d.Delete)

	client := g.Group("/events/client")
	client.POST("/discount/:event_id", d.ValidateCode)
	client.POST("/register/:event_id", r.Register, optional(opts.RateLimit)...)
	client.GET("/invoices", r.ListInvoices)
	client.GET("/speaker/:event_id", op.ListSpeakers)
	client.GET("/teacher/:event_id", op.ListTeachers)
}

// RegisterSchedule registers sessions, workshops and their financial
// settings.
func RegisterSchedule(g *echo.Group, s *handler.SessionHandler, w *handler.WorkshopHandler) {
	g.POST("/sessions", s.Create)
	g.GET("/sessions", s.List)
	g.GET("/sessions/:session_id", s.Get)
	g.PUT("/sessions/:session_id", s.Update)
	g.DELETE("/sessions/:session_id", s.Delete)
	g.PATCH("/sessions/settings/:event_id", s.SetFinancial)
	g.DELETE("/sessions/settings/discount/:event_id", s.ClearDiscount)

	g.POST("/workshops", w.Create)
	g.GET("/workshops", w.List)
	g.GET("/workshops/:workshop_id", w.Get)
	g.PUT("/workshops/:workshop_id", w.Update)
	g.DELETE("/workshops/:workshop_id", w.Delete)
	g.PATCH("/workshops/settings/:workshop_id", w.SetFinancial)
	g.DELETE("/workshops/settings/discount/:workshop_id", w.ClearDiscount)
}

func protected(opts Options) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.JWTAuth(opts.JWTSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	}
}

func optional(m echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if m == nil {
		return nil
	}
	return []echo.MiddlewareFunc{m}
}
