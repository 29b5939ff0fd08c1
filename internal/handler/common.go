// Package handler contains the echo handlers of the HTTP API.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventhub/internal/middleware"
	"github.com/iliyamo/eventhub/internal/repository"
	"github.com/iliyamo/eventhub/internal/service"
)

const requestTimeout = 5 * time.Second

// reqContext bounds the request context for store and broker calls.
func reqContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// getUserID extracts the user_id stored by the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// queryID parses a positive numeric query parameter.
func queryID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.QueryParam(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" query parameter is required")
	}
	return id, nil
}

// bindValid binds the body into v and runs the registered validator.
func bindValid(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	return c.Validate(v)
}

// respondError writes the JSON error response for err.
func respondError(c echo.Context, err error) error {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		c.Set(middleware.HandlerErrorKey, err)
	}
	return c.JSON(status, body)
}

// errorResponse maps service and repository errors to a status and a
// response body.
func errorResponse(err error) (int, any) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(echo.Map); ok {
			return he.Code, m
		}
		return he.Code, echo.Map{"error": he.Message}
	}

	var bought *service.AlreadyPurchasedError
	if errors.As(err, &bought) {
		return http.StatusBadRequest, echo.Map{"message": bought.Error(), "bought_property": bought}
	}
	if service.IsBusinessRule(err) {
		return http.StatusBadRequest, echo.Map{"error": err.Error()}
	}

	switch {
	case errors.Is(err, service.ErrForbidden), errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, echo.Map{"error": "you do not have access to this endpoint"}
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, repository.ErrSessionNotFound),
		errors.Is(err, repository.ErrWorkshopNotFound),
		errors.Is(err, repository.ErrDiscountNotFound),
		errors.Is(err, repository.ErrFriendshipNotFound),
		errors.Is(err, repository.ErrOperatorNotFound):
		return http.StatusNotFound, echo.Map{"error": err.Error()}
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, echo.Map{"error": "resource is in use"}
	case errors.Is(err, repository.ErrEmailExists),
		errors.Is(err, repository.ErrCodeExists),
		errors.Is(err, repository.ErrDuplicateEntry):
		return http.StatusConflict, echo.Map{"error": err.Error()}
	case errors.Is(err, repository.ErrCapacityExceeded),
		errors.Is(err, repository.ErrDiscountExhausted),
		errors.Is(err, repository.ErrBudgetExceeded):
		return http.StatusConflict, echo.Map{"error": err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, echo.Map{"error": "request timed out"}
	}
	return http.StatusInternalServerError, echo.Map{"error": "internal error"}
}
