package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventhub/internal/repository"
)

// FriendHandler manages connections between users.  A CONNECTED pair
// grants access to the other side's private events.
type FriendHandler struct {
	Friends *repository.FriendshipRepo
	Users   *repository.UserRepo
}

// List returns the caller's friendships in both directions.
func (h *FriendHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	out, err := h.Friends.ListForUser(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Request sends a friend request to :user_id.
func (h *FriendHandler) Request(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	target, err := pathID(c, "user_id")
	if err != nil {
		return respondError(c, err)
	}
	if target == uid {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot send a friend request to yourself"})
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, target); err != nil {
		return respondError(c, err)
	}
	f, err := h.Friends.Request(ctx, uid, target)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, f)
}

// Accept connects the caller with :user_id, who sent the request.
func (h *FriendHandler) Accept(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	requester, err := pathID(c, "user_id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Friends.Accept(ctx, requester, uid); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes the friendship with :user_id in either direction.
func (h *FriendHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	other, err := pathID(c, "user_id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Friends.Delete(ctx, uid, other); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
