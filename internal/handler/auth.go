package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/eventhub/internal/config"
	"github.com/iliyamo/eventhub/internal/model"
	"github.com/iliyamo/eventhub/internal/queue"
	"github.com/iliyamo/eventhub/internal/repository"
	"github.com/iliyamo/eventhub/internal/utils"
)

// OTPCodes stores and checks one-time login codes.
type OTPCodes interface {
	Save(ctx context.Context, username, code string) error
	Verify(ctx context.Context, username, code string) error
	TTL() time.Duration
}

// OTPPublisher hands a code over for delivery.
type OTPPublisher interface {
	PublishOTPRequested(ctx context.Context, ev queue.OTPRequestedEvent) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg       config.Config
	Users     *repository.UserRepo
	Tokens    *repository.TokenRepo
	OTP       OTPCodes     // nil when Redis is unavailable
	Publisher OTPPublisher // nil when RabbitMQ is disabled
	Log       *zap.Logger
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Mobile    string `json:"mobile" validate:"omitempty,e164"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type otpRequestReq struct {
	Username string `json:"username" validate:"required,max=255"`
}
type otpVerifyReq struct {
	Username string `json:"username" validate:"required,max=255"`
	Code     string `json:"code" validate:"required,numeric"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// Register creates a USER account and returns a token pair.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	u := &model.User{
		Email:     req.Email,
		Mobile:    strings.TrimSpace(req.Mobile),
		Role:      model.RoleUser,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	}
	if _, err := h.Users.Create(ctx, u, req.Password, h.Cfg.BcryptCost); err != nil {
		return respondError(c, err)
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies email and password and returns a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return respondError(c, err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh rotates a refresh token and returns a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := reqContext(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return respondError(c, err)
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return respondError(c, err)
	}
	next, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Tokens.Rotate(ctx, u.ID, hash, utils.HashRefreshRaw(next.Raw), next.Exp); err != nil {
		if errors.Is(err, repository.ErrInvalidRefresh) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, authResp{
		User:    userPart{ID: u.ID, Email: u.Email, Role: u.Role},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: next.Raw, Expires: next.Exp},
	})
}

// Logout revokes the refresh token in the body, or every refresh token
// of the caller when the body carries none.
func (h *AuthHandler) Logout(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req refreshReq
	_ = c.Bind(&req)

	ctx, cancel := reqContext(c)
	defer cancel()

	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		hash := utils.HashRefreshRaw(raw)
		owner, err := h.Tokens.ValidateRefresh(ctx, hash)
		if err != nil || owner != uid {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the stored profile of the caller.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// RequestOTP generates a code for an email or mobile username, stores
// it in Redis and queues it for delivery.
func (h *AuthHandler) RequestOTP(c echo.Context) error {
	if h.OTP == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "otp login is unavailable"})
	}
	var req otpRequestReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	username := normalizeUsername(req.Username)

	ctx, cancel := reqContext(c)
	defer cancel()

	code, err := utils.NewOTPCode(h.Cfg.OTP.Length)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.OTP.Save(ctx, username, code); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "otp store unavailable"})
	}

	now := time.Now().UTC()
	exp := now.Add(h.OTP.TTL())
	channel := utils.OTPChannel(username)
	if h.Publisher != nil {
		ev := queue.OTPRequestedEvent{
			Username:    username,
			Channel:     strings.ToUpper(channel),
			Code:        code,
			ExpiresAt:   exp.Format(time.RFC3339),
			RequestedAt: now.Format(time.RFC3339),
		}
		if err := h.Publisher.PublishOTPRequested(ctx, ev); err != nil {
			h.logger().Warn("otp publish failed", zap.String("username", username), zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "otp delivery unavailable"})
		}
	} else {
		h.logger().Warn("otp publisher disabled, code not delivered", zap.String("username", username))
	}
	return c.JSON(http.StatusAccepted, echo.Map{"channel": channel, "expires_at": exp})
}

// VerifyOTP checks a code and returns a token pair.  An unknown email
// gets a fresh OTP-only account; mobile numbers must already belong to
// a user.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	if h.OTP == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "otp login is unavailable"})
	}
	var req otpVerifyReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	username := normalizeUsername(req.Username)

	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.OTP.Verify(ctx, username, req.Code); err != nil {
		switch {
		case errors.Is(err, repository.ErrOTPInvalid):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
		case errors.Is(err, repository.ErrOTPExhausted):
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "otp store unavailable"})
	}

	isEmail := utils.OTPChannel(username) == "email"
	var u *model.User
	var err error
	if isEmail {
		u, err = h.Users.GetByEmail(ctx, username)
	} else {
		u, err = h.Users.GetByMobile(ctx, username)
	}
	status := http.StatusOK
	if errors.Is(err, repository.ErrUserNotFound) && isEmail {
		u = &model.User{Email: username, Role: model.RoleUser}
		if _, err = h.Users.Create(ctx, u, "", h.Cfg.BcryptCost); err == nil {
			status = http.StatusCreated
		}
	}
	if err != nil {
		return respondError(c, err)
	}
	if !u.IsActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account is disabled"})
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(status, resp)
}

// issue signs an access token and stores a fresh refresh token.
func (h *AuthHandler) issue(ctx context.Context, u *model.User) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    userPart{ID: u.ID, Email: u.Email, Role: u.Role},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}

func (h *AuthHandler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

func normalizeUsername(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "@") {
		return strings.ToLower(s)
	}
	return s
}
