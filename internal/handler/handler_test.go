package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/eventhub/internal/config"
	"github.com/iliyamo/eventhub/internal/middleware"
	"github.com/iliyamo/eventhub/internal/model"
	"github.com/iliyamo/eventhub/internal/queue"
	"github.com/iliyamo/eventhub/internal/repository"
	"github.com/iliyamo/eventhub/internal/service"
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = middleware.NewValidator()
	return e
}

// newCtx builds a request context for an authenticated user with the
// given path parameters (name, value pairs).
func newCtx(e *echo.Echo, method, body string, uid uint64, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if uid != 0 {
		c.Set("user_id", float64(uid))
	}
	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"http error", echo.NewHTTPError(http.StatusBadRequest, "bad"), http.StatusBadRequest},
		{"business rule", fmt.Errorf("wrapped: %w", service.ErrNotEnoughTime), http.StatusBadRequest},
		{"sold out", service.ErrSoldOut, http.StatusBadRequest},
		{"forbidden", service.ErrForbidden, http.StatusForbidden},
		{"repo forbidden", repository.ErrForbidden, http.StatusForbidden},
		{"event not found", repository.ErrEventNotFound, http.StatusNotFound},
		{"discount not found", repository.ErrDiscountNotFound, http.StatusNotFound},
		{"in use", repository.ErrConflict, http.StatusConflict},
		{"email taken", repository.ErrEmailExists, http.StatusConflict},
		{"code taken", repository.ErrCodeExists, http.StatusConflict},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := errorResponse(tt.err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestRespondError_HidesInternalErrors(t *testing.T) {
	e := newEcho()
	c, rec := newCtx(e, http.MethodGet, "", 1)

	require.NoError(t, respondError(c, errors.New("dsn user:pass@tcp")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pass")
	assert.NotNil(t, c.Get(middleware.HandlerErrorKey))
}

func TestGetUserID(t *testing.T) {
	e := newEcho()
	for _, v := range []any{uint64(7), 7, int64(7), float64(7), "7"} {
		c, _ := newCtx(e, http.MethodGet, "", 0)
		c.Set("user_id", v)
		id, err := getUserID(c)
		require.NoError(t, err, "%T", v)
		assert.Equal(t, uint64(7), id)
	}
	c, _ := newCtx(e, http.MethodGet, "", 0)
	_, err := getUserID(c)
	assert.Error(t, err)
}

type registrarFunc func(ctx context.Context, req service.RegistrationRequest) (*model.Invoice, error)

func (f registrarFunc) Register(ctx context.Context, req service.RegistrationRequest) (*model.Invoice, error) {
	return f(ctx, req)
}

type invoiceFinderFunc func(ctx context.Context, userID uint64) ([]*model.Invoice, error)

func (f invoiceFinderFunc) ListByOwner(ctx context.Context, userID uint64) ([]*model.Invoice, error) {
	return f(ctx, userID)
}

func TestRegistrationHandler_Register(t *testing.T) {
	var got service.RegistrationRequest
	h := &RegistrationHandler{Registrar: registrarFunc(func(_ context.Context, req service.RegistrationRequest) (*model.Invoice, error) {
		got = req
		return &model.Invoice{ID: 1, Reference: "r-1", TotalCost: 900, IsPaid: true}, nil
	})}
	e := newEcho()
	c, rec := newCtx(e, http.MethodPost, `{"session":true,"workshops":[3,4],"discount_code":" EARLY "}`, 42, "event_id", "9")

	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, service.RegistrationRequest{
		UserID: 42, EventID: 9, Session: true, WorkshopIDs: []uint64{3, 4}, DiscountCode: "EARLY",
	}, got)
	body := decode(t, rec)
	assert.Equal(t, "r-1", body["reference"])
	assert.Equal(t, float64(900), body["total_cost"])
}

func TestRegistrationHandler_RegisterErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		params []string
		err    error
		status int
		check  func(t *testing.T, body map[string]any)
	}{
		{
			name: "already purchased", body: `{"workshops":[3]}`, params: []string{"event_id", "9"},
			err: &service.AlreadyPurchasedError{Workshops: []uint64{3}}, status: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				bought := body["bought_property"].(map[string]any)
				assert.Equal(t, []any{float64(3)}, bought["workshops"])
				assert.Equal(t, false, bought["session"])
				assert.Contains(t, body["message"], "already bought")
			},
		},
		{
			name: "admin", body: `{"session":true}`, params: []string{"event_id", "9"},
			err: service.ErrAdminCannotRegister, status: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, service.ErrAdminCannotRegister.Error(), body["error"])
			},
		},
		{
			name: "missing event", body: `{"session":true}`, params: []string{"event_id", "9"},
			err: repository.ErrEventNotFound, status: http.StatusNotFound,
		},
		{
			name: "bad event id", body: `{"session":true}`, params: []string{"event_id", "x"},
			status: http.StatusBadRequest,
		},
		{
			name: "zero workshop id", body: `{"workshops":[0]}`, params: []string{"event_id", "9"},
			status: http.StatusUnprocessableEntity,
		},
		{
			name: "malformed body", body: `{"workshops":"a"}`, params: []string{"event_id", "9"},
			status: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := &RegistrationHandler{Registrar: registrarFunc(func(context.Context, service.RegistrationRequest) (*model.Invoice, error) {
				called = true
				return nil, tt.err
			})}
			c, rec := newCtx(newEcho(), http.MethodPost, tt.body, 42, tt.params...)

			require.NoError(t, h.Register(c))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.err != nil, called)
			if tt.check != nil {
				tt.check(t, decode(t, rec))
			}
		})
	}
}

func TestRegistrationHandler_RequiresUser(t *testing.T) {
	h := &RegistrationHandler{}
	c, rec := newCtx(newEcho(), http.MethodPost, `{}`, 0, "event_id", "1")
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegistrationHandler_ListInvoicesNeverNull(t *testing.T) {
	h := &RegistrationHandler{Invoices: invoiceFinderFunc(func(_ context.Context, uid uint64) ([]*model.Invoice, error) {
		assert.Equal(t, uint64(5), uid)
		return nil, nil
	})}
	c, rec := newCtx(newEcho(), http.MethodGet, "", 5)
	require.NoError(t, h.ListInvoices(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestEventHandler_Cost(t *testing.T) {
	h := &EventHandler{}
	c, rec := newCtx(newEcho(), http.MethodPost,
		`{"session":{"active":true,"max_participants":100,"hours":3},"workshop":{"active":true,"max_participants":20,"hours":5}}`, 1)

	require.NoError(t, h.Cost(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"session_cost":300,"workshop_cost":100}`, rec.Body.String())
}

func TestEventHandler_CreateValidation(t *testing.T) {
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	tests := map[string]struct {
		body   string
		status int
	}{
		"active property without hours": {
			body: fmt.Sprintf(`{"name":"Go","starts_at":%q,"ends_at":%q,"properties":{"session":{"active":true,"max_participants":10,"hours":0}}}`,
				start.Format(time.RFC3339), start.Add(time.Hour).Format(time.RFC3339)),
			status: http.StatusUnprocessableEntity,
		},
		"ends before start": {
			body: fmt.Sprintf(`{"name":"Go","starts_at":%q,"ends_at":%q}`,
				start.Format(time.RFC3339), start.Add(-time.Hour).Format(time.RFC3339)),
			status: http.StatusUnprocessableEntity,
		},
		"bad privacy": {
			body: fmt.Sprintf(`{"name":"Go","privacy":"SECRET","starts_at":%q,"ends_at":%q}`,
				start.Format(time.RFC3339), start.Add(time.Hour).Format(time.RFC3339)),
			status: http.StatusUnprocessableEntity,
		},
		"missing name": {
			body: fmt.Sprintf(`{"starts_at":%q,"ends_at":%q}`,
				start.Format(time.RFC3339), start.Add(time.Hour).Format(time.RFC3339)),
			status: http.StatusUnprocessableEntity,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := &EventHandler{}
			c, rec := newCtx(newEcho(), http.MethodPost, tt.body, 1)
			require.NoError(t, h.Create(c))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestToProperty(t *testing.T) {
	p, err := toProperty(model.PropertySession, &propertyReq{Active: true, MaxParticipants: 10, Hours: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(7200), p.TotalSeconds)
	assert.True(t, p.Active)

	p, err = toProperty(model.PropertyWorkshop, nil)
	require.NoError(t, err)
	assert.False(t, p.Active)
	assert.Equal(t, model.PropertyWorkshop, p.Kind)
}

type codeValidatorFunc func(ctx context.Context, code string, eventID uint64) (service.CodeDiscount, error)

func (f codeValidatorFunc) ValidateCode(ctx context.Context, code string, eventID uint64) (service.CodeDiscount, error) {
	return f(ctx, code, eventID)
}

func TestDiscountHandler_ValidateCode(t *testing.T) {
	h := &DiscountHandler{Validator: codeValidatorFunc(func(_ context.Context, code string, eventID uint64) (service.CodeDiscount, error) {
		if code == "SPRING" && eventID == 3 {
			return service.CodeDiscount{AmountType: model.AmountTypePercentage, Amount: 10}, nil
		}
		if code == "OLD" {
			return service.CodeDiscount{}, service.ErrDiscountExpired
		}
		return service.CodeDiscount{}, service.ErrDiscountNotFound
	})}

	c, rec := newCtx(newEcho(), http.MethodPost, `{"code":" SPRING "}`, 1, "event_id", "3")
	require.NoError(t, h.ValidateCode(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"amount_type":"PERCENTAGE","amount":10}`, rec.Body.String())

	c, rec = newCtx(newEcho(), http.MethodPost, `{"code":"OLD"}`, 1, "event_id", "3")
	require.NoError(t, h.ValidateCode(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.ErrDiscountExpired.Error(), decode(t, rec)["error"])

	c, rec = newCtx(newEcho(), http.MethodPost, `{}`, 1, "event_id", "3")
	require.NoError(t, h.ValidateCode(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestFriendHandler_RequestSelf(t *testing.T) {
	h := &FriendHandler{}
	c, rec := newCtx(newEcho(), http.MethodPost, "", 4, "user_id", "4")
	require.NoError(t, h.Request(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	c, rec := newCtx(newEcho(), http.MethodGet, "", 0)
	require.NoError(t, (&HealthHandler{DB: fakePinger{}}).Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok","redis":"disabled"}`, rec.Body.String())

	c, rec = newCtx(newEcho(), http.MethodGet, "", 0)
	require.NoError(t, (&HealthHandler{DB: fakePinger{err: errors.New("down")}}).Health(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unreachable", decode(t, rec)["database"])
}

type fakeOTP struct {
	saved     map[string]string
	verifyErr error
}

func (f *fakeOTP) Save(_ context.Context, username, code string) error {
	if f.saved == nil {
		f.saved = map[string]string{}
	}
	f.saved[username] = code
	return nil
}

func (f *fakeOTP) Verify(context.Context, string, string) error { return f.verifyErr }

func (f *fakeOTP) TTL() time.Duration { return 2 * time.Minute }

type otpPublisherFunc func(ctx context.Context, ev queue.OTPRequestedEvent) error

func (f otpPublisherFunc) PublishOTPRequested(ctx context.Context, ev queue.OTPRequestedEvent) error {
	return f(ctx, ev)
}

func otpConfig() config.Config {
	var cfg config.Config
	cfg.OTP.Length = 6
	return cfg
}

func TestAuthHandler_RequestOTP(t *testing.T) {
	store := &fakeOTP{}
	var published []queue.OTPRequestedEvent
	h := &AuthHandler{Cfg: otpConfig(), OTP: store, Publisher: otpPublisherFunc(func(_ context.Context, ev queue.OTPRequestedEvent) error {
		published = append(published, ev)
		return nil
	})}

	c, rec := newCtx(newEcho(), http.MethodPost, `{"username":" Ada@Example.com "}`, 0)
	require.NoError(t, h.RequestOTP(c))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "email", decode(t, rec)["channel"])

	require.Len(t, published, 1)
	ev := published[0]
	assert.Equal(t, "EMAIL", ev.Channel)
	assert.Len(t, ev.Code, 6)
	assert.Equal(t, "ada@example.com", ev.Username)
	assert.Equal(t, store.saved["ada@example.com"], ev.Code)
	assert.NotContains(t, decode(t, rec), "code")
}

func TestAuthHandler_RequestOTPPublishFailure(t *testing.T) {
	h := &AuthHandler{Cfg: otpConfig(), OTP: &fakeOTP{}, Publisher: otpPublisherFunc(func(context.Context, queue.OTPRequestedEvent) error {
		return errors.New("broker down")
	})}
	c, rec := newCtx(newEcho(), http.MethodPost, `{"username":"+15551234567"}`, 0)
	require.NoError(t, h.RequestOTP(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthHandler_OTPWithoutRedis(t *testing.T) {
	h := &AuthHandler{Cfg: otpConfig()}
	c, rec := newCtx(newEcho(), http.MethodPost, `{"username":"a@example.com"}`, 0)
	require.NoError(t, h.RequestOTP(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	c, rec = newCtx(newEcho(), http.MethodPost, `{"username":"a@example.com","code":"123456"}`, 0)
	require.NoError(t, h.VerifyOTP(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthHandler_VerifyOTPFailures(t *testing.T) {
	tests := map[string]struct {
		err    error
		status int
	}{
		"wrong code": {repository.ErrOTPInvalid, http.StatusUnauthorized},
		"exhausted":  {repository.ErrOTPExhausted, http.StatusTooManyRequests},
		"store down": {errors.New("redis: connection refused"), http.StatusServiceUnavailable},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := &AuthHandler{Cfg: otpConfig(), OTP: &fakeOTP{verifyErr: tt.err}}
			c, rec := newCtx(newEcho(), http.MethodPost, `{"username":"a@example.com","code":"123456"}`, 0)
			require.NoError(t, h.VerifyOTP(c))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestScheduleItemGet_RequestChecks(t *testing.T) {
	e := newEcho()
	for name, get := range map[string]echo.HandlerFunc{
		"session":  (&SessionHandler{}).Get,
		"workshop": (&WorkshopHandler{}).Get,
	} {
		param := name + "_id"
		c, rec := newCtx(e, http.MethodGet, "", 0, param, "3")
		require.NoError(t, get(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)

		c, rec = newCtx(e, http.MethodGet, "", 100, param, "x")
		require.NoError(t, get(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}
