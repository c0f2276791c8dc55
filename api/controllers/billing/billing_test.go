package billing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/api/middleware"
	billingsvc "github.com/texnika/texnika-backend/internal/billing"
	"github.com/texnika/texnika-backend/pkg/auth"
	"github.com/texnika/texnika-backend/pkg/enums"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
	"github.com/texnika/texnika-backend/pkg/logger"
)

type stubOrderService struct {
	createInput billingsvc.CreateOrderInput
	payInput    billingsvc.PayOrderInput
	listUserID  uuid.UUID
	order       *billingsvc.OrderDTO
	orders      []billingsvc.OrderDTO
	err         error
	calls       int
}

func (s *stubOrderService) CreateOrder(ctx context.Context, input billingsvc.CreateOrderInput) (*billingsvc.OrderDTO, error) {
	s.calls++
	s.createInput = input
	return s.order, s.err
}

func (s *stubOrderService) PayOrder(ctx context.Context, input billingsvc.PayOrderInput) (*billingsvc.OrderDTO, error) {
	s.calls++
	s.payInput = input
	return s.order, s.err
}

func (s *stubOrderService) ListOrdersForUser(ctx context.Context, userID uuid.UUID) ([]billingsvc.OrderDTO, error) {
	s.calls++
	s.listUserID = userID
	return s.orders, s.err
}

type stubWalletService struct {
	userID uuid.UUID
	amount int64
	limit  int
	wallet *billingsvc.WalletDTO
	txs    []billingsvc.TransactionDTO
	err    error
	calls  int
}

func (s *stubWalletService) GetWallet(ctx context.Context, userID uuid.UUID) (*billingsvc.WalletDTO, error) {
	s.calls++
	s.userID = userID
	return s.wallet, s.err
}

func (s *stubWalletService) TopUp(ctx context.Context, userID uuid.UUID, amount int64) (*billingsvc.WalletDTO, error) {
	s.calls++
	s.userID = userID
	s.amount = amount
	return s.wallet, s.err
}

func (s *stubWalletService) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]billingsvc.TransactionDTO, error) {
	s.calls++
	s.userID = userID
	s.limit = limit
	return s.txs, s.err
}

type stubPlanCatalog struct {
	plans []billingsvc.PlanDTO
}

func (s *stubPlanCatalog) ListActivePlans(ctx context.Context) ([]billingsvc.PlanDTO, error) {
	return s.plans, nil
}

type stubWebhookHandler struct {
	input billingsvc.WebhookInput
	order *billingsvc.OrderDTO
	err   error
	calls int
}

func (s *stubWebhookHandler) HandleMockWebhook(ctx context.Context, input billingsvc.WebhookInput) (*billingsvc.OrderDTO, error) {
	s.calls++
	s.input = input
	return s.order, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func authedRequest(method, target, body string, identity auth.Identity) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(middleware.WithIdentity(req.Context(), identity))
}

func withOrderParam(req *http.Request, orderID string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("orderId", orderID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func userIdentity() auth.Identity {
	return auth.Identity{UserID: uuid.New(), Role: enums.UserRoleUser}
}

func TestPlansListReturnsEmptyArray(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/plans", nil)
	rec := httptest.NewRecorder()

	PlansList(&stubPlanCatalog{}, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

func TestOrdersCreateRequiresIdentity(t *testing.T) {
	svc := &stubOrderService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/orders", strings.NewReader(`{"items":[]}`))
	rec := httptest.NewRecorder()

	OrdersCreate(svc, testLogger())(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if svc.calls != 0 {
		t.Fatalf("service should not be called")
	}
}

func TestOrdersCreateValidatesItems(t *testing.T) {
	cases := map[string]string{
		"empty items":      `{"items":[]}`,
		"bad subject type": `{"items":[{"subjectType":"DEALER","subjectId":"` + uuid.NewString() + `","planCode":"VIP"}]}`,
		"missing plan":     `{"items":[{"subjectType":"LISTING","subjectId":"` + uuid.NewString() + `"}]}`,
		"unknown field":    `{"items":[],"coupon":"FREE"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubOrderService{}
			req := authedRequest(http.MethodPost, "/api/v1/billing/orders", body, userIdentity())
			rec := httptest.NewRecorder()

			OrdersCreate(svc, testLogger())(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d: %s", rec.Code, rec.Body.String())
			}
			if svc.calls != 0 {
				t.Fatalf("service should not be called")
			}
		})
	}
}

func TestOrdersCreateReturnsCreated(t *testing.T) {
	identity := userIdentity()
	listingID := uuid.New()
	svc := &stubOrderService{order: &billingsvc.OrderDTO{ID: uuid.New(), Status: enums.OrderStatusPending, TotalKZT: 5000}}
	body := `{"items":[{"subjectType":"LISTING","subjectId":"` + listingID.String() + `","planCode":"VIP"}]}`
	req := authedRequest(http.MethodPost, "/api/v1/billing/orders", body, identity)
	rec := httptest.NewRecorder()

	OrdersCreate(svc, testLogger())(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.createInput.Actor.UserID != identity.UserID {
		t.Fatalf("actor not forwarded")
	}
	if len(svc.createInput.Items) != 1 || svc.createInput.Items[0].SubjectID != listingID || svc.createInput.Items[0].PlanCode != enums.PlanVIP {
		t.Fatalf("unexpected items %+v", svc.createInput.Items)
	}
}

func TestOrdersListUsesCallerID(t *testing.T) {
	identity := userIdentity()
	svc := &stubOrderService{}
	req := authedRequest(http.MethodGet, "/api/v1/billing/orders", "", identity)
	rec := httptest.NewRecorder()

	OrdersList(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.listUserID != identity.UserID {
		t.Fatalf("expected caller id to be used")
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

func TestOrdersPayDefaultsToWallet(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrderService{order: &billingsvc.OrderDTO{ID: orderID, Status: enums.OrderStatusPaid}}
	req := withOrderParam(authedRequest(http.MethodPost, "/api/v1/billing/orders/"+orderID.String()+"/pay", "", userIdentity()), orderID.String())
	rec := httptest.NewRecorder()

	OrdersPay(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.payInput.OrderID != orderID || svc.payInput.Mode != enums.PaymentModeWallet {
		t.Fatalf("unexpected pay input %+v", svc.payInput)
	}
}

func TestOrdersPayParsesCardMode(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrderService{order: &billingsvc.OrderDTO{ID: orderID, Status: enums.OrderStatusPending}}
	req := withOrderParam(authedRequest(http.MethodPost, "/api/v1/billing/orders/x/pay", `{"mode":"CARD"}`, userIdentity()), orderID.String())
	rec := httptest.NewRecorder()

	OrdersPay(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.payInput.Mode != enums.PaymentModeCard {
		t.Fatalf("expected card mode, got %s", svc.payInput.Mode)
	}
}

func TestOrdersPayRejectsBadInput(t *testing.T) {
	cases := []struct {
		name    string
		orderID string
		body    string
	}{
		{name: "bad order id", orderID: "nope", body: ""},
		{name: "bad mode", orderID: uuid.NewString(), body: `{"mode":"crypto"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubOrderService{}
			req := withOrderParam(authedRequest(http.MethodPost, "/api/v1/billing/orders/x/pay", tc.body, userIdentity()), tc.orderID)
			rec := httptest.NewRecorder()

			OrdersPay(svc, testLogger())(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", rec.Code)
			}
			if svc.calls != 0 {
				t.Fatalf("service should not be called")
			}
		})
	}
}

func TestOrdersPayMapsInsufficientFunds(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeInsufficientFunds, "wallet balance too low").
		WithDetails(map[string]any{"required": 5000, "balance": 100})}
	req := withOrderParam(authedRequest(http.MethodPost, "/api/v1/billing/orders/x/pay", `{"mode":"wallet"}`, userIdentity()), orderID.String())
	rec := httptest.NewRecorder()

	OrdersPay(svc, testLogger())(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d", rec.Code)
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeInsufficientFunds) || envelope.Error.Details["required"] == nil {
		t.Fatalf("unexpected error body %+v", envelope.Error)
	}
}

func TestWalletTopUpForwardsAmount(t *testing.T) {
	identity := userIdentity()
	svc := &stubWalletService{wallet: &billingsvc.WalletDTO{UserID: identity.UserID, BalanceKZT: 2500}}
	req := authedRequest(http.MethodPost, "/api/v1/billing/wallet/topup", `{"amountKzt":2500}`, identity)
	rec := httptest.NewRecorder()

	WalletTopUp(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.userID != identity.UserID || svc.amount != 2500 {
		t.Fatalf("unexpected top-up call user=%s amount=%d", svc.userID, svc.amount)
	}
}

func TestWalletTopUpRejectsNonPositiveAmount(t *testing.T) {
	for _, body := range []string{`{"amountKzt":0}`, `{"amountKzt":-5}`, `{}`} {
		svc := &stubWalletService{}
		req := authedRequest(http.MethodPost, "/api/v1/billing/wallet/topup", body, userIdentity())
		rec := httptest.NewRecorder()

		WalletTopUp(svc, testLogger())(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400 got %d", body, rec.Code)
		}
		if svc.calls != 0 {
			t.Fatalf("body %s: service should not be called", body)
		}
	}
}

func TestWalletTransactionsLimit(t *testing.T) {
	svc := &stubWalletService{}
	req := authedRequest(http.MethodGet, "/api/v1/billing/wallet/transactions", "", userIdentity())
	rec := httptest.NewRecorder()

	WalletTransactions(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.limit != defaultTransactionsLimit {
		t.Fatalf("expected default limit, got %d", svc.limit)
	}

	svc = &stubWalletService{}
	req = authedRequest(http.MethodGet, "/api/v1/billing/wallet/transactions?limit=500", "", userIdentity())
	rec = httptest.NewRecorder()

	WalletTransactions(svc, testLogger())(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out of range limit, got %d", rec.Code)
	}
}

func TestWalletGetRequiresIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/wallet", nil)
	rec := httptest.NewRecorder()

	WalletGet(&stubWalletService{}, testLogger())(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestMockPaymentWebhookNormalizesStatus(t *testing.T) {
	orderID := uuid.New()
	svc := &stubWebhookHandler{order: &billingsvc.OrderDTO{ID: orderID, Status: enums.OrderStatusPaid}}
	body := `{"orderId":"` + orderID.String() + `","status":"paid"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhooks/mock", strings.NewReader(body))
	rec := httptest.NewRecorder()

	MockPaymentWebhook(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.input.OrderID != orderID || svc.input.Status != enums.OrderStatusPaid {
		t.Fatalf("unexpected webhook input %+v", svc.input)
	}
}

func TestMockPaymentWebhookRejectsUnknownStatus(t *testing.T) {
	svc := &stubWebhookHandler{}
	body := `{"orderId":"` + uuid.NewString() + `","status":"REFUNDED"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhooks/mock", strings.NewReader(body))
	rec := httptest.NewRecorder()

	MockPaymentWebhook(svc, testLogger())(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if svc.calls != 0 {
		t.Fatalf("service should not be called")
	}
}
