package billing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/texnika/texnika-backend/pkg/auth"
	"github.com/texnika/texnika-backend/pkg/db/models"
	"github.com/texnika/texnika-backend/pkg/enums"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
)

func userIdentity(id uuid.UUID) auth.Identity {
	return auth.Identity{UserID: id, Role: enums.UserRoleUser}
}

func (f *billingFixture) createVIPOrder(t *testing.T, owner, listingID uuid.UUID) *OrderDTO {
	t.Helper()
	order, err := f.orders.CreateOrder(context.Background(), CreateOrderInput{
		Actor: userIdentity(owner),
		Items: []OrderItemInput{{SubjectType: enums.SubjectListing, SubjectID: listingID, PlanCode: enums.PlanVIP}},
	})
	require.NoError(t, err)
	return order
}

func (f *billingFixture) activations(t *testing.T, subjectID uuid.UUID) []models.PromotionActivation {
	t.Helper()
	var rows []models.PromotionActivation
	require.NoError(t, f.db.Where("subject_id = ?", subjectID).Find(&rows).Error)
	return rows
}

func TestCreateOrderSnapshotsPlanPrices(t *testing.T) {
	f := newBillingFixture(t)
	owner := uuid.New()
	listingID := f.seedListing(t, owner)

	order, err := f.orders.CreateOrder(context.Background(), CreateOrderInput{
		Actor: userIdentity(owner),
		Items: []OrderItemInput{
			{SubjectType: enums.SubjectListing, SubjectID: listingID, PlanCode: enums.PlanVIP},
			{SubjectType: enums.SubjectListing, SubjectID: listingID, PlanCode: enums.PlanHighlight},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.PaymentProviderMock, order.Provider)
	assert.Equal(t, int64(4000), order.TotalKZT)
	require.Len(t, order.Items, 2)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(order.Metadata, &meta))
	assert.Equal(t, owner.String(), meta["createdBy"])

	require.NoError(t, f.db.Model(&models.PricingPlan{}).Where("code = ?", enums.PlanVIP).Update("price_kzt", 9999).Error)

	var items []models.OrderItem
	require.NoError(t, f.db.Where("order_id = ?", order.ID).Find(&items).Error)
	for _, item := range items {
		if item.PlanCode == enums.PlanVIP {
			assert.Equal(t, int64(3000), item.PriceKZT)
			assert.Equal(t, 14, item.DurationDays)
		}
	}
}

func TestCreateOrderRejections(t *testing.T) {
	f := newBillingFixture(t)
	owner := uuid.New()
	listingID := f.seedListing(t, owner)
	ctx := context.Background()

	require.NoError(t, f.db.Model(&models.PricingPlan{}).Where("code = ?", enums.PlanTop).Update("active", false).Error)

	tests := []struct {
		name  string
		input CreateOrderInput
		code  pkgerrors.Code
	}{
		{name: "empty items", input: CreateOrderInput{Actor: userIdentity(owner)}, code: pkgerrors.CodeValidation},
		{
			name: "inactive plan",
			input: CreateOrderInput{Actor: userIdentity(owner), Items: []OrderItemInput{
				{SubjectType: enums.SubjectListing, SubjectID: listingID, PlanCode: enums.PlanTop},
			}},
			code: pkgerrors.CodeNotFound,
		},
		{
			name: "unknown plan",
			input: CreateOrderInput{Actor: userIdentity(owner), Items: []OrderItemInput{
				{SubjectType: enums.SubjectListing, SubjectID: listingID, PlanCode: "GOLD"},
			}},
			code: pkgerrors.CodeNotFound,
		},
		{
			name: "foreign listing",
			input: CreateOrderInput{Actor: userIdentity(uuid.New()), Items: []OrderItemInput{
				{SubjectType: enums.SubjectListing, SubjectID: listingID, PlanCode: enums.PlanVIP},
			}},
			code: pkgerrors.CodeForbidden,
		},
		{
			name: "missing listing",
			input: CreateOrderInput{Actor: userIdentity(owner), Items: []OrderItemInput{
				{SubjectType: enums.SubjectListing, SubjectID: uuid.New(), PlanCode: enums.PlanVIP},
			}},
			code: pkgerrors.CodeNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.CreateOrder(ctx, tt.input)
			if !pkgerrors.IsCode(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPayOrderWithWalletActivatesVIP(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	listingID := f.seedListing(t, owner)
	f.fund(t, owner, 10000)
	order := f.createVIPOrder(t, owner, listingID)

	paid, err := f.orders.PayOrder(ctx, PayOrderInput{OrderID: order.ID, Actor: userIdentity(owner), Mode: enums.PaymentModeWallet})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	require.NotNil(t, paid.PaymentMode)
	assert.Equal(t, enums.PaymentModeWallet, *paid.PaymentMode)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(paid.Metadata, &meta))
	assert.Equal(t, owner.String(), meta["createdBy"])
	assert.Equal(t, owner.String(), meta["processedBy"])
	assert.Equal(t, "wallet", meta["paymentMode"])

	assert.Equal(t, int64(7000), f.balance(t, owner))
	activations := f.activations(t, listingID)
	require.Len(t, activations, 1)
	assert.Equal(t, enums.ActivationActive, activations[0].Status)
	assert.True(t, activations[0].ExpiresAt.Equal(f.clock.Add(14*24*time.Hour)))
	require.NotNil(t, activations[0].OrderItemID)
	assert.Equal(t, order.Items[0].ID, *activations[0].OrderItemID)

	var listing models.Listing
	require.NoError(t, f.db.First(&listing, "id = ?", listingID).Error)
	assert.Equal(t, 2.0, listing.BoostScore)
	assert.Equal(t, []uuid.UUID{listingID}, f.syncer.synced)
}

func TestPayOrderTwiceIsIdempotent(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	listingID := f.seedListing(t, owner)
	f.fund(t, owner, 10000)
	order := f.createVIPOrder(t, owner, listingID)

	input := PayOrderInput{OrderID: order.ID, Actor: userIdentity(owner), Mode: enums.PaymentModeWallet}
	first, err := f.orders.PayOrder(ctx, input)
	require.NoError(t, err)
	second, err := f.orders.PayOrder(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, enums.OrderStatusPaid, second.Status)
	assert.True(t, first.PaidAt.Equal(*second.PaidAt))
	assert.Equal(t, int64(7000), f.balance(t, owner))
	assert.Len(t, f.activations(t, listingID), 1)
	assert.Len(t, f.syncer.synced, 1)

	var debits int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Where("type = ?", enums.TransactionDebit).Count(&debits).Error)
	assert.Equal(t, int64(1), debits)
}

func TestPayOrderInsufficientFundsLeavesOrderPending(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	listingID := f.seedListing(t, owner)
	f.fund(t, owner, 1000)
	order := f.createVIPOrder(t, owner, listingID)

	_, err := f.orders.PayOrder(ctx, PayOrderInput{OrderID: order.ID, Actor: userIdentity(owner), Mode: enums.PaymentModeWallet})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds), "got %v", err)

	var stored models.Order
	require.NoError(t, f.db.First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	assert.Equal(t, int64(1000), f.balance(t, owner))
	assert.Empty(t, f.activations(t, listingID))
	assert.Empty(t, f.syncer.synced)
}

func TestPayOrderAuthorizationAndState(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	listingID := f.seedListing(t, owner)
	order := f.createVIPOrder(t, owner, listingID)

	_, err := f.orders.PayOrder(ctx, PayOrderInput{OrderID: uuid.New(), Actor: userIdentity(owner), Mode: enums.PaymentModeCard})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = f.orders.PayOrder(ctx, PayOrderInput{OrderID: order.ID, Actor: userIdentity(uuid.New()), Mode: enums.PaymentModeCard})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "got %v", err)

	_, err = f.orders.HandleMockWebhook(ctx, WebhookInput{OrderID: order.ID, Status: enums.OrderStatusCancelled})
	require.NoError(t, err)

	_, err = f.orders.PayOrder(ctx, PayOrderInput{OrderID: order.ID, Actor: userIdentity(owner), Mode: enums.PaymentModeCard})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
}

func TestPayOrderByAdminDebitsOwnerWallet(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	admin := auth.Identity{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	listingID := f.seedListing(t, owner)
	f.fund(t, owner, 5000)
	order := f.createVIPOrder(t, owner, listingID)

	_, err := f.orders.PayOrder(ctx, PayOrderInput{OrderID: order.ID, Actor: admin, Mode: enums.PaymentModeWallet})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), f.balance(t, owner))
	assert.Zero(t, f.balance(t, admin.UserID))
}

func TestPayOrderSurvivesSyncFailure(t *testing.T) {
	f := newBillingFixture(t)
	f.syncer.err = errors.New("opensearch down")
	owner := uuid.New()
	listingID := f.seedListing(t, owner)
	order := f.createVIPOrder(t, owner, listingID)

	paid, err := f.orders.PayOrder(context.Background(), PayOrderInput{OrderID: order.ID, Actor: userIdentity(owner), Mode: enums.PaymentModeCard})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, paid.Status)
	assert.Len(t, f.syncer.synced, 1)
}

func TestHandleMockWebhookTransitions(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	listingID := f.seedListing(t, owner)

	paidOrder := f.createVIPOrder(t, owner, listingID)
	paid, err := f.orders.HandleMockWebhook(ctx, WebhookInput{OrderID: paidOrder.ID, Status: enums.OrderStatusPaid})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, paid.Status)
	require.NotNil(t, paid.PaymentMode)
	assert.Equal(t, enums.PaymentModeCard, *paid.PaymentMode)
	var meta map[string]string
	require.NoError(t, json.Unmarshal(paid.Metadata, &meta))
	assert.Equal(t, "mock_psp", meta["webhook"])
	assert.Len(t, f.activations(t, listingID), 1)

	again, err := f.orders.HandleMockWebhook(ctx, WebhookInput{OrderID: paidOrder.ID, Status: enums.OrderStatusPaid})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, again.Status)
	assert.Len(t, f.activations(t, listingID), 1)

	_, err = f.orders.HandleMockWebhook(ctx, WebhookInput{OrderID: paidOrder.ID, Status: enums.OrderStatusCancelled})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	cancelled := f.createVIPOrder(t, owner, listingID)
	got, err := f.orders.HandleMockWebhook(ctx, WebhookInput{OrderID: cancelled.ID, Status: enums.OrderStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)
	require.NoError(t, json.Unmarshal(got.Metadata, &meta))
	assert.Equal(t, "CANCELLED", meta["webhook"])

	_, err = f.orders.HandleMockWebhook(ctx, WebhookInput{OrderID: cancelled.ID, Status: enums.OrderStatusCancelled})
	require.NoError(t, err)
	_, err = f.orders.HandleMockWebhook(ctx, WebhookInput{OrderID: cancelled.ID, Status: enums.OrderStatusFailed})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	failed := f.createVIPOrder(t, owner, listingID)
	got, err = f.orders.HandleMockWebhook(ctx, WebhookInput{OrderID: failed.ID, Status: enums.OrderStatusFailed})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusFailed, got.Status)
	assert.Nil(t, got.CancelledAt)

	_, err = f.orders.HandleMockWebhook(ctx, WebhookInput{OrderID: failed.ID, Status: "REFUNDED"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestListOrdersForUserNewestFirst(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	listingID := f.seedListing(t, owner)

	first := f.createVIPOrder(t, owner, listingID)
	require.NoError(t, f.db.Model(&models.Order{}).Where("id = ?", first.ID).Update("created_at", f.clock.Add(-time.Hour)).Error)
	second := f.createVIPOrder(t, owner, listingID)
	stranger := uuid.New()
	f.createVIPOrder(t, stranger, f.seedListing(t, stranger))

	orders, err := f.orders.ListOrdersForUser(ctx, owner)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
	assert.Len(t, orders[0].Items, 1)
}

func TestListActivePlansCheapestFirst(t *testing.T) {
	f := newBillingFixture(t)
	plans, err := f.pricing.ListActivePlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, enums.PlanHighlight, plans[0].Code)
	assert.Equal(t, enums.PlanVIP, plans[2].Code)
}
