package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/texnika/texnika-backend/internal/promotions"
	"github.com/texnika/texnika-backend/pkg/auth"
	"github.com/texnika/texnika-backend/pkg/db/models"
	"github.com/texnika/texnika-backend/pkg/enums"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
	"github.com/texnika/texnika-backend/pkg/logger"
)

// PromotionLedger is the slice of the promotions service used on payment.
type PromotionLedger interface {
	Activate(ctx context.Context, tx *gorm.DB, input promotions.ActivateInput) (*models.PromotionActivation, error)
	RecomputeListingBoost(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, now time.Time) (float64, error)
	RecomputeSpecialistBoost(ctx context.Context, tx *gorm.DB, specialistID uuid.UUID, now time.Time) (float64, error)
	Now() time.Time
}

type walletDebiter interface {
	Debit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int64, orderID uuid.UUID) (*models.Transaction, error)
}

// errOrderSettled aborts a payment transaction whose order was settled by a concurrent writer.
var errOrderSettled = errors.New("order settled concurrently")

type OrderItemInput struct {
	SubjectType enums.SubjectType `json:"subjectType" validate:"required,subject_type"`
	SubjectID   uuid.UUID         `json:"subjectId" validate:"required"`
	PlanCode    enums.PlanCode    `json:"planCode" validate:"required,plan_code"`
}

type CreateOrderInput struct {
	Actor auth.Identity
	Items []OrderItemInput
}

type PayOrderInput struct {
	OrderID uuid.UUID
	Actor   auth.Identity
	Mode    enums.PaymentMode
}

type WebhookInput struct {
	OrderID uuid.UUID
	Status  enums.OrderStatus
}

type subjectRef struct {
	Type enums.SubjectType
	ID   uuid.UUID
}

// OrdersService runs the promotion purchase flow.
type OrdersService struct {
	repo   Repository
	wallet walletDebiter
	ledger PromotionLedger
	access promotions.SubjectAccess
	syncer promotions.ListingSyncer
	tx     txRunner
	logg   *logger.Logger
}

type OrdersServiceParams struct {
	Repo   Repository
	Wallet walletDebiter
	Ledger PromotionLedger
	Access promotions.SubjectAccess
	Syncer promotions.ListingSyncer
	Tx     txRunner
	Logger *logger.Logger
}

func NewOrdersService(params OrdersServiceParams) (*OrdersService, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("billing repository required")
	case params.Wallet == nil:
		return nil, fmt.Errorf("wallet service required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("promotion ledger required")
	case params.Access == nil:
		return nil, fmt.Errorf("subject access checker required")
	case params.Syncer == nil:
		return nil, fmt.Errorf("listing syncer required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &OrdersService{
		repo:   params.Repo,
		wallet: params.Wallet,
		ledger: params.Ledger,
		access: params.Access,
		syncer: params.Syncer,
		tx:     params.Tx,
		logg:   params.Logger,
	}, nil
}

// CreateOrder prices each item from the active catalog and stores a PENDING order.
// Nothing is written unless every item resolves and passes the access check.
func (s *OrdersService) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error) {
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}

	codes := make([]enums.PlanCode, 0, len(input.Items))
	seen := map[enums.PlanCode]struct{}{}
	for i, item := range input.Items {
		if !item.SubjectType.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported subject type").
				WithDetails(map[string]any{"item": i, "subject_type": item.SubjectType})
		}
		if item.SubjectID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject id required").
				WithDetails(map[string]any{"item": i})
		}
		if _, ok := seen[item.PlanCode]; !ok {
			seen[item.PlanCode] = struct{}{}
			codes = append(codes, item.PlanCode)
		}
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		plans, err := repo.FindActivePlansByCodes(ctx, codes)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pricing plans")
		}
		byCode := make(map[enums.PlanCode]models.PricingPlan, len(plans))
		for _, plan := range plans {
			byCode[plan.Code] = plan
		}
		for _, code := range codes {
			if _, ok := byCode[code]; !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("pricing plan %s is not available", code))
			}
		}

		checked := map[subjectRef]struct{}{}
		for _, item := range input.Items {
			ref := subjectRef{Type: item.SubjectType, ID: item.SubjectID}
			if _, ok := checked[ref]; ok {
				continue
			}
			if err := s.access.CanMutate(ctx, tx, item.SubjectType, item.SubjectID, input.Actor); err != nil {
				return err
			}
			checked[ref] = struct{}{}
		}

		metadata, err := mergeMetadata(nil, map[string]any{"createdBy": input.Actor.UserID.String()})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode order metadata")
		}
		order := &models.Order{
			ID:       uuid.New(),
			UserID:   input.Actor.UserID,
			Status:   enums.OrderStatusPending,
			Provider: enums.PaymentProviderMock,
			Metadata: metadata,
		}
		for _, item := range input.Items {
			plan := byCode[item.PlanCode]
			order.TotalKZT += plan.PriceKZT
			order.Items = append(order.Items, models.OrderItem{
				ID:           uuid.New(),
				OrderID:      order.ID,
				SubjectType:  item.SubjectType,
				SubjectID:    item.SubjectID,
				PlanCode:     plan.Code,
				PriceKZT:     plan.PriceKZT,
				DurationDays: plan.DurationDays,
			})
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, created.ID.String())
	logCtx = s.logg.WithUserID(logCtx, input.Actor.UserID.String())
	s.logg.Info(logCtx, "order created")

	dto := toOrderDTO(created)
	return &dto, nil
}

// PayOrder settles a PENDING order. Paying a PAID order returns it unchanged.
func (s *OrdersService) PayOrder(ctx context.Context, input PayOrderInput) (*OrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment mode")
	}

	var (
		order    *models.Order
		subjects []subjectRef
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		existing, err := s.lockOrder(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		if existing.UserID != input.Actor.UserID && !input.Actor.IsPrivileged() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to pay this order")
		}
		if existing.Status == enums.OrderStatusPaid {
			order = existing
			return nil
		}
		if existing.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s and cannot be paid", existing.Status)).
				WithDetails(map[string]any{"status": existing.Status})
		}

		if input.Mode == enums.PaymentModeWallet && existing.TotalKZT > 0 {
			if _, err := s.wallet.Debit(ctx, tx, existing.UserID, existing.TotalKZT, existing.ID); err != nil {
				return err
			}
		}

		order, subjects, err = s.settle(ctx, tx, existing, input.Mode, map[string]any{
			"processedBy": input.Actor.UserID.String(),
			"paymentMode": string(input.Mode),
		})
		return err
	})
	if errors.Is(err, errOrderSettled) {
		return s.reloadSettled(ctx, input.OrderID)
	}
	if err != nil {
		return nil, err
	}

	s.resyncSubjects(ctx, subjects)
	if len(subjects) > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": order.ID.String(), "payment_mode": string(input.Mode)})
		s.logg.Info(logCtx, "order paid")
	}
	dto := toOrderDTO(order)
	return &dto, nil
}

// ListOrdersForUser returns the user's orders newest first.
func (s *OrdersService) ListOrdersForUser(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	orders, err := s.repo.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := make([]OrderDTO, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderDTO(&orders[i]))
	}
	return out, nil
}

// HandleMockWebhook applies a payment provider callback. Repeating a delivered
// status is a no-op; PAID follows the card payment path.
func (s *OrdersService) HandleMockWebhook(ctx context.Context, input WebhookInput) (*OrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var (
		order    *models.Order
		subjects []subjectRef
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		existing, err := s.lockOrder(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		if existing.Status == input.Status {
			order = existing
			return nil
		}
		if existing.Status != enums.OrderStatusPending || input.Status == enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot mark order %s from %s", input.Status, existing.Status)).
				WithDetails(map[string]any{"status": existing.Status, "requested": input.Status})
		}

		if input.Status == enums.OrderStatusPaid {
			order, subjects, err = s.settle(ctx, tx, existing, enums.PaymentModeCard, map[string]any{"webhook": "mock_psp"})
			return err
		}

		metadata, err := mergeMetadata(existing.Metadata, map[string]any{"webhook": string(input.Status)})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merge order metadata")
		}
		updates := map[string]any{"status": input.Status, "metadata": metadata}
		if input.Status == enums.OrderStatusCancelled {
			updates["cancelled_at"] = s.ledger.Now()
		}
		ok, err := s.repo.WithTx(tx).TransitionOrder(ctx, existing.ID, enums.OrderStatusPending, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
		}
		order, err = s.repo.WithTx(tx).FindOrder(ctx, existing.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if errors.Is(err, errOrderSettled) {
		return s.reloadSettled(ctx, input.OrderID)
	}
	if err != nil {
		return nil, err
	}

	s.resyncSubjects(ctx, subjects)
	logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": order.ID.String(), "status": string(order.Status)})
	s.logg.Debug(logCtx, "mock webhook processed")
	dto := toOrderDTO(order)
	return &dto, nil
}

func (s *OrdersService) lockOrder(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.WithTx(tx).FindOrderForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// settle flips the order to PAID, activates every item and recomputes the
// boost of each affected subject, all inside tx.
func (s *OrdersService) settle(ctx context.Context, tx *gorm.DB, order *models.Order, mode enums.PaymentMode, patch map[string]any) (*models.Order, []subjectRef, error) {
	metadata, err := mergeMetadata(order.Metadata, patch)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merge order metadata")
	}
	now := s.ledger.Now()
	repo := s.repo.WithTx(tx)
	ok, err := repo.TransitionOrder(ctx, order.ID, enums.OrderStatusPending, map[string]any{
		"status":       enums.OrderStatusPaid,
		"payment_mode": mode,
		"paid_at":      now,
		"metadata":     metadata,
	})
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}
	if !ok {
		return nil, nil, errOrderSettled
	}

	subjects := []subjectRef{}
	seen := map[subjectRef]struct{}{}
	for _, item := range order.Items {
		itemID := item.ID
		if _, err := s.ledger.Activate(ctx, tx, promotions.ActivateInput{
			SubjectType:  item.SubjectType,
			SubjectID:    item.SubjectID,
			PlanCode:     item.PlanCode,
			DurationDays: item.DurationDays,
			OrderItemID:  &itemID,
		}); err != nil {
			return nil, nil, err
		}
		ref := subjectRef{Type: item.SubjectType, ID: item.SubjectID}
		if _, ok := seen[ref]; !ok {
			seen[ref] = struct{}{}
			subjects = append(subjects, ref)
		}
	}

	for _, ref := range subjects {
		switch ref.Type {
		case enums.SubjectListing:
			_, err = s.ledger.RecomputeListingBoost(ctx, tx, ref.ID, now)
		case enums.SubjectSpecialist:
			_, err = s.ledger.RecomputeSpecialistBoost(ctx, tx, ref.ID, now)
		}
		if err != nil {
			return nil, nil, err
		}
	}

	updated, err := repo.FindOrder(ctx, order.ID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return updated, subjects, nil
}

// reloadSettled resolves a lost settle race: a PAID order is returned as-is.
func (s *OrdersService) reloadSettled(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindOrder(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	if order.Status != enums.OrderStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s and cannot be paid", order.Status))
	}
	dto := toOrderDTO(order)
	return &dto, nil
}

// resyncSubjects pushes paid listings to the index after commit. Failures are
// logged with enough context to replay and never fail the payment.
func (s *OrdersService) resyncSubjects(ctx context.Context, subjects []subjectRef) {
	for _, ref := range subjects {
		if ref.Type != enums.SubjectListing {
			logCtx := s.logg.WithFields(ctx, map[string]any{"specialist_id": ref.ID.String()})
			s.logg.Debug(logCtx, "specialist promotion activated; specialists are not indexed")
			continue
		}
		if err := s.syncer.SyncListingByID(ctx, ref.ID); err != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"listing_id": ref.ID.String(),
				"op":         "sync",
				"error":      err.Error(),
			})
			s.logg.Warn(logCtx, "search sync after payment failed")
		}
	}
}
