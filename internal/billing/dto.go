package billing

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/pkg/db/models"
	"github.com/texnika/texnika-backend/pkg/enums"
)

type PlanDTO struct {
	ID           uuid.UUID      `json:"id"`
	Code         enums.PlanCode `json:"code"`
	Title        string         `json:"title"`
	Description  *string        `json:"description"`
	PriceKZT     int64          `json:"priceKzt"`
	DurationDays int            `json:"durationDays"`
}

type OrderItemDTO struct {
	ID           uuid.UUID         `json:"id"`
	SubjectType  enums.SubjectType `json:"subjectType"`
	SubjectID    uuid.UUID         `json:"subjectId"`
	PlanCode     enums.PlanCode    `json:"planCode"`
	PriceKZT     int64             `json:"priceKzt"`
	DurationDays int               `json:"durationDays"`
	CreatedAt    time.Time         `json:"createdAt"`
}

type OrderDTO struct {
	ID          uuid.UUID             `json:"id"`
	UserID      uuid.UUID             `json:"userId"`
	Status      enums.OrderStatus     `json:"status"`
	TotalKZT    int64                 `json:"totalKzt"`
	Provider    enums.PaymentProvider `json:"provider"`
	PaymentMode *enums.PaymentMode    `json:"paymentMode"`
	Metadata    json.RawMessage       `json:"metadata"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
	PaidAt      *time.Time            `json:"paidAt"`
	CancelledAt *time.Time            `json:"cancelledAt"`
	Items       []OrderItemDTO        `json:"items"`
}

type TransactionDTO struct {
	ID        uuid.UUID             `json:"id"`
	Type      enums.TransactionType `json:"type"`
	AmountKZT int64                 `json:"amountKzt"`
	OrderID   *uuid.UUID            `json:"orderId"`
	Meta      json.RawMessage       `json:"meta"`
	CreatedAt time.Time             `json:"createdAt"`
}

type WalletDTO struct {
	ID           uuid.UUID        `json:"id"`
	UserID       uuid.UUID        `json:"userId"`
	BalanceKZT   int64            `json:"balanceKzt"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	Transactions []TransactionDTO `json:"transactions"`
}

func toPlanDTO(plan models.PricingPlan) PlanDTO {
	return PlanDTO{
		ID:           plan.ID,
		Code:         plan.Code,
		Title:        plan.Title,
		Description:  plan.Description,
		PriceKZT:     plan.PriceKZT,
		DurationDays: plan.DurationDays,
	}
}

func toOrderDTO(order *models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemDTO{
			ID:           item.ID,
			SubjectType:  item.SubjectType,
			SubjectID:    item.SubjectID,
			PlanCode:     item.PlanCode,
			PriceKZT:     item.PriceKZT,
			DurationDays: item.DurationDays,
			CreatedAt:    item.CreatedAt,
		})
	}
	return OrderDTO{
		ID:          order.ID,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalKZT:    order.TotalKZT,
		Provider:    order.Provider,
		PaymentMode: order.PaymentMode,
		Metadata:    nullableJSON(order.Metadata),
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
		PaidAt:      order.PaidAt,
		CancelledAt: order.CancelledAt,
		Items:       items,
	}
}

func toTransactionDTOs(rows []models.Transaction) []TransactionDTO {
	out := make([]TransactionDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, TransactionDTO{
			ID:        row.ID,
			Type:      row.Type,
			AmountKZT: row.AmountKZT,
			OrderID:   row.OrderID,
			Meta:      nullableJSON(row.Meta),
			CreatedAt: row.CreatedAt,
		})
	}
	return out
}

func toWalletDTO(wallet *models.Wallet, recent []models.Transaction) WalletDTO {
	return WalletDTO{
		ID:           wallet.ID,
		UserID:       wallet.UserID,
		BalanceKZT:   wallet.BalanceKZT,
		CreatedAt:    wallet.CreatedAt,
		UpdatedAt:    wallet.UpdatedAt,
		Transactions: toTransactionDTOs(recent),
	}
}

func nullableJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

// mergeMetadata overlays patch onto the stored JSON object. Existing keys are overwritten.
func mergeMetadata(raw json.RawMessage, patch map[string]any) (json.RawMessage, error) {
	merged := map[string]any{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &merged); err != nil {
			return nil, err
		}
	}
	for key, value := range patch {
		merged[key] = value
	}
	return json.Marshal(merged)
}
