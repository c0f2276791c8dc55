package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/texnika/texnika-backend/pkg/db"
	"github.com/texnika/texnika-backend/pkg/db/models"
	"github.com/texnika/texnika-backend/pkg/enums"
)

// Repository handles plan and order persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListActivePlans(ctx context.Context) ([]models.PricingPlan, error)
	FindActivePlansByCodes(ctx context.Context, codes []enums.PlanCode) ([]models.PricingPlan, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	TransitionOrder(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListActivePlans(ctx context.Context) ([]models.PricingPlan, error) {
	var plans []models.PricingPlan
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("price_kzt ASC").
		Order("created_at ASC").
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repository) FindActivePlansByCodes(ctx context.Context, codes []enums.PlanCode) ([]models.PricingPlan, error) {
	var plans []models.PricingPlan
	if err := r.db.WithContext(ctx).
		Where("code IN ? AND active = ?", codes, true).
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

// CreateOrder inserts the order and its items.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOrder(r.db.WithContext(ctx), id)
}

// FindOrderForUpdate locks the order row until the surrounding transaction ends.
func (r *repository) FindOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOrder(db.ForUpdate(r.db.WithContext(ctx)), id)
}

func (r *repository) findOrder(q *gorm.DB, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := q.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Where("id = ?", id).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// TransitionOrder applies updates only while the order is still in from.
// It reports false when another writer moved the order first.
func (r *repository) TransitionOrder(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// WalletRepository handles wallet and ledger persistence.
type WalletRepository interface {
	WithTx(tx *gorm.DB) WalletRepository
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	FindByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	CreateIfAbsent(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	AdjustBalance(ctx context.Context, walletID uuid.UUID, delta int64) (bool, error)
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]models.Transaction, error)
}

type walletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) WithTx(tx *gorm.DB) WalletRepository {
	if tx == nil {
		return r
	}
	return &walletRepository{db: tx}
}

func (r *walletRepository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *walletRepository) FindByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

// CreateIfAbsent inserts an empty wallet for userID. When a concurrent writer
// wins the unique constraint the savepoint is rolled back and their row is returned.
// Must run inside a transaction.
func (r *walletRepository) CreateIfAbsent(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	const savepoint = "create_wallet"
	wallet := &models.Wallet{ID: uuid.New(), UserID: userID}

	q := r.db.WithContext(ctx)
	if err := q.SavePoint(savepoint).Error; err != nil {
		return nil, err
	}
	if err := q.Create(wallet).Error; err != nil {
		if !db.IsUniqueViolation(err, "wallets_user_id_key") {
			return nil, err
		}
		if rbErr := q.RollbackTo(savepoint).Error; rbErr != nil {
			return nil, rbErr
		}
		return r.FindByUser(ctx, userID)
	}
	return wallet, nil
}

// AdjustBalance adds delta to the balance unless the result would go negative.
func (r *walletRepository) AdjustBalance(ctx context.Context, walletID uuid.UUID, delta int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND balance_kzt + ? >= 0", walletID, delta).
		UpdateColumns(map[string]any{
			"balance_kzt": gorm.Expr("balance_kzt + ?", delta),
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *walletRepository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *walletRepository) ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	if err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
