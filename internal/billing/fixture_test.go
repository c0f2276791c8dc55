package billing

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/texnika/texnika-backend/internal/listings"
	"github.com/texnika/texnika-backend/internal/promotions"
	"github.com/texnika/texnika-backend/pkg/config"
	"github.com/texnika/texnika-backend/pkg/db/dbtest"
	"github.com/texnika/texnika-backend/pkg/db/models"
	"github.com/texnika/texnika-backend/pkg/enums"
	"github.com/texnika/texnika-backend/pkg/logger"
)

type fakeSyncer struct {
	mu     sync.Mutex
	synced []uuid.UUID
	err    error
}

func (f *fakeSyncer) SyncListingByID(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, id)
	return f.err
}

type billingFixture struct {
	db      *gorm.DB
	tx      dbtest.TxRunner
	clock   time.Time
	syncer  *fakeSyncer
	wallets *WalletService
	orders  *OrdersService
	pricing *PricingService
	ledger  *promotions.Service
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()
	db := dbtest.Open(t)
	f := &billingFixture{
		db:     db,
		tx:     dbtest.TxRunner{DB: db},
		clock:  time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
		syncer: &fakeSyncer{},
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	listingRepo := listings.NewRepository(db)
	access, err := listings.NewAccessChecker(listingRepo)
	require.NoError(t, err)
	ledger, err := promotions.NewService(promotions.ServiceParams{
		Repo:     promotions.NewRepository(db),
		Listings: listingRepo,
		Tx:       f.tx,
		Access:   access,
		Logger:   logg,
		Now:      func() time.Time { return f.clock },
	})
	require.NoError(t, err)
	f.ledger = ledger

	f.wallets, err = NewWalletService(NewWalletRepository(db), f.tx, config.BillingConfig{
		RecentTransactions: 25,
		TransactionsLimit:  50,
		TopUpMax:           100000000,
	}, logg)
	require.NoError(t, err)

	repo := NewRepository(db)
	f.pricing, err = NewPricingService(repo)
	require.NoError(t, err)
	f.orders, err = NewOrdersService(OrdersServiceParams{
		Repo:   repo,
		Wallet: f.wallets,
		Ledger: ledger,
		Access: access,
		Syncer: f.syncer,
		Tx:     f.tx,
		Logger: logg,
	})
	require.NoError(t, err)

	f.seedPlan(t, enums.PlanVIP, 3000, 14)
	f.seedPlan(t, enums.PlanTop, 2000, 7)
	f.seedPlan(t, enums.PlanHighlight, 1000, 7)
	return f
}

func (f *billingFixture) seedPlan(t *testing.T, code enums.PlanCode, price int64, days int) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.PricingPlan{
		ID:           uuid.New(),
		Code:         code,
		Title:        string(code),
		PriceKZT:     price,
		DurationDays: days,
		Active:       true,
	}).Error)
}

func (f *billingFixture) seedListing(t *testing.T, owner uuid.UUID) uuid.UUID {
	t.Helper()
	listing := models.Listing{
		ID:         uuid.New(),
		OwnerID:    owner,
		CategoryID: uuid.New(),
		Title:      "Автокран XCMG 25т",
		Slug:       "xcmg-25-" + uuid.NewString()[:8],
		Status:     enums.ListingStatusPublished,
		DealType:   enums.DealTypeRent,
		SellerType: enums.SellerTypePrivate,
		CreatedAt:  f.clock,
		UpdatedAt:  f.clock,
	}
	require.NoError(t, f.db.Create(&listing).Error)
	return listing.ID
}

func (f *billingFixture) fund(t *testing.T, user uuid.UUID, amount int64) {
	t.Helper()
	_, err := f.wallets.TopUp(context.Background(), user, amount)
	require.NoError(t, err)
}

func (f *billingFixture) debit(ctx context.Context, user uuid.UUID, amount int64) error {
	return f.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.wallets.Debit(ctx, tx, user, amount, uuid.New())
		return err
	})
}

func (f *billingFixture) balance(t *testing.T, user uuid.UUID) int64 {
	t.Helper()
	var wallet models.Wallet
	err := f.db.Where("user_id = ?", user).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0
	}
	require.NoError(t, err)
	return wallet.BalanceKZT
}

// ledgerSum recomputes the balance from the wallet's transaction history.
func (f *billingFixture) ledgerSum(t *testing.T, user uuid.UUID) int64 {
	t.Helper()
	var wallet models.Wallet
	require.NoError(t, f.db.Where("user_id = ?", user).First(&wallet).Error)
	var rows []models.Transaction
	require.NoError(t, f.db.Where("wallet_id = ?", wallet.ID).Find(&rows).Error)
	var sum int64
	for _, row := range rows {
		sum += row.Type.Signed(row.AmountKZT)
	}
	return sum
}
