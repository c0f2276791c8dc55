package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/texnika/texnika-backend/pkg/config"
	"github.com/texnika/texnika-backend/pkg/db/models"
	"github.com/texnika/texnika-backend/pkg/enums"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
	"github.com/texnika/texnika-backend/pkg/logger"
)

const maxTransactionsLimit = 200

var (
	debitMeta = json.RawMessage(`{"reason":"order_payment","source":"wallet"}`)
	topUpMeta = json.RawMessage(`{"source":"mock_topup"}`)
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// WalletService owns balance changes. Every change writes a paired transaction row.
type WalletService struct {
	repo WalletRepository
	tx   txRunner
	cfg  config.BillingConfig
	logg *logger.Logger
}

func NewWalletService(repo WalletRepository, tx txRunner, cfg config.BillingConfig, logg *logger.Logger) (*WalletService, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.RecentTransactions <= 0 {
		cfg.RecentTransactions = 25
	}
	if cfg.TransactionsLimit <= 0 {
		cfg.TransactionsLimit = 50
	}
	return &WalletService{repo: repo, tx: tx, cfg: cfg, logg: logg}, nil
}

// GetWallet returns the caller's wallet with its most recent transactions, creating it on first access.
func (s *WalletService) GetWallet(ctx context.Context, userID uuid.UUID) (*WalletDTO, error) {
	var out WalletDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		wallet, err := s.ensureWallet(ctx, tx, userID)
		if err != nil {
			return err
		}
		recent, err := s.repo.WithTx(tx).ListTransactions(ctx, wallet.ID, s.cfg.RecentTransactions)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
		}
		out = toWalletDTO(wallet, recent)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// TopUp credits amount to the caller's wallet.
func (s *WalletService) TopUp(ctx context.Context, userID uuid.UUID, amount int64) (*WalletDTO, error) {
	if amount < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be at least 1")
	}
	if s.cfg.TopUpMax > 0 && amount > s.cfg.TopUpMax {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount exceeds top-up limit").
			WithDetails(map[string]any{"max": s.cfg.TopUpMax})
	}

	var out WalletDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.ensureWallet(ctx, tx, userID); err != nil {
			return err
		}
		wallet, err := repo.FindByUserForUpdate(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet")
		}
		if _, err := repo.AdjustBalance(ctx, wallet.ID, amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit wallet")
		}
		if err := repo.CreateTransaction(ctx, &models.Transaction{
			WalletID:  wallet.ID,
			Type:      enums.TransactionCredit,
			AmountKZT: amount,
			Meta:      topUpMeta,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record top-up")
		}

		updated, err := repo.FindByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload wallet")
		}
		recent, err := repo.ListTransactions(ctx, updated.ID, s.cfg.RecentTransactions)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
		}
		out = toWalletDTO(updated, recent)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"user_id": userID.String(), "wallet_id": out.ID.String(), "amount_kzt": amount})
	s.logg.Debug(logCtx, "wallet topped up")
	return &out, nil
}

// ListTransactions returns wallet movements newest first. limit <= 0 uses the configured default.
func (s *WalletService) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]TransactionDTO, error) {
	if limit <= 0 {
		limit = s.cfg.TransactionsLimit
	}
	if limit > maxTransactionsLimit {
		limit = maxTransactionsLimit
	}

	var out []TransactionDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		wallet, err := s.ensureWallet(ctx, tx, userID)
		if err != nil {
			return err
		}
		rows, err := s.repo.WithTx(tx).ListTransactions(ctx, wallet.ID, limit)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
		}
		out = toTransactionDTOs(rows)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Debit charges amount against the user's wallet inside tx. It fails with
// INSUFFICIENT_FUNDS and writes nothing when the balance is too low.
func (s *WalletService) Debit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int64, orderID uuid.UUID) (*models.Transaction, error) {
	if amount < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "debit amount must be positive")
	}
	repo := s.repo.WithTx(tx)
	if _, err := s.ensureWallet(ctx, tx, userID); err != nil {
		return nil, err
	}
	wallet, err := repo.FindByUserForUpdate(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet")
	}
	if wallet.BalanceKZT < amount {
		return nil, insufficientFunds(wallet.BalanceKZT, amount)
	}
	ok, err := repo.AdjustBalance(ctx, wallet.ID, -amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit wallet")
	}
	if !ok {
		return nil, insufficientFunds(wallet.BalanceKZT, amount)
	}

	txn := &models.Transaction{
		WalletID:  wallet.ID,
		Type:      enums.TransactionDebit,
		AmountKZT: amount,
		OrderID:   &orderID,
		Meta:      debitMeta,
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record debit")
	}
	return txn, nil
}

func (s *WalletService) ensureWallet(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindByUser(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	wallet, err = repo.CreateIfAbsent(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
	}
	return wallet, nil
}

func insufficientFunds(balance, amount int64) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "wallet balance too low").
		WithDetails(map[string]any{"balance_kzt": balance, "required_kzt": amount})
}
