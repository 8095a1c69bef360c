package repositories

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"aa-wallet.backend/internal/domain/entities"
	domainerrors "aa-wallet.backend/internal/domain/errors"
)

func TestUnitOfWork_DoCommitAndRollback(t *testing.T) {
	db := newLedgerDB(t)
	u := NewUnitOfWork(db)
	repo := NewAccountRepository(db)
	first := entities.NewAccount(common.HexToAddress("0x01"))
	second := entities.NewAccount(common.HexToAddress("0x02"))

	err := u.Do(context.Background(), func(ctx context.Context) error {
		return repo.Create(ctx, first)
	})
	require.NoError(t, err)

	err = u.Do(context.Background(), func(ctx context.Context) error {
		if err := repo.Create(ctx, second); err != nil {
			return err
		}
		return errors.New("force rollback")
	})
	require.Error(t, err)

	_, err = repo.GetByAddress(context.Background(), first.Address)
	require.NoError(t, err)
	_, err = repo.GetByAddress(context.Background(), second.Address)
	require.ErrorIs(t, err, domainerrors.ErrNotFound, "second insert must be rolled back")
}

func TestUnitOfWork_NestedDoReusesTransaction(t *testing.T) {
	db := newLedgerDB(t)
	u := NewUnitOfWork(db)
	repo := NewAccountRepository(db)

	err := u.Do(context.Background(), func(ctx context.Context) error {
		return u.Do(ctx, func(inner context.Context) error {
			require.Equal(t, GetDB(ctx, db), GetDB(inner, db))
			acc := entities.NewAccount(common.HexToAddress("0x03"))
			acc.Balance = big.NewInt(5)
			return repo.Create(inner, acc)
		})
	})
	require.NoError(t, err)

	got, err := repo.GetByAddress(context.Background(), common.HexToAddress("0x03"))
	require.NoError(t, err)
	require.Equal(t, int64(5), got.Balance.Int64())
}

func TestUnitOfWork_WithLockAndGetDB(t *testing.T) {
	db := newLedgerDB(t)
	u := NewUnitOfWork(db)

	ctx := u.WithLock(context.Background())
	require.NotNil(t, LockedDB(ctx, db))
	require.NotNil(t, u.GetDB(context.Background()))

	tx := db.Begin()
	txCtx := context.WithValue(context.Background(), txKey, tx)
	require.Equal(t, tx, u.GetDB(txCtx))
	tx.Rollback()

	// row locks are a no-op on sqlite but reads still work
	repo := NewAccountRepository(db)
	require.NoError(t, repo.Create(context.Background(), entities.NewAccount(common.HexToAddress("0x04"))))
	_, err := repo.GetForUpdate(ctx, common.HexToAddress("0x04"))
	require.NoError(t, err)
}

func TestUnitOfWork_DoBeginFailure(t *testing.T) {
	db := newTestDB(t)
	u := NewUnitOfWork(db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	err = u.Do(context.Background(), func(ctx context.Context) error {
		return nil
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to begin transaction")
}

func TestUnitOfWork_DoCommitFailure_WithHook(t *testing.T) {
	db := newLedgerDB(t)
	u := NewUnitOfWork(db)

	origCommit := commitTx
	t.Cleanup(func() { commitTx = origCommit })
	commitTx = func(tx *gorm.DB) error {
		return errors.New("forced commit fail")
	}

	err := u.Do(context.Background(), func(ctx context.Context) error {
		return NewAccountRepository(db).Create(ctx, entities.NewAccount(common.HexToAddress("0x05")))
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to commit transaction")
}
