package service

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/cropchain/internal/core/domain"
)

func TestReserve(t *testing.T) {
	store := newMemStore()
	ledger := NewInventoryLedger(store, zerolog.Nop())
	p := store.addProduct(7, 3)

	_, err := ledger.Reserve(context.Background(), p.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = ledger.Reserve(context.Background(), p.ID, 4)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 3, store.quantity(p.ID))

	res, err := ledger.Reserve(context.Background(), p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, "7", res.UnitPrice.String())
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, 0, store.quantity(p.ID))

	_, err = ledger.Reserve(context.Background(), p.ID, 1)
	assert.ErrorIs(t, err, domain.ErrOutOfStock)

	_, err = ledger.Reserve(context.Background(), 999, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidProduct)
}

func TestRelease_Idempotent(t *testing.T) {
	store := newMemStore()
	ledger := NewInventoryLedger(store, zerolog.Nop())
	p := store.addProduct(1, 10)

	res, err := ledger.Reserve(context.Background(), p.ID, 4)
	require.NoError(t, err)

	require.NoError(t, ledger.Release(context.Background(), res))
	require.NoError(t, ledger.Release(context.Background(), res))
	assert.Equal(t, 10, store.quantity(p.ID))

	assert.Error(t, ledger.Release(context.Background(), domain.Reservation{ProductID: p.ID, Quantity: 1}))
}

func TestRelease_FailureCanRetry(t *testing.T) {
	store := newMemStore()
	ledger := NewInventoryLedger(store, zerolog.Nop())
	p := store.addProduct(1, 10)

	res, err := ledger.Reserve(context.Background(), p.ID, 4)
	require.NoError(t, err)

	store.failRelease[p.ID] = errInjected
	require.ErrorIs(t, ledger.Release(context.Background(), res), errInjected)
	assert.Equal(t, 6, store.quantity(p.ID))

	delete(store.failRelease, p.ID)
	require.NoError(t, ledger.Release(context.Background(), res))
	assert.Equal(t, 10, store.quantity(p.ID))
}

func TestRelease_DeletedProduct(t *testing.T) {
	store := newMemStore()
	ledger := NewInventoryLedger(store, zerolog.Nop())
	p := store.addProduct(1, 10)

	res, err := ledger.Reserve(context.Background(), p.ID, 4)
	require.NoError(t, err)
	require.NoError(t, store.DeleteProduct(context.Background(), p.ID))

	assert.NoError(t, ledger.Release(context.Background(), res))
}

func TestLedger_ConcurrentReserveRelease(t *testing.T) {
	store := newMemStore()
	ledger := NewInventoryLedger(store, zerolog.Nop())
	p := store.addProduct(1, 100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := ledger.Reserve(context.Background(), p.ID, 1)
			if err != nil {
				return
			}
			_ = ledger.Release(context.Background(), res)
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, store.quantity(p.ID))
}

func TestRestock(t *testing.T) {
	store := newMemStore()
	ledger := NewInventoryLedger(store, zerolog.Nop())
	p := store.addProduct(1, 0)

	assert.ErrorIs(t, ledger.Restock(context.Background(), p.ID, 0), domain.ErrInvalidQuantity)
	require.NoError(t, ledger.Restock(context.Background(), p.ID, 12))
	assert.Equal(t, 12, store.quantity(p.ID))
}
