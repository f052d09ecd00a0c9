package ledger_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/adboost/ledger"
	"github.com/warp/adboost/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEnforcer(t *testing.T, merchantID ledger.MerchantID, credits int64) (*ledger.Enforcer, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	mem.AddMerchant(merchantID, credits)
	return ledger.NewEnforcer(mem), mem
}

// =============================================================================
// BASIC APPLY TESTS
// =============================================================================

func TestEnforcer_ApplyDelta_CreditIncreasesBalance(t *testing.T) {
	// GIVEN: A merchant with 100 credits
	// WHEN: Applying a +300 recharge
	// THEN: Balance is 400 and the entry's BalanceAfter matches

	enforcer, mem := newTestEnforcer(t, "m-1", 100)
	ctx := context.Background()

	res, err := enforcer.ApplyDelta(ctx, "m-1", 300, ledger.TxCreditRecharge, ledger.SourceUser, "Credit recharge", "")
	require.NoError(t, err)

	assert.Equal(t, int64(400), res.NewBalance)
	assert.Equal(t, int64(300), res.Transaction.Amount)
	assert.Equal(t, int64(400), res.Transaction.BalanceAfter)

	credits, err := mem.Credits(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, int64(400), credits)
}

func TestEnforcer_ApplyDelta_DebitToExactlyZero_Allowed(t *testing.T) {
	// GIVEN: A merchant with 20 credits
	// WHEN: Debiting exactly 20
	// THEN: The debit succeeds, balance is 0

	enforcer, _ := newTestEnforcer(t, "m-1", 20)

	res, err := enforcer.ApplyDelta(context.Background(), "m-1", -20, ledger.TxAdDailyDebit, ledger.SourceSystem, "Daily charge", "ad-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.NewBalance)
}

func TestEnforcer_ApplyDelta_InsufficientCredits_NoSideEffects(t *testing.T) {
	// GIVEN: A merchant with 15 credits
	// WHEN: Debiting 20
	// THEN: InsufficientCreditsError, balance unchanged, no ledger entry

	enforcer, mem := newTestEnforcer(t, "m-1", 15)
	ctx := context.Background()

	_, err := enforcer.ApplyDelta(ctx, "m-1", -20, ledger.TxAdActivate, ledger.SourceUser, "Activate", "ad-1")

	var insufficientErr *ledger.InsufficientCreditsError
	require.ErrorAs(t, err, &insufficientErr)
	assert.Equal(t, int64(15), insufficientErr.Available)
	assert.Equal(t, int64(20), insufficientErr.Requested)
	assert.ErrorIs(t, err, ledger.ErrInsufficientCredits)

	credits, err := mem.Credits(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), credits, "balance must be untouched")

	txs, err := mem.ListFor(ctx, "m-1")
	require.NoError(t, err)
	assert.Empty(t, txs, "no transaction may be recorded for a rejected debit")
}

func TestEnforcer_ApplyDelta_UnknownMerchant_NotFound(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Applying any delta
	// THEN: MerchantNotFound

	enforcer := ledger.NewEnforcer(store.NewMemory())

	_, err := enforcer.ApplyDelta(context.Background(), "ghost", 10, ledger.TxCreditRecharge, ledger.SourceUser, "", "")
	assert.ErrorIs(t, err, ledger.ErrMerchantNotFound)
}

// =============================================================================
// CONCURRENCY TESTS
// =============================================================================

func TestEnforcer_ConcurrentDeltas_NoLostUpdates(t *testing.T) {
	// GIVEN: A merchant with a large balance
	// WHEN: N goroutines apply randomized deltas concurrently
	// THEN: Exactly N entries exist and the final balance equals
	//       initial + sum of all deltas

	const n = 50
	const initial = int64(1_000_000)

	enforcer, mem := newTestEnforcer(t, "m-1", initial)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(42))
	deltas := make([]int64, n)
	var sum int64
	for i := range deltas {
		deltas[i] = rng.Int63n(201) - 100 // [-100, 100]
		sum += deltas[i]
	}

	var wg sync.WaitGroup
	for _, d := range deltas {
		wg.Add(1)
		go func(delta int64) {
			defer wg.Done()
			txType := ledger.TxCreditRecharge
			if delta < 0 {
				txType = ledger.TxAdDailyDebit
			}
			_, err := enforcer.ApplyDelta(ctx, "m-1", delta, txType, ledger.SourceSystem, "concurrent", "")
			assert.NoError(t, err)
		}(d)
	}
	wg.Wait()

	credits, err := mem.Credits(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, initial+sum, credits)

	txs, err := mem.ListFor(ctx, "m-1")
	require.NoError(t, err)
	assert.Len(t, txs, n)
}

func TestEnforcer_ConcurrentDebits_NeverOversell(t *testing.T) {
	// GIVEN: A merchant with exactly 100 credits
	// WHEN: 20 goroutines each try to debit 10 (200 total requested)
	// THEN: Exactly 10 succeed, balance ends at 0, never negative

	enforcer, mem := newTestEnforcer(t, "m-1", 100)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := enforcer.ApplyDelta(ctx, "m-1", -10, ledger.TxAdDailyDebit, ledger.SourceSystem, "debit", "ad-1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, rejected := 0, 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ledger.ErrInsufficientCredits)
			rejected++
		}
	}
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 10, rejected)

	credits, err := mem.Credits(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), credits)
}

func TestEnforcer_DifferentMerchants_DoNotContend(t *testing.T) {
	// GIVEN: Two merchants
	// WHEN: Each receives concurrent deltas
	// THEN: Each balance is correct independently

	mem := store.NewMemory()
	mem.AddMerchant("m-1", 100)
	mem.AddMerchant("m-2", 200)
	enforcer := ledger.NewEnforcer(mem)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := enforcer.ApplyDelta(ctx, "m-1", 5, ledger.TxCreditRecharge, ledger.SourceUser, "", "")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := enforcer.ApplyDelta(ctx, "m-2", -5, ledger.TxAdDailyDebit, ledger.SourceSystem, "", "ad-2")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	credits1, _ := mem.Credits(ctx, "m-1")
	credits2, _ := mem.Credits(ctx, "m-2")
	assert.Equal(t, int64(150), credits1)
	assert.Equal(t, int64(150), credits2)
}

// gatedStore blocks the first Credits read until released, so a test can
// hold the enforcer's per-merchant lock for a controlled window.
type gatedStore struct {
	*store.Memory
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) Credits(ctx context.Context, merchantID ledger.MerchantID) (int64, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.Memory.Credits(ctx, merchantID)
}

func TestEnforcer_LockTimeout_FailsFastWithConflict(t *testing.T) {
	// GIVEN: A caller holding the per-merchant lock longer than LockTimeout
	// WHEN: A second caller waits for the same merchant
	// THEN: It fails fast with ErrConcurrencyConflict instead of queueing

	mem := store.NewMemory()
	mem.AddMerchant("m-1", 100)
	gated := &gatedStore{
		Memory:  mem,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	enforcer := ledger.NewEnforcer(gated)
	enforcer.LockTimeout = 20 * time.Millisecond
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := enforcer.ApplyDelta(ctx, "m-1", 1, ledger.TxCreditRecharge, ledger.SourceUser, "", "")
		assert.NoError(t, err)
	}()
	<-gated.entered // first caller now owns the lock

	_, err := enforcer.ApplyDelta(ctx, "m-1", 1, ledger.TxCreditRecharge, ledger.SourceUser, "", "")
	assert.ErrorIs(t, err, ledger.ErrConcurrencyConflict)
	assert.True(t, ledger.IsRetryable(err))

	close(gated.release)
	<-done
}

func TestEnforcer_CASConflict_RetriesAndSucceeds(t *testing.T) {
	// GIVEN: A store whose balance moved between the enforcer's read and write
	// WHEN: ApplyDelta hits the CAS failure
	// THEN: It re-reads and succeeds within the retry budget

	mem := store.NewMemory()
	mem.AddMerchant("m-1", 100)
	conflicting := &conflictOnceStore{Memory: mem}
	enforcer := ledger.NewEnforcer(conflicting)
	ctx := context.Background()

	res, err := enforcer.ApplyDelta(ctx, "m-1", -30, ledger.TxAdDailyDebit, ledger.SourceSystem, "", "ad-1")
	require.NoError(t, err)
	assert.Equal(t, int64(70), res.NewBalance)
	assert.Equal(t, 1, conflicting.conflicts)
}

// conflictOnceStore fails the first ApplyBalanced with a stale-balance
// conflict, mimicking an external write landing between read and CAS.
type conflictOnceStore struct {
	*store.Memory
	conflicts int
}

func (c *conflictOnceStore) ApplyBalanced(ctx context.Context, expected int64, tx ledger.Transaction) (ledger.Transaction, error) {
	if c.conflicts == 0 {
		c.conflicts++
		return ledger.Transaction{}, ledger.ErrConcurrencyConflict
	}
	return c.Memory.ApplyBalanced(ctx, expected, tx)
}

// =============================================================================
// LEDGER RECONCILIATION PROPERTY
// =============================================================================

func TestLedger_BalanceAfterChain_AlwaysReconciles(t *testing.T) {
	// GIVEN: A merchant and a random sequence of applied deltas
	// WHEN: Reading back the full history
	// THEN: Every entry's BalanceAfter equals the previous BalanceAfter
	//       plus its amount, and the latest matches the stored balance

	enforcer, mem := newTestEnforcer(t, "m-1", 100)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 30; i++ {
		delta := rng.Int63n(61) - 30
		txType := ledger.TxCreditRecharge
		if delta < 0 {
			txType = ledger.TxAdDailyDebit
		}
		_, err := enforcer.ApplyDelta(ctx, "m-1", delta, txType, ledger.SourceSystem, "", "")
		if err != nil {
			assert.ErrorIs(t, err, ledger.ErrInsufficientCredits)
		}
	}

	txs, err := mem.ListFor(ctx, "m-1")
	require.NoError(t, err)
	require.NotEmpty(t, txs)

	// Oldest first for the running-sum check.
	running := int64(100)
	for i := len(txs) - 1; i >= 0; i-- {
		running += txs[i].Amount
		assert.Equal(t, running, txs[i].BalanceAfter,
			"entry seq %d must reconcile", txs[i].Seq)
	}

	latest, err := mem.LatestBalance(ctx, "m-1")
	require.NoError(t, err)
	credits, err := mem.Credits(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, credits, latest, "stored balance must match last ledger entry")
}

func TestLedger_ListFor_NewestFirst(t *testing.T) {
	// GIVEN: Three applied deltas
	// WHEN: Listing the history
	// THEN: Entries come back newest first with descending seq

	enforcer, mem := newTestEnforcer(t, "m-1", 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := enforcer.ApplyDelta(ctx, "m-1", 10, ledger.TxCreditRecharge, ledger.SourceUser, "", "")
		require.NoError(t, err)
	}

	txs, err := mem.ListFor(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, int64(3), txs[0].Seq)
	assert.Equal(t, int64(2), txs[1].Seq)
	assert.Equal(t, int64(1), txs[2].Seq)
	assert.True(t, txs[0].CreatedAt.After(txs[2].CreatedAt))
}
