package reservation_test

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/plumka/shop-api/internal/model"
    "github.com/plumka/shop-api/internal/repository"
    "github.com/plumka/shop-api/internal/reservation"
)

func TestSweepCancelsExpired(t *testing.T) {
    store := newStoreWithProducts(model.ProductActive, model.ProductActive)
    svc := reservation.NewService(store)
    ctx := context.Background()

    _, err := svc.Reserve(ctx, []uint64{1}, "cs_expired", time.Hour, nil)
    require.NoError(t, err)
    _, err = svc.Reserve(ctx, []uint64{2}, "cs_fresh", time.Hour, nil)
    require.NoError(t, err)

    // Force one hold past its TTL.
    store.SetReservationExpiry("cs_expired", time.Now().UTC().Add(-time.Minute))

    sweeper := reservation.NewSweeper(svc, store, time.Minute, 100)
    report, err := sweeper.Sweep(ctx)
    require.NoError(t, err)
    assert.Equal(t, reservation.Report{Found: 1, Cancelled: 1}, report)

    assert.Equal(t, model.ProductActive, store.Product(1).Status)
    assert.Equal(t, model.ProductReserved, store.Product(2).Status)
    assert.Equal(t, model.ReservationExpired, store.ReservationBySession("cs_expired").Status)
    assert.Equal(t, model.ReservationPending, store.ReservationBySession("cs_fresh").Status)
}

func TestSweepEmpty(t *testing.T) {
    store := repository.NewMemoryStore()
    sweeper := reservation.NewSweeper(reservation.NewService(store), store, time.Minute, 100)

    report, err := sweeper.Sweep(context.Background())
    require.NoError(t, err)
    assert.Equal(t, reservation.Report{}, report)
}

// settledStore reports a session as expired even after it has been
// completed, reproducing the race where a completion webhook lands
// between the sweeper's listing and its cancel attempt.
type settledStore struct {
    *repository.MemoryStore
    sessions []string
}

func (s *settledStore) ExpiredPendingSessions(ctx context.Context, now time.Time, limit int) ([]string, error) {
    return s.sessions, nil
}

func TestSweepRaceWithCompletionIsNoOp(t *testing.T) {
    mem := newStoreWithProducts(model.ProductActive, model.ProductActive)
    svc := reservation.NewService(mem)
    ctx := context.Background()

    _, err := svc.Reserve(ctx, []uint64{1}, "cs_paid", time.Hour, nil)
    require.NoError(t, err)
    _, err = svc.Reserve(ctx, []uint64{2}, "cs_stale", time.Hour, nil)
    require.NoError(t, err)

    // The webhook wins the race for cs_paid before the sweeper acts.
    _, err = svc.Complete(ctx, "cs_paid")
    require.NoError(t, err)

    store := &settledStore{MemoryStore: mem, sessions: []string{"cs_paid", "cs_stale", "cs_ghost"}}
    sweeper := reservation.NewSweeper(reservation.NewService(store), store, time.Minute, 100)

    report, err := sweeper.Sweep(ctx)
    require.NoError(t, err)
    assert.Equal(t, reservation.Report{Found: 3, Cancelled: 1}, report)

    // The completed reservation and its product are untouched.
    assert.Equal(t, model.ReservationCompleted, mem.ReservationBySession("cs_paid").Status)
    assert.Equal(t, model.ProductReserved, mem.Product(1).Status)
    assert.Equal(t, model.ProductActive, mem.Product(2).Status)
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
    store := newStoreWithProducts(model.ProductActive)
    svc := reservation.NewService(store)
    ctx, cancel := context.WithCancel(context.Background())

    _, err := svc.Reserve(ctx, []uint64{1}, "cs_run", time.Hour, nil)
    require.NoError(t, err)
    store.SetReservationExpiry("cs_run", time.Now().UTC().Add(-time.Minute))

    sweeper := reservation.NewSweeper(svc, store, 10*time.Millisecond, 100)
    done := make(chan struct{})
    go func() {
        sweeper.Run(ctx)
        close(done)
    }()

    require.Eventually(t, func() bool {
        return store.Product(1).Status == model.ProductActive
    }, 2*time.Second, 10*time.Millisecond)

    cancel()
    select {
    case <-done:
    case <-time.After(time.Second):
        t.Fatal("sweeper did not stop after context cancellation")
    }
}
