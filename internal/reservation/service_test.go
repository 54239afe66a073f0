package reservation_test

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/plumka/shop-api/internal/model"
    "github.com/plumka/shop-api/internal/repository"
    "github.com/plumka/shop-api/internal/reservation"
)

func newStoreWithProducts(statuses ...model.ProductStatus) *repository.MemoryStore {
    store := repository.NewMemoryStore()
    now := time.Now().UTC()
    for i, status := range statuses {
        id := uint64(i + 1)
        store.AddProduct(model.Product{
            ID:         id,
            Slug:       fmt.Sprintf("item-%d", id),
            Name:       fmt.Sprintf("Item %d", id),
            PriceCents: 15000,
            Status:     status,
            CreatedAt:  now,
            UpdatedAt:  now,
        })
    }
    return store
}

func TestReserveClaimsAllProducts(t *testing.T) {
    store := newStoreWithProducts(model.ProductActive, model.ProductActive, model.ProductActive)
    svc := reservation.NewService(store)

    before := time.Now().UTC()
    result, err := svc.Reserve(context.Background(), []uint64{1, 2, 3}, "cs_1", 30*time.Minute, nil)
    require.NoError(t, err)
    require.True(t, result.Success())
    require.NotNil(t, result.Reservation)

    assert.Equal(t, model.ReservationPending, result.Reservation.Status)
    assert.WithinDuration(t, before.Add(30*time.Minute), result.Reservation.ExpiresAt, 2*time.Second)

    for id := uint64(1); id <= 3; id++ {
        p := store.Product(id)
        require.NotNil(t, p)
        assert.Equal(t, model.ProductReserved, p.Status)
    }

    stored := store.ReservationBySession("cs_1")
    require.NotNil(t, stored)
    assert.Equal(t, model.ReservationPending, stored.Status)
}

func TestReserveIsAllOrNothing(t *testing.T) {
    store := newStoreWithProducts(model.ProductActive, model.ProductSold, model.ProductActive)
    svc := reservation.NewService(store)

    result, err := svc.Reserve(context.Background(), []uint64{1, 2, 3}, "cs_2", 0, nil)
    require.NoError(t, err)
    require.False(t, result.Success())
    require.Len(t, result.Unavailable, 1)
    assert.Equal(t, uint64(2), result.Unavailable[0].ID)
    assert.Equal(t, "sold", result.Unavailable[0].Reason)
    assert.Equal(t, "Produkt został już sprzedany", result.Unavailable[0].Message)

    // Nothing was written: the available products stay ACTIVE and no
    // ledger entry exists for the session.
    assert.Equal(t, model.ProductActive, store.Product(1).Status)
    assert.Equal(t, model.ProductActive, store.Product(3).Status)
    assert.Nil(t, store.ReservationBySession("cs_2"))
}

func TestReserveReportsEveryReason(t *testing.T) {
    store := newStoreWithProducts(model.ProductReserved, model.ProductSold, model.ProductInactive)
    svc := reservation.NewService(store)

    result, err := svc.Reserve(context.Background(), []uint64{1, 2, 3, 99}, "cs_3", 0, nil)
    require.NoError(t, err)
    require.False(t, result.Success())
    require.Len(t, result.Unavailable, 4)

    reasons := map[uint64]string{}
    for _, u := range result.Unavailable {
        reasons[u.ID] = u.Reason
    }
    assert.Equal(t, "reserved", reasons[1])
    assert.Equal(t, "sold", reasons[2])
    assert.Equal(t, "inactive", reasons[3])
    assert.Equal(t, "not_found", reasons[99])
}

func TestReserveDeduplicatesIDs(t *testing.T) {
    store := newStoreWithProducts(model.ProductActive, model.ProductActive)
    svc := reservation.NewService(store)

    result, err := svc.Reserve(context.Background(), []uint64{2, 1, 2, 0, 1}, "cs_4", 0, nil)
    require.NoError(t, err)
    require.True(t, result.Success())

    completed, err := svc.Complete(context.Background(), "cs_4")
    require.NoError(t, err)
    assert.Equal(t, []uint64{1, 2}, completed.ProductIDs)
}

func TestReserveValidation(t *testing.T) {
    store := newStoreWithProducts(model.ProductActive)
    svc := reservation.NewService(store)

    _, err := svc.Reserve(context.Background(), nil, "cs_5", 0, nil)
    assert.ErrorIs(t, err, reservation.ErrNoProducts)

    _, err = svc.Reserve(context.Background(), []uint64{0}, "cs_5", 0, nil)
    assert.ErrorIs(t, err, reservation.ErrNoProducts)

    _, err = svc.Reserve(context.Background(), []uint64{1}, "", 0, nil)
    assert.ErrorIs(t, err, reservation.ErrMissingSession)
}

func TestReserveMutualExclusion(t *testing.T) {
    store := newStoreWithProducts(model.ProductActive)
    svc := reservation.NewService(store)

    const attempts = 20
    var wg sync.WaitGroup
    successes := make(chan string, attempts)
    for i := 0; i < attempts; i++ {
        wg.Add(1)
        go func(n int) {
            defer wg.Done()
            session := fmt.Sprintf("cs_race_%d", n)
            result, err := svc.Reserve(context.Background(), []uint64{1}, session, 0, nil)
            if err == nil && result.Success() {
                successes <- session
            }
        }(i)
    }
    wg.Wait()
    close(successes)

    var winners []string
    for s := range successes {
        winners = append(winners, s)
    }
    require.Len(t, winners, 1, "exactly one concurrent claim may win")
    assert.Equal(t, model.ProductReserved, store.Product(1).Status)
    assert.NotNil(t, store.ReservationBySession(winners[0]))
}

func TestCompleteReturnsProductIDs(t *testing.T) {
    store := newStoreWithProducts(model.ProductActive, model.ProductActive)
    svc := reservation.NewService(store)

    email := "klient@example.com"
    _, err := svc.Reserve(context.Background(), []uint64{1, 2}, "cs_6", 0, &email)
    require.NoError(t, err)

    result, err := svc.Complete(context.Background(), "cs_6")
    require.NoError(t, err)
    assert.Equal(t, []uint64{1, 2}, result.ProductIDs)
    assert.Equal(t, model.ReservationCompleted, result.Reservation.Status)
    require.NotNil(t, result.Reservation.CompletedAt)

    // Completion authorizes the SOLD transition but never performs it.
    assert.Equal(t, model.ProductReserved, store.Product(1).Status)
    assert.Equal(t, model.ProductReserved, store.Product(2).Status)
}

func TestCompleteUnknownSession(t *testing.T) {
    svc := reservation.NewService(repository.NewMemoryStore())
    _, err := svc.Complete(context.Background(), "cs_missing")
    assert.ErrorIs(t, err, reservation.ErrReservationNotFound)
}

func TestCompleteTwiceIsNoOp(t *testing.T) {
    store := newStoreWithProducts(model.ProductActive)
    svc := reservation.NewService(store)

    _, err := svc.Reserve(context.Background(), []uint64{1}, "cs_7", 0, nil)
    require.NoError(t, err)
    _, err = svc.Complete(context.Background(), "cs_7")
    require.NoError(t, err)

    _, err = svc.Complete(context.Background(), "cs_7")
    var notPending *reservation.NotPendingError
    require.ErrorAs(t, err, &notPending)
    assert.Equal(t, model.ReservationCompleted, notPending.Status)
}

func TestCancelReleasesProducts(t *testing.T) {
    store := newStoreWithProducts(model.ProductActive, model.ProductActive)
    svc := reservation.NewService(store)

    _, err := svc.Reserve(context.Background(), []uint64{1, 2}, "cs_8", 0, nil)
    require.NoError(t, err)

    result, err := svc.Cancel(context.Background(), "cs_8")
    require.NoError(t, err)
    assert.Equal(t, []uint64{1, 2}, result.ReleasedProductIDs)
    assert.Equal(t, model.ReservationExpired, result.Reservation.Status)
    assert.Equal(t, model.ProductActive, store.Product(1).Status)
    assert.Equal(t, model.ProductActive, store.Product(2).Status)

    // Releasing again is a harmless no-op, not a second release.
    _, err = svc.Cancel(context.Background(), "cs_8")
    var notPending *reservation.NotPendingError
    require.ErrorAs(t, err, &notPending)
    assert.Equal(t, model.ReservationExpired, notPending.Status)
    assert.Equal(t, model.ProductActive, store.Product(1).Status)
}

func TestCancelAfterCompleteDoesNotRevert(t *testing.T) {
    store := newStoreWithProducts(model.ProductActive)
    svc := reservation.NewService(store)

    _, err := svc.Reserve(context.Background(), []uint64{1}, "cs_9", 0, nil)
    require.NoError(t, err)
    _, err = svc.Complete(context.Background(), "cs_9")
    require.NoError(t, err)

    _, err = svc.Cancel(context.Background(), "cs_9")
    var notPending *reservation.NotPendingError
    require.ErrorAs(t, err, &notPending)
    assert.Equal(t, model.ReservationCompleted, notPending.Status)

    // The product keeps whatever state the completion flow set; the
    // failed cancel must not flip it back to ACTIVE.
    assert.Equal(t, model.ProductReserved, store.Product(1).Status)
}

func TestCheckAvailability(t *testing.T) {
    store := newStoreWithProducts(model.ProductActive, model.ProductReserved, model.ProductInactive)
    svc := reservation.NewService(store)

    avail, err := svc.CheckAvailability(context.Background(), []uint64{1, 2, 3, 42})
    require.NoError(t, err)
    assert.Equal(t, []uint64{1}, avail.Available)
    require.Len(t, avail.Unavailable, 3)

    reasons := map[uint64]string{}
    for _, u := range avail.Unavailable {
        reasons[u.ID] = u.Reason
    }
    assert.Equal(t, "reserved", reasons[2])
    assert.Equal(t, "inactive", reasons[3])
    assert.Equal(t, "not_found", reasons[42])

    _, err = svc.CheckAvailability(context.Background(), nil)
    assert.ErrorIs(t, err, reservation.ErrNoProducts)
}

// Full lifecycle: claim, lose a competing claim, complete, observe the
// terminal guard.
func TestReservationLifecycle(t *testing.T) {
    store := newStoreWithProducts(model.ProductActive, model.ProductActive)
    svc := reservation.NewService(store)
    ctx := context.Background()

    first, err := svc.Reserve(ctx, []uint64{1, 2}, "cs_a", time.Hour, nil)
    require.NoError(t, err)
    require.True(t, first.Success())

    second, err := svc.Reserve(ctx, []uint64{2}, "cs_b", time.Hour, nil)
    require.NoError(t, err)
    require.False(t, second.Success())
    assert.Equal(t, "reserved", second.Unavailable[0].Reason)

    completed, err := svc.Complete(ctx, "cs_a")
    require.NoError(t, err)
    assert.Equal(t, []uint64{1, 2}, completed.ProductIDs)

    _, err = svc.Cancel(ctx, "cs_a")
    var notPending *reservation.NotPendingError
    assert.True(t, errors.As(err, &notPending))
}
