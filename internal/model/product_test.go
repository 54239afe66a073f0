package model

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

func TestProductStatusTransitions(t *testing.T) {
    cases := []struct {
        from, to ProductStatus
        ok       bool
    }{
        {ProductActive, ProductReserved, true},
        {ProductActive, ProductInactive, true},
        {ProductActive, ProductSold, false},
        {ProductReserved, ProductSold, true},
        {ProductReserved, ProductActive, true},
        {ProductReserved, ProductInactive, false},
        {ProductSold, ProductActive, false},
        {ProductSold, ProductReserved, false},
        {ProductInactive, ProductActive, true},
        {ProductInactive, ProductReserved, false},
    }
    for _, c := range cases {
        assert.Equal(t, c.ok, c.from.CanTransitionTo(c.to), "%s -> %s", c.from, c.to)
    }
}

func TestProductStatusValid(t *testing.T) {
    assert.True(t, ProductActive.Valid())
    assert.True(t, ProductInactive.Valid())
    assert.False(t, ProductStatus("BROKEN").Valid())
    assert.False(t, ProductStatus("").Valid())
}

func TestUnavailableReason(t *testing.T) {
    assert.Equal(t, "reserved", ProductReserved.UnavailableReason())
    assert.Equal(t, "sold", ProductSold.UnavailableReason())
    assert.Equal(t, "inactive", ProductInactive.UnavailableReason())
    assert.Equal(t, "", ProductActive.UnavailableReason())
}

func TestReservationStatus(t *testing.T) {
    assert.False(t, ReservationPending.Terminal())
    assert.True(t, ReservationCompleted.Terminal())
    assert.True(t, ReservationExpired.Terminal())
    assert.False(t, ReservationStatus("BROKEN").Valid())
}

func TestReservationExpired(t *testing.T) {
    now := time.Now().UTC()
    r := Reservation{Status: ReservationPending, ExpiresAt: now.Add(time.Minute)}
    assert.False(t, r.Expired(now))
    assert.True(t, r.Expired(now.Add(2*time.Minute)))
}
