package payment_test

import (
    "fmt"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/plumka/shop-api/internal/payment"
)

const testSecret = "whsec_test"

func TestParseEventRoundTrip(t *testing.T) {
    payload := []byte(`{
        "id": "evt_1",
        "type": "checkout.session.completed",
        "data": {"object": {
            "id": "cs_123",
            "customer_email": "klient@example.com",
            "metadata": {"product_ids": "1,2,3"}
        }}
    }`)
    header := payment.SignatureHeader(payload, testSecret, time.Now())

    ev, err := payment.ParseEvent(payload, header, testSecret, payment.DefaultTolerance)
    require.NoError(t, err)
    assert.Equal(t, payment.EventCheckoutCompleted, ev.Type)
    assert.Equal(t, "cs_123", ev.Data.Object.ID)
    assert.Equal(t, "klient@example.com", ev.Data.Object.CustomerEmail)

    ids, err := payment.ProductIDsFromMetadata(ev.Data.Object.Metadata)
    require.NoError(t, err)
    assert.Equal(t, []uint64{1, 2, 3}, ids)
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
    payload := []byte(`{"id":"evt_2","type":"checkout.session.expired"}`)
    header := payment.SignatureHeader(payload, testSecret, time.Now())

    tampered := append([]byte(nil), payload...)
    tampered[len(tampered)-2] = 'X'
    err := payment.VerifySignature(tampered, header, testSecret, payment.DefaultTolerance)
    assert.ErrorIs(t, err, payment.ErrInvalidSignature)

    err = payment.VerifySignature(payload, header, "whsec_other", payment.DefaultTolerance)
    assert.ErrorIs(t, err, payment.ErrInvalidSignature)
}

func TestVerifySignatureMissingHeader(t *testing.T) {
    err := payment.VerifySignature([]byte("{}"), "", testSecret, payment.DefaultTolerance)
    assert.ErrorIs(t, err, payment.ErrMissingSignature)
}

func TestVerifySignatureStaleTimestamp(t *testing.T) {
    payload := []byte(`{"id":"evt_3"}`)

    old := payment.SignatureHeader(payload, testSecret, time.Now().Add(-time.Hour))
    err := payment.VerifySignature(payload, old, testSecret, payment.DefaultTolerance)
    assert.ErrorIs(t, err, payment.ErrStaleTimestamp)

    future := payment.SignatureHeader(payload, testSecret, time.Now().Add(time.Hour))
    err = payment.VerifySignature(payload, future, testSecret, payment.DefaultTolerance)
    assert.ErrorIs(t, err, payment.ErrStaleTimestamp)
}

func TestVerifySignatureAcceptsRotatedSecret(t *testing.T) {
    payload := []byte(`{"id":"evt_4"}`)
    ts := time.Now().Unix()
    // Old-secret signature first, current one second: rotation keeps both
    // in the header and either must verify.
    header := fmt.Sprintf("t=%d,v1=%s,v1=%s",
        ts, payment.Sign(payload, "whsec_old", ts), payment.Sign(payload, testSecret, ts))

    err := payment.VerifySignature(payload, header, testSecret, payment.DefaultTolerance)
    assert.NoError(t, err)
}

func TestVerifySignatureMalformedHeader(t *testing.T) {
    payload := []byte(`{"id":"evt_5"}`)
    for _, header := range []string{
        "v1=deadbeef",
        "t=notanumber,v1=deadbeef",
        fmt.Sprintf("t=%d", time.Now().Unix()),
        "garbage",
    } {
        err := payment.VerifySignature(payload, header, testSecret, payment.DefaultTolerance)
        assert.ErrorIs(t, err, payment.ErrInvalidSignature, "header %q", header)
    }
}

func TestProductIDsFromMetadata(t *testing.T) {
    ids, err := payment.ProductIDsFromMetadata(map[string]string{"product_ids": "5, 7,9"})
    require.NoError(t, err)
    assert.Equal(t, []uint64{5, 7, 9}, ids)

    ids, err = payment.ProductIDsFromMetadata(map[string]string{"product_id": "11"})
    require.NoError(t, err)
    assert.Equal(t, []uint64{11}, ids)

    ids, err = payment.ProductIDsFromMetadata(map[string]string{"other": "x"})
    require.NoError(t, err)
    assert.Nil(t, ids)

    ids, err = payment.ProductIDsFromMetadata(nil)
    require.NoError(t, err)
    assert.Nil(t, ids)

    _, err = payment.ProductIDsFromMetadata(map[string]string{"product_ids": "1,abc"})
    assert.Error(t, err)
}
