package infra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentGateway_Charge(t *testing.T) {
	var (
		gotPath, gotAuth, gotKey string
		gotBody                  map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transactionId":"tx-1","status":"completed"}`))
	}))
	defer srv.Close()

	gw := NewPaymentGateway(srv.URL, "sk_test", time.Second)
	res, err := gw.Charge(context.Background(), ChargeRequest{
		Reference: "KSW-20250101-ABCDEF12-1",
		Amount:    decimal.RequireFromString("54350.00"),
		Currency:  "NGN",
		Method:    "card",
		Provider:  "paystack",
	})
	require.NoError(t, err)
	assert.Equal(t, "tx-1", res.TransactionID)
	assert.Equal(t, ChargeCompleted, res.Status)

	assert.Equal(t, "/charges", gotPath)
	assert.Equal(t, "Bearer sk_test", gotAuth)
	assert.Equal(t, "KSW-20250101-ABCDEF12-1", gotKey)
	assert.Equal(t, "54350", gotBody["amount"])
	assert.Equal(t, "NGN", gotBody["currency"])
}

func TestPaymentGateway_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"provider offline"}`))
	}))
	defer srv.Close()

	gw := NewPaymentGateway(srv.URL, "sk_test", time.Second)
	_, err := gw.Charge(context.Background(), ChargeRequest{Reference: "r-1", Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "provider offline")

	_, err = gw.Refund(context.Background(), RefundRequest{TransactionID: "tx-1", Reference: "refund-1", Amount: decimal.NewFromInt(1)})
	assert.Error(t, err)
}

func TestPaymentGateway_Refund(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"refundTransactionId":"rf-1","status":"completed"}`))
	}))
	defer srv.Close()

	gw := NewPaymentGateway(srv.URL, "sk_test", time.Second)
	res, err := gw.Refund(context.Background(), RefundRequest{TransactionID: "tx-1", Reference: "refund-70-10000.00", Amount: decimal.NewFromInt(10000)})
	require.NoError(t, err)
	assert.Equal(t, "rf-1", res.RefundTransactionID)
	assert.Equal(t, "/refunds", gotPath)
	assert.Equal(t, "refund-70-10000.00", gotKey)
}

func TestPaymentGateway_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	gw := NewPaymentGateway(srv.URL, "sk_test", 20*time.Millisecond)
	_, err := gw.Charge(context.Background(), ChargeRequest{Reference: "r-1"})
	assert.Error(t, err)
}
