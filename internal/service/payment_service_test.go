package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shinyyama/simcard-market/internal/events"
	"github.com/shinyyama/simcard-market/internal/gateway"
	"github.com/shinyyama/simcard-market/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentFixture struct {
	store    *memStore
	pub      *recordingPublisher
	zarinpal *fakeZarinPal
	zibal    *fakeZibal
	svc      PaymentService
}

func newPaymentFixture() *paymentFixture {
	f := &paymentFixture{
		store:    newMemStore(),
		pub:      &recordingPublisher{},
		zarinpal: &fakeZarinPal{authority: "A0000000000000000000000000000001", refID: "5011"},
		zibal:    &fakeZibal{trackID: "3714061657", amountRial: 1_000_000},
	}
	f.store.addUser("buyer", model.UserRoleBuyer, 0, 0)
	f.store.addUser("seller", model.UserRoleSeller, 0, 0)
	f.svc = NewPaymentService(
		memReceipts{f.store},
		memUsers{f.store},
		f.zarinpal,
		f.zibal,
		PaymentCallbacks{ZarinPal: "https://app.test/zp", Zibal: "https://app.test/zb"},
		NewNotificationService(memNotifications{f.store}),
		f.pub,
	)
	return f
}

func (f *paymentFixture) receipt(userID string, gw model.Gateway, authority string, amount int64) {
	_ = memReceipts{f.store}.Create(context.Background(), &model.PaymentReceipt{
		ID:        fmt.Sprintf("r-%s-%s", gw, authority),
		UserID:    userID,
		Gateway:   gw,
		Authority: authority,
		Amount:    amount,
		Status:    model.ReceiptStatusPending,
	})
}

func TestZibalCallback_NotSuccessfulSkipsVerify(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		success  string
		status   string
		wantPage string
	}{
		{"buyer cancelled", "buyer", "0", "2", BuyerWallet},
		{"seller cancelled", "seller", "0", "2", SellerWallet},
		{"bad status", "buyer", "1", "3", BuyerWallet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture()
			f.receipt(tt.user, model.GatewayZibal, "991", 100_000)

			res := f.svc.HandleZibalCallback(context.Background(), "991", tt.success, tt.status)
			assert.False(t, res.Success)
			assert.Equal(t, MsgPaymentCancelled, res.Message)
			assert.Equal(t, tt.wantPage, res.RedirectTo)
			assert.Equal(t, 3*time.Second, res.RedirectAfter)
			assert.Zero(t, atomic.LoadInt32(&f.zibal.verifyCalls))
			assert.Zero(t, f.store.user(tt.user).WalletBalance)
		})
	}
}

func TestZibalCallback_SuccessCreditsAndConvertsAmount(t *testing.T) {
	f := newPaymentFixture()
	f.receipt("seller", model.GatewayZibal, "3714061657", 100_000)

	res := f.svc.HandleZibalCallback(context.Background(), "3714061657", "1", "2")
	require.True(t, res.Success, res.Message)
	assert.Equal(t, int64(100_000), res.Amount)
	assert.Equal(t, "778899", res.RefID)
	assert.Equal(t, SellerWallet, res.RedirectTo)
	assert.Equal(t, 2*time.Second, res.RedirectAfter)
	require.NotNil(t, res.Wallet)
	assert.Equal(t, int64(100_000), res.Wallet.Balance)
	assert.Equal(t, int64(100_000), f.store.user("seller").WalletBalance)
	assert.Equal(t, []string{events.SubjectWalletCredited}, f.pub.published())
}

func TestZibalCallback_ConcurrentCallbacksVerifyOnce(t *testing.T) {
	f := newPaymentFixture()
	f.zibal.delay = 50 * time.Millisecond
	f.receipt("buyer", model.GatewayZibal, "3714061657", 100_000)

	var wg sync.WaitGroup
	results := make([]*CallbackResult, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.svc.HandleZibalCallback(context.Background(), "3714061657", "1", "2")
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		assert.True(t, res.Success)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.zibal.verifyCalls))
	assert.Equal(t, int64(100_000), f.store.user("buyer").WalletBalance)
	assert.Equal(t, 1, f.store.txCount("buyer", model.TransactionTypeDeposit))
}

func TestZibalCallback_VerifyRejected(t *testing.T) {
	f := newPaymentFixture()
	f.zibal.verifyErr = fmt.Errorf("%w: result=202", gateway.ErrRejected)
	f.receipt("buyer", model.GatewayZibal, "55", 100_000)

	res := f.svc.HandleZibalCallback(context.Background(), "55", "1", "2")
	assert.False(t, res.Success)
	assert.Equal(t, MsgPaymentSupport, res.Message)
	assert.Equal(t, 3*time.Second, res.RedirectAfter)
	assert.Equal(t, model.ReceiptStatusFailed, f.store.receipts["r-zibal-55"].Status)
}

func TestZarinPalCallback_CancelledMakesNoVerifyCall(t *testing.T) {
	tests := []struct {
		name      string
		authority string
		status    string
		wantPage  string
	}{
		{"seller cancelled", "A777", "NOK", SellerWallet},
		{"buyer cancelled", "A1", "NOK", BuyerWallet},
		{"unknown receipt cancelled", "A-missing", "NOK", BuyerWallet},
		{"missing authority", "", "OK", BuyerWallet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture()
			f.receipt("seller", model.GatewayZarinPal, "A777", 100_000)
			f.receipt("buyer", model.GatewayZarinPal, "A1", 100_000)

			res := f.svc.HandleZarinPalCallback(context.Background(), tt.authority, tt.status)
			assert.False(t, res.Success)
			assert.Equal(t, MsgPaymentCancelled, res.Message)
			assert.Equal(t, tt.wantPage, res.RedirectTo)
			assert.Equal(t, 3*time.Second, res.RedirectAfter)
			assert.Zero(t, atomic.LoadInt32(&f.zarinpal.verifyCalls))
			assert.Zero(t, f.store.user("seller").WalletBalance)
		})
	}
}

func TestZibalCallback_AmountMismatchIsNotCredited(t *testing.T) {
	f := newPaymentFixture()
	f.zibal.amountRial = 990_000
	f.receipt("buyer", model.GatewayZibal, "3714061657", 100_000)

	res := f.svc.HandleZibalCallback(context.Background(), "3714061657", "1", "2")
	assert.False(t, res.Success)
	assert.Equal(t, MsgPaymentSupport, res.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.zibal.verifyCalls))
	assert.Zero(t, f.store.user("buyer").WalletBalance)
	assert.Zero(t, f.store.txCount("buyer", model.TransactionTypeDeposit))
	assert.Empty(t, f.pub.published())
}

func TestZarinPalCallback_UnknownReceipt(t *testing.T) {
	f := newPaymentFixture()

	res := f.svc.HandleZarinPalCallback(context.Background(), "A-missing", "OK")
	assert.False(t, res.Success)
	assert.Equal(t, MsgReceiptNotFound, res.Message)
	assert.Zero(t, atomic.LoadInt32(&f.zarinpal.verifyCalls))
}

func TestZarinPalCallback_CreditsOnce(t *testing.T) {
	f := newPaymentFixture()
	f.receipt("buyer", model.GatewayZarinPal, "A1", 250_000)
	ctx := context.Background()

	first := f.svc.HandleZarinPalCallback(ctx, "A1", "OK")
	require.True(t, first.Success, first.Message)
	assert.Equal(t, "5011", first.RefID)
	assert.Equal(t, int64(250_000), first.Amount)
	assert.Equal(t, int64(250_000), f.zarinpal.lastAmount)

	second := f.svc.HandleZarinPalCallback(ctx, "A1", "OK")
	assert.True(t, second.Success)
	assert.Equal(t, "5011", second.RefID)

	assert.Equal(t, int32(1), atomic.LoadInt32(&f.zarinpal.verifyCalls))
	assert.Equal(t, int64(250_000), f.store.user("buyer").WalletBalance)
	assert.Equal(t, 1, f.store.txCount("buyer", model.TransactionTypeDeposit))
}

func TestZarinPalCallback_VerifyFailure(t *testing.T) {
	f := newPaymentFixture()
	f.zarinpal.verifyErr = fmt.Errorf("%w: code=-51", gateway.ErrRejected)
	f.receipt("seller", model.GatewayZarinPal, "A2", 250_000)

	res := f.svc.HandleZarinPalCallback(context.Background(), "A2", "OK")
	assert.False(t, res.Success)
	assert.Equal(t, MsgPaymentSupport, res.Message)
	assert.Equal(t, SellerWallet, res.RedirectTo)
	assert.Zero(t, f.store.user("seller").WalletBalance)
}

func TestRequestTopUp(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	zp, err := f.svc.RequestTopUp(ctx, "buyer", model.GatewayZarinPal, 50_000)
	require.NoError(t, err)
	assert.Equal(t, "https://zarinpal.test/StartPay/A0000000000000000000000000000001", zp.PaymentURL)
	assert.Equal(t, int64(50_000), f.zarinpal.lastAmount)

	zb, err := f.svc.RequestTopUp(ctx, "buyer", model.GatewayZibal, 50_000)
	require.NoError(t, err)
	assert.Equal(t, "https://zibal.test/start/3714061657", zb.PaymentURL)
	assert.Equal(t, int64(500_000), f.zibal.lastAmount, "zibal is charged in rial")

	rc, err := memReceipts{f.store}.FindByAuthority(ctx, model.GatewayZibal, "3714061657")
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), rc.Amount)
	assert.Equal(t, model.ReceiptStatusPending, rc.Status)

	_, err = f.svc.RequestTopUp(ctx, "buyer", model.GatewayZibal, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.svc.RequestTopUp(ctx, "buyer", "paypal", 10)
	assert.ErrorIs(t, err, ErrUnknownGateway)
}
