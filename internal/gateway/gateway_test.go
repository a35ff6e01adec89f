package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shinyyama/simcard-market/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonServer(t *testing.T, path string, handle func(body map[string]interface{}) interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(handle(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestZarinPalVerify(t *testing.T) {
	tests := []struct {
		name    string
		reply   interface{}
		wantErr bool
		wantRef string
	}{
		{
			name:    "verified",
			reply:   map[string]interface{}{"data": map[string]interface{}{"code": 100, "ref_id": 201}, "errors": []interface{}{}},
			wantRef: "201",
		},
		{
			name:    "already verified",
			reply:   map[string]interface{}{"data": map[string]interface{}{"code": 101, "ref_id": 201}, "errors": []interface{}{}},
			wantRef: "201",
		},
		{
			name:    "rejected",
			reply:   map[string]interface{}{"data": []interface{}{}, "errors": map[string]interface{}{"code": -51, "message": "Session is not valid"}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]interface{}
			srv := jsonServer(t, "/pg/v4/payment/verify.json", func(body map[string]interface{}) interface{} {
				got = body
				return tt.reply
			})
			zp := NewZarinPal(config.ZarinPalConfig{MerchantID: "m-1", BaseURL: srv.URL}, nil)

			res, err := zp.Verify(context.Background(), "A0001", 50000)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrRejected)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRef, res.RefID)
			assert.Equal(t, "A0001", got["authority"])
			assert.Equal(t, float64(50000), got["amount"])
			assert.Equal(t, "m-1", got["merchant_id"])
		})
	}
}

func TestZarinPalRequest(t *testing.T) {
	srv := jsonServer(t, "/pg/v4/payment/request.json", func(body map[string]interface{}) interface{} {
		return map[string]interface{}{"data": map[string]interface{}{"code": 100, "authority": "A000000000000000000000000000abcd"}, "errors": []interface{}{}}
	})
	zp := NewZarinPal(config.ZarinPalConfig{MerchantID: "m-1", BaseURL: srv.URL, StartPayURL: "https://pay.example/StartPay/"}, nil)

	authority, err := zp.Request(context.Background(), 100000, "https://app.example/cb", "top-up")
	require.NoError(t, err)
	assert.Equal(t, "A000000000000000000000000000abcd", authority)
	assert.Equal(t, "https://pay.example/StartPay/A000000000000000000000000000abcd", zp.StartPayURL(authority))
}

func TestZibalVerify(t *testing.T) {
	tests := []struct {
		name    string
		reply   interface{}
		wantErr bool
	}{
		{"paid", map[string]interface{}{"result": 100, "amount": 500000, "refNumber": 778899, "status": 1}, false},
		{"already verified", map[string]interface{}{"result": 201, "amount": 500000}, false},
		{"not paid", map[string]interface{}{"result": 202, "message": "unpaid"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := jsonServer(t, "/v1/verify", func(body map[string]interface{}) interface{} {
				assert.Equal(t, float64(123456), body["trackId"])
				return tt.reply
			})
			zb := NewZibal(config.ZibalConfig{Merchant: "zibal", BaseURL: srv.URL}, nil)

			res, err := zb.Verify(context.Background(), "123456")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrRejected)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(500000), res.AmountRial)
		})
	}
}

func TestZibalVerify_InvalidTrackID(t *testing.T) {
	zb := NewZibal(config.ZibalConfig{BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := zb.Verify(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestZibalRequest(t *testing.T) {
	srv := jsonServer(t, "/v1/request", func(body map[string]interface{}) interface{} {
		assert.Equal(t, float64(1000000), body["amount"])
		return map[string]interface{}{"result": 100, "trackId": 3714061657}
	})
	zb := NewZibal(config.ZibalConfig{Merchant: "zibal", BaseURL: srv.URL, StartPayURL: "https://gateway.zibal.ir/start/"}, nil)

	trackID, err := zb.Request(context.Background(), 1000000, "https://app.example/cb", "top-up", "r-1")
	require.NoError(t, err)
	assert.Equal(t, "3714061657", trackID)
	assert.Equal(t, "https://gateway.zibal.ir/start/3714061657", zb.StartPayURL(trackID))
}

func TestZarinPalVerify_ErrorBodyOnClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"data":[],"errors":{"code":-50,"message":"Session is not valid, amounts values is not the same."}}`))
	}))
	t.Cleanup(srv.Close)
	zp := NewZarinPal(config.ZarinPalConfig{MerchantID: "m-1", BaseURL: srv.URL}, NewHTTPClient())

	_, err := zp.Verify(context.Background(), "A0001", 50000)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "code=-50")
}

func TestZibalVerify_ServerErrorIsNotRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	zb := NewZibal(config.ZibalConfig{Merchant: "zibal", BaseURL: srv.URL}, nil)

	_, err := zb.Verify(context.Background(), "123456")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)
}
