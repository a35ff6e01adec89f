package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shinyyama/simcard-market/internal/config"
)

const (
	zarinPalCodeSuccess         = 100
	zarinPalCodeAlreadyVerified = 101
)

type ZarinPal struct {
	merchantID  string
	baseURL     string
	startPayURL string
	client      *resty.Client
}

func NewZarinPal(cfg config.ZarinPalConfig, client *resty.Client) *ZarinPal {
	if client == nil {
		client = NewHTTPClient()
	}
	return &ZarinPal{
		merchantID:  cfg.MerchantID,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		startPayURL: cfg.StartPayURL,
		client:      client,
	}
}

// zarinPalResponse has "data" as an object on success and an empty array on
// failure, and "errors" the other way round.
type zarinPalResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

type zarinPalData struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Authority string `json:"authority"`
	RefID     int64  `json:"ref_id"`
	CardPan   string `json:"card_pan"`
}

type zarinPalError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (r zarinPalResponse) decode() (*zarinPalData, error) {
	if isJSONObject(r.Data) {
		var d zarinPalData
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return nil, fmt.Errorf("decode zarinpal data: %w", err)
		}
		return &d, nil
	}
	var e zarinPalError
	if isJSONObject(r.Errors) {
		_ = json.Unmarshal(r.Errors, &e)
	}
	return nil, fmt.Errorf("%w: zarinpal code=%d message=%s", ErrRejected, e.Code, e.Message)
}

// Request opens a payment of amount toman and returns the authority code.
func (z *ZarinPal) Request(ctx context.Context, amount int64, callbackURL, description string) (string, error) {
	body := map[string]interface{}{
		"merchant_id":  z.merchantID,
		"amount":       amount,
		"currency":     "IRT",
		"callback_url": callbackURL,
		"description":  description,
	}
	var resp zarinPalResponse
	if err := post(ctx, z.client, z.baseURL+"/pg/v4/payment/request.json", body, &resp); err != nil {
		return "", err
	}
	data, err := resp.decode()
	if err != nil {
		return "", err
	}
	if data.Code != zarinPalCodeSuccess || data.Authority == "" {
		return "", fmt.Errorf("%w: zarinpal request code=%d", ErrRejected, data.Code)
	}
	return data.Authority, nil
}

func (z *ZarinPal) StartPayURL(authority string) string {
	return z.startPayURL + authority
}

type ZarinPalVerification struct {
	Code  int
	RefID string
}

// Verify confirms the payment. Code 101 (already verified) counts as success
// so a repeated callback is harmless.
func (z *ZarinPal) Verify(ctx context.Context, authority string, amount int64) (*ZarinPalVerification, error) {
	body := map[string]interface{}{
		"merchant_id": z.merchantID,
		"amount":      amount,
		"currency":    "IRT",
		"authority":   authority,
	}
	var resp zarinPalResponse
	if err := post(ctx, z.client, z.baseURL+"/pg/v4/payment/verify.json", body, &resp); err != nil {
		return nil, err
	}
	data, err := resp.decode()
	if err != nil {
		return nil, err
	}
	if data.Code != zarinPalCodeSuccess && data.Code != zarinPalCodeAlreadyVerified {
		return nil, fmt.Errorf("%w: zarinpal verify code=%d", ErrRejected, data.Code)
	}
	return &ZarinPalVerification{Code: data.Code, RefID: strconv.FormatInt(data.RefID, 10)}, nil
}

func isJSONObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
