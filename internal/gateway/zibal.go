package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shinyyama/simcard-market/internal/config"
)

const (
	zibalResultSuccess         = 100
	zibalResultAlreadyVerified = 201
)

// Zibal amounts are in rial.
type Zibal struct {
	merchant    string
	baseURL     string
	startPayURL string
	client      *resty.Client
}

func NewZibal(cfg config.ZibalConfig, client *resty.Client) *Zibal {
	if client == nil {
		client = NewHTTPClient()
	}
	return &Zibal{
		merchant:    cfg.Merchant,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		startPayURL: cfg.StartPayURL,
		client:      client,
	}
}

type zibalResponse struct {
	Result    int    `json:"result"`
	Message   string `json:"message"`
	TrackID   int64  `json:"trackId"`
	Amount    int64  `json:"amount"`
	RefNumber int64  `json:"refNumber"`
	Status    int    `json:"status"`
}

// Request opens a payment of amountRial and returns the trackId.
func (z *Zibal) Request(ctx context.Context, amountRial int64, callbackURL, description, orderID string) (string, error) {
	body := map[string]interface{}{
		"merchant":    z.merchant,
		"amount":      amountRial,
		"callbackUrl": callbackURL,
		"description": description,
		"orderId":     orderID,
	}
	var resp zibalResponse
	if err := post(ctx, z.client, z.baseURL+"/v1/request", body, &resp); err != nil {
		return "", err
	}
	if resp.Result != zibalResultSuccess || resp.TrackID == 0 {
		return "", fmt.Errorf("%w: zibal request result=%d message=%s", ErrRejected, resp.Result, resp.Message)
	}
	return strconv.FormatInt(resp.TrackID, 10), nil
}

func (z *Zibal) StartPayURL(trackID string) string {
	return z.startPayURL + trackID
}

type ZibalVerification struct {
	Result     int
	AmountRial int64
	RefNumber  string
}

// Verify confirms the payment identified by trackID. Result 201 (already
// verified) counts as success.
func (z *Zibal) Verify(ctx context.Context, trackID string) (*ZibalVerification, error) {
	id, err := strconv.ParseInt(trackID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid trackId %q", ErrRejected, trackID)
	}
	body := map[string]interface{}{
		"merchant": z.merchant,
		"trackId":  id,
	}
	var resp zibalResponse
	if err := post(ctx, z.client, z.baseURL+"/v1/verify", body, &resp); err != nil {
		return nil, err
	}
	if resp.Result != zibalResultSuccess && resp.Result != zibalResultAlreadyVerified {
		return nil, fmt.Errorf("%w: zibal verify result=%d message=%s", ErrRejected, resp.Result, resp.Message)
	}
	return &ZibalVerification{
		Result:     resp.Result,
		AmountRial: resp.Amount,
		RefNumber:  strconv.FormatInt(resp.RefNumber, 10),
	}, nil
}
