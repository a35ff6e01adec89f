// Package events publishes marketplace domain events on NATS.
package events

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const (
	SubjectBidPlaced      = "auction.bid.placed"
	SubjectSettled        = "auction.settled"
	SubjectWalletCredited = "wallet.credited"
)

// Publisher is best-effort: failures are logged, never returned.
type Publisher interface {
	Publish(subject string, payload interface{})
}

type Nats struct {
	conn *nats.Conn
}

// Connect dials url, or the local default server when url is empty.
func Connect(url, token string) (*Nats, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url, connectOptions(token)...)
	if err != nil {
		return nil, err
	}
	return &Nats{conn: conn}, nil
}

func connectOptions(token string) []nats.Option {
	opts := []nats.Option{
		nats.Name("simcard-market"),
		nats.MaxReconnects(-1),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	return opts
}

func (n *Nats) Publish(subject string, payload interface{}) {
	if n.conn == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.WithError(err).WithField("subject", subject).Error("failed to encode event")
		return
	}
	if err := n.conn.Publish(subject, data); err != nil {
		log.WithError(err).WithField("subject", subject).Warn("failed to publish event")
	}
}

func (n *Nats) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

// Nop drops every event; used when NATS_URL is not configured.
type Nop struct{}

func (Nop) Publish(string, interface{}) {}

type BidPlaced struct {
	SimCardID uint64 `json:"simCardId"`
	AuctionID uint64 `json:"auctionId"`
	UserID    string `json:"userId"`
	Amount    int64  `json:"amount"`
}

type AuctionSettled struct {
	SimCardID       uint64 `json:"simCardId"`
	AuctionID       uint64 `json:"auctionId"`
	WinnerID        string `json:"winnerId"`
	PurchaseOrderID uint64 `json:"purchaseOrderId"`
	Released        int    `json:"releasedDeposits"`
}

type WalletCredited struct {
	UserID    string `json:"userId"`
	Gateway   string `json:"gateway"`
	Amount    int64  `json:"amount"`
	ReceiptID string `json:"receiptId"`
}
