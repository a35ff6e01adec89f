package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAuctionDetail_EndedIsStrict(t *testing.T) {
	end := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &AuctionDetail{EndTime: end}

	assert.False(t, a.Ended(end.Add(-time.Second)))
	assert.False(t, a.Ended(end), "a bid exactly at end time is accepted")
	assert.True(t, a.Ended(end.Add(time.Nanosecond)))
}

func TestAuctionDetail_IsHighestBidder(t *testing.T) {
	winner := "u1"
	a := &AuctionDetail{HighestBidderID: &winner}

	assert.True(t, a.IsHighestBidder("u1"))
	assert.False(t, a.IsHighestBidder("u2"))
	assert.False(t, a.IsHighestBidder(""))
	assert.False(t, (&AuctionDetail{}).IsHighestBidder("u1"))
}

func TestUser_AvailableBalance(t *testing.T) {
	u := &User{WalletBalance: 10_000_000, BlockedBalance: 600_000}
	assert.Equal(t, int64(9_400_000), u.AvailableBalance())
}

func TestSimCard_LineType(t *testing.T) {
	assert.Equal(t, LineTypeActive, (&SimCard{IsActive: true}).LineType())
	assert.Equal(t, LineTypeInactive, (&SimCard{}).LineType())
}
