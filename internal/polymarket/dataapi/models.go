package dataapi

import (
	"encoding/json"
	"strconv"
)

// Number decodes a JSON value that may arrive as a number or a numeric
// string. The Data API returns trade sizes and prices as strings.
type Number float64

// UnmarshalJSON implements json.Unmarshaler
func (n *Number) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = Number(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Number(v)
	return nil
}

// ActivityMarket is the market summary embedded in an activity record
type ActivityMarket struct {
	ConditionID string `json:"conditionId"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	EventSlug   string `json:"eventSlug"`
	Outcome     string `json:"outcome"`
}

// ActivityUser is the user profile embedded in an activity record
type ActivityUser struct {
	Name      string `json:"name"`
	Pseudonym string `json:"pseudonym"`
}

// Activity represents a single activity record (the /trades endpoint returns
// the same shape)
type Activity struct {
	ID              string          `json:"id"`
	ProxyWallet     string          `json:"proxyWallet"`
	Timestamp       int64           `json:"timestamp"` // Unix seconds
	ConditionID     string          `json:"conditionId"`
	Type            string          `json:"type"` // TRADE, SPLIT, MERGE, REDEEM, REWARD, CONVERSION
	Size            Number          `json:"size"`
	USDCSize        Number          `json:"usdcSize"`
	Price           Number          `json:"price"`
	Side            string          `json:"side"` // BUY, SELL
	OutcomeIndex    int             `json:"outcomeIndex"`
	TransactionHash string          `json:"transactionHash"`
	Market          *ActivityMarket `json:"market,omitempty"`
	User            *ActivityUser   `json:"user,omitempty"`
}

// Notional returns the trade's USD value, preferring the reported usdcSize
// and falling back to size*price.
func (a *Activity) Notional() float64 {
	if a.USDCSize > 0 {
		return float64(a.USDCSize)
	}
	return float64(a.Size) * float64(a.Price)
}

// Position represents an open position for a wallet
type Position struct {
	ProxyWallet  string  `json:"proxyWallet"`
	Asset        string  `json:"asset"`
	ConditionID  string  `json:"conditionId"`
	Size         float64 `json:"size"`
	AvgPrice     float64 `json:"avgPrice"`
	InitialValue float64 `json:"initialValue"`
	CurrentValue float64 `json:"currentValue"`
	CashPnl      float64 `json:"cashPnl"`
	PercentPnl   float64 `json:"percentPnl"`
	TotalBought  float64 `json:"totalBought"`
	RealizedPnl  float64 `json:"realizedPnl"`
	CurPrice     float64 `json:"curPrice"`
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	Outcome      string  `json:"outcome"`
	OutcomeIndex int     `json:"outcomeIndex"`
}

// ClosedPosition represents a settled position for a wallet
type ClosedPosition struct {
	ProxyWallet  string  `json:"proxyWallet"`
	Asset        string  `json:"asset"`
	ConditionID  string  `json:"conditionId"`
	AvgPrice     float64 `json:"avgPrice"`
	TotalBought  float64 `json:"totalBought"`
	RealizedPnl  float64 `json:"realizedPnl"`
	CurPrice     float64 `json:"curPrice"`
	Timestamp    int64   `json:"timestamp"`
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	Outcome      string  `json:"outcome"`
	OutcomeIndex int     `json:"outcomeIndex"`
}

// Holder is a single token holder
type Holder struct {
	ProxyWallet  string  `json:"proxyWallet"`
	Asset        string  `json:"asset"`
	Amount       float64 `json:"amount"`
	OutcomeIndex int     `json:"outcomeIndex"`
	Name         string  `json:"name"`
	Pseudonym    string  `json:"pseudonym"`
}

// MarketHolders groups the top holders of one outcome token
type MarketHolders struct {
	Token   string   `json:"token"`
	Holders []Holder `json:"holders"`
}

// OpenInterest is the open interest for one market
type OpenInterest struct {
	Market string  `json:"market"`
	Value  float64 `json:"value"`
}

// MarketVolume is the live volume for one market within an event
type MarketVolume struct {
	Market string  `json:"market"`
	Value  float64 `json:"value"`
}

// LiveVolume is the live trading volume for an event
type LiveVolume struct {
	Total   float64        `json:"total"`
	Markets []MarketVolume `json:"markets"`
}
