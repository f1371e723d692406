package gammaapi

import (
	"encoding/json"
	"strconv"
)

// FlexFloat decodes a JSON value that may arrive as a number or a numeric
// string. The Gamma API is inconsistent about this across endpoints.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = FlexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

// Market represents a Gamma API market
type Market struct {
	ID            string    `json:"id"`
	ConditionID   string    `json:"conditionId"`
	Slug          string    `json:"slug"`
	Question      string    `json:"question"`
	EndDate       string    `json:"endDate"`
	Category      string    `json:"category"`
	Active        bool      `json:"active"`
	Closed        bool      `json:"closed"`
	Volume24hr    FlexFloat `json:"volume24hr"`
	VolumeNum     FlexFloat `json:"volumeNum"`
	LiquidityNum  FlexFloat `json:"liquidityNum"`
	Outcomes      string    `json:"outcomes"`      // JSON-encoded array, e.g. `["Yes","No"]`
	OutcomePrices string    `json:"outcomePrices"` // JSON-encoded array, e.g. `["0.45","0.55"]`
}

// ParseOutcomes decodes the JSON-string-encoded outcome labels.
func (m *Market) ParseOutcomes() []string {
	var outcomes []string
	if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err != nil {
		return nil
	}
	return outcomes
}

// ParseOutcomePrices decodes the JSON-string-encoded outcome prices.
func (m *Market) ParseOutcomePrices() []float64 {
	var raw []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &raw); err != nil {
		return nil
	}
	prices := make([]float64, 0, len(raw))
	for _, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		prices = append(prices, v)
	}
	return prices
}

// Probability returns the price of the first outcome token, which for binary
// markets is the implied YES probability. Returns 0 when prices are missing.
func (m *Market) Probability() float64 {
	prices := m.ParseOutcomePrices()
	if len(prices) == 0 {
		return 0
	}
	return prices[0]
}

// Event represents a Gamma API event
type Event struct {
	ID      string   `json:"id"`
	Slug    string   `json:"slug"`
	Title   string   `json:"title"`
	Active  bool     `json:"active"`
	Closed  bool     `json:"closed"`
	Markets []Market `json:"markets"`
}
