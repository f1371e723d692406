package dataapi

import (
	"encoding/json"
	"testing"
)

func TestNumberUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{"plain number", `123.45`, 123.45, false},
		{"quoted number", `"123.45"`, 123.45, false},
		{"integer string", `"5000"`, 5000, false},
		{"null", `null`, 0, false},
		{"empty string", `""`, 0, false},
		{"garbage string", `"abc"`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Number
			err := json.Unmarshal([]byte(tt.input), &n)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if !tt.wantErr && float64(n) != tt.want {
				t.Errorf("got %v, want %v", float64(n), tt.want)
			}
		})
	}
}

func TestActivityDecodesStringSizes(t *testing.T) {
	raw := `{
		"proxyWallet": "0xabc",
		"timestamp": 1700000000,
		"conditionId": "0xcond",
		"type": "TRADE",
		"size": "5000",
		"usdcSize": 2500.5,
		"price": "0.5",
		"side": "BUY",
		"outcomeIndex": 1,
		"transactionHash": "0xtx"
	}`

	var a Activity
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.Size != 5000 || a.USDCSize != 2500.5 || a.Price != 0.5 {
		t.Errorf("sizes = %v/%v/%v", a.Size, a.USDCSize, a.Price)
	}
	if a.Market != nil {
		t.Error("absent market must decode to nil")
	}
}

func TestNotional(t *testing.T) {
	tests := []struct {
		name     string
		activity Activity
		want     float64
	}{
		{"prefers usdcSize", Activity{USDCSize: 2500, Size: 5000, Price: 0.4}, 2500},
		{"falls back to size times price", Activity{Size: 5000, Price: 0.4}, 2000},
		{"zero trade", Activity{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.activity.Notional(); got != tt.want {
				t.Errorf("Notional() = %v, want %v", got, tt.want)
			}
		})
	}
}
