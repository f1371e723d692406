package config

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// TrackedAccount is a wallet address the account monitor watches.
type TrackedAccount struct {
	Address string `yaml:"address" validate:"required,len=42,startswith=0x"`
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled" default:"true"`
}

// IsEnabled reports whether the account should be monitored.
func (a *TrackedAccount) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// TrackedMarket is a market the market/trade/smart-money monitors watch.
// EventID is optional; live-volume lookups need it.
type TrackedMarket struct {
	ConditionID string `yaml:"conditionId" validate:"required"`
	Name        string `yaml:"name"`
	EventID     int64  `yaml:"eventId"`
	Enabled     *bool  `yaml:"enabled" default:"true"`
}

// IsEnabled reports whether the market should be monitored.
func (m *TrackedMarket) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Tracked is the on-disk list of monitored accounts and markets.
type Tracked struct {
	Accounts []TrackedAccount `yaml:"accounts" validate:"dive"`
	Markets  []TrackedMarket  `yaml:"markets" validate:"dive"`
}

// LoadTracked reads the tracked-entity YAML file. A missing file is not an
// error; it yields an empty set so the bot can run with nothing tracked.
func LoadTracked(path string) (*Tracked, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Tracked{}, nil
		}
		return nil, fmt.Errorf("read tracked config %s: %w", path, err)
	}

	var tracked Tracked
	if err := yaml.Unmarshal(data, &tracked); err != nil {
		return nil, fmt.Errorf("parse tracked config %s: %w", path, err)
	}

	if err := defaults.Set(&tracked); err != nil {
		return nil, fmt.Errorf("apply tracked config defaults: %w", err)
	}

	if err := validator.New().Struct(&tracked); err != nil {
		return nil, fmt.Errorf("validate tracked config %s: %w", path, err)
	}

	return &tracked, nil
}
