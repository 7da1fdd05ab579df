package models

// Remote configuration documents. Each one is stored as a single JSONB
// row keyed by name and can be edited by operators at runtime.

// SlotConfig holds per-provider ad slot settings
type SlotConfig struct {
	Enabled     bool    `json:"enabled"`
	Reward      float64 `json:"reward"`
	DailyLimit  int     `json:"dailyLimit"`
	HourlyLimit int     `json:"hourlyLimit"`
	CooldownSec int     `json:"cooldownSeconds"`
	WaitTimeSec int     `json:"waitTimeSeconds"`
	AppID       string  `json:"appId,omitempty"`
	VerifyURL   string  `json:"verifyUrl,omitempty"`
}

// AdsConfig holds all ad provider slot settings keyed by provider name
type AdsConfig struct {
	Providers map[string]SlotConfig `json:"providers"`
}

// Slot returns the settings for a provider, falling back to defaults
// for any zero-valued field the operator left out.
func (c *AdsConfig) Slot(provider string) SlotConfig {
	s, ok := c.Providers[provider]
	if !ok {
		s = SlotConfig{Enabled: true}
	}
	if s.Reward == 0 {
		s.Reward = 0.5
	}
	if s.DailyLimit == 0 {
		s.DailyLimit = 5
	}
	if s.HourlyLimit == 0 {
		s.HourlyLimit = 2
	}
	if s.CooldownSec == 0 {
		s.CooldownSec = 60
	}
	if s.WaitTimeSec == 0 {
		s.WaitTimeSec = 5
	}
	return s
}

// PaymentMethod represents one withdrawal rail shown in the wallet
type PaymentMethod struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	MinWithdrawal float64 `json:"minWithdrawal"`
	Enabled       bool    `json:"enabled"`
	IconURL       string  `json:"iconUrl,omitempty"`
}

// WalletConfig holds wallet and withdrawal settings
type WalletConfig struct {
	Currency             string          `json:"currency"`
	CurrencySymbol       string          `json:"currencySymbol"`
	DefaultMinWithdrawal float64         `json:"defaultMinWithdrawal"`
	MaintenanceMode      bool            `json:"maintenanceMode"`
	MaintenanceMessage   string          `json:"maintenanceMessage,omitempty"`
	PaymentMethods       []PaymentMethod `json:"paymentMethods"`
}

// MinWithdrawalFor returns the minimum amount for a payment method,
// falling back to the wallet default when the method sets none.
func (c *WalletConfig) MinWithdrawalFor(methodID string) float64 {
	for _, m := range c.PaymentMethods {
		if m.ID == methodID && m.MinWithdrawal > 0 {
			return m.MinWithdrawal
		}
	}
	if c.DefaultMinWithdrawal > 0 {
		return c.DefaultMinWithdrawal
	}
	return 10
}

// AppConfig holds app-wide settings
type AppConfig struct {
	AppName                string  `json:"appName"`
	LogoURL                string  `json:"logoUrl,omitempty"`
	SupportURL             string  `json:"supportUrl,omitempty"`
	TutorialVideoID        string  `json:"tutorialVideoId,omitempty"`
	ReferralCommissionRate float64 `json:"referralCommissionRate"`
}

// CommissionRate returns the referral commission rate, defaulting to 10%.
func (c *AppConfig) CommissionRate() float64 {
	if c == nil || c.ReferralCommissionRate <= 0 {
		return 0.10
	}
	return c.ReferralCommissionRate
}

// DeviceConfig holds the multi-account device restriction settings
type DeviceConfig struct {
	Enabled              bool `json:"enabled"`
	MaxAccountsPerDevice int  `json:"maxAccountsPerDevice"`
}

// GeoConfig holds the network guard settings
type GeoConfig struct {
	VPNRequired      bool     `json:"vpnRequired"`
	AllowedCountries []string `json:"allowedCountries"`
}
