package utils

import (
	"testing"
)

func TestValidateSymbol(t *testing.T) {
	tests := []struct {
		name    string
		symbol  string
		wantErr bool
	}{
		// Valid symbols
		{"valid BTCUSDT", "BTCUSDT", false},
		{"valid ETHUSDT", "ETHUSDT", false},
		{"valid lowercase", "btcusdt", false},
		{"valid with hyphen", "BTC-USDT", false},
		{"valid with underscore", "BTC_USDT", false},
		{"valid with slash", "BTC/USDT", false},
		{"valid short", "XY", false},
		{"valid with numbers", "1INCH", false},

		// Invalid symbols
		{"empty", "", true},
		{"single char", "B", true},
		{"too long", "BTCUSDTBTCUSDTBTCUSDTBTCUSDTXXX", true},
		{"special chars", "BTC@USDT", true},
		{"spaces", "BTC USDT", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSymbol(tt.symbol)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSymbol(%q) error = %v, wantErr %v", tt.symbol, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase", "btcusdt", "BTCUSDT"},
		{"with hyphen", "btc-usdt", "BTCUSDT"},
		{"with underscore", "BTC_USDT", "BTCUSDT"},
		{"with slash", "btc/usdt", "BTCUSDT"},
		{"already normalized", "BTCUSDT", "BTCUSDT"},
		{"mixed case with hyphen", "Btc-Usdt", "BTCUSDT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeSymbol(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeSymbol(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestValidateTimeframe(t *testing.T) {
	valid := []string{"1", "5", "15", "60", "240", "D", "W", "M"}
	for _, tf := range valid {
		if err := ValidateTimeframe(tf); err != nil {
			t.Errorf("ValidateTimeframe(%q) unexpected error: %v", tf, err)
		}
	}

	invalid := []string{"", "1h", "day", "0"}
	for _, tf := range invalid {
		if err := ValidateTimeframe(tf); err == nil {
			t.Errorf("ValidateTimeframe(%q) expected error", tf)
		}
	}
}

func TestValidateSide(t *testing.T) {
	if err := ValidateSide("long"); err != nil {
		t.Errorf("ValidateSide(long) unexpected error: %v", err)
	}
	if err := ValidateSide("short"); err != nil {
		t.Errorf("ValidateSide(short) unexpected error: %v", err)
	}
	if err := ValidateSide("Buy"); err == nil {
		t.Error("ValidateSide(Buy) expected error")
	}
	if err := ValidateSide(""); err == nil {
		t.Error("ValidateSide(\"\") expected error")
	}
}
