package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyCode is a 3-letter uppercase currency identifier (ISO-4217-like).
type CurrencyCode string

// NoCurrency is reported as the target of plain arithmetic requests.
const NoCurrency CurrencyCode = "none"

// NormalizeCode trims and uppercases a raw currency code. It doesn't check the shape.
func NormalizeCode(raw string) CurrencyCode {
	return CurrencyCode(strings.ToUpper(strings.TrimSpace(raw)))
}

// IsValid reports whether the code is exactly three ASCII uppercase letters.
func (c CurrencyCode) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	for i := 0; i < len(c); i++ {
		if c[i] < 'A' || c[i] > 'Z' {
			return false
		}
	}
	return true
}

func (c CurrencyCode) String() string { return string(c) }

type RatePair struct {
	Base  CurrencyCode
	Quote CurrencyCode
}

func (p RatePair) Reversed() RatePair {
	return RatePair{
		Base:  p.Quote,
		Quote: p.Base,
	}
}

func (p RatePair) String() string { return string(p.Base) + "/" + string(p.Quote) }

// Rate is a single quoted pair as read from a snapshot.
type Rate struct {
	Base      CurrencyCode
	Quote     CurrencyCode
	Value     decimal.Decimal
	Version   uint64
	UpdatedAt time.Time
}

// RateChange describes how a pivot-quoted rate moved between two consecutive snapshots.
type RateChange struct {
	Base          CurrencyCode     `json:"base"`
	Quote         CurrencyCode     `json:"quote"`
	OldRate       *decimal.Decimal `json:"old_rate,omitempty"`
	NewRate       decimal.Decimal  `json:"new_rate"`
	ChangePercent *decimal.Decimal `json:"change_percent,omitempty"`
	Version       uint64           `json:"version"`
	Updated       time.Time        `json:"updated"`
}

// RateScale is the number of fractional digits kept for derived rates and
// for divisions that don't terminate.
const RateScale int32 = 16
