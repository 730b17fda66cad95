package validate

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reCrop  = regexp.MustCompile(`^[\p{L}0-9 ()_'.,-]{1,80}$`)
	reSlot  = regexp.MustCompile(`^[\p{L}0-9 :()_.,/-]{1,40}$`)
)

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 120 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Name validates a displayable name with a reasonable max length.
func Name(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len([]rune(s)) > 60 {
		return "", false
	}
	return s, true
}

// Password enforces a length window; complexity is left to the client.
func Password(s string) bool {
	l := len(s)
	return l >= 8 && l <= 64
}

// Role accepts the self-service roles. Admins are provisioned out of band.
func Role(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	return s, s == "farmer" || s == "consumer"
}

func CropName(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reCrop.MatchString(s)
}

// Address is free text; only presence and length are checked.
func Address(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && len(s) <= 500
}

func Slot(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reSlot.MatchString(s)
}

func PaymentReference(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, len(s) <= 100
}

func Positive(d decimal.Decimal) bool    { return d.IsPositive() }
func NonNegative(d decimal.Decimal) bool { return !d.IsNegative() }

// Coordinates checks an optional lat/lng pair: both or neither.
func Coordinates(lat, lng *float64) bool {
	if lat == nil && lng == nil {
		return true
	}
	if lat == nil || lng == nil {
		return false
	}
	return *lat >= -90 && *lat <= 90 && *lng >= -180 && *lng <= 180
}
