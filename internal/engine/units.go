package engine

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

var weiPerEther = new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// ParseEther converts a decimal amount such as "0.01" to wei.
func ParseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	r, ok := new(big.Rat).SetString(s)
	if !ok || strings.ContainsAny(s, "/eE") {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("amount %q is negative", s)
	}
	r.Mul(r, weiPerEther)
	if !r.IsInt() {
		return nil, fmt.Errorf("amount %q has more than 18 decimals", s)
	}
	return new(big.Int).Set(r.Num()), nil
}

// CooldownRemaining is last+cooldown-now in whole seconds, or zero when the
// cooldown has elapsed or there was no previous event.
func CooldownRemaining(last time.Time, cooldown time.Duration, now time.Time) time.Duration {
	if last.IsZero() {
		return 0
	}
	wait := last.Add(cooldown).Sub(now.Truncate(time.Second))
	if wait <= 0 {
		return 0
	}
	return wait
}

// FormatDuration renders d rounded up to seconds as "1h 2m 3s", "2m 3s"
// or "3s".
func FormatDuration(d time.Duration) string {
	s := int64((d + time.Second - 1) / time.Second)
	if s < 0 {
		s = 0
	}
	h, m, sec := s/3600, (s%3600)/60, s%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, sec)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}

// ShortAddress renders 0x1234…abcd.
func ShortAddress(a string) string {
	if len(a) < 10 {
		if a == "" {
			return "-"
		}
		return a
	}
	return a[:6] + "…" + a[len(a)-4:]
}
