package arataga

import (
	"fmt"
	"math"
)

// BandlimValue is the unit used for bandwidth limits and quotas: bytes
// per second, or per tick once promoted into a [Quote].
type BandlimValue = uint64

// Unlimited is the BandlimValue that means "no limit" in a [BandlimConfig].
// Internally a [Quote] stores it as the maximum representable value so
// that arithmetic on a quota never overflows into a smaller finite limit
// (§3 "Quota").
const Unlimited BandlimValue = 0

// BandlimConfig is the directive (raw, as-configured) bandwidth limit for
// one channel: bytes/second allowed in each direction. A zero field means
// unlimited, or "inherit the default" when merged via [mergeBandlimConfig].
type BandlimConfig struct {
	In  BandlimValue
	Out BandlimValue
}

// IsUnlimited reports whether v represents "no limit".
func IsUnlimited(v BandlimValue) bool { return v == Unlimited }

func (c BandlimConfig) String() string {
	fmtVal := func(v BandlimValue) string {
		if IsUnlimited(v) {
			return "unlimited"
		}
		return fmt.Sprintf("%d", v)
	}
	return fmt.Sprintf("in=%s, out=%s", fmtVal(c.In), fmtVal(c.Out))
}

// mergeBandlimConfig merges a user's personal limits with the system
// defaults: an unlimited (zero) field in personal inherits the
// corresponding default field (§3 "Bandwidth manager").
func mergeBandlimConfig(personal, defaults BandlimConfig) BandlimConfig {
	pick := func(p, d BandlimValue) BandlimValue {
		if IsUnlimited(p) {
			return d
		}
		return p
	}
	return BandlimConfig{
		In:  pick(personal.In, defaults.In),
		Out: pick(personal.Out, defaults.Out),
	}
}

// quoteMax is the internal representation of "unlimited" quota, chosen so
// that reserved+actual additions never wrap around (§3 "Quota").
const quoteMax = math.MaxUint64

// Quote is a bandwidth config value promoted so "unlimited" becomes the
// maximum representable number (§3 "Quota").
type Quote struct {
	raw BandlimValue
}

// NewQuote promotes a raw directive value (0 == unlimited) into a Quote.
func NewQuote(limit BandlimValue) Quote {
	if IsUnlimited(limit) {
		return Quote{raw: quoteMax}
	}
	return Quote{raw: limit}
}

// Value returns the effective numeric quota (quoteMax for unlimited).
func (q Quote) Value() BandlimValue { return q.raw }

func (q Quote) String() string {
	if q.raw == quoteMax {
		return "unlimited"
	}
	return fmt.Sprintf("%d", q.raw)
}

// scaleQuote applies the tick's elapsed-time multiplier to a quote,
// rounding half-up, as used by
// [BandlimManager.UpdateTrafficCountersForNewTurn] (§4.3, §4.4).
// An unlimited quote stays unlimited regardless of the multiplier.
func scaleQuote(q Quote, multiplier float64) BandlimValue {
	if q.raw == quoteMax {
		return quoteMax
	}
	scaled := float64(q.raw)*multiplier + 0.5
	if scaled >= float64(quoteMax) {
		return quoteMax
	}
	if scaled < 0 {
		return 0
	}
	return BandlimValue(scaled)
}
