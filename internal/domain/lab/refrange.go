package lab

import (
	"math"
	"strconv"
	"strings"
)

// Classification is the verdict on a measured value against its reference range.
type Classification string

const (
	ClassNormal       Classification = "NORMAL"
	ClassAbnormal     Classification = "ABNORMAL"
	ClassCritical     Classification = "CRITICAL"
	ClassUnclassified Classification = "UNCLASSIFIED"
)

// Critical band factors relative to the normal range. Observed business rule
// carried over from the existing system; confirm with lab domain owners
// before treating as clinically authoritative.
const (
	criticalLowFactor  = 0.7
	criticalHighFactor = 1.3
)

// RefRange is a parsed "min-max" reference range. OK is false when the raw
// string could not be parsed; the raw text is kept for display either way.
type RefRange struct {
	Min float64
	Max float64
	Raw string
	OK  bool
}

// ParseRange parses a "min-max" reference range string, tolerating
// surrounding whitespace. Anything unparsable (empty string, non-numeric
// bounds, inverted bounds) yields a range with OK=false rather than an error:
// malformed range data is data, not a system fault.
func ParseRange(raw string) RefRange {
	r := RefRange{Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		return r
	}
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		return r
	}
	min, ok := parseFinite(lo)
	if !ok {
		return r
	}
	max, ok := parseFinite(hi)
	if !ok {
		return r
	}
	if min > max {
		return r
	}
	r.Min, r.Max, r.OK = min, max, true
	return r
}

// parseFinite parses a finite float. ParseFloat accepts "NaN" and "Inf",
// which would defeat every band comparison, so those are rejected here.
func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Classify evaluates a measured value against a reference range. It is a
// total function: a non-numeric value or an unusable range classifies as
// UNCLASSIFIED, never an error. The critical band is checked before the
// abnormal band so a value is assigned exactly one classification.
func Classify(value string, r RefRange) Classification {
	v, ok := parseFinite(value)
	if !ok || !r.OK {
		return ClassUnclassified
	}
	switch {
	case v < r.Min*criticalLowFactor || v > r.Max*criticalHighFactor:
		return ClassCritical
	case v < r.Min || v > r.Max:
		return ClassAbnormal
	default:
		return ClassNormal
	}
}
