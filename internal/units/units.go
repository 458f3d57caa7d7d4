package units

import (
	"fmt"
	"strconv"
	"strings"
)

// binaryUnits are the display units used by FormatBytes, smallest first.
var binaryUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}

// unitFactors maps a lowercased unit suffix to its byte multiplier and
// canonical spelling. Decimal prefixes scale by 1000, binary prefixes by
// 1024. A bare prefix letter is read as its decimal form.
var unitFactors = map[string]struct {
	factor    uint64
	canonical string
}{
	"":    {1, "B"},
	"b":   {1, "B"},
	"k":   {1_000, "kB"},
	"kb":  {1_000, "kB"},
	"m":   {1_000_000, "MB"},
	"mb":  {1_000_000, "MB"},
	"g":   {1_000_000_000, "GB"},
	"gb":  {1_000_000_000, "GB"},
	"t":   {1_000_000_000_000, "TB"},
	"tb":  {1_000_000_000_000, "TB"},
	"p":   {1_000_000_000_000_000, "PB"},
	"pb":  {1_000_000_000_000_000, "PB"},
	"eb":  {1_000_000_000_000_000_000, "EB"},
	"kib": {1 << 10, "KiB"},
	"mib": {1 << 20, "MiB"},
	"gib": {1 << 30, "GiB"},
	"tib": {1 << 40, "TiB"},
	"pib": {1 << 50, "PiB"},
	"eib": {1 << 60, "EiB"},
}

// ParseError describes a byte quantity that could not be parsed.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid byte quantity %q: %s", e.Input, e.Reason)
}

// Size is a byte quantity that remembers the unit it was specified with,
// so a threshold configured as "10GB" renders back as "10 GB" rather than
// its raw byte count.
type Size struct {
	value float64
	unit  string
	bytes uint64
}

// Bytes returns the exact byte count of the quantity.
func (s Size) Bytes() uint64 {
	return s.bytes
}

// String renders the quantity in the unit it was specified with.
func (s Size) String() string {
	if s.unit == "" {
		return "0 B"
	}
	return strconv.FormatFloat(s.value, 'f', -1, 64) + " " + s.unit
}

// IsZero reports whether the quantity is zero bytes.
func (s Size) IsZero() bool {
	return s.bytes == 0
}

// Parse reads a byte quantity such as "10GB", "2.5 MiB" or "512". The
// coefficient may be an integer or a decimal, optionally separated from the
// unit by spaces. Decimal suffixes (kB, MB, GB, TB, PB, EB) scale by 1000,
// binary suffixes (KiB, MiB, GiB, TiB, PiB, EiB) by 1024; matching ignores
// case. A missing suffix means bytes. Returns a *ParseError on a
// non-numeric coefficient, a negative value, or an unknown suffix.
func Parse(s string) (Size, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Size{}, &ParseError{Input: s, Reason: "empty quantity"}
	}

	// Split a trailing run of letters off as the unit suffix.
	i := len(trimmed)
	for i > 0 {
		c := trimmed[i-1]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			i--
			continue
		}
		break
	}
	num := strings.TrimSpace(trimmed[:i])
	suffix := trimmed[i:]

	if num == "" {
		return Size{}, &ParseError{Input: s, Reason: "missing numeric coefficient"}
	}

	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Size{}, &ParseError{Input: s, Reason: "non-numeric coefficient"}
	}
	if value < 0 {
		return Size{}, &ParseError{Input: s, Reason: "negative quantity"}
	}

	unit, ok := unitFactors[strings.ToLower(suffix)]
	if !ok {
		return Size{}, &ParseError{Input: s, Reason: fmt.Sprintf("unrecognized unit %q", suffix)}
	}

	return Size{
		value: value,
		unit:  unit.canonical,
		bytes: uint64(value * float64(unit.factor)),
	}, nil
}

// FormatBytes renders a byte count using the largest binary unit that keeps
// the scaled value below 1024, with two decimal places ("3.25 GiB").
func FormatBytes(n uint64) string {
	value := float64(n)
	idx := 0
	for value >= 1024 && idx < len(binaryUnits)-1 {
		value /= 1024
		idx++
	}
	return fmt.Sprintf("%.2f %s", value, binaryUnits[idx])
}
