// Package bytesize parses and formats human readable byte quantities
// such as "64M" or "1.5G". Suffixes are binary: K, M, G and T scale by
// powers of 1024.
package bytesize

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Size is a byte count. It implements encoding.TextUnmarshaler, so a
// Size field in a decoded config struct accepts both bare integers and
// suffixed strings.
type Size int64

// Binary units. "1K" parses to KiB, not 1000 bytes.
const (
	KiB Size = 1 << (10 * (iota + 1))
	MiB
	GiB
	TiB
)

// ErrInvalidFormat reports input that is neither a positive integer nor
// a positive decimal quantity with a K, M, G or T suffix.
var ErrInvalidFormat = errors.New("bytesize: invalid size format")

// Parse converts a human readable size into a byte count.
//
// Two forms are accepted: a bare integer taken as a raw byte count
// ("1048576"), or a decimal quantity followed by a single binary suffix
// ("64M", "1.5G", "512k"). The quantity must be positive in both forms.
func Parse(s string) (Size, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty input", ErrInvalidFormat)
	}
	if mult, ok := suffixMult(s[len(s)-1]); ok {
		q, err := strconv.ParseFloat(s[:len(s)-1], 64)
		if err != nil || math.IsNaN(q) || math.IsInf(q, 0) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
		}
		if q <= 0 {
			return 0, fmt.Errorf("%w: %q is not positive", ErrInvalidFormat, s)
		}
		b := q * float64(mult)
		if b >= math.MaxInt64 {
			return 0, fmt.Errorf("%w: %q overflows int64", ErrInvalidFormat, s)
		}
		// Fractions below one byte truncate to zero; treat them as
		// non-positive input.
		if Size(b) <= 0 {
			return 0, fmt.Errorf("%w: %q is not positive", ErrInvalidFormat, s)
		}
		return Size(b), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %q is not positive", ErrInvalidFormat, s)
	}
	return Size(n), nil
}

// MustParse is Parse for sizes known at compile time. It panics on error.
func MustParse(s string) Size {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func suffixMult(c byte) (Size, bool) {
	switch c {
	case 'K', 'k':
		return KiB, true
	case 'M', 'm':
		return MiB, true
	case 'G', 'g':
		return GiB, true
	case 'T', 't':
		return TiB, true
	}
	return 0, false
}

// Bytes returns the size as a plain int64.
func (s Size) Bytes() int64 { return int64(s) }

// String formats the size using the largest suffix that divides it
// exactly, falling back to a plain byte count. Output round-trips
// through Parse.
func (s Size) String() string {
	switch {
	case s >= TiB && s%TiB == 0:
		return strconv.FormatInt(int64(s/TiB), 10) + "T"
	case s >= GiB && s%GiB == 0:
		return strconv.FormatInt(int64(s/GiB), 10) + "G"
	case s >= MiB && s%MiB == 0:
		return strconv.FormatInt(int64(s/MiB), 10) + "M"
	case s >= KiB && s%KiB == 0:
		return strconv.FormatInt(int64(s/KiB), 10) + "K"
	}
	return strconv.FormatInt(int64(s), 10)
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Size) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
