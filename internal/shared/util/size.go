package util

import (
	"errors"
	"math"
	"strconv"
)

const (
	kib = 1024
	mib = kib * 1024
	gib = mib * 1024
)

// ErrInvalidSize is returned by FormatSize for negative or non-finite input.
var ErrInvalidSize = errors.New("size must be a non-negative finite number of bytes")

// FormatSize renders a byte count as KB, MB or GB. Values below 10 keep two
// decimals, below 100 one decimal, otherwise none; trailing zeros are dropped.
func FormatSize(bytes float64) (string, error) {
	if math.IsNaN(bytes) || math.IsInf(bytes, 0) || bytes < 0 {
		return "", ErrInvalidSize
	}
	switch {
	case bytes >= gib:
		return formatUnit(bytes/gib) + " GB", nil
	case bytes >= mib:
		return formatUnit(bytes/mib) + " MB", nil
	default:
		return formatUnit(bytes/kib) + " KB", nil
	}
}

// MustFormatSize is FormatSize for sizes that are known to be valid, such as
// lengths of byte slices.
func MustFormatSize(n int64) string {
	s, err := FormatSize(float64(n))
	if err != nil {
		return "0 KB"
	}
	return s
}

func formatUnit(value float64) string {
	prec := 2
	switch {
	case value >= 100:
		prec = 0
	case value >= 10:
		prec = 1
	}
	fixed := strconv.FormatFloat(value, 'f', prec, 64)
	parsed, err := strconv.ParseFloat(fixed, 64)
	if err != nil {
		return fixed
	}
	return strconv.FormatFloat(parsed, 'f', -1, 64)
}
