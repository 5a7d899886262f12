package parser

import (
	"fmt"
	"strconv"
)

// parseInt parses a decimal integer literal lexeme, mirroring the
// teacher's tree.go parseInteger helper but keeping the full int64 range
// instead of truncating to int32.
func parseInt(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse integer literal %q: %s", s, err)
	}
	return v, nil
}

// parseFloat parses a decimal float literal lexeme.
func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse float literal %q: %s", s, err)
	}
	return v, nil
}
