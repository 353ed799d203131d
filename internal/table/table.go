// Package table resolves the table number a session orders for.
package table

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrInvalidCode        = errors.New("code is not valid for table ordering")
	ErrMissingTableNumber = errors.New("table number required")
)

var (
	tableParam = regexp.MustCompile(`table=(\d+)`)
	allDigits  = regexp.MustCompile(`^\d+$`)
)

// FromScan extracts the table number from a decoded code payload. A payload
// that mentions table= must carry digits after it; otherwise the whole
// payload has to be digits.
func FromScan(payload string) (string, error) {
	if strings.Contains(payload, "table=") {
		m := tableParam.FindStringSubmatch(payload)
		if m == nil {
			return "", errors.Wrapf(ErrInvalidCode, "%q", payload)
		}
		return m[1], nil
	}
	if allDigits.MatchString(payload) {
		return payload, nil
	}
	return "", errors.Wrapf(ErrInvalidCode, "%q", payload)
}

// FromInput accepts operator-typed text verbatim once trimmed.
func FromInput(text string) (string, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return "", ErrMissingTableNumber
	}
	return t, nil
}
