// Package phone normalizes contact numbers to E.164.
package phone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var ErrInvalid = errors.New("invalid phone number")

// Normalizer parses numbers written in local or international form.
// Numbers without a leading "+" are read in the default region.
type Normalizer struct {
	region string
}

func NewNormalizer(defaultRegion string) *Normalizer {
	if defaultRegion == "" {
		defaultRegion = "US"
	}
	return &Normalizer{region: strings.ToUpper(defaultRegion)}
}

// Normalize returns raw in E.164 form, e.g. "+14155550123".
func (n *Normalizer) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalid)
	}
	num, err := phonenumbers.Parse(raw, n.region)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalid, raw, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: %q", ErrInvalid, raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// NormalizePtr normalizes an optional number; nil stays nil.
func (n *Normalizer) NormalizePtr(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	out, err := n.Normalize(*raw)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
