package region

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a supported region identifier.
type Code string

const (
	GB Code = "GB"
	US Code = "US"
	CA Code = "CA"
	AU Code = "AU"
	IE Code = "IE"
	DE Code = "DE"
	FR Code = "FR"
	NL Code = "NL"
)

// ErrInvalidRegion marks a region outside the supported set.
var ErrInvalidRegion = errors.New("invalid region")

var all = []Code{GB, US, CA, AU, IE, DE, FR, NL}

var names = map[Code]string{
	GB: "United Kingdom",
	US: "United States",
	CA: "Canada",
	AU: "Australia",
	IE: "Ireland",
	DE: "Germany",
	FR: "France",
	NL: "Netherlands",
}

var aliases = map[string]Code{
	"UK": GB,
}

// All returns the supported regions in display order.
func All() []Code {
	out := make([]Code, len(all))
	copy(out, all)
	return out
}

// Parse normalizes value into a supported Code.
func Parse(value string) (Code, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if alias, ok := aliases[normalized]; ok {
		return alias, nil
	}
	code := Code(normalized)
	if _, ok := names[code]; ok {
		return code, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRegion, value)
}

// ParseAll parses every value, failing on the first unsupported one.
// Duplicates are dropped while preserving order.
func ParseAll(values []string) ([]Code, error) {
	out := make([]Code, 0, len(values))
	seen := make(map[Code]struct{}, len(values))
	for _, value := range values {
		code, err := Parse(value)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out, nil
}

// Valid reports whether c is one of the supported regions.
func (c Code) Valid() bool {
	_, ok := names[c]
	return ok
}

// Name returns the territory's display name.
func (c Code) Name() string {
	if name, ok := names[c]; ok {
		return name
	}
	return string(c)
}

func (c Code) String() string {
	return string(c)
}
