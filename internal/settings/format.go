package settings

import (
	"fmt"
	"strconv"
)

// NumberFormat selects how values are rendered for display and run logs.
type NumberFormat int

const (
	Sci2 NumberFormat = iota
	Sci5
	Std2
	Std5
)

var formatNames = map[NumberFormat]string{
	Sci2: "0.00E0",
	Sci5: "0.00000E0",
	Std2: "0.00",
	Std5: "0.00000",
}

// Formats lists every number format in declaration order.
func Formats() []NumberFormat {
	return []NumberFormat{Sci2, Sci5, Std2, Std5}
}

// String returns the canonical display string used in persisted records.
func (f NumberFormat) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("NumberFormat(%d)", int(f))
}

// ParseNumberFormat matches s case-for-case against the display strings.
func ParseNumberFormat(s string) (NumberFormat, error) {
	for f, name := range formatNames {
		if name == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown number format %q", s)
}

// Format renders v with the format's precision.
func (f NumberFormat) Format(v float64) string {
	switch f {
	case Sci2:
		return strconv.FormatFloat(v, 'E', 2, 64)
	case Sci5:
		return strconv.FormatFloat(v, 'E', 5, 64)
	case Std2:
		return strconv.FormatFloat(v, 'f', 2, 64)
	default:
		return strconv.FormatFloat(v, 'f', 5, 64)
	}
}

func (f NumberFormat) MarshalText() ([]byte, error) {
	if _, ok := formatNames[f]; !ok {
		return nil, fmt.Errorf("invalid number format %d", int(f))
	}
	return []byte(f.String()), nil
}

func (f *NumberFormat) UnmarshalText(b []byte) error {
	parsed, err := ParseNumberFormat(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
