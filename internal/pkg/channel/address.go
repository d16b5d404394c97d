package channel

import (
	"fmt"
	"strings"
)

// Address locates a channel across components, e.g. "io0/DigitalInput1".
type Address struct {
	Component string
	Channel   ID
}

// ParseAddress parses "component/Channel".
func ParseAddress(s string) (Address, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Address{}, fmt.Errorf("invalid channel address %q", s)
	}
	return Address{Component: parts[0], Channel: ID(parts[1])}, nil
}

func (a Address) String() string {
	return a.Component + "/" + string(a.Channel)
}

// UnmarshalText implements encoding.TextUnmarshaler for config decoding.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
