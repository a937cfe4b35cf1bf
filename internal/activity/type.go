package activity

import (
	"fmt"
	"strings"
)

// Type is the kind of an activity. The zero value is not a valid type.
type Type int

const (
	Running Type = iota + 1
	Basketball
	Biking
)

var typeNames = map[Type]string{
	Running:    "RUNNING",
	Basketball: "BASKETBALL",
	Biking:     "BIKING",
}

var typesByName = map[string]Type{
	"RUNNING":    Running,
	"BASKETBALL": Basketball,
	"BIKING":     Biking,
}

// AllTypes returns every known activity type, in declaration order.
func AllTypes() []Type {
	return []Type{Running, Basketball, Biking}
}

// ParseType maps a stored type name back to its Type. Unknown names fail.
func ParseType(name string) (Type, error) {
	t, ok := typesByName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}

func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// String returns the stored name of the type.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

func (t Type) MarshalText() ([]byte, error) {
	name, ok := typeNames[t]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	return []byte(name), nil
}

// UnmarshalText accepts type names case-insensitively, e.g. from config or flags.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(strings.ToUpper(strings.TrimSpace(string(text))))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
