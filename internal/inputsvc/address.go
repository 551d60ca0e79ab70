package inputsvc

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Address identifies a device across backends, e.g. "evdev/event3" or "virtual/mouse-1".
// It is written as that string and read from either the string or a {backend, id} object.
type Address struct {
	Backend string
	ID      string
}

type addressObject struct {
	Backend string `json:"backend" yaml:"backend"`
	ID      string `json:"id" yaml:"id"`
}

func ParseAddress(s string) (Address, error) {
	backend, id, ok := strings.Cut(s, "/")
	addr := Address{Backend: backend, ID: id}
	if !ok || strings.Contains(id, "/") {
		return Address{}, fmt.Errorf("invalid address: %s", s)
	}
	if err := addr.validate(); err != nil {
		return Address{}, err
	}
	return addr, nil
}

func (a Address) validate() error {
	if a.Backend == "" || a.ID == "" {
		return fmt.Errorf("invalid address %q: backend and id are required", a.String())
	}
	return nil
}

func (a Address) String() string {
	return a.Backend + "/" + a.ID
}

// MarshalText also makes Address usable as a JSON object key.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalJSON(data []byte) error {
	return a.decode(func(v any) error {
		return json.Unmarshal(data, v)
	})
}

func (a Address) MarshalYAML() (any, error) {
	return a.String(), nil
}

func (a *Address) UnmarshalYAML(unmarshal func(any) error) error {
	return a.decode(unmarshal)
}

// decode accepts the string form first and falls back to the object form.
func (a *Address) decode(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		if addr, err := ParseAddress(s); err == nil {
			*a = addr
			return nil
		}
	}
	var obj addressObject
	if err := unmarshal(&obj); err != nil {
		return fmt.Errorf("address must be a backend/id string or an object: %w", err)
	}
	addr := Address(obj)
	if err := addr.validate(); err != nil {
		return err
	}
	*a = addr
	return nil
}
