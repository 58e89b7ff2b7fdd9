package common

import (
	"errors"
	"fmt"
	"strings"
)

type Environment int

const (
	Production Environment = iota
	Sandbox
)

func (e *Environment) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "", "production", "prod":
		*e = Production
	case "sandbox":
		*e = Sandbox
	default:
		return errors.New("invalid environment")
	}
	return nil
}

func (e Environment) String() string {
	switch e {
	case Production:
		return "production"
	case Sandbox:
		return "sandbox"
	default:
		return fmt.Sprintf("unknown<%d>", int(e))
	}
}

type IPSelectMode int

const (
	SelectFirst IPSelectMode = iota
	SelectLast
)

func (m *IPSelectMode) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "", "first":
		*m = SelectFirst
	case "last":
		*m = SelectLast
	default:
		return errors.New("invalid mode")
	}
	return nil
}

func (m IPSelectMode) String() string {
	switch m {
	case SelectFirst:
		return "first"
	case SelectLast:
		return "last"
	default:
		return fmt.Sprintf("unknown<%d>", int(m))
	}
}
