package matrix

// Sentinel is the literal used by workflow files to mean "leave the variable
// unset". It is converted to a sentinel Value when a file is loaded and never
// compared against after that.
const Sentinel = "default"

type valueState uint8

const (
	absent valueState = iota
	sentinel
	present
)

// Value is an optional axis value. It is absent (nothing declared), an
// explicit sentinel (declared as "leave unset") or present. The zero Value is
// absent.
type Value struct {
	v     string
	state valueState
}

// Some returns a present Value.
func Some(v string) Value { return Value{v: v, state: present} }

// None returns an absent Value.
func None() Value { return Value{} }

// Unset returns the explicit sentinel Value.
func Unset() Value { return Value{state: sentinel} }

// ParseValue converts raw text from a workflow or matrix file into a Value.
// Empty text is absent and the sentinel literal is the explicit sentinel.
func ParseValue(raw string) Value {
	switch raw {
	case "":
		return None()
	case Sentinel:
		return Unset()
	}
	return Some(raw)
}

// IsSet reports whether the value is present.
func (v Value) IsSet() bool { return v.state == present }

// IsSentinel reports whether the value was declared as the sentinel.
func (v Value) IsSentinel() bool { return v.state == sentinel }

// IsAbsent reports whether nothing was declared at all.
func (v Value) IsAbsent() bool { return v.state == absent }

// Get returns the value and whether it is present.
func (v Value) Get() (string, bool) { return v.v, v.state == present }

// Or returns fallback only when v is absent. A sentinel is kept.
func (v Value) Or(fallback Value) Value {
	if v.state == absent {
		return fallback
	}
	return v
}

func (v Value) String() string {
	switch v.state {
	case present:
		return v.v
	case sentinel:
		return Sentinel
	}
	return "<unset>"
}
