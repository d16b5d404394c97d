package channel

import "fmt"

// OptionsEnum is implemented by enumerations carried in channels. Every
// option has a numeric code and a symbolic name.
type OptionsEnum interface {
	Code() int
	Name() string
}

// Value is an optional process value. The zero Value is undefined.
type Value[T any] struct {
	value   T
	defined bool
}

// NewValue returns a defined Value.
func NewValue[T any](v T) Value[T] {
	return Value[T]{value: v, defined: true}
}

// Undefined returns an undefined Value.
func Undefined[T any]() Value[T] {
	return Value[T]{}
}

// Get returns the value and whether it is defined.
func (v Value[T]) Get() (T, bool) {
	return v.value, v.defined
}

// IsDefined reports whether the value is defined.
func (v Value[T]) IsDefined() bool {
	return v.defined
}

// OrElse returns the value, or def if undefined.
func (v Value[T]) OrElse(def T) T {
	if !v.defined {
		return def
	}
	return v.value
}

func (v Value[T]) String() string {
	if !v.defined {
		return "UNDEFINED"
	}
	if e, ok := any(v.value).(OptionsEnum); ok {
		return e.Name()
	}
	return fmt.Sprint(v.value)
}
