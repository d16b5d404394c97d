package channel

import (
	"fmt"
	"math"

	"github.com/ohowland/cgc_offgrid/internal/pkg/fault"
)

// Channel is the type-erased view of a channel. Components hold their
// channels through it; field-bus bridges use the numeric accessors, which
// convert explicitly according to the declared Type.
type Channel interface {
	ID() ID
	Doc() Doc
	// NextProcessImage makes the next value current.
	NextProcessImage()
	// SetNextNumber stages a sensed value read from a numeric source.
	SetNextNumber(float64) error
	// SetNextUndefined stages an undefined value.
	SetNextUndefined()
	// TakeWriteNumber returns and clears the staged write.
	TakeWriteNumber() (float64, bool)
	String() string
}

// Of is a typed process variable with current, next and next-write buffers.
type Of[T any] struct {
	doc        Doc
	current    Value[T]
	next       Value[T]
	nextWrite  Value[T]
	toNumber   func(T) float64
	fromNumber func(float64) (T, error)
}

// NewInteger returns an integer channel.
func NewInteger(doc Doc) *Of[int] {
	doc.Type = Integer
	return &Of[int]{
		doc:      doc,
		toNumber: func(v int) float64 { return float64(v) },
		fromNumber: func(n float64) (int, error) {
			return int(math.Round(n)), nil
		},
	}
}

// NewFloat returns a float channel.
func NewFloat(doc Doc) *Of[float64] {
	doc.Type = Float
	return &Of[float64]{
		doc:        doc,
		toNumber:   func(v float64) float64 { return v },
		fromNumber: func(n float64) (float64, error) { return n, nil },
	}
}

// NewBoolean returns a boolean channel. Numeric sources map non-zero to true.
func NewBoolean(doc Doc) *Of[bool] {
	doc.Type = Boolean
	return &Of[bool]{
		doc: doc,
		toNumber: func(v bool) float64 {
			if v {
				return 1
			}
			return 0
		},
		fromNumber: func(n float64) (bool, error) { return n != 0, nil },
	}
}

// NewEnum returns an enumeration channel accepting only the given options.
func NewEnum[T OptionsEnum](doc Doc, options ...T) *Of[T] {
	doc.Type = Enum
	return &Of[T]{
		doc:      doc,
		toNumber: func(v T) float64 { return float64(v.Code()) },
		fromNumber: func(n float64) (T, error) {
			code := int(math.Round(n))
			for _, o := range options {
				if o.Code() == code {
					return o, nil
				}
			}
			var zero T
			return zero, fmt.Errorf("%w: %s has no option with code %d", fault.ErrTypeMismatch, doc.ID, code)
		},
	}
}

// ID returns the channel identifier.
func (c *Of[T]) ID() ID {
	return c.doc.ID
}

// Doc returns the channel description.
func (c *Of[T]) Doc() Doc {
	return c.doc
}

// SetNext stages a sensed value. The last call before the next process
// image wins.
func (c *Of[T]) SetNext(v T) {
	c.next = NewValue(v)
}

// SetNextValue stages v, which may be undefined.
func (c *Of[T]) SetNextValue(v Value[T]) {
	c.next = v
}

// SetNextUndefined stages an undefined value.
func (c *Of[T]) SetNextUndefined() {
	c.next = Undefined[T]()
}

// Next returns the staged value.
func (c *Of[T]) Next() Value[T] {
	return c.next
}

// Current returns the value as of the last process image. Reading a
// write-only channel as a sensor is an error.
func (c *Of[T]) Current() (Value[T], error) {
	if !c.doc.Access.CanRead() {
		return Undefined[T](), fmt.Errorf("%w: read of write-only channel %s", fault.ErrAccessDenied, c.doc.ID)
	}
	return c.current, nil
}

// NextProcessImage makes the next value current. Next is kept, so a missing
// reading leaves the previous value current.
func (c *Of[T]) NextProcessImage() {
	c.current = c.next
}

// StageWrite stages a command for the actuating side, replacing any write
// not yet taken.
func (c *Of[T]) StageWrite(v T) error {
	if !c.doc.Access.CanWrite() {
		return fmt.Errorf("%w: write to read-only channel %s", fault.ErrAccessDenied, c.doc.ID)
	}
	c.nextWrite = NewValue(v)
	return nil
}

// PeekWrite returns the staged write without consuming it.
func (c *Of[T]) PeekWrite() Value[T] {
	return c.nextWrite
}

// TakeWrite returns and clears the staged write.
func (c *Of[T]) TakeWrite() Value[T] {
	v := c.nextWrite
	c.nextWrite = Undefined[T]()
	return v
}

// SetNextNumber converts n to the channel type and stages it.
func (c *Of[T]) SetNextNumber(n float64) error {
	v, err := c.fromNumber(n)
	if err != nil {
		return err
	}
	c.SetNext(v)
	return nil
}

// TakeWriteNumber takes the staged write as a number.
func (c *Of[T]) TakeWriteNumber() (float64, bool) {
	v, ok := c.TakeWrite().Get()
	if !ok {
		return 0, false
	}
	return c.toNumber(v), true
}

func (c *Of[T]) String() string {
	if !c.current.IsDefined() || c.doc.Unit == None {
		return c.current.String()
	}
	return c.current.String() + " " + string(c.doc.Unit)
}
