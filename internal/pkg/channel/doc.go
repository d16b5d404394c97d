package channel

// ID identifies a channel within its component.
type ID string

// Type is the declared value type of a channel.
type Type int

// Channel types
const (
	Integer Type = iota
	Float
	Boolean
	Enum
)

func (t Type) String() string {
	switch t {
	case Integer:
		return "INTEGER"
	case Float:
		return "FLOAT"
	case Boolean:
		return "BOOLEAN"
	case Enum:
		return "ENUM"
	}
	return "UNKNOWN"
}

// AccessMode restricts who may write a channel.
type AccessMode int

// Access modes
const (
	ReadOnly AccessMode = iota
	ReadWrite
	WriteOnly
)

// CanRead reports whether the current value may be read as a sensor value.
func (a AccessMode) CanRead() bool {
	return a != WriteOnly
}

// CanWrite reports whether commands may be staged.
func (a AccessMode) CanWrite() bool {
	return a != ReadOnly
}

func (a AccessMode) String() string {
	switch a {
	case ReadOnly:
		return "RO"
	case ReadWrite:
		return "RW"
	case WriteOnly:
		return "WO"
	}
	return "-"
}

// Unit documents the physical unit of a channel. It is not enforced.
type Unit string

// Units
const (
	None               Unit = ""
	Percent            Unit = "%"
	Millivolt          Unit = "mV"
	Volt               Unit = "V"
	Ampere             Unit = "A"
	Hertz              Unit = "Hz"
	Watt               Unit = "W"
	VoltAmpere         Unit = "VA"
	VoltAmpereReactive Unit = "var"
	WattHours          Unit = "Wh"
)

// Doc describes a channel.
type Doc struct {
	ID     ID
	Type   Type
	Unit   Unit
	Access AccessMode
	Text   string
}
