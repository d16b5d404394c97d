package modbuscomm

import (
	"fmt"
	"math"

	"github.com/ohowland/cgc_offgrid/internal/pkg/channel"
)

// ModbusComm interface
type ModbusComm interface {
	Read([]Register) (map[string]float64, error)
	Write([]Register, map[string]float64) error
}

// DataType defines the type of Modbus register for encoding/decoding
type DataType string

// Constants of DataType
const (
	u16 DataType = "u16"
	u32 DataType = "u32"
	u64 DataType = "u64"
	i16 DataType = "i16"
	i32 DataType = "i32"
	i64 DataType = "i64"
	f32 DataType = "f32"
	f64 DataType = "f64"
)

// Access devices the register read/write type
type Access string

const (
	ro Access = "read-only"
	wo Access = "write-only"
	rw Access = "read-write"
)

// Endian byte order of Modbus register for encoding/decoding
type Endian string

// Constants of Endian
const (
	littleEndian Endian = "little"
	bigEndian    Endian = "big"
)

// Function codes
const (
	readHoldingRegisters = 3
	readInputRegisters   = 4
)

// Register contains the data required to read and write a Modbus register,
// and the channel it maps to. The channel value is raw * 10^ScaleFactor.
type Register struct {
	Name         string     `yaml:"name"`
	Address      uint16     `yaml:"address"`
	DataType     DataType   `yaml:"dataType"`
	FunctionCode int        `yaml:"functionCode"`
	AccessType   Access     `yaml:"access"`
	Endianness   Endian     `yaml:"endianness"`
	ScaleFactor  int        `yaml:"scaleFactor"`
	Channel      channel.ID `yaml:"channel"`
}

// Validate checks the register definition.
func (r Register) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("register at %d has no name", r.Address)
	}
	if sizeOf(r.DataType) == 0 {
		return fmt.Errorf("register %s: unknown data type %q", r.Name, r.DataType)
	}
	switch r.AccessType {
	case ro, wo, rw:
	default:
		return fmt.Errorf("register %s: unknown access %q", r.Name, r.AccessType)
	}
	switch r.FunctionCode {
	case 0, readHoldingRegisters, readInputRegisters:
	default:
		return fmt.Errorf("register %s: unsupported function code %d", r.Name, r.FunctionCode)
	}
	if r.FunctionCode == readInputRegisters && r.AccessType != ro {
		return fmt.Errorf("register %s: input registers are read-only", r.Name)
	}
	return nil
}

func (r Register) scale() float64 {
	return math.Pow10(r.ScaleFactor)
}

// FilterRegisters returns registers from array with matching access type
func FilterRegisters(r []Register, a Access) []Register {
	filtered := make([]Register, 0)
	for _, reg := range r {
		if reg.AccessType == a || reg.AccessType == rw {
			filtered = append(filtered, reg)
		}
	}
	return filtered
}
