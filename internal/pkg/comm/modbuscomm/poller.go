package modbuscomm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goburrow/modbus"
	"go.uber.org/zap"
)

// Poller reads and writes a Modbus/TCP target
type Poller struct {
	handler *modbus.TCPClientHandler
	retry   time.Duration
	logger  *zap.Logger
}

// PollerConfig is the configuration format for Poller
type PollerConfig struct {
	IPAddr       string `yaml:"ipAddr"`
	Port         string `yaml:"port"`
	SlaveID      byte   `yaml:"slaveId"`
	Timeout      int    `yaml:"timeout"`
	ConnectRetry int    `yaml:"connectRetry"`
	EnableLogger bool   `yaml:"enableLogger"`
}

// NewPoller is a factory for the Poller struct. Timeout and ConnectRetry are
// in milliseconds.
func NewPoller(cfg PollerConfig, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("modbus")

	handler := modbus.NewTCPClientHandler(cfg.IPAddr + ":" + cfg.Port)
	handler.Timeout = time.Millisecond * time.Duration(cfg.Timeout)
	handler.SlaveId = cfg.SlaveID

	if cfg.EnableLogger {
		handler.Logger = zap.NewStdLog(logger)
	}

	return &Poller{
		handler: handler,
		retry:   time.Millisecond * time.Duration(cfg.ConnectRetry),
		logger:  logger,
	}
}

// connect dials the target, retrying with exponential backoff for at most the
// configured retry window.
func (m *Poller) connect() error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = m.retry
	if m.retry <= 0 {
		return m.handler.Connect()
	}
	return backoff.RetryNotify(m.handler.Connect, bo, func(err error, d time.Duration) {
		m.logger.Debug("connect failed, retrying", zap.Error(err), zap.Duration("in", d))
	})
}

func (m *Poller) Read(registers []Register) (map[string]float64, error) {
	err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.handler.Close()

	client := modbus.NewClient(m.handler)
	readValues := make(map[string]float64)
	var errs []error
	for _, register := range registers {
		var resp []byte
		var readErr error
		if register.FunctionCode == readInputRegisters {
			resp, readErr = client.ReadInputRegisters(register.Address, sizeOf(register.DataType))
		} else {
			resp, readErr = client.ReadHoldingRegisters(register.Address, sizeOf(register.DataType))
		}
		if readErr != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", register.Name, readErr))
			continue
		}
		readValues[register.Name] = decode(resp, register)
	}
	return readValues, errors.Join(errs...)
}

func (m *Poller) Write(registers []Register, writeValues map[string]float64) error {
	err := m.connect()
	if err != nil {
		return err
	}
	defer m.handler.Close()

	client := modbus.NewClient(m.handler)
	var errs []error
	for name, val := range writeValues {
		i, findErr := findIndexByName(registers, name)
		if findErr != nil {
			errs = append(errs, findErr)
			continue
		}
		valBytes := encode(val, registers[i])
		_, writeErr := client.WriteMultipleRegisters(registers[i].Address, sizeOf(registers[i].DataType), valBytes)
		if writeErr != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", name, writeErr))
		}
	}
	return errors.Join(errs...)
}

// findIndexByName returns the index in the array of the register, if found. Returns -1 and error if not found.
func findIndexByName(registers []Register, name string) (int, error) {
	for index, register := range registers {
		if register.Name == name {
			return index, nil
		}
	}
	return -1, errors.New("register name not found in register array")
}

// encode convert a float64 into a byte array
func encode(val float64, register Register) []byte {
	var bytes []byte
	endian := getByteOrder(register.Endianness)
	switch register.DataType {
	case u16:
		bytes = make([]byte, 2*sizeOf(u16))
		endian.PutUint16(bytes, uint16(val))
	case i16:
		bytes = make([]byte, 2*sizeOf(i16))
		endian.PutUint16(bytes, uint16(int16(val)))
	case u32:
		bytes = make([]byte, 2*sizeOf(u32))
		endian.PutUint32(bytes, uint32(val))
	case i32:
		bytes = make([]byte, 2*sizeOf(i32))
		endian.PutUint32(bytes, uint32(int32(val)))
	case f32:
		bytes = make([]byte, 2*sizeOf(f32))
		endian.PutUint32(bytes, math.Float32bits(float32(val)))
	case u64:
		bytes = make([]byte, 2*sizeOf(u64))
		endian.PutUint64(bytes, uint64(val))
	case i64:
		bytes = make([]byte, 2*sizeOf(i64))
		endian.PutUint64(bytes, uint64(int64(val)))
	case f64:
		bytes = make([]byte, 2*sizeOf(f64))
		endian.PutUint64(bytes, math.Float64bits(val))
	}
	return bytes
}

// decode coverts byte arrays into float64s
func decode(bytes []byte, register Register) float64 {
	var n float64
	endian := getByteOrder(register.Endianness)
	switch register.DataType {
	case u16:
		n = float64(endian.Uint16(bytes))
	case i16:
		n = float64(int16(endian.Uint16(bytes)))
	case u32:
		n = float64(endian.Uint32(bytes))
	case i32:
		n = float64(int32(endian.Uint32(bytes)))
	case f32:
		bits := endian.Uint32(bytes)
		n = float64(math.Float32frombits(bits))
	case u64:
		n = float64(endian.Uint64(bytes))
	case i64:
		n = float64(int64(endian.Uint64(bytes)))
	case f64:
		bits := endian.Uint64(bytes)
		n = math.Float64frombits(bits)
	}
	return n
}

// getByteOrder returns the correct binary.endian object for the register type
func getByteOrder(e Endian) binary.ByteOrder {
	switch e {
	case bigEndian:
		return binary.BigEndian
	case littleEndian:
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// sizeOf returns the number of u16 registers for the datatype
func sizeOf(t DataType) uint16 {
	switch t {
	case u16, i16:
		return 1
	case u32, i32, f32:
		return 2
	case u64, i64, f64:
		return 4
	}
	return 0
}
