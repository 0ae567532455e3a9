package datastore

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/arloliu/go-modbus/modbus"
	"github.com/arloliu/go-modbus/server"
)

const (
	// MaxTableSize is the number of addresses of a Modbus table.
	MaxTableSize = 1 << 16

	// DefaultBlockSize is the number of entries guarded by one lock.
	DefaultBlockSize = 256
)

// ErrNotRegisterTable indicates a register access to a table of bits.
var ErrNotRegisterTable = errors.New("table does not hold registers")

// Config defines the size of each table of a Store.
type Config struct {
	// Coils is the number of coils, addressed from zero.
	Coils int
	// DiscreteInputs is the number of discrete inputs, addressed from zero.
	DiscreteInputs int
	// HoldingRegisters is the number of holding registers, addressed from zero.
	HoldingRegisters int
	// InputRegisters is the number of input registers, addressed from zero.
	InputRegisters int
	// BlockSize is the number of entries guarded by one lock.
	// Zero selects DefaultBlockSize.
	BlockSize int
}

// Validate checks that every size is in [0, 65536] and the block size is not negative.
func (c Config) Validate() error {
	sizes := []struct {
		table Table
		size  int
	}{
		{Coils, c.Coils},
		{DiscreteInputs, c.DiscreteInputs},
		{HoldingRegisters, c.HoldingRegisters},
		{InputRegisters, c.InputRegisters},
	}
	for _, s := range sizes {
		if s.size < 0 || s.size > MaxTableSize {
			return fmt.Errorf("%s size %d out of range [0, %d]", s.table, s.size, MaxTableSize)
		}
	}

	if c.BlockSize < 0 {
		return errors.New("block size must not be negative")
	}

	return nil
}

// Store is a concurrent Modbus register table. It is safe for concurrent use.
type Store struct {
	coils    *table[bool]
	discrete *table[bool]
	holding  *table[uint16]
	input    *table[uint16]
}

var _ server.Service = (*Store)(nil)

// New creates a Store with all entries zero.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	blockSize := cfg.BlockSize
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}

	return &Store{
		coils:    newTable[bool](cfg.Coils, blockSize),
		discrete: newTable[bool](cfg.DiscreteInputs, blockSize),
		holding:  newTable[uint16](cfg.HoldingRegisters, blockSize),
		input:    newTable[uint16](cfg.InputRegisters, blockSize),
	}, nil
}

// Call serves one Modbus request.
//
// Requests violating the quantity limits fail with ExceptionIllegalDataValue, requests
// outside the configured tables with ExceptionIllegalDataAddress and unsupported function
// codes with ExceptionIllegalFunction.
func (s *Store) Call(ctx context.Context, req modbus.Request) (modbus.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if req == nil {
		return nil, modbus.ExceptionIllegalFunction
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	switch r := req.(type) {
	case modbus.ReadCoils:
		values, err := s.coils.read(int(r.Address), int(r.Quantity))
		if err != nil {
			return nil, err
		}

		return modbus.ReadCoilsResponse{Values: values}, nil

	case modbus.ReadDiscreteInputs:
		values, err := s.discrete.read(int(r.Address), int(r.Quantity))
		if err != nil {
			return nil, err
		}

		return modbus.ReadDiscreteInputsResponse{Values: values}, nil

	case modbus.ReadHoldingRegisters:
		values, err := s.holding.read(int(r.Address), int(r.Quantity))
		if err != nil {
			return nil, err
		}

		return modbus.ReadHoldingRegistersResponse{Values: values}, nil

	case modbus.ReadInputRegisters:
		values, err := s.input.read(int(r.Address), int(r.Quantity))
		if err != nil {
			return nil, err
		}

		return modbus.ReadInputRegistersResponse{Values: values}, nil

	case modbus.WriteSingleCoil:
		if err := s.coils.write(int(r.Address), []bool{r.Value}); err != nil {
			return nil, err
		}

		return modbus.WriteSingleCoilResponse{Address: r.Address, Value: r.Value}, nil

	case modbus.WriteSingleRegister:
		if err := s.holding.write(int(r.Address), []uint16{r.Value}); err != nil {
			return nil, err
		}

		return modbus.WriteSingleRegisterResponse{Address: r.Address, Value: r.Value}, nil

	case modbus.WriteMultipleCoils:
		if err := s.coils.write(int(r.Address), r.Values); err != nil {
			return nil, err
		}

		return modbus.WriteMultipleCoilsResponse{Address: r.Address, Quantity: uint16(len(r.Values))}, nil //nolint:gosec // bounded by Validate

	case modbus.WriteMultipleRegisters:
		if err := s.holding.write(int(r.Address), r.Values); err != nil {
			return nil, err
		}

		return modbus.WriteMultipleRegistersResponse{Address: r.Address, Quantity: uint16(len(r.Values))}, nil //nolint:gosec // bounded by Validate

	case modbus.MaskWriteRegister:
		err := s.holding.update(int(r.Address), func(cur uint16) uint16 {
			return (cur & r.AndMask) | (r.OrMask &^ r.AndMask)
		})
		if err != nil {
			return nil, err
		}

		return modbus.MaskWriteRegisterResponse{Address: r.Address, AndMask: r.AndMask, OrMask: r.OrMask}, nil

	case modbus.ReadWriteMultipleRegisters:
		values, err := s.holding.writeRead(int(r.WriteAddress), r.Values, int(r.ReadAddress), int(r.ReadQuantity))
		if err != nil {
			return nil, err
		}

		return modbus.ReadWriteMultipleRegistersResponse{Values: values}, nil

	default:
		return nil, modbus.ExceptionIllegalFunction
	}
}

// Coils returns n coils starting at addr.
func (s *Store) Coils(addr uint16, n int) ([]bool, error) {
	return s.coils.read(int(addr), n)
}

// SetCoils sets coils starting at addr.
func (s *Store) SetCoils(addr uint16, values ...bool) error {
	return s.coils.write(int(addr), values)
}

// DiscreteInputs returns n discrete inputs starting at addr.
func (s *Store) DiscreteInputs(addr uint16, n int) ([]bool, error) {
	return s.discrete.read(int(addr), n)
}

// SetDiscreteInputs sets discrete inputs starting at addr.
func (s *Store) SetDiscreteInputs(addr uint16, values ...bool) error {
	return s.discrete.write(int(addr), values)
}

// HoldingRegisters returns n holding registers starting at addr.
func (s *Store) HoldingRegisters(addr uint16, n int) ([]uint16, error) {
	return s.holding.read(int(addr), n)
}

// SetHoldingRegisters sets holding registers starting at addr.
func (s *Store) SetHoldingRegisters(addr uint16, values ...uint16) error {
	return s.holding.write(int(addr), values)
}

// InputRegisters returns n input registers starting at addr.
func (s *Store) InputRegisters(addr uint16, n int) ([]uint16, error) {
	return s.input.read(int(addr), n)
}

// SetInputRegisters sets input registers starting at addr.
func (s *Store) SetInputRegisters(addr uint16, values ...uint16) error {
	return s.input.write(int(addr), values)
}

// SetUint32 stores value in the two registers of t starting at addr, high word first.
func (s *Store) SetUint32(t Table, addr uint16, value uint32) error {
	regs, err := s.registers(t)
	if err != nil {
		return err
	}

	return regs.write(int(addr), []uint16{uint16(value >> 16), uint16(value)}) //nolint:gosec // word split
}

// Uint32 returns the value of the two registers of t starting at addr, high word first.
func (s *Store) Uint32(t Table, addr uint16) (uint32, error) {
	regs, err := s.registers(t)
	if err != nil {
		return 0, err
	}

	words, err := regs.read(int(addr), 2)
	if err != nil {
		return 0, err
	}

	return uint32(words[0])<<16 | uint32(words[1]), nil
}

// SetFloat32 stores the IEEE 754 bits of value like SetUint32.
func (s *Store) SetFloat32(t Table, addr uint16, value float32) error {
	return s.SetUint32(t, addr, math.Float32bits(value))
}

// Float32 returns the IEEE 754 value stored like SetFloat32.
func (s *Store) Float32(t Table, addr uint16) (float32, error) {
	bits, err := s.Uint32(t, addr)
	if err != nil {
		return 0, err
	}

	return math.Float32frombits(bits), nil
}

func (s *Store) registers(t Table) (*table[uint16], error) {
	switch t {
	case HoldingRegisters:
		return s.holding, nil
	case InputRegisters:
		return s.input, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotRegisterTable, t)
	}
}
