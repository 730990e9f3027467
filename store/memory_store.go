// Package store implements the Modbus data store (common.DataStore): four
// fixed-capacity address spaces — coils, discrete inputs, holding registers,
// input registers — each guarded by its own lock, with protocol-facing
// bounds/read-only checks distinct from the host-application bypass path.
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 4.3 (Data Model).
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/brightloop-io/modbus-toolkit/common"
)

// MemoryStore implements common.DataStore with four fixed-capacity,
// independently-locked in-memory address spaces.
type MemoryStore struct {
	coilsMu sync.RWMutex
	coils   []common.CoilValue

	discreteInputsMu sync.RWMutex
	discreteInputs   []common.DiscreteInputValue

	holdingRegistersMu sync.RWMutex
	holdingRegisters   []common.RegisterValue

	inputRegistersMu sync.RWMutex
	inputRegisters   []common.InputRegisterValue

	readOnlyCoils             bool
	readOnlyHoldingRegisters  bool
}

// Option configures a MemoryStore at construction time.
type Option func(*MemoryStore)

// WithCoilCount sets the capacity of the coils address space.
func WithCoilCount(count int) Option {
	return func(s *MemoryStore) { s.coils = make([]common.CoilValue, count) }
}

// WithDiscreteInputCount sets the capacity of the discrete inputs address space.
func WithDiscreteInputCount(count int) Option {
	return func(s *MemoryStore) { s.discreteInputs = make([]common.DiscreteInputValue, count) }
}

// WithHoldingRegisterCount sets the capacity of the holding registers address space.
func WithHoldingRegisterCount(count int) Option {
	return func(s *MemoryStore) { s.holdingRegisters = make([]common.RegisterValue, count) }
}

// WithInputRegisterCount sets the capacity of the input registers address space.
func WithInputRegisterCount(count int) Option {
	return func(s *MemoryStore) { s.inputRegisters = make([]common.InputRegisterValue, count) }
}

// WithReadOnlyCoils makes the coils space reject protocol writes (0x05/0x0F),
// returning common.ErrReadOnlySpace; direct SetCoil calls still succeed.
func WithReadOnlyCoils() Option {
	return func(s *MemoryStore) { s.readOnlyCoils = true }
}

// WithReadOnlyHoldingRegisters makes the holding registers space reject
// protocol writes (0x06/0x10); direct SetHoldingRegister calls still succeed.
func WithReadOnlyHoldingRegisters() Option {
	return func(s *MemoryStore) { s.readOnlyHoldingRegisters = true }
}

// NewMemoryStore creates a store with common.DefaultStoreCapacity entries in
// each address space, as overridden by opts.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		coils:            make([]common.CoilValue, common.DefaultStoreCapacity),
		discreteInputs:   make([]common.DiscreteInputValue, common.DefaultStoreCapacity),
		holdingRegisters: make([]common.RegisterValue, common.DefaultStoreCapacity),
		inputRegisters:   make([]common.InputRegisterValue, common.DefaultStoreCapacity),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func checkRange(address common.Address, quantity int, spaceLen int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity %d", common.ErrQuantityOutOfRange, quantity)
	}
	if int(address)+quantity > spaceLen {
		return fmt.Errorf("%w: address %d + quantity %d exceeds space of %d",
			common.ErrAddressOutOfRange, address, quantity, spaceLen)
	}
	return nil
}

// ReadCoils reads coil values. Ref: Section 6.1 (Read Coils).
func (s *MemoryStore) ReadCoils(ctx context.Context, address common.Address, quantity common.Quantity) ([]common.CoilValue, error) {
	if quantity > common.MaxReadBitCount {
		return nil, fmt.Errorf("%w: quantity %d exceeds %d", common.ErrQuantityOutOfRange, quantity, common.MaxReadBitCount)
	}

	s.coilsMu.RLock()
	defer s.coilsMu.RUnlock()

	if err := checkRange(address, int(quantity), len(s.coils)); err != nil {
		return nil, err
	}

	values := make([]common.CoilValue, quantity)
	copy(values, s.coils[address:int(address)+int(quantity)])
	return values, nil
}

// ReadDiscreteInputs reads discrete input values. Ref: Section 6.2.
func (s *MemoryStore) ReadDiscreteInputs(ctx context.Context, address common.Address, quantity common.Quantity) ([]common.DiscreteInputValue, error) {
	if quantity > common.MaxReadBitCount {
		return nil, fmt.Errorf("%w: quantity %d exceeds %d", common.ErrQuantityOutOfRange, quantity, common.MaxReadBitCount)
	}

	s.discreteInputsMu.RLock()
	defer s.discreteInputsMu.RUnlock()

	if err := checkRange(address, int(quantity), len(s.discreteInputs)); err != nil {
		return nil, err
	}

	values := make([]common.DiscreteInputValue, quantity)
	copy(values, s.discreteInputs[address:int(address)+int(quantity)])
	return values, nil
}

// ReadHoldingRegisters reads holding register values. Ref: Section 6.3.
func (s *MemoryStore) ReadHoldingRegisters(ctx context.Context, address common.Address, quantity common.Quantity) ([]common.RegisterValue, error) {
	if quantity > common.MaxReadRegisterCount {
		return nil, fmt.Errorf("%w: quantity %d exceeds %d", common.ErrQuantityOutOfRange, quantity, common.MaxReadRegisterCount)
	}

	s.holdingRegistersMu.RLock()
	defer s.holdingRegistersMu.RUnlock()

	if err := checkRange(address, int(quantity), len(s.holdingRegisters)); err != nil {
		return nil, err
	}

	values := make([]common.RegisterValue, quantity)
	copy(values, s.holdingRegisters[address:int(address)+int(quantity)])
	return values, nil
}

// ReadInputRegisters reads input register values. Ref: Section 6.4.
func (s *MemoryStore) ReadInputRegisters(ctx context.Context, address common.Address, quantity common.Quantity) ([]common.InputRegisterValue, error) {
	if quantity > common.MaxReadRegisterCount {
		return nil, fmt.Errorf("%w: quantity %d exceeds %d", common.ErrQuantityOutOfRange, quantity, common.MaxReadRegisterCount)
	}

	s.inputRegistersMu.RLock()
	defer s.inputRegistersMu.RUnlock()

	if err := checkRange(address, int(quantity), len(s.inputRegisters)); err != nil {
		return nil, err
	}

	values := make([]common.InputRegisterValue, quantity)
	copy(values, s.inputRegisters[address:int(address)+int(quantity)])
	return values, nil
}

// WriteSingleCoil writes a single coil. Ref: Section 6.5. Range is checked
// before the read-only gate, so an out-of-range write reports
// IllegalDataAddress rather than masking it behind IllegalFunction.
func (s *MemoryStore) WriteSingleCoil(ctx context.Context, address common.Address, value common.CoilValue) error {
	s.coilsMu.Lock()
	defer s.coilsMu.Unlock()

	if err := checkRange(address, 1, len(s.coils)); err != nil {
		return err
	}
	if s.readOnlyCoils {
		return common.ErrReadOnlySpace
	}
	s.coils[address] = value
	return nil
}

// WriteSingleRegister writes a single holding register. Ref: Section 6.6.
// Range is checked before the read-only gate; see WriteSingleCoil.
func (s *MemoryStore) WriteSingleRegister(ctx context.Context, address common.Address, value common.RegisterValue) error {
	s.holdingRegistersMu.Lock()
	defer s.holdingRegistersMu.Unlock()

	if err := checkRange(address, 1, len(s.holdingRegisters)); err != nil {
		return err
	}
	if s.readOnlyHoldingRegisters {
		return common.ErrReadOnlySpace
	}
	s.holdingRegisters[address] = value
	return nil
}

// WriteMultipleCoils writes a run of coils. Ref: Section 6.11. Quantity and
// address range are both checked before the read-only gate; see WriteSingleCoil.
func (s *MemoryStore) WriteMultipleCoils(ctx context.Context, address common.Address, values []common.CoilValue) error {
	if len(values) == 0 || len(values) > common.MaxWriteCoilCount {
		return fmt.Errorf("%w: quantity %d", common.ErrQuantityOutOfRange, len(values))
	}

	s.coilsMu.Lock()
	defer s.coilsMu.Unlock()

	if err := checkRange(address, len(values), len(s.coils)); err != nil {
		return err
	}
	if s.readOnlyCoils {
		return common.ErrReadOnlySpace
	}
	copy(s.coils[address:], values)
	return nil
}

// WriteMultipleRegisters writes a run of holding registers. Ref: Section
// 6.12. Quantity and address range are both checked before the read-only
// gate; see WriteSingleCoil.
func (s *MemoryStore) WriteMultipleRegisters(ctx context.Context, address common.Address, values []common.RegisterValue) error {
	if len(values) == 0 || len(values) > common.MaxWriteRegisterCount {
		return fmt.Errorf("%w: quantity %d", common.ErrQuantityOutOfRange, len(values))
	}

	s.holdingRegistersMu.Lock()
	defer s.holdingRegistersMu.Unlock()

	if err := checkRange(address, len(values), len(s.holdingRegisters)); err != nil {
		return err
	}
	if s.readOnlyHoldingRegisters {
		return common.ErrReadOnlySpace
	}
	copy(s.holdingRegisters[address:], values)
	return nil
}

// SetCoil sets a coil value directly, bypassing the read-only protocol gate —
// the path a host application uses to drive simulated inputs.
func (s *MemoryStore) SetCoil(address common.Address, value common.CoilValue) {
	s.coilsMu.Lock()
	defer s.coilsMu.Unlock()
	if int(address) < len(s.coils) {
		s.coils[address] = value
	}
}

// GetCoil reads a coil value directly.
func (s *MemoryStore) GetCoil(address common.Address) (common.CoilValue, bool) {
	s.coilsMu.RLock()
	defer s.coilsMu.RUnlock()
	if int(address) >= len(s.coils) {
		return false, false
	}
	return s.coils[address], true
}

// SetDiscreteInput sets a discrete input value directly — the only write
// path for this protocol-read-only space.
func (s *MemoryStore) SetDiscreteInput(address common.Address, value common.DiscreteInputValue) {
	s.discreteInputsMu.Lock()
	defer s.discreteInputsMu.Unlock()
	if int(address) < len(s.discreteInputs) {
		s.discreteInputs[address] = value
	}
}

// GetDiscreteInput reads a discrete input value directly.
func (s *MemoryStore) GetDiscreteInput(address common.Address) (common.DiscreteInputValue, bool) {
	s.discreteInputsMu.RLock()
	defer s.discreteInputsMu.RUnlock()
	if int(address) >= len(s.discreteInputs) {
		return false, false
	}
	return s.discreteInputs[address], true
}

// SetHoldingRegister sets a holding register value directly, bypassing the
// read-only protocol gate.
func (s *MemoryStore) SetHoldingRegister(address common.Address, value common.RegisterValue) {
	s.holdingRegistersMu.Lock()
	defer s.holdingRegistersMu.Unlock()
	if int(address) < len(s.holdingRegisters) {
		s.holdingRegisters[address] = value
	}
}

// GetHoldingRegister reads a holding register value directly.
func (s *MemoryStore) GetHoldingRegister(address common.Address) (common.RegisterValue, bool) {
	s.holdingRegistersMu.RLock()
	defer s.holdingRegistersMu.RUnlock()
	if int(address) >= len(s.holdingRegisters) {
		return 0, false
	}
	return s.holdingRegisters[address], true
}

// SetInputRegister sets an input register value directly — the only write
// path for this protocol-read-only space.
func (s *MemoryStore) SetInputRegister(address common.Address, value common.InputRegisterValue) {
	s.inputRegistersMu.Lock()
	defer s.inputRegistersMu.Unlock()
	if int(address) < len(s.inputRegisters) {
		s.inputRegisters[address] = value
	}
}

// GetInputRegister reads an input register value directly.
func (s *MemoryStore) GetInputRegister(address common.Address) (common.InputRegisterValue, bool) {
	s.inputRegistersMu.RLock()
	defer s.inputRegistersMu.RUnlock()
	if int(address) >= len(s.inputRegisters) {
		return 0, false
	}
	return s.inputRegisters[address], true
}

// DumpRegisters returns a human-readable snapshot of every non-default coil
// and holding register, for debug logging. Discrete inputs and input
// registers are not included.
func (s *MemoryStore) DumpRegisters() string {
	result := "Memory Store Content:\n"

	s.coilsMu.RLock()
	for addr, val := range s.coils {
		if val {
			result += fmt.Sprintf("  coil %d: %t\n", addr, val)
		}
	}
	s.coilsMu.RUnlock()

	s.holdingRegistersMu.RLock()
	for addr, val := range s.holdingRegisters {
		if val != 0 {
			result += fmt.Sprintf("  holding register %d: %d (0x%04X)\n", addr, val, val)
		}
	}
	s.holdingRegistersMu.RUnlock()

	return result
}
