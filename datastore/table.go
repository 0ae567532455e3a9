package datastore

import (
	"sync"

	"github.com/TheCount/go-multilocker/multilocker"

	"github.com/arloliu/go-modbus/modbus"
)

// Table enumerates the tables of the Modbus data model.
type Table uint8

const (
	Coils Table = iota
	DiscreteInputs
	HoldingRegisters
	InputRegisters
)

var tableNames = [...]string{
	Coils:            "coils",
	DiscreteInputs:   "discrete inputs",
	HoldingRegisters: "holding registers",
	InputRegisters:   "input registers",
}

func (t Table) String() string {
	if int(t) < len(tableNames) {
		return tableNames[t]
	}

	return "unknown table"
}

// IsReadOnly reports whether Modbus clients cannot write the table.
func (t Table) IsReadOnly() bool {
	return t == DiscreteInputs || t == InputRegisters
}

// block is a run of table entries guarded by one lock.
type block[T any] struct {
	mu   sync.RWMutex
	data []T
}

// table is one table of the data model, split into blocks of blockSize entries.
type table[T any] struct {
	size      int
	blockSize int
	blocks    []*block[T]
}

func newTable[T any](size, blockSize int) *table[T] {
	t := &table[T]{size: size, blockSize: blockSize}
	for start := 0; start < size; start += blockSize {
		n := min(blockSize, size-start)
		t.blocks = append(t.blocks, &block[T]{data: make([]T, n)})
	}

	return t
}

// check reports ExceptionIllegalDataAddress unless [addr, addr+n) lies in the table.
func (t *table[T]) check(addr, n int) error {
	if n <= 0 || addr < 0 || addr+n > t.size {
		return modbus.ExceptionIllegalDataAddress
	}

	return nil
}

// blockRange returns the indexes of the first and last block holding [addr, addr+n).
func (t *table[T]) blockRange(addr, n int) (int, int) {
	return addr / t.blockSize, (addr + n - 1) / t.blockSize
}

// locker returns a locker acquiring every block touched by the given ranges at once.
// Ranges are given as consecutive (addr, n) pairs. Shared blocks are locked once.
func (t *table[T]) locker(write bool, ranges ...int) sync.Locker {
	seen := make(map[int]struct{}, 2)
	lockers := make([]sync.Locker, 0, 2)
	for i := 0; i+1 < len(ranges); i += 2 {
		first, last := t.blockRange(ranges[i], ranges[i+1])
		for b := first; b <= last; b++ {
			if _, ok := seen[b]; ok {
				continue
			}
			seen[b] = struct{}{}

			if write {
				lockers = append(lockers, &t.blocks[b].mu)
			} else {
				lockers = append(lockers, t.blocks[b].mu.RLocker())
			}
		}
	}

	if len(lockers) == 1 {
		return lockers[0]
	}

	return multilocker.New(lockers...)
}

// copyOut copies [addr, addr+len(dst)) into dst. The caller holds the locks.
func (t *table[T]) copyOut(dst []T, addr int) {
	for len(dst) > 0 {
		b, off := addr/t.blockSize, addr%t.blockSize
		n := copy(dst, t.blocks[b].data[off:])
		dst = dst[n:]
		addr += n
	}
}

// copyIn copies src to [addr, addr+len(src)). The caller holds the locks.
func (t *table[T]) copyIn(addr int, src []T) {
	for len(src) > 0 {
		b, off := addr/t.blockSize, addr%t.blockSize
		n := copy(t.blocks[b].data[off:], src)
		src = src[n:]
		addr += n
	}
}

func (t *table[T]) read(addr, n int) ([]T, error) {
	if err := t.check(addr, n); err != nil {
		return nil, err
	}

	l := t.locker(false, addr, n)
	l.Lock()
	defer l.Unlock()

	values := make([]T, n)
	t.copyOut(values, addr)

	return values, nil
}

func (t *table[T]) write(addr int, values []T) error {
	if err := t.check(addr, len(values)); err != nil {
		return err
	}

	l := t.locker(true, addr, len(values))
	l.Lock()
	defer l.Unlock()

	t.copyIn(addr, values)

	return nil
}

// update replaces the entry at addr with fn applied to it.
func (t *table[T]) update(addr int, fn func(T) T) error {
	if err := t.check(addr, 1); err != nil {
		return err
	}

	b := t.blocks[addr/t.blockSize]
	b.mu.Lock()
	defer b.mu.Unlock()

	off := addr % t.blockSize
	b.data[off] = fn(b.data[off])

	return nil
}

// writeRead writes values at writeAddr, then reads n entries at readAddr, as one atomic
// operation.
func (t *table[T]) writeRead(writeAddr int, values []T, readAddr, n int) ([]T, error) {
	if err := t.check(writeAddr, len(values)); err != nil {
		return nil, err
	}
	if err := t.check(readAddr, n); err != nil {
		return nil, err
	}

	l := t.locker(true, writeAddr, len(values), readAddr, n)
	l.Lock()
	defer l.Unlock()

	t.copyIn(writeAddr, values)
	out := make([]T, n)
	t.copyOut(out, readAddr)

	return out, nil
}
