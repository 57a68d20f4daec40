package wasmenc

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Component describes one component of a generated bridge guest.
//
// X_set echoes every write back to the host as an emission whose output
// name is the property key and whose payload is the encoded value.
type Component struct {
	Name string
	// Outputs are reported by X_outputs. Nil omits the export.
	Outputs []string
	// Refresh exports X_refresh, which emits "refresh" with no payload.
	Refresh bool
	// Destroy exports X_destroy.
	Destroy bool
	// TrapOnSet makes X_set trap.
	TrapOnSet bool
	// OmitSet leaves X_set out.
	OmitSet bool
}

const (
	dataBase  = 16
	heapBase  = 4096
	heapLimit = 2 * 65536
)

// Guest assembles a bridge guest module exporting the given components.
func Guest(components ...Component) ([]byte, error) {
	m := New()
	i32 := I32

	emit := m.ImportFunc("bridge", "emit", FuncType{Params: []ValType{i32, i32, i32, i32, i32}})

	heap := m.GlobalI32(heapBase)
	handles := m.GlobalI32(0)

	m.Memory(heapLimit / 65536)
	m.ExportMemory("memory")

	// bridge_alloc(size): bump allocator that wraps to heapBase when full.
	alloc := m.Func(FuncType{Params: []ValType{i32}, Results: []ValType{i32}}, nil,
		NewCode().
			GlobalGet(heap).LocalGet(0).I32Add().I32Const(heapLimit).I32GtU().
			If().I32Const(heapBase).GlobalSet(heap).EndBlock().
			GlobalGet(heap).
			GlobalGet(heap).LocalGet(0).I32Add().GlobalSet(heap).
			Bytes())
	m.ExportFunc("bridge_alloc", alloc)

	offset := uint32(dataBase)
	place := func(b []byte) uint32 {
		at := offset
		m.Data(at, b)
		offset += uint32(len(b))
		return at
	}
	refreshName := place([]byte("refresh"))

	seen := make(map[string]bool)
	for _, c := range components {
		if c.Name == "" || seen[c.Name] {
			return nil, fmt.Errorf("wasmenc: invalid or duplicate component name %q", c.Name)
		}
		seen[c.Name] = true

		newFn := m.Func(FuncType{Results: []ValType{i32}}, nil,
			NewCode().
				GlobalGet(handles).I32Const(1).I32Add().GlobalSet(handles).
				GlobalGet(handles).
				Bytes())
		m.ExportFunc(c.Name+"_new", newFn)

		if !c.OmitSet {
			body := NewCode()
			if c.TrapOnSet {
				body.Unreachable()
			} else {
				body.LocalGet(0).LocalGet(1).LocalGet(2).LocalGet(3).LocalGet(4).Call(emit)
			}
			setFn := m.Func(FuncType{Params: []ValType{i32, i32, i32, i32, i32}}, nil, body.Bytes())
			m.ExportFunc(c.Name+"_set", setFn)
		}

		if c.Outputs != nil {
			blob, err := msgpack.Marshal(c.Outputs)
			if err != nil {
				return nil, fmt.Errorf("wasmenc: encode outputs of %s: %w", c.Name, err)
			}
			at := place(blob)
			packed := int64(uint64(at)<<32 | uint64(len(blob)))
			outFn := m.Func(FuncType{Results: []ValType{I64}}, nil, NewCode().I64Const(packed).Bytes())
			m.ExportFunc(c.Name+"_outputs", outFn)
		}

		if c.Refresh {
			refFn := m.Func(FuncType{Params: []ValType{i32}}, nil,
				NewCode().
					LocalGet(0).I32Const(int32(refreshName)).I32Const(int32(len("refresh"))).
					I32Const(0).I32Const(0).
					Call(emit).
					Bytes())
			m.ExportFunc(c.Name+"_refresh", refFn)
		}

		if c.Destroy {
			m.ExportFunc(c.Name+"_destroy", m.Func(FuncType{Params: []ValType{i32}}, nil, nil))
		}
	}

	if offset >= heapBase {
		return nil, fmt.Errorf("wasmenc: static data exceeds %d bytes", heapBase-dataBase)
	}
	return m.Encode(), nil
}
