// Package wasmenc assembles small core WebAssembly modules. It covers the
// subset needed to produce bridge guests: function types, function imports,
// one memory, mutable i32 globals, exports and active data segments.
package wasmenc

import (
	"fmt"
	"slices"
)

// ValType is a core value type.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
	F32 ValType = 0x7d
	F64 ValType = 0x7c
)

const (
	version = 1

	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionGlobal   = 6
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11

	kindFunc   = 0x00
	kindMemory = 0x02
	kindGlobal = 0x03

	funcTypeByte = 0x60
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (f FuncType) equal(o FuncType) bool {
	return slices.Equal(f.Params, o.Params) && slices.Equal(f.Results, o.Results)
}

type funcImport struct {
	module, name string
	typeIdx      uint32
}

type function struct {
	locals  []ValType
	body    []byte
	typeIdx uint32
}

type export struct {
	name string
	kind byte
	idx  uint32
}

type data struct {
	init   []byte
	offset uint32
}

// Module accumulates module contents. Function imports must be declared
// before any function is defined.
type Module struct {
	types    []FuncType
	imports  []funcImport
	funcs    []function
	globals  []int32
	exports  []export
	data     []data
	memPages uint32
	hasMem   bool
}

// New creates an empty module.
func New() *Module {
	return &Module{}
}

func (m *Module) typeIndex(ft FuncType) uint32 {
	for i, t := range m.types {
		if t.equal(ft) {
			return uint32(i)
		}
	}
	m.types = append(m.types, ft)
	return uint32(len(m.types) - 1)
}

// ImportFunc declares a function import and returns its function index.
func (m *Module) ImportFunc(module, name string, ft FuncType) uint32 {
	if len(m.funcs) > 0 {
		panic(fmt.Sprintf("wasmenc: import %s.%s declared after function definitions", module, name))
	}
	m.imports = append(m.imports, funcImport{module: module, name: name, typeIdx: m.typeIndex(ft)})
	return uint32(len(m.imports) - 1)
}

// Func defines a function and returns its index. body is the instruction
// sequence without the trailing end opcode.
func (m *Module) Func(ft FuncType, locals []ValType, body []byte) uint32 {
	m.funcs = append(m.funcs, function{typeIdx: m.typeIndex(ft), locals: locals, body: body})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Memory declares the module memory with min pages.
func (m *Module) Memory(minPages uint32) {
	m.memPages = minPages
	m.hasMem = true
}

// GlobalI32 declares a mutable i32 global and returns its index.
func (m *Module) GlobalI32(init int32) uint32 {
	m.globals = append(m.globals, init)
	return uint32(len(m.globals) - 1)
}

// Data places init at offset in memory 0.
func (m *Module) Data(offset uint32, init []byte) {
	m.data = append(m.data, data{offset: offset, init: init})
}

// ExportFunc exports function idx under name.
func (m *Module) ExportFunc(name string, idx uint32) {
	m.exports = append(m.exports, export{name: name, kind: kindFunc, idx: idx})
}

// ExportMemory exports memory 0 under name.
func (m *Module) ExportMemory(name string) {
	m.exports = append(m.exports, export{name: name, kind: kindMemory})
}

// ExportGlobal exports global idx under name.
func (m *Module) ExportGlobal(name string, idx uint32) {
	m.exports = append(m.exports, export{name: name, kind: kindGlobal, idx: idx})
}

// Encode encodes the module to WebAssembly binary format.
func (m *Module) Encode() []byte {
	w := &writer{}
	w.raw([]byte{0x00, 'a', 's', 'm'})
	w.raw([]byte{version, 0, 0, 0})

	if len(m.types) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.types)))
		for _, ft := range m.types {
			sec.byte(funcTypeByte)
			writeValTypes(sec, ft.Params)
			writeValTypes(sec, ft.Results)
		}
		w.section(sectionType, sec)
	}

	if len(m.imports) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.imports)))
		for _, imp := range m.imports {
			sec.name(imp.module)
			sec.name(imp.name)
			sec.byte(kindFunc)
			sec.u32(imp.typeIdx)
		}
		w.section(sectionImport, sec)
	}

	if len(m.funcs) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			sec.u32(f.typeIdx)
		}
		w.section(sectionFunction, sec)
	}

	if m.hasMem {
		sec := &writer{}
		sec.u32(1)
		sec.byte(0x00) // no max
		sec.u32(m.memPages)
		w.section(sectionMemory, sec)
	}

	if len(m.globals) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.globals)))
		for _, g := range m.globals {
			sec.byte(byte(I32))
			sec.byte(0x01) // mutable
			sec.raw(NewCode().I32Const(g).End())
		}
		w.section(sectionGlobal, sec)
	}

	if len(m.exports) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.exports)))
		for _, e := range m.exports {
			sec.name(e.name)
			sec.byte(e.kind)
			sec.u32(e.idx)
		}
		w.section(sectionExport, sec)
	}

	if len(m.funcs) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			body := &writer{}
			body.u32(uint32(len(f.locals)))
			for _, l := range f.locals {
				body.u32(1)
				body.byte(byte(l))
			}
			body.raw(f.body)
			body.byte(opEnd)
			sec.u32(uint32(len(body.bytes())))
			sec.raw(body.bytes())
		}
		w.section(sectionCode, sec)
	}

	if len(m.data) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.data)))
		for _, d := range m.data {
			sec.u32(0) // active, memory 0
			sec.raw(NewCode().I32Const(int32(d.offset)).End())
			sec.u32(uint32(len(d.init)))
			sec.raw(d.init)
		}
		w.section(sectionData, sec)
	}

	return w.bytes()
}

func writeValTypes(w *writer, types []ValType) {
	w.u32(uint32(len(types)))
	for _, t := range types {
		w.byte(byte(t))
	}
}
