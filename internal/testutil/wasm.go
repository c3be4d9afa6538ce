// Package testutil assembles small WebAssembly modules byte by byte so host
// code can be exercised against a real runtime without a wasm toolchain.
package testutil

import (
	"bytes"
	"slices"
)

// ValType is a wasm value type.
type ValType byte

// Value types.
const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
)

// Opcodes used by the canned guests.
const (
	OpUnreachable = 0x00
	OpIf          = 0x04
	OpEnd         = 0x0b
	OpCall        = 0x10
	OpDrop        = 0x1a
	OpLocalGet    = 0x20
	OpI32Const    = 0x41
	OpI64Const    = 0x42
	OpI32GtU      = 0x4b
	BlockVoid     = 0x40
)

type funcType struct {
	params  []ValType
	results []ValType
}

type importFunc struct {
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

type dataSegment struct {
	data   []byte
	offset uint32
}

type customSection struct {
	name    string
	payload []byte
}

// Module builds a wasm binary. It always declares one exported memory.
type Module struct {
	types    []funcType
	imports  []importFunc
	funcs    []function
	exports  []export
	data     []dataSegment
	custom   []customSection
	memPages uint32
}

// NewModule returns a builder with a one-page memory exported as "memory".
func NewModule() *Module {
	m := &Module{memPages: 1}
	m.exports = append(m.exports, export{name: "memory", kind: 0x02, idx: 0})
	return m
}

func (m *Module) typeIndex(params, results []ValType) uint32 {
	for i, t := range m.types {
		if slices.Equal(t.params, params) && slices.Equal(t.results, results) {
			return uint32(i)
		}
	}
	m.types = append(m.types, funcType{params: params, results: results})
	return uint32(len(m.types) - 1)
}

// Import declares an imported function and returns its function index.
// Imports must be declared before any Func.
func (m *Module) Import(module, name string, params, results []ValType) uint32 {
	if len(m.funcs) > 0 {
		panic("testutil: imports must be declared before functions")
	}
	m.imports = append(m.imports, importFunc{module: module, name: name, typeIdx: m.typeIndex(params, results)})
	return uint32(len(m.imports) - 1)
}

// Func defines a function and returns its index. The trailing end opcode is
// appended automatically.
func (m *Module) Func(params, results, locals []ValType, body ...byte) uint32 {
	m.funcs = append(m.funcs, function{typeIdx: m.typeIndex(params, results), locals: locals, body: body})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Export exports function idx under name.
func (m *Module) Export(name string, idx uint32) *Module {
	m.exports = append(m.exports, export{name: name, kind: 0x00, idx: idx})
	return m
}

// Data places data at offset in memory.
func (m *Module) Data(offset uint32, data []byte) *Module {
	m.data = append(m.data, dataSegment{offset: offset, data: data})
	return m
}

// Custom adds a custom section.
func (m *Module) Custom(name string, payload []byte) *Module {
	m.custom = append(m.custom, customSection{name: name, payload: payload})
	return m
}

// Bytes encodes the module.
func (m *Module) Bytes() []byte {
	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})

	if len(m.types) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(m.types)))
		for _, t := range m.types {
			s = append(s, 0x60)
			s = appendValTypes(s, t.params)
			s = appendValTypes(s, t.results)
		}
		writeSection(&out, 0x01, s)
	}

	if len(m.imports) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(m.imports)))
		for _, imp := range m.imports {
			s = appendName(s, imp.module)
			s = appendName(s, imp.name)
			s = append(s, 0x00)
			s = appendU32(s, imp.typeIdx)
		}
		writeSection(&out, 0x02, s)
	}

	if len(m.funcs) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(m.funcs)))
		for _, f := range m.funcs {
			s = appendU32(s, f.typeIdx)
		}
		writeSection(&out, 0x03, s)
	}

	writeSection(&out, 0x05, appendU32([]byte{0x01, 0x00}, m.memPages))

	{
		var s []byte
		s = appendU32(s, uint32(len(m.exports)))
		for _, e := range m.exports {
			s = appendName(s, e.name)
			s = append(s, e.kind)
			s = appendU32(s, e.idx)
		}
		writeSection(&out, 0x07, s)
	}

	if len(m.funcs) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(m.funcs)))
		for _, f := range m.funcs {
			var body []byte
			body = appendU32(body, uint32(len(f.locals)))
			for _, l := range f.locals {
				body = append(body, 0x01, byte(l))
			}
			body = append(body, f.body...)
			body = append(body, OpEnd)
			s = appendU32(s, uint32(len(body)))
			s = append(s, body...)
		}
		writeSection(&out, 0x0a, s)
	}

	if len(m.data) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(m.data)))
		for _, d := range m.data {
			s = append(s, 0x00, OpI32Const)
			s = appendS64(s, int64(d.offset))
			s = append(s, OpEnd)
			s = appendU32(s, uint32(len(d.data)))
			s = append(s, d.data...)
		}
		writeSection(&out, 0x0b, s)
	}

	for _, c := range m.custom {
		s := appendName(nil, c.name)
		s = append(s, c.payload...)
		writeSection(&out, 0x00, s)
	}

	return out.Bytes()
}

// I32Const encodes i32.const v.
func I32Const(v int32) []byte {
	return appendS64([]byte{OpI32Const}, int64(v))
}

// I64Const encodes i64.const v.
func I64Const(v int64) []byte {
	return appendS64([]byte{OpI64Const}, v)
}

// LocalGet encodes local.get idx.
func LocalGet(idx uint32) []byte {
	return appendU32([]byte{OpLocalGet}, idx)
}

// Call encodes call idx.
func Call(idx uint32) []byte {
	return appendU32([]byte{OpCall}, idx)
}

// Packed returns the ptr<<32|len value the guest ABI uses for byte regions.
func Packed(ptr, length uint32) int64 {
	return int64(uint64(ptr)<<32 | uint64(length))
}

// Concat joins instruction fragments into one body.
func Concat(parts ...[]byte) []byte {
	return slices.Concat(parts...)
}

func writeSection(out *bytes.Buffer, id byte, payload []byte) {
	out.WriteByte(id)
	out.Write(appendU32(nil, uint32(len(payload))))
	out.Write(payload)
}

func appendName(b []byte, name string) []byte {
	b = appendU32(b, uint32(len(name)))
	return append(b, name...)
}

func appendValTypes(b []byte, types []ValType) []byte {
	b = appendU32(b, uint32(len(types)))
	for _, t := range types {
		b = append(b, byte(t))
	}
	return b
}

func appendU32(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b = append(b, c|0x80)
			continue
		}
		return append(b, c)
	}
}

func appendS64(b []byte, v int64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}
