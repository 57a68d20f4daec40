package wasmenc

const (
	opUnreachable = 0x00
	opIf          = 0x04
	opEnd         = 0x0b
	opCall        = 0x10
	opDrop        = 0x1a
	opLocalGet    = 0x20
	opLocalSet    = 0x21
	opGlobalGet   = 0x23
	opGlobalSet   = 0x24
	opI32Const    = 0x41
	opI64Const    = 0x42
	opI32GtU      = 0x4b
	opI32Add      = 0x6a

	blockEmpty = 0x40
)

// Code builds an instruction sequence.
type Code struct {
	w writer
}

// NewCode creates an empty instruction sequence.
func NewCode() *Code {
	return &Code{}
}

func (c *Code) op(b byte) *Code {
	c.w.byte(b)
	return c
}

func (c *Code) LocalGet(idx uint32) *Code  { c.w.byte(opLocalGet); c.w.u32(idx); return c }
func (c *Code) LocalSet(idx uint32) *Code  { c.w.byte(opLocalSet); c.w.u32(idx); return c }
func (c *Code) GlobalGet(idx uint32) *Code { c.w.byte(opGlobalGet); c.w.u32(idx); return c }
func (c *Code) GlobalSet(idx uint32) *Code { c.w.byte(opGlobalSet); c.w.u32(idx); return c }
func (c *Code) Call(idx uint32) *Code      { c.w.byte(opCall); c.w.u32(idx); return c }
func (c *Code) I32Const(v int32) *Code     { c.w.byte(opI32Const); c.w.s64(int64(v)); return c }
func (c *Code) I64Const(v int64) *Code     { c.w.byte(opI64Const); c.w.s64(v); return c }

func (c *Code) I32Add() *Code      { return c.op(opI32Add) }
func (c *Code) I32GtU() *Code      { return c.op(opI32GtU) }
func (c *Code) Drop() *Code        { return c.op(opDrop) }
func (c *Code) Unreachable() *Code { return c.op(opUnreachable) }

// If opens a block with no result; close it with EndBlock.
func (c *Code) If() *Code {
	c.w.byte(opIf)
	c.w.byte(blockEmpty)
	return c
}

// EndBlock closes the innermost block.
func (c *Code) EndBlock() *Code { return c.op(opEnd) }

// Bytes returns the instructions without a trailing end, for Module.Func.
func (c *Code) Bytes() []byte {
	return c.w.bytes()
}

// End returns the instructions terminated by end, for constant expressions.
func (c *Code) End() []byte {
	return append(append([]byte(nil), c.w.bytes()...), opEnd)
}
