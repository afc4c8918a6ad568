// JVM opcode widths.
// Only the invoke* instructions are interpreted; every other opcode matters
// solely for its width, so that offset tracking stays exact across the whole
// code stream. See JVMS §6.5 and §4.7.3.
package bytecode

// Invoke opcodes resolved against the constant pool.
const (
	OpInvokevirtual   = 0xB6 // 2-byte pool index
	OpInvokespecial   = 0xB7 // 2-byte pool index
	OpInvokestatic    = 0xB8 // 2-byte pool index
	OpInvokeinterface = 0xB9 // 2-byte pool index, count byte, reserved zero
	OpInvokedynamic   = 0xBA // never resolved, skipped as 4 operand bytes
)

// Variable-width opcodes handled specially by instructionWidth.
const (
	opTableswitch  = 0xAA
	opLookupswitch = 0xAB
	opWide         = 0xC4
	opIinc         = 0x84
	opRet          = 0xA9
)

const (
	widthVariable = -1 // tableswitch, lookupswitch, wide
	widthUndef    = -2 // no such opcode
)

// operandWidths maps an opcode to its operand byte count (not counting the
// opcode byte itself). Reserved opcodes (breakpoint, impdep1/2) stay
// undefined: a stream containing them cannot be advanced safely.
var operandWidths [256]int8

func init() {
	for i := range operandWidths {
		operandWidths[i] = widthUndef
	}
	// Operand-free opcodes.
	setWidths(0x00, 0x0F, 0) // nop, aconst_null, iconst_*, lconst_*, fconst_*, dconst_*
	setWidths(0x1A, 0x35, 0) // iload_0 .. saload
	setWidths(0x3B, 0x83, 0) // istore_0 .. lxor
	setWidths(0x85, 0x98, 0) // i2l .. dcmpg
	setWidths(0xAC, 0xB1, 0) // ireturn .. return
	operandWidths[0xBE] = 0  // arraylength
	operandWidths[0xBF] = 0  // athrow
	operandWidths[0xC2] = 0  // monitorenter
	operandWidths[0xC3] = 0  // monitorexit

	// One operand byte.
	operandWidths[0x10] = 1  // bipush
	operandWidths[0x12] = 1  // ldc
	setWidths(0x15, 0x19, 1) // iload .. aload
	setWidths(0x36, 0x3A, 1) // istore .. astore
	operandWidths[opRet] = 1
	operandWidths[0xBC] = 1 // newarray

	// Two operand bytes.
	operandWidths[0x11] = 2 // sipush
	operandWidths[0x13] = 2 // ldc_w
	operandWidths[0x14] = 2 // ldc2_w
	operandWidths[opIinc] = 2
	setWidths(0x99, 0xA8, 2) // ifeq .. jsr
	setWidths(0xB2, 0xB5, 2) // getstatic .. putfield
	operandWidths[OpInvokevirtual] = 2
	operandWidths[OpInvokespecial] = 2
	operandWidths[OpInvokestatic] = 2
	operandWidths[0xBB] = 2 // new
	operandWidths[0xBD] = 2 // anewarray
	operandWidths[0xC0] = 2 // checkcast
	operandWidths[0xC1] = 2 // instanceof
	operandWidths[0xC6] = 2 // ifnull
	operandWidths[0xC7] = 2 // ifnonnull

	// Three operand bytes.
	operandWidths[0xC5] = 3 // multianewarray

	// Four operand bytes.
	operandWidths[OpInvokeinterface] = 4
	operandWidths[OpInvokedynamic] = 4
	operandWidths[0xC8] = 4 // goto_w
	operandWidths[0xC9] = 4 // jsr_w

	// Variable width.
	operandWidths[opTableswitch] = widthVariable
	operandWidths[opLookupswitch] = widthVariable
	operandWidths[opWide] = widthVariable
}

func setWidths(lo, hi int, w int8) {
	for op := lo; op <= hi; op++ {
		operandWidths[op] = w
	}
}

// isInvoke reports whether op is one of the four resolvable invoke opcodes.
func isInvoke(op byte) bool {
	return op >= OpInvokevirtual && op <= OpInvokeinterface
}
