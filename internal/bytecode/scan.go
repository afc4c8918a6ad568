// Package bytecode walks compiled method bodies and extracts call sites of a
// target class+method pair.
package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"

	"jmf/internal/classfile"
)

var (
	// ErrUnknownOpcode is returned when the stream contains an opcode the
	// format does not define; the stream cannot be advanced past it.
	ErrUnknownOpcode = errors.New("bytecode: unknown opcode")
	// ErrTruncated is returned when an instruction's operands would run past
	// the end of the code array.
	ErrTruncated = errors.New("bytecode: instruction runs past end of code")
	// ErrBadSwitch is returned for a tableswitch/lookupswitch whose bounds
	// are inconsistent.
	ErrBadSwitch = errors.New("bytecode: malformed switch instruction")
)

// Target identifies the method whose call sites are being located.
// Class is dotted; matching is exact and case-sensitive on both fields, with
// no descriptor disambiguation — every overload of the name matches.
type Target struct {
	Class  string
	Method string
}

// Call is one matched invocation site.
type Call struct {
	CallerClass  string // dotted name of the class containing the call
	CallerMethod string // name of the method containing the call
	Line         int    // source line, or -1 when no line table entry covers the site
}

// MethodWarning records a method whose bytecode could not be scanned to the
// end. Other methods of the same class are unaffected.
type MethodWarning struct {
	Method string
	Err    error
}

// ScanClass scans every method of a parsed class file for invocations of
// target. The target class's own file is never reported: recursive calls
// inside the target are not cross-references.
//
// Methods without a Code attribute (abstract, native) are skipped. A method
// whose stream cannot be advanced safely yields a MethodWarning and the
// matches found before the fault.
func ScanClass(f *classfile.File, target Target) ([]Call, []MethodWarning, error) {
	callerClass, err := f.ThisClassName()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve this_class: %w", err)
	}
	if callerClass == target.Class {
		return nil, nil, nil
	}

	var calls []Call
	var warnings []MethodWarning
	for i := range f.Methods {
		m := &f.Methods[i]
		data, ok := m.Attribute(classfile.AttrCode)
		if !ok {
			continue
		}
		methodName, err := f.MethodName(m)
		if err != nil {
			methodName = fmt.Sprintf("<method %d>", i)
		}
		code, err := classfile.ParseCode(&f.Pool, data)
		if err != nil {
			warnings = append(warnings, MethodWarning{Method: methodName, Err: err})
			continue
		}
		found, err := ScanMethod(f, callerClass, methodName, code, target)
		calls = append(calls, found...)
		if err != nil {
			warnings = append(warnings, MethodWarning{Method: methodName, Err: err})
		}
	}
	return calls, warnings, nil
}

// ScanMethod walks one method's bytecode and reports every invoke site whose
// resolved reference equals target. Offsets advance by each instruction's
// exact width so that line lookups stay correct for the whole stream; an
// unresolvable invoke operand is skipped silently, since the pool routinely
// holds references this tool does not interpret.
func ScanMethod(f *classfile.File, callerClass, callerMethod string, code *classfile.Code, target Target) ([]Call, error) {
	table, err := code.LineNumberTable()
	if err != nil {
		// A broken line table degrades matches to unknown lines; it does not
		// stop the scan.
		table = nil
	}

	data := code.Bytecode
	var calls []Call
	offset := 0
	for offset < len(data) {
		op := data[offset]
		if isInvoke(op) {
			if offset+3 > len(data) {
				return calls, fmt.Errorf("%w: opcode 0x%02x at offset %d", ErrTruncated, op, offset)
			}
			index := binary.BigEndian.Uint16(data[offset+1:])
			if ref, err := f.ResolveMethodRef(index); err == nil &&
				ref.Class == target.Class && ref.Name == target.Method {
				line := -1
				if l, ok := classfile.LineFor(table, offset); ok {
					line = int(l)
				}
				calls = append(calls, Call{
					CallerClass:  callerClass,
					CallerMethod: callerMethod,
					Line:         line,
				})
			}
		}
		width, err := instructionWidth(data, offset)
		if err != nil {
			return calls, err
		}
		offset += width
	}
	return calls, nil
}

// instructionWidth returns the total byte width (opcode + operands) of the
// instruction starting at offset. Variable-width forms are decoded just far
// enough to know their extent.
func instructionWidth(data []byte, offset int) (int, error) {
	op := data[offset]
	switch w := operandWidths[op]; w {
	case widthUndef:
		return 0, fmt.Errorf("%w: 0x%02x at offset %d", ErrUnknownOpcode, op, offset)
	case widthVariable:
		switch op {
		case opWide:
			return wideWidth(data, offset)
		case opTableswitch:
			return tableswitchWidth(data, offset)
		default:
			return lookupswitchWidth(data, offset)
		}
	default:
		width := 1 + int(w)
		if offset+width > len(data) {
			return 0, fmt.Errorf("%w: opcode 0x%02x at offset %d", ErrTruncated, op, offset)
		}
		return width, nil
	}
}

// wideWidth handles the wide prefix: wide <op> <u16 index>, or six bytes
// total for wide iinc which carries an extra s16 constant.
func wideWidth(data []byte, offset int) (int, error) {
	if offset+1 >= len(data) {
		return 0, fmt.Errorf("%w: wide prefix at offset %d", ErrTruncated, offset)
	}
	width := 4
	switch inner := data[offset+1]; {
	case inner == opIinc:
		width = 6
	case inner >= 0x15 && inner <= 0x19: // iload .. aload
	case inner >= 0x36 && inner <= 0x3A: // istore .. astore
	case inner == opRet:
	default:
		return 0, fmt.Errorf("%w: wide 0x%02x at offset %d", ErrUnknownOpcode, data[offset+1], offset)
	}
	if offset+width > len(data) {
		return 0, fmt.Errorf("%w: wide at offset %d", ErrTruncated, offset)
	}
	return width, nil
}

// switchPad returns the alignment padding after a switch opcode: operands
// start at the next 4-byte boundary relative to the start of the code array.
func switchPad(offset int) int {
	return (4 - (offset+1)%4) % 4
}

func tableswitchWidth(data []byte, offset int) (int, error) {
	base := offset + 1 + switchPad(offset)
	// default, low, high.
	if base+12 > len(data) {
		return 0, fmt.Errorf("%w: tableswitch at offset %d", ErrTruncated, offset)
	}
	low := int32(binary.BigEndian.Uint32(data[base+4:]))
	high := int32(binary.BigEndian.Uint32(data[base+8:]))
	if high < low {
		return 0, fmt.Errorf("%w: tableswitch at offset %d has high %d < low %d", ErrBadSwitch, offset, high, low)
	}
	count := int64(high) - int64(low) + 1
	end := int64(base) + 12 + 4*count
	if end > int64(len(data)) {
		return 0, fmt.Errorf("%w: tableswitch at offset %d", ErrTruncated, offset)
	}
	return int(end) - offset, nil
}

func lookupswitchWidth(data []byte, offset int) (int, error) {
	base := offset + 1 + switchPad(offset)
	// default, npairs.
	if base+8 > len(data) {
		return 0, fmt.Errorf("%w: lookupswitch at offset %d", ErrTruncated, offset)
	}
	npairs := int32(binary.BigEndian.Uint32(data[base+4:]))
	if npairs < 0 {
		return 0, fmt.Errorf("%w: lookupswitch at offset %d has %d pairs", ErrBadSwitch, offset, npairs)
	}
	end := int64(base) + 8 + 8*int64(npairs)
	if end > int64(len(data)) {
		return 0, fmt.Errorf("%w: lookupswitch at offset %d", ErrTruncated, offset)
	}
	return int(end) - offset, nil
}
