// Package classtest assembles synthetic JVM class files for tests.
// The builder produces byte-exact class file images without a Java compiler,
// so parser and scanner tests can construct precise shapes (wide constants,
// switch padding, truncated streams) that real compilers rarely emit.
package classtest

import (
	"bytes"
	"encoding/binary"
)

// LineEntry mirrors a LineNumberTable row.
type LineEntry struct {
	StartPC uint16
	Line    uint16
}

// RawAttr is an attribute attached verbatim to a method.
type RawAttr struct {
	Name string
	Data []byte
}

// Builder accumulates constant pool entries and methods, then emits a
// complete class file image.
type Builder struct {
	pool      bytes.Buffer
	nextIndex uint16
	utf8Memo  map[string]uint16
	classMemo map[string]uint16
	thisClass uint16
	super     uint16
	methods   [][]byte
	fields    [][]byte
}

// New starts a class file for the given internal (slash-separated) name.
func New(className string) *Builder {
	b := &Builder{
		nextIndex: 1,
		utf8Memo:  make(map[string]uint16),
		classMemo: make(map[string]uint16),
	}
	b.thisClass = b.Class(className)
	b.super = b.Class("java/lang/Object")
	return b
}

// Utf8 interns a Utf8 entry and returns its index.
func (b *Builder) Utf8(s string) uint16 {
	if i, ok := b.utf8Memo[s]; ok {
		return i
	}
	i := b.rawEntry(1, nil)
	var tail [2]byte
	binary.BigEndian.PutUint16(tail[:], uint16(len(s)))
	b.pool.Write(tail[:])
	b.pool.WriteString(s)
	b.utf8Memo[s] = i
	return i
}

// Class interns a Class entry for an internal name.
func (b *Builder) Class(name string) uint16 {
	if i, ok := b.classMemo[name]; ok {
		return i
	}
	nameIdx := b.Utf8(name)
	i := b.rawEntry(7, u16(nameIdx))
	b.classMemo[name] = i
	return i
}

// NameAndType adds a NameAndType entry.
func (b *Builder) NameAndType(name, desc string) uint16 {
	return b.rawEntry(12, append(u16(b.Utf8(name)), u16(b.Utf8(desc))...))
}

// MethodRef adds a Methodref chain (class, name-and-type, Utf8 leaves) and
// returns the Methodref index.
func (b *Builder) MethodRef(class, name, desc string) uint16 {
	classIdx := b.Class(class)
	natIdx := b.NameAndType(name, desc)
	return b.rawEntry(10, append(u16(classIdx), u16(natIdx)...))
}

// InterfaceMethodRef adds an InterfaceMethodref chain.
func (b *Builder) InterfaceMethodRef(class, name, desc string) uint16 {
	classIdx := b.Class(class)
	natIdx := b.NameAndType(name, desc)
	return b.rawEntry(11, append(u16(classIdx), u16(natIdx)...))
}

// Long adds a Long entry, which consumes two pool slots.
func (b *Builder) Long(v uint64) uint16 {
	var payload [8]byte
	binary.BigEndian.PutUint64(payload[:], v)
	i := b.rawEntry(5, payload[:])
	b.nextIndex++ // placeholder slot
	return i
}

// Entry adds an arbitrary tagged entry with a verbatim payload.
func (b *Builder) Entry(tag byte, payload []byte) uint16 {
	return b.rawEntry(tag, payload)
}

func (b *Builder) rawEntry(tag byte, payload []byte) uint16 {
	i := b.nextIndex
	b.pool.WriteByte(tag)
	b.pool.Write(payload)
	b.nextIndex++
	return i
}

// AddMethod adds a method with a Code attribute holding the given bytecode
// and, when lines is non-nil, a nested LineNumberTable.
func (b *Builder) AddMethod(name string, code []byte, lines []LineEntry) {
	var attrs []RawAttr
	var nested []RawAttr
	if lines != nil {
		var lt bytes.Buffer
		writeU16(&lt, uint16(len(lines)))
		for _, e := range lines {
			writeU16(&lt, e.StartPC)
			writeU16(&lt, e.Line)
		}
		nested = append(nested, RawAttr{Name: "LineNumberTable", Data: lt.Bytes()})
	}

	var payload bytes.Buffer
	writeU16(&payload, 8) // max_stack
	writeU16(&payload, 8) // max_locals
	writeU32(&payload, uint32(len(code)))
	payload.Write(code)
	writeU16(&payload, 0) // exception table
	b.writeAttrs(&payload, nested)

	attrs = append(attrs, RawAttr{Name: "Code", Data: payload.Bytes()})
	b.AddMethodWithAttrs(name, attrs...)
}

// AddMethodWithAttrs adds a method with verbatim attributes. No attributes
// models an abstract or native method.
func (b *Builder) AddMethodWithAttrs(name string, attrs ...RawAttr) {
	var m bytes.Buffer
	writeU16(&m, 0x0001) // public
	writeU16(&m, b.Utf8(name))
	writeU16(&m, b.Utf8("()V"))
	b.writeAttrs(&m, attrs)
	b.methods = append(b.methods, m.Bytes())
}

// AddField adds a field with no attributes.
func (b *Builder) AddField(name, desc string) {
	var f bytes.Buffer
	writeU16(&f, 0x0002) // private
	writeU16(&f, b.Utf8(name))
	writeU16(&f, b.Utf8(desc))
	writeU16(&f, 0)
	b.fields = append(b.fields, f.Bytes())
}

func (b *Builder) writeAttrs(buf *bytes.Buffer, attrs []RawAttr) {
	writeU16(buf, uint16(len(attrs)))
	for _, a := range attrs {
		writeU16(buf, b.Utf8(a.Name))
		writeU32(buf, uint32(len(a.Data)))
		buf.Write(a.Data)
	}
}

// Build emits the complete class file image.
func (b *Builder) Build() []byte {
	var out bytes.Buffer
	writeU32(&out, 0xCAFEBABE)
	writeU16(&out, 0)  // minor
	writeU16(&out, 52) // major (Java 8)
	writeU16(&out, b.nextIndex)
	out.Write(b.pool.Bytes())
	writeU16(&out, 0x0021) // public super
	writeU16(&out, b.thisClass)
	writeU16(&out, b.super)
	writeU16(&out, 0) // interfaces
	writeU16(&out, uint16(len(b.fields)))
	for _, f := range b.fields {
		out.Write(f)
	}
	writeU16(&out, uint16(len(b.methods)))
	for _, m := range b.methods {
		out.Write(m)
	}
	writeU16(&out, 0) // class attributes
	return out.Bytes()
}

// Invoke renders an invoke instruction for the given opcode and pool index.
// invokeinterface carries its count and reserved-zero trailer.
func Invoke(op byte, index uint16) []byte {
	inst := []byte{op, byte(index >> 8), byte(index)}
	if op == 0xB9 {
		inst = append(inst, 1, 0)
	}
	return inst
}

func u16(v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return b[:]
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
