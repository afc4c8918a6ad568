// Package classfile decodes the JVM class file binary format: constant pool,
// class structure, and the Code and LineNumberTable attributes needed to
// locate method call sites.
//
// Decoding is deliberately lazy about cross-references: the structural pass
// records constant pool indices as-is, and invalid indices surface only when
// a reference is resolved. A class file with one malformed method still
// yields every other method intact.
package classfile

import (
	"errors"
	"fmt"
	"strings"
)

// Magic is the class file marker, the first four bytes of every class file.
const Magic = 0xCAFEBABE

// ErrBadMagic is returned when the file does not start with 0xCAFEBABE.
var ErrBadMagic = errors.New("classfile: bad magic number")

// Attribute is a generically parsed attribute: its resolved name and the raw
// payload. Only "Code" and "LineNumberTable" are interpreted further; unknown
// attributes are retained as opaque byte spans.
type Attribute struct {
	Name string
	Data []byte
}

// Member is a field or method entry. Methods carry at most one Code
// attribute and may have none at all (abstract or native methods).
type Member struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []Attribute
}

// Attribute returns the raw payload of the first attribute with the given
// name, or false if the member has none.
func (m *Member) Attribute(name string) ([]byte, bool) {
	for i := range m.Attributes {
		if m.Attributes[i].Name == name {
			return m.Attributes[i].Data, true
		}
	}
	return nil, false
}

// File is a fully decoded class file. It is immutable once built and owned
// by the parse call that produced it.
type File struct {
	MinorVersion uint16
	MajorVersion uint16
	Pool         ConstantPool
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []Member
	Methods      []Member
	Attributes   []Attribute
}

// Parse decodes a complete class file from its raw bytes.
// The read order is fixed by the format: magic, version, constant pool,
// access flags, this/super class, interfaces, fields, methods, attributes.
func Parse(data []byte) (*File, error) {
	r := NewReader(data)

	magic, err := r.U32()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: 0x%08x", ErrBadMagic, magic)
	}

	f := &File{}
	if f.MinorVersion, err = r.U16(); err != nil {
		return nil, err
	}
	if f.MajorVersion, err = r.U16(); err != nil {
		return nil, err
	}

	poolCount, err := r.U16()
	if err != nil {
		return nil, err
	}
	if f.Pool, err = parseConstantPool(r, poolCount); err != nil {
		return nil, err
	}

	if f.AccessFlags, err = r.U16(); err != nil {
		return nil, err
	}
	if f.ThisClass, err = r.U16(); err != nil {
		return nil, err
	}
	if f.SuperClass, err = r.U16(); err != nil {
		return nil, err
	}

	ifaceCount, err := r.U16()
	if err != nil {
		return nil, err
	}
	f.Interfaces = make([]uint16, ifaceCount)
	for i := range f.Interfaces {
		if f.Interfaces[i], err = r.U16(); err != nil {
			return nil, err
		}
	}

	if f.Fields, err = parseMembers(r, &f.Pool); err != nil {
		return nil, err
	}
	if f.Methods, err = parseMembers(r, &f.Pool); err != nil {
		return nil, err
	}
	if f.Attributes, err = parseAttributes(r, &f.Pool); err != nil {
		return nil, err
	}
	return f, nil
}

// ThisClassName returns the dotted fully-qualified name of the class the
// file defines.
func (f *File) ThisClassName() (string, error) {
	name, err := f.Pool.ClassName(f.ThisClass)
	if err != nil {
		return "", err
	}
	return DottedName(name), nil
}

// MethodName returns the name of a method, resolved through the pool.
func (f *File) MethodName(m *Member) (string, error) {
	return f.Pool.Utf8(m.NameIndex)
}

// DottedName converts an internal slash-separated class name
// (com/example/Foo) to dotted form (com.example.Foo).
func DottedName(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

// parseMembers reads a u16 count followed by that many field or method
// entries. Fields and methods share the same wire shape.
func parseMembers(r *Reader, pool *ConstantPool) ([]Member, error) {
	count, err := r.U16()
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, count)
	for i := 0; i < int(count); i++ {
		var m Member
		if m.AccessFlags, err = r.U16(); err != nil {
			return nil, err
		}
		if m.NameIndex, err = r.U16(); err != nil {
			return nil, err
		}
		if m.DescriptorIndex, err = r.U16(); err != nil {
			return nil, err
		}
		if m.Attributes, err = parseAttributes(r, pool); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

// parseAttributes reads a u16 count followed by that many attributes. The
// attribute name is resolved eagerly because it selects further decoding; a
// name that fails to resolve leaves the attribute opaque rather than failing
// the parse.
func parseAttributes(r *Reader, pool *ConstantPool) ([]Attribute, error) {
	count, err := r.U16()
	if err != nil {
		return nil, err
	}
	attrs := make([]Attribute, 0, count)
	for i := 0; i < int(count); i++ {
		nameIndex, err := r.U16()
		if err != nil {
			return nil, err
		}
		length, err := r.U32()
		if err != nil {
			return nil, err
		}
		data, err := r.Bytes(int(length))
		if err != nil {
			return nil, err
		}
		name, err := pool.Utf8(nameIndex)
		if err != nil {
			name = ""
		}
		attrs = append(attrs, Attribute{Name: name, Data: data})
	}
	return attrs, nil
}
