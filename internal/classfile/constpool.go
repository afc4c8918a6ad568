package classfile

import (
	"errors"
	"fmt"
)

// Constant pool tags.
// See JVMS §4.4.
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
	TagModule             = 19
	TagPackage            = 20
)

var (
	// ErrInvalidTag is returned for a constant pool tag the format does not define.
	ErrInvalidTag = errors.New("classfile: invalid constant pool tag")
	// ErrIndexOutOfRange is returned for a pool index outside [1, count).
	ErrIndexOutOfRange = errors.New("classfile: constant pool index out of range")
	// ErrWrongEntryKind is returned when an index resolves to an entry of an
	// unexpected tag, including the placeholder slot after a Long or Double.
	ErrWrongEntryKind = errors.New("classfile: wrong constant pool entry kind")
	// ErrUtf8Expected is returned when a name or descriptor chain ends on a
	// non-Utf8 entry.
	ErrUtf8Expected = errors.New("classfile: Utf8 entry expected")
)

// Entry is one constant pool slot. Fields are populated according to Tag:
//
//	Utf8                                     Utf8
//	Class / String / MethodType / Module /
//	Package                                  Index1 (name or utf8 index)
//	Fieldref / Methodref / InterfaceMethodref Index1 (class), Index2 (name-and-type)
//	NameAndType                              Index1 (name), Index2 (descriptor)
//	MethodHandle                             Index1 (reference kind), Index2 (reference)
//	Dynamic / InvokeDynamic                  Index1 (bootstrap attr), Index2 (name-and-type)
//
// Integer/Float/Long/Double payloads are consumed for alignment but not
// interpreted; this tool never reads literal values. A Long or Double entry
// is followed by one placeholder slot with Tag 0.
type Entry struct {
	Tag    uint8
	Utf8   string
	Index1 uint16
	Index2 uint16
}

// ConstantPool is the class file's table of shared literal and symbolic
// reference entries, indexed 1-based. Index 0 is reserved and invalid.
type ConstantPool struct {
	entries []Entry
}

// Size returns the declared pool size (entry count plus one).
func (p *ConstantPool) Size() int { return len(p.entries) }

// Entry returns the entry at a 1-based pool index.
// Index 0, out-of-range indices and Long/Double placeholder slots fail.
func (p *ConstantPool) Entry(i uint16) (*Entry, error) {
	if i == 0 || int(i) >= len(p.entries) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	e := &p.entries[i]
	if e.Tag == 0 {
		return nil, fmt.Errorf("%w: index %d is a wide-entry placeholder", ErrWrongEntryKind, i)
	}
	return e, nil
}

// Utf8 returns the string value of the Utf8 entry at index i.
func (p *ConstantPool) Utf8(i uint16) (string, error) {
	e, err := p.Entry(i)
	if err != nil {
		return "", err
	}
	if e.Tag != TagUtf8 {
		return "", fmt.Errorf("%w: index %d has tag %d", ErrUtf8Expected, i, e.Tag)
	}
	return e.Utf8, nil
}

// ClassName returns the internal (slash-separated) name of the Class entry
// at index i.
func (p *ConstantPool) ClassName(i uint16) (string, error) {
	e, err := p.Entry(i)
	if err != nil {
		return "", err
	}
	if e.Tag != TagClass {
		return "", fmt.Errorf("%w: index %d has tag %d, want Class", ErrWrongEntryKind, i, e.Tag)
	}
	return p.Utf8(e.Index1)
}

// parseConstantPool reads count-1 entries from r. Long and Double entries
// occupy two consecutive slots; the slot following such an entry stays a
// zero-tag placeholder so every later index keeps its file meaning.
func parseConstantPool(r *Reader, count uint16) (ConstantPool, error) {
	entries := make([]Entry, count)
	for i := uint16(1); i < count; i++ {
		tag, err := r.U8()
		if err != nil {
			return ConstantPool{}, err
		}
		e := Entry{Tag: tag}
		switch tag {
		case TagUtf8:
			n, err := r.U16()
			if err != nil {
				return ConstantPool{}, err
			}
			b, err := r.Bytes(int(n))
			if err != nil {
				return ConstantPool{}, err
			}
			e.Utf8 = string(b)
		case TagInteger, TagFloat:
			if err := r.Skip(4); err != nil {
				return ConstantPool{}, err
			}
		case TagLong, TagDouble:
			if err := r.Skip(8); err != nil {
				return ConstantPool{}, err
			}
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			if e.Index1, err = r.U16(); err != nil {
				return ConstantPool{}, err
			}
		case TagMethodHandle:
			kind, err := r.U8()
			if err != nil {
				return ConstantPool{}, err
			}
			e.Index1 = uint16(kind)
			if e.Index2, err = r.U16(); err != nil {
				return ConstantPool{}, err
			}
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType,
			TagDynamic, TagInvokeDynamic:
			if e.Index1, err = r.U16(); err != nil {
				return ConstantPool{}, err
			}
			if e.Index2, err = r.U16(); err != nil {
				return ConstantPool{}, err
			}
		default:
			return ConstantPool{}, fmt.Errorf("%w: %d at index %d", ErrInvalidTag, tag, i)
		}
		entries[i] = e
		if tag == TagLong || tag == TagDouble {
			// The next slot is non-addressable.
			i++
		}
	}
	return ConstantPool{entries: entries}, nil
}
