package classfile

import "fmt"

// MethodRef is a symbolic method reference resolved from the constant pool.
// Class is in dotted form (com.example.Foo).
type MethodRef struct {
	Class      string
	Name       string
	Descriptor string
}

// ResolveMethodRef resolves a constant pool index holding a Methodref or
// InterfaceMethodref into its symbolic triple. Both kinds share one
// resolution path: invokespecial and invokestatic may name either depending
// on the bytecode version.
//
// The chain is entry → class_index → Class → Utf8 for the owning class, and
// entry → name_and_type_index → NameAndType → Utf8 pair for name and
// descriptor. Any broken link fails with one of ErrIndexOutOfRange,
// ErrWrongEntryKind or ErrUtf8Expected; callers treat the reference as
// unresolvable, never as a parse failure.
func (f *File) ResolveMethodRef(index uint16) (MethodRef, error) {
	e, err := f.Pool.Entry(index)
	if err != nil {
		return MethodRef{}, err
	}
	if e.Tag != TagMethodref && e.Tag != TagInterfaceMethodref {
		return MethodRef{}, fmt.Errorf("%w: index %d has tag %d, want Methodref or InterfaceMethodref",
			ErrWrongEntryKind, index, e.Tag)
	}

	className, err := f.Pool.ClassName(e.Index1)
	if err != nil {
		return MethodRef{}, err
	}

	nat, err := f.Pool.Entry(e.Index2)
	if err != nil {
		return MethodRef{}, err
	}
	if nat.Tag != TagNameAndType {
		return MethodRef{}, fmt.Errorf("%w: index %d has tag %d, want NameAndType",
			ErrWrongEntryKind, e.Index2, nat.Tag)
	}

	name, err := f.Pool.Utf8(nat.Index1)
	if err != nil {
		return MethodRef{}, err
	}
	desc, err := f.Pool.Utf8(nat.Index2)
	if err != nil {
		return MethodRef{}, err
	}

	return MethodRef{
		Class:      DottedName(className),
		Name:       name,
		Descriptor: desc,
	}, nil
}
