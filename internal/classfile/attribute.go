package classfile

// Attribute names interpreted by this package.
const (
	AttrCode            = "Code"
	AttrLineNumberTable = "LineNumberTable"
)

// ExceptionHandler is one entry of a Code attribute's exception table.
// CatchType is recorded but never interpreted here.
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

// Code is a decoded Code attribute: the compiled bytecode of one method plus
// its exception table and nested attributes.
type Code struct {
	MaxStack       uint16
	MaxLocals      uint16
	Bytecode       []byte
	ExceptionTable []ExceptionHandler
	Attributes     []Attribute
}

// LineEntry maps a bytecode start offset to a source line number.
type LineEntry struct {
	StartPC uint16
	Line    uint16
}

// ParseCode decodes a Code attribute payload. Nested attributes go through
// the same generic mechanism as top-level ones, which is how an embedded
// LineNumberTable is found.
func ParseCode(pool *ConstantPool, data []byte) (*Code, error) {
	r := NewReader(data)
	c := &Code{}
	var err error
	if c.MaxStack, err = r.U16(); err != nil {
		return nil, err
	}
	if c.MaxLocals, err = r.U16(); err != nil {
		return nil, err
	}
	codeLen, err := r.U32()
	if err != nil {
		return nil, err
	}
	if c.Bytecode, err = r.Bytes(int(codeLen)); err != nil {
		return nil, err
	}

	handlerCount, err := r.U16()
	if err != nil {
		return nil, err
	}
	c.ExceptionTable = make([]ExceptionHandler, handlerCount)
	for i := range c.ExceptionTable {
		h := &c.ExceptionTable[i]
		if h.StartPC, err = r.U16(); err != nil {
			return nil, err
		}
		if h.EndPC, err = r.U16(); err != nil {
			return nil, err
		}
		if h.HandlerPC, err = r.U16(); err != nil {
			return nil, err
		}
		if h.CatchType, err = r.U16(); err != nil {
			return nil, err
		}
	}

	if c.Attributes, err = parseAttributes(r, pool); err != nil {
		return nil, err
	}
	return c, nil
}

// LineNumberTable decodes the method's LineNumberTable, if present.
// Returns nil when the Code attribute carries none.
func (c *Code) LineNumberTable() ([]LineEntry, error) {
	for i := range c.Attributes {
		if c.Attributes[i].Name == AttrLineNumberTable {
			return parseLineNumberTable(c.Attributes[i].Data)
		}
	}
	return nil, nil
}

// parseLineNumberTable decodes a LineNumberTable payload. Entries are kept
// in file order; the format promises ascending start_pc and a malformed file
// that breaks that promise degrades lookup results rather than failing.
func parseLineNumberTable(data []byte) ([]LineEntry, error) {
	r := NewReader(data)
	count, err := r.U16()
	if err != nil {
		return nil, err
	}
	table := make([]LineEntry, count)
	for i := range table {
		if table[i].StartPC, err = r.U16(); err != nil {
			return nil, err
		}
		if table[i].Line, err = r.U16(); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// LineFor returns the source line for a bytecode offset: the entry with the
// greatest StartPC that is <= offset. Returns false when the table is empty
// or the offset precedes the first entry.
func LineFor(table []LineEntry, offset int) (uint16, bool) {
	line := uint16(0)
	found := false
	for _, e := range table {
		if int(e.StartPC) <= offset {
			line = e.Line
			found = true
		} else {
			break
		}
	}
	return line, found
}
