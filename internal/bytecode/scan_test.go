package bytecode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"jmf/internal/classfile"
	"jmf/internal/classtest"
)

var target = Target{Class: "com.example.TargetClass", Method: "targetMethod"}

func parseClass(t *testing.T, b *classtest.Builder) *classfile.File {
	t.Helper()
	f, err := classfile.Parse(b.Build())
	require.NoError(t, err)
	return f
}

func TestScanClassEndToEnd(t *testing.T) {
	b := classtest.New("com/example/CallerClass")
	mref := b.MethodRef("com/example/TargetClass", "targetMethod", "()V")

	code := append([]byte{0x2A}, classtest.Invoke(OpInvokevirtual, mref)...) // aload_0, invokevirtual
	code = append(code, 0xB1)                                               // return
	b.AddMethod("callerMethod", code, []classtest.LineEntry{{StartPC: 0, Line: 123}})

	calls, warnings, err := ScanClass(parseClass(t, b), target)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, []Call{{
		CallerClass:  "com.example.CallerClass",
		CallerMethod: "callerMethod",
		Line:         123,
	}}, calls)
}

// All overloads of the target name match; the same name on another class
// does not.
func TestScanMatchingIsNameExact(t *testing.T) {
	b := classtest.New("com/example/CallerClass")
	overload1 := b.MethodRef("com/example/TargetClass", "targetMethod", "()V")
	overload2 := b.MethodRef("com/example/TargetClass", "targetMethod", "(II)V")
	otherClass := b.MethodRef("com/example/OtherClass", "targetMethod", "()V")
	otherMethod := b.MethodRef("com/example/TargetClass", "anotherMethod", "()V")

	var code bytes.Buffer
	code.Write(classtest.Invoke(OpInvokevirtual, overload1))
	code.Write(classtest.Invoke(OpInvokestatic, overload2))
	code.Write(classtest.Invoke(OpInvokevirtual, otherClass))
	code.Write(classtest.Invoke(OpInvokespecial, otherMethod))
	code.WriteByte(0xB1)
	b.AddMethod("m", code.Bytes(), nil)

	calls, warnings, err := ScanClass(parseClass(t, b), target)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, calls, 2)
}

func TestScanInvokeKinds(t *testing.T) {
	b := classtest.New("com/example/CallerClass")
	mref := b.MethodRef("com/example/TargetClass", "targetMethod", "()V")
	imref := b.InterfaceMethodRef("com/example/TargetClass", "targetMethod", "()V")

	var code bytes.Buffer
	code.Write(classtest.Invoke(OpInvokevirtual, mref))
	code.Write(classtest.Invoke(OpInvokespecial, mref))
	code.Write(classtest.Invoke(OpInvokestatic, mref))
	code.Write(classtest.Invoke(OpInvokeinterface, imref))
	code.WriteByte(0xB1)
	b.AddMethod("m", code.Bytes(), nil)

	calls, warnings, err := ScanClass(parseClass(t, b), target)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, calls, 4)
	for _, c := range calls {
		require.Equal(t, -1, c.Line) // no line table in this method
	}
}

// The matched instruction's offset selects the line entry with the greatest
// start_pc at or below it.
func TestScanLineSelection(t *testing.T) {
	lines := []classtest.LineEntry{
		{StartPC: 0, Line: 10},
		{StartPC: 5, Line: 11},
		{StartPC: 12, Line: 13},
	}
	tests := []struct {
		name     string
		padding  int // nops before the invoke
		wantLine int
	}{
		{"at first entry", 0, 10},
		{"between entries", 7, 11},
		{"past last entry", 20, 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := classtest.New("com/example/CallerClass")
			mref := b.MethodRef("com/example/TargetClass", "targetMethod", "()V")
			code := append(bytes.Repeat([]byte{0x00}, tt.padding), classtest.Invoke(OpInvokevirtual, mref)...)
			code = append(code, 0xB1)
			b.AddMethod("m", code, lines)

			calls, _, err := ScanClass(parseClass(t, b), target)
			require.NoError(t, err)
			require.Len(t, calls, 1)
			require.Equal(t, tt.wantLine, calls[0].Line)
		})
	}
}

// A switch instruction ahead of the match must not disturb offset tracking,
// or the line lookup lands on the wrong entry.
func TestScanOffsetsAcrossSwitch(t *testing.T) {
	b := classtest.New("com/example/CallerClass")
	mref := b.MethodRef("com/example/TargetClass", "targetMethod", "()V")

	var s instrStream
	s.add([]byte{0x1A}) // iload_0
	s.addTableswitch(0, 1)
	s.add(classtest.Invoke(OpInvokevirtual, mref))
	invokeOffset := s.offsets[len(s.offsets)-1]
	s.add([]byte{0xB1})

	b.AddMethod("m", s.buf.Bytes(), []classtest.LineEntry{
		{StartPC: 0, Line: 1},
		{StartPC: uint16(invokeOffset), Line: 42},
	})

	calls, warnings, err := ScanClass(parseClass(t, b), target)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, calls, 1)
	require.Equal(t, 42, calls[0].Line)
}

// An invoke operand that does not resolve is skipped without failing the
// method; matches after it are still found.
func TestScanUnresolvableOperandSkipped(t *testing.T) {
	b := classtest.New("com/example/CallerClass")
	utf8 := b.Utf8("not a methodref")
	mref := b.MethodRef("com/example/TargetClass", "targetMethod", "()V")

	var code bytes.Buffer
	code.Write(classtest.Invoke(OpInvokevirtual, utf8))   // wrong entry kind
	code.Write(classtest.Invoke(OpInvokevirtual, 0xFFF0)) // out of range
	code.Write(classtest.Invoke(OpInvokevirtual, mref))
	code.WriteByte(0xB1)
	b.AddMethod("m", code.Bytes(), nil)

	calls, warnings, err := ScanClass(parseClass(t, b), target)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, calls, 1)
}

// A stream that cannot be advanced fails only its own method; matches found
// before the fault survive, and other methods still scan.
func TestScanMalformedStreamIsPerMethod(t *testing.T) {
	b := classtest.New("com/example/CallerClass")
	mref := b.MethodRef("com/example/TargetClass", "targetMethod", "()V")

	bad := append(classtest.Invoke(OpInvokevirtual, mref), 0xCB) // reserved opcode
	b.AddMethod("broken", bad, nil)

	good := append(classtest.Invoke(OpInvokevirtual, mref), 0xB1)
	b.AddMethod("fine", good, nil)

	calls, warnings, err := ScanClass(parseClass(t, b), target)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Equal(t, "broken", warnings[0].Method)
	require.ErrorIs(t, warnings[0].Err, ErrUnknownOpcode)
	require.Len(t, calls, 2) // one from each method

	// Truncated invoke operand.
	b2 := classtest.New("com/example/Other")
	b2.AddMethod("cut", []byte{OpInvokevirtual, 0x00}, nil)
	_, warnings, err = ScanClass(parseClass(t, b2), target)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.ErrorIs(t, warnings[0].Err, ErrTruncated)
}

// The target class's own file is never scanned for matches.
func TestScanSkipsTargetClass(t *testing.T) {
	b := classtest.New("com/example/TargetClass")
	mref := b.MethodRef("com/example/TargetClass", "targetMethod", "()V")
	b.AddMethod("recursive", append(classtest.Invoke(OpInvokevirtual, mref), 0xB1), nil)

	calls, warnings, err := ScanClass(parseClass(t, b), target)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Empty(t, calls)
}

// Abstract and native methods have no Code attribute and are skipped.
func TestScanSkipsMethodsWithoutCode(t *testing.T) {
	b := classtest.New("com/example/CallerClass")
	b.AddMethodWithAttrs("abstractMethod")

	calls, warnings, err := ScanClass(parseClass(t, b), target)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Empty(t, calls)
}
