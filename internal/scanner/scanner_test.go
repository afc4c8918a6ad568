package scanner

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"jmf/internal/bytecode"
	"jmf/internal/classtest"
)

const (
	targetClass  = "com.example.TargetClass"
	targetMethod = "targetMethod"
)

// callerClassBytes builds a class file whose single method invokes the
// target once per given source line.
func callerClassBytes(className string, lines ...uint16) []byte {
	b := classtest.New(className)
	mref := b.MethodRef("com/example/TargetClass", "targetMethod", "()V")

	var code []byte
	var table []classtest.LineEntry
	for _, line := range lines {
		table = append(table, classtest.LineEntry{StartPC: uint16(len(code)), Line: line})
		code = append(code, classtest.Invoke(bytecode.OpInvokevirtual, mref)...)
	}
	code = append(code, 0xB1)
	b.AddMethod("callerMethod", code, table)
	return b.Build()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func scan(t *testing.T, opts Options) *Result {
	t.Helper()
	res, err := Scan(context.Background(), opts)
	require.NoError(t, err)
	return res
}

func TestScanTree(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "com", "example", "A.class"), callerClassBytes("com/example/A", 10))
	writeFile(t, filepath.Join(dir, "com", "example", "deep", "B.class"), callerClassBytes("com/example/B", 20, 21))
	writeFile(t, filepath.Join(dir, "README.md"), []byte("not a class"))

	res := scan(t, Options{Root: dir, TargetClass: targetClass, TargetMethod: targetMethod})

	require.Empty(t, res.Warnings)
	require.Equal(t, []bytecode.Call{
		{CallerClass: "com.example.A", CallerMethod: "callerMethod", Line: 10},
		{CallerClass: "com.example.B", CallerMethod: "callerMethod", Line: 20},
		{CallerClass: "com.example.B", CallerMethod: "callerMethod", Line: 21},
	}, res.Calls)
}

// One corrupted file produces one warning and leaves the rest of the run
// untouched.
func TestScanFaultIsolation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Good.class"), callerClassBytes("com/example/Good", 5, 9))
	whole := callerClassBytes("com/example/Broken", 5)
	writeFile(t, filepath.Join(dir, "Broken.class"), whole[:len(whole)/2])

	res := scan(t, Options{Root: dir, TargetClass: targetClass, TargetMethod: targetMethod})

	require.Len(t, res.Calls, 2)
	require.Len(t, res.Warnings, 1)
	require.Equal(t, "Broken.class", filepath.Base(res.Warnings[0].Path))
}

func TestScanIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "A.class"), callerClassBytes("com/example/A", 3))
	writeFile(t, filepath.Join(dir, "B.class"), callerClassBytes("com/example/B", 1, 2))

	opts := Options{Root: dir, TargetClass: targetClass, TargetMethod: targetMethod, Workers: 4}
	first := scan(t, opts)
	second := scan(t, opts)

	require.Equal(t, first.Calls, second.Calls)
	require.Equal(t, first.Warnings, second.Warnings)
}

func TestScanEmptyResultIsValid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "A.class"), callerClassBytes("com/example/A", 10))

	res := scan(t, Options{Root: dir, TargetClass: "com.example.Missing", TargetMethod: "nope"})
	require.Empty(t, res.Calls)
	require.Empty(t, res.Warnings)
}

func TestScanInputValidation(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain.txt")
	writeFile(t, file, []byte("x"))

	tests := []struct {
		name string
		opts Options
	}{
		{"empty class", Options{Root: dir, TargetMethod: "m"}},
		{"empty method", Options{Root: dir, TargetClass: "c"}},
		{"missing root", Options{Root: filepath.Join(dir, "nope"), TargetClass: "c", TargetMethod: "m"}},
		{"root not a dir", Options{Root: file, TargetClass: "c", TargetMethod: "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Scan(context.Background(), tt.opts)
			require.Error(t, err)
		})
	}
}

func TestScanArchives(t *testing.T) {
	dir := t.TempDir()
	writeJar(t, filepath.Join(dir, "app.jar"), map[string][]byte{
		"com/example/A.class":  callerClassBytes("com/example/A", 33),
		"META-INF/MANIFEST.MF": []byte("Manifest-Version: 1.0\n"),
	})

	res := scan(t, Options{Root: dir, TargetClass: targetClass, TargetMethod: targetMethod, IncludeJars: true})
	require.Len(t, res.Calls, 1)
	require.Equal(t, 33, res.Calls[0].Line)

	// Without the flag the archive is not touched.
	res = scan(t, Options{Root: dir, TargetClass: targetClass, TargetMethod: targetMethod})
	require.Empty(t, res.Calls)
}

func writeJar(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}
