package symbol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDemangleLegacyRust(t *testing.T) {
	got := demangle("_ZN5tokio7runtime9scheduler12multi_thread6worker3run17h1234567890abcdefE")
	require.Equal(t, "tokio::runtime::scheduler::multi_thread::worker::run", got)
}

func TestDemangleUnrecognizedPassesThrough(t *testing.T) {
	for _, name := range []string{"_R...garbage", "plain_symbol", "_ZN"} {
		require.Equal(t, name, demangle(name))
	}
}

func TestFindMap(t *testing.T) {
	entries := []MapEntry{
		{Start: 0x1000, End: 0x2000, FileOffset: 0x0, Path: "/bin/app"},
		{Start: 0x5000, End: 0x6000, FileOffset: 0x4000, Path: "/lib/libc.so"},
	}

	_, ok := findMap(entries, 0x1500)
	require.True(t, ok, "expected a match within the first mapping")

	e, ok := findMap(entries, 0x5500)
	require.True(t, ok, "expected a match within the second mapping")
	require.Equal(t, "/lib/libc.so", e.Path)

	_, ok = findMap(entries, 0x3000)
	require.False(t, ok, "expected no match in the gap between mappings")
}

func TestFindFuncAndLine(t *testing.T) {
	funcs := []funcRange{
		{low: 0x100, high: 0x200, name: "a"},
		{low: 0x200, high: 0x300, name: "b"},
	}
	name, ok := findFunc(funcs, 0x150)
	require.True(t, ok)
	require.Equal(t, "a", name)

	_, ok = findFunc(funcs, 0x400)
	require.False(t, ok, "expected no function covering 0x400")

	lines := []lineRow{
		{pc: 0x100, file: "a.rs", line: 1},
		{pc: 0x180, file: "a.rs", line: 2},
	}
	file, line, ok := findLine(lines, 0x190)
	require.True(t, ok)
	require.Equal(t, "a.rs", file)
	require.Equal(t, 2, line)
}

func TestDegradedLabel(t *testing.T) {
	cases := map[string]string{
		"/usr/lib/x86_64-linux-gnu/libc.so.6":          "[libc]",
		"/usr/lib/x86_64-linux-gnu/libpthread-2.31.so": "[libpthread]",
		"/lib64/ld-linux-x86-64.so.2":                  "[loader]",
		"/usr/lib/libfoo.so":                           "[shared library]",
		"/usr/bin/myserver":                            "[stripped]",
	}
	for path, want := range cases {
		require.Equal(t, want, degradedLabel(path))
	}
}

func TestDebugInfoFractionNoSamples(t *testing.T) {
	s := &Symbolizer{binaries: map[string]*binaryIndex{}, cache: map[uint64]ResolvedFrame{}}
	require.Equal(t, 1.0, s.DebugInfoFraction(), "DebugInfoFraction() with no samples should be 1")
}

func TestResolveUnmappedAddress(t *testing.T) {
	s := &Symbolizer{binaries: map[string]*binaryIndex{}, cache: map[uint64]ResolvedFrame{}}
	f := s.Resolve(0xdeadbeef)
	require.False(t, f.HasDebugInfo, "expected degraded frame for an unmapped address")
	require.Equal(t, "[unknown]", f.BinaryIdentity)
}
