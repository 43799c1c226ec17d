package pioini

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const generated = `; PlatformIO Project Configuration File
;
; Build options: build flags, source filter

[env:nucleo_f031k6]
platform = ststm32
board = nucleo_f031k6
framework = stm32cube
lib_deps =
    foo
    bar
`

func TestParseAndGet(t *testing.T) {
	doc, err := Parse(generated)
	require.NoError(t, err)

	v, ok := doc.Get("env:nucleo_f031k6", "Board")
	require.True(t, ok)
	require.Equal(t, "nucleo_f031k6", v)

	v, ok = doc.Get("env:nucleo_f031k6", "lib_deps")
	require.True(t, ok)
	require.Equal(t, "foo\nbar", v)

	_, ok = doc.Get("platformio", "src_dir")
	require.False(t, ok)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("[broken\nkey = v\n")
	require.Error(t, err)

	_, err = Parse("  orphan\n")
	require.Error(t, err)

	_, err = Parse("[s]\nno separator\n")
	require.Error(t, err)
}

func TestMergeContains(t *testing.T) {
	doc, err := Parse(generated)
	require.NoError(t, err)
	patch, err := Parse("[platformio]\ninclude_dir = Inc\nsrc_dir = Src\n")
	require.NoError(t, err)

	require.False(t, doc.Contains(patch))
	doc.Merge(patch)
	require.True(t, doc.Contains(patch))

	// Rendering and re-parsing keeps the merged keys and the original ones.
	again, err := Parse(doc.String())
	require.NoError(t, err)
	require.True(t, again.Contains(patch))
	v, ok := again.Get("env:nucleo_f031k6", "framework")
	require.True(t, ok)
	require.Equal(t, "stm32cube", v)
	require.Contains(t, doc.String(), "; PlatformIO Project Configuration File")
}

func TestContainsValueMismatch(t *testing.T) {
	doc, err := Parse("[platformio]\nsrc_dir = src\ninclude_dir = Inc\n")
	require.NoError(t, err)
	patch, err := Parse("[platformio]\nsrc_dir = Src\n")
	require.NoError(t, err)
	require.False(t, doc.Contains(patch))
}
