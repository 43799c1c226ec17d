package normalization

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type color string

func TestNormalizer(t *testing.T) {
	n := NewNormalizer(map[string]color{"Red": "red", "blue": "blue"}, color("red"))

	require.Equal(t, color("blue"), n.Normalize("  BLUE "))
	require.Equal(t, color("red"), n.Normalize("green"))
	require.Equal(t, []string{"blue", "red"}, n.Keys())

	v, err := n.Parse("red")
	require.NoError(t, err)
	require.Equal(t, color("red"), v)

	_, err = n.Parse("green")
	require.ErrorContains(t, err, "valid options: blue, red")
}
