package shake

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArgs(t *testing.T) {
	require.Equal(t, []any{"Hello Shake!"}, ConstructorArgs{}.Args())
	require.Equal(t, []any{"gm"}, ConstructorArgs{Greeting: "gm"}.Args())
}

func TestMatches(t *testing.T) {
	require.True(t, Matches("Shake"))
	require.True(t, Matches("contracts/Shake.sol:Shake"))
	require.False(t, Matches("shake"))
	require.False(t, Matches("ShakeToken"))
}
