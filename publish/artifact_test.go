package publish_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ShakeShock/shake-erc20-token/publish"
	"github.com/ShakeShock/shake-erc20-token/publish/publishtest"
)

func TestLoadArtifactHardhat(t *testing.T) {
	dir := t.TempDir()
	path := publishtest.WriteShakeArtifact(t, dir)
	// debug files sit next to artifacts and must be ignored
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "Shake.dbg.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "build-info"), 0o755))

	a, err := publish.LoadArtifact(dir, "Shake")
	require.NoError(t, err)
	require.Equal(t, "Shake", a.ContractName)
	require.Equal(t, "contracts/Shake.sol", a.SourceName)
	require.Equal(t, common.FromHex(publishtest.ShakeBytecode), a.Bytecode)
	require.Len(t, a.ABI.Constructor.Inputs, 1)
	require.Contains(t, a.ABI.Methods, "greet")
}

func TestLoadArtifactQualifiedName(t *testing.T) {
	dir := t.TempDir()
	publishtest.WriteShakeArtifact(t, dir)
	publishtest.WriteArtifact(t, dir, "Other.sol", "Shake", publishtest.ShakeABI, "0x6000")

	_, err := publish.LoadArtifact(dir, "Shake")
	require.ErrorIs(t, err, publish.ErrAmbiguousName)

	a, err := publish.LoadArtifact(dir, "contracts/Other.sol:Shake")
	require.NoError(t, err)
	require.Equal(t, []byte{0x60, 0x00}, a.Bytecode)
}

func TestLoadArtifactQualifiedNamePrefersExactSource(t *testing.T) {
	dir := t.TempDir()
	want := publishtest.WriteShakeArtifact(t, dir)
	publishtest.WriteArtifact(t, filepath.Join(dir, "lib"), "Shake.sol", "Shake", publishtest.ShakeABI, "0x6000")

	a, err := publish.LoadArtifact(dir, "contracts/Shake.sol:Shake")
	require.NoError(t, err)
	require.Equal(t, want, a.Path)

	a, err = publish.LoadArtifact(dir, "lib/contracts/Shake.sol:Shake")
	require.NoError(t, err)
	require.Equal(t, []byte{0x60, 0x00}, a.Bytecode)

	// only a basename match left, both candidates qualify
	_, err = publish.LoadArtifact(dir, "src/Shake.sol:Shake")
	require.ErrorIs(t, err, publish.ErrAmbiguousName)
}

func TestLoadArtifactFoundryQualifiedName(t *testing.T) {
	dir := t.TempDir()
	blob := `{"abi":` + publishtest.ShakeABI + `,"bytecode":{"object":"` + publishtest.ShakeBytecode + `"}}`
	path := filepath.Join(dir, "Shake.sol", "Shake.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(blob), 0o644))

	a, err := publish.LoadArtifact(dir, "src/Shake.sol:Shake")
	require.NoError(t, err)
	require.Equal(t, path, a.Path)
}

func TestLoadArtifactFoundry(t *testing.T) {
	dir := t.TempDir()
	blob := `{"abi":` + publishtest.ShakeABI + `,"bytecode":{"object":"` + publishtest.ShakeBytecode + `","linkReferences":{}}}`
	path := filepath.Join(dir, "Shake.sol", "Shake.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(blob), 0o644))

	a, err := publish.LoadArtifact(dir, "Shake")
	require.NoError(t, err)
	require.Equal(t, "Shake", a.ContractName)
	require.Equal(t, path, a.Path)
}

func TestLoadArtifactErrors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := publish.LoadArtifact(t.TempDir(), "Shake")
		require.ErrorIs(t, err, publish.ErrArtifactNotFound)
	})
	t.Run("missing directory", func(t *testing.T) {
		_, err := publish.LoadArtifact(filepath.Join(t.TempDir(), "nope"), "Shake")
		require.ErrorIs(t, err, publish.ErrArtifactNotFound)
	})
	t.Run("abstract", func(t *testing.T) {
		dir := t.TempDir()
		publishtest.WriteArtifact(t, dir, "IShake.sol", "IShake", `[]`, "0x")
		_, err := publish.LoadArtifact(dir, "IShake")
		require.ErrorIs(t, err, publish.ErrAbstractContract)
	})
	t.Run("unlinked", func(t *testing.T) {
		dir := t.TempDir()
		publishtest.WriteArtifact(t, dir, "Lib.sol", "UsesLib", `[]`, "0x73__$abcdef$__6000")
		_, err := publish.LoadArtifact(dir, "UsesLib")
		require.ErrorIs(t, err, publish.ErrUnlinkedLibrary)
	})
	t.Run("bad hex", func(t *testing.T) {
		dir := t.TempDir()
		publishtest.WriteArtifact(t, dir, "Bad.sol", "Bad", `[]`, "0xzz")
		_, err := publish.LoadArtifact(dir, "Bad")
		require.ErrorContains(t, err, "decode hex")
	})
}

func TestEncodeDeploy(t *testing.T) {
	dir := t.TempDir()
	publishtest.WriteShakeArtifact(t, dir)
	a, err := publish.LoadArtifact(dir, "Shake")
	require.NoError(t, err)

	data, err := a.EncodeDeploy("Hello Shake!")
	require.NoError(t, err)
	require.Equal(t, a.Bytecode, data[:len(a.Bytecode)])

	values, err := a.ABI.Constructor.Inputs.Unpack(data[len(a.Bytecode):])
	require.NoError(t, err)
	require.Equal(t, []any{"Hello Shake!"}, values)

	_, err = a.EncodeDeploy()
	require.Error(t, err)
	_, err = a.EncodeDeploy(42)
	require.Error(t, err)
}
