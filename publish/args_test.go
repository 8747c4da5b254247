package publish_test

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ShakeShock/shake-erc20-token/publish"
)

func TestParseConstructorArgs(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(`[{"type":"constructor","inputs":[
		{"name":"name","type":"string"},
		{"name":"owner","type":"address"},
		{"name":"decimals","type":"uint8"},
		{"name":"supply","type":"uint256"},
		{"name":"delta","type":"int64"},
		{"name":"paused","type":"bool"},
		{"name":"id","type":"bytes32"},
		{"name":"blob","type":"bytes"}
	]}]`))
	require.NoError(t, err)
	inputs := parsed.Constructor.Inputs

	args, err := publish.ParseConstructorArgs(inputs, []string{
		"Shake",
		"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		"6",
		"1000000000000000000000",
		"-5",
		"true",
		"0x01",
		"0xdeadbeef",
	})
	require.NoError(t, err)
	require.Equal(t, "Shake", args[0])
	require.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), args[1])
	require.Equal(t, uint8(6), args[2])
	require.Equal(t, "1000000000000000000000", args[3].(interface{ String() string }).String())
	require.Equal(t, int64(-5), args[4])
	require.Equal(t, true, args[5])
	require.Equal(t, byte(0x01), args[6].([32]byte)[0])
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, args[7])

	_, err = parsed.Pack("", args...)
	require.NoError(t, err)
}

func TestParseConstructorArgsErrors(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(`[{"type":"constructor","inputs":[{"name":"small","type":"uint8"},{"name":"tiny","type":"int8"}]}]`))
	require.NoError(t, err)
	inputs := parsed.Constructor.Inputs

	_, err = publish.ParseConstructorArgs(inputs, []string{"1"})
	require.ErrorContains(t, err, "takes 2 arguments")

	_, err = publish.ParseConstructorArgs(inputs, []string{"256", "0"})
	require.ErrorContains(t, err, "overflows")

	_, err = publish.ParseConstructorArgs(inputs, []string{"-1", "0"})
	require.ErrorContains(t, err, "negative")

	args, err := publish.ParseConstructorArgs(inputs, []string{"255", "-128"})
	require.NoError(t, err)
	require.Equal(t, []any{uint8(255), int8(-128)}, args)

	_, err = publish.ParseConstructorArgs(inputs, []string{"1", "-129"})
	require.ErrorContains(t, err, "overflows")
}
