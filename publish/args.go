package publish

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ParseConstructorArgs converts command line values into the Go types the abi
// package expects for inputs.
func ParseConstructorArgs(inputs abi.Arguments, raw []string) ([]any, error) {
	if len(inputs) != len(raw) {
		return nil, fmt.Errorf("constructor takes %d arguments, got %d", len(inputs), len(raw))
	}
	out := make([]any, len(raw))
	for i, input := range inputs {
		v, err := parseArg(input.Type, raw[i])
		if err != nil {
			return nil, fmt.Errorf("arg[%d] %s (%s): %w", i, input.Name, input.Type.String(), err)
		}
		out[i] = v
	}
	return out, nil
}

func parseArg(t abi.Type, v string) (any, error) {
	switch t.T {
	case abi.StringTy:
		return v, nil
	case abi.AddressTy:
		if !common.IsHexAddress(v) {
			return nil, fmt.Errorf("invalid address: %s", v)
		}
		return common.HexToAddress(v), nil
	case abi.BoolTy:
		return strconv.ParseBool(v)
	case abi.BytesTy:
		return decodeHex(v)
	case abi.FixedBytesTy:
		b, err := decodeHex(v)
		if err != nil {
			return nil, err
		}
		if len(b) > t.Size {
			return nil, fmt.Errorf("%d bytes do not fit in bytes%d", len(b), t.Size)
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(common.RightPadBytes(b, t.Size)))
		return arr.Interface(), nil
	case abi.UintTy, abi.IntTy:
		return parseInteger(t, v)
	default:
		return nil, fmt.Errorf("unsupported type %s", t.String())
	}
}

func parseInteger(t abi.Type, v string) (any, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(v), 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer: %s", v)
	}
	if t.T == abi.UintTy && n.Sign() < 0 {
		return nil, fmt.Errorf("negative value for %s", t.String())
	}
	bits := t.Size
	if t.T == abi.IntTy {
		bits--
	}
	magnitude := n
	if n.Sign() < 0 {
		// two's complement range is one wider on the negative side
		magnitude = new(big.Int).Not(n)
	}
	if magnitude.BitLen() > bits {
		return nil, fmt.Errorf("%s overflows %s", v, t.String())
	}

	goType := t.GetType()
	if goType.Kind() == reflect.Ptr {
		return n, nil
	}
	if t.T == abi.UintTy {
		return reflect.ValueOf(n.Uint64()).Convert(goType).Interface(), nil
	}
	return reflect.ValueOf(n.Int64()).Convert(goType).Interface(), nil
}
