package shake

import "strings"

const (
	name            = "Shake"
	DefaultGreeting = "Hello Shake!"
	GasLimit        = 2_000_000
)

type ConstructorArgs struct {
	Greeting string
}

func Name() string        { return name }
func MaxGasLimit() uint64 { return GasLimit }

// Args returns the constructor arguments in ABI order.
func (a ConstructorArgs) Args() []any {
	greeting := a.Greeting
	if greeting == "" {
		greeting = DefaultGreeting
	}
	return []any{greeting}
}

// Matches reports whether contract (bare or fully qualified) names Shake.
func Matches(contract string) bool {
	if i := strings.LastIndex(contract, ":"); i >= 0 {
		contract = contract[i+1:]
	}
	return strings.TrimSpace(contract) == name
}
