package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ShakeShock/shake-erc20-token/publish"
	"github.com/ShakeShock/shake-erc20-token/publish/contracts/shake"
)

var (
	ContractFlag = &cli.StringFlag{
		Name:    "contract",
		Usage:   "contract name, bare or fully qualified (contracts/Shake.sol:Shake)",
		EnvVars: []string{"CONTRACT"},
		Value:   shake.Name(),
	}
	ArtifactsFlag = &cli.StringFlag{
		Name:    "artifacts",
		Usage:   "Hardhat artifacts or Foundry out directory",
		EnvVars: []string{"ARTIFACTS_DIR"},
		Value:   "artifacts",
	}
	GreetingFlag = &cli.StringFlag{
		Name:    "greeting",
		Usage:   "Shake constructor greeting",
		EnvVars: []string{"GREETING"},
		Value:   shake.DefaultGreeting,
	}
	ArgFlag = &cli.StringSliceFlag{
		Name:  "arg",
		Usage: "constructor argument for contracts other than Shake, repeat in ABI order",
	}
	RPCURLFlag = &cli.StringFlag{
		Name:    "rpc-url",
		Usage:   "RPC URL",
		EnvVars: []string{"RPC_URL"},
		Value:   "http://127.0.0.1:8545",
	}
	ChainIDFlag = &cli.Int64Flag{
		Name:    "chain-id",
		Usage:   "chain id (0 asks the node)",
		EnvVars: []string{"CHAIN_ID"},
	}
	PrivateKeyFlag = &cli.StringFlag{
		Name:     "private-key",
		Usage:    "private key hex",
		EnvVars:  []string{"PRIVATE_KEY"},
		Required: true,
	}
	PublicAddressFlag = &cli.StringFlag{
		Name:    "public-address",
		Usage:   "public address for validation",
		EnvVars: []string{"PUBLIC_ADDRESS"},
	}
	GasFeeCapFlag = &cli.Int64Flag{
		Name:    "gas-fee-cap",
		Usage:   "EIP-1559 fee cap",
		EnvVars: []string{"GAS_FEE_CAP"},
		Value:   2_000_000_000,
	}
	GasTipCapFlag = &cli.Int64Flag{
		Name:    "gas-tip-cap",
		Usage:   "EIP-1559 tip cap",
		EnvVars: []string{"GAS_TIP_CAP"},
		Value:   1_000_000_000,
	}
	GasLimitFlag = &cli.Uint64Flag{
		Name:    "gas-limit",
		Usage:   "gas limit (0 uses the contract default)",
		EnvVars: []string{"GAS_LIMIT"},
	}
	TimeoutFlag = &cli.IntFlag{
		Name:    "timeout-seconds",
		Usage:   "timeout in seconds",
		EnvVars: []string{"TIMEOUT_SECONDS"},
		Value:   600,
	}
	LogLevelFlag = &cli.StringFlag{
		Name:    "log.level",
		Usage:   "log level: trace, debug, info, warn, error, crit",
		EnvVars: []string{"LOG_LEVEL"},
		Value:   "info",
	}
)

type config struct {
	Contract      string
	ArtifactsDir  string
	Greeting      string
	Args          []string
	RPCURL        string
	ChainID       int64
	PrivateKey    string
	PublicAddress string
	GasFeeCap     int64
	GasTipCap     int64
	GasLimit      uint64
	Timeout       time.Duration
}

func main() {
	os.Exit(realMain(os.Args, os.Stdout, os.Stderr))
}

// realMain runs the app and maps the outcome to a process exit code. Only the
// deployed address line goes to stdout; help, logs and errors go to stderr.
func realMain(args []string, stdout, stderr io.Writer) int {
	if err := newApp(stdout, stderr).Run(args); err != nil {
		exitErr(stderr, err)
		return 1
	}
	return 0
}

func newApp(stdout, stderr io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "shake-publish"
	app.Usage = "deploy the Shake contract and print its address"
	app.Writer = stderr
	app.ErrWriter = stderr
	app.HideVersion = true
	// constructor strings may contain commas
	app.DisableSliceFlagSeparator = true
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.Flags = []cli.Flag{
		ContractFlag, ArtifactsFlag, GreetingFlag, ArgFlag,
		RPCURLFlag, ChainIDFlag, PrivateKeyFlag, PublicAddressFlag,
		GasFeeCapFlag, GasTipCapFlag, GasLimitFlag, TimeoutFlag, LogLevelFlag,
	}
	app.Action = func(c *cli.Context) error {
		cfg, err := configFromCLI(c)
		if err != nil {
			return err
		}
		logger, err := newLogger(c.App.ErrWriter, c.String(LogLevelFlag.Name))
		if err != nil {
			return err
		}
		return run(c.Context, cfg, logger, stdout)
	}
	return app
}

func configFromCLI(c *cli.Context) (config, error) {
	cfg := config{
		Contract:      strings.TrimSpace(c.String(ContractFlag.Name)),
		ArtifactsDir:  c.String(ArtifactsFlag.Name),
		Greeting:      c.String(GreetingFlag.Name),
		Args:          c.StringSlice(ArgFlag.Name),
		RPCURL:        c.String(RPCURLFlag.Name),
		ChainID:       c.Int64(ChainIDFlag.Name),
		PrivateKey:    c.String(PrivateKeyFlag.Name),
		PublicAddress: c.String(PublicAddressFlag.Name),
		GasFeeCap:     c.Int64(GasFeeCapFlag.Name),
		GasTipCap:     c.Int64(GasTipCapFlag.Name),
		GasLimit:      c.Uint64(GasLimitFlag.Name),
		Timeout:       time.Duration(c.Int(TimeoutFlag.Name)) * time.Second,
	}
	if cfg.Contract == "" {
		return config{}, errors.New("--contract is required")
	}
	if cfg.RPCURL == "" || cfg.PrivateKey == "" {
		return config{}, errors.New("rpc-url and private-key are required")
	}
	if cfg.ChainID < 0 {
		return config{}, errors.New("chain-id must not be negative")
	}
	if cfg.GasFeeCap < 0 || cfg.GasTipCap < 0 {
		return config{}, errors.New("gas-fee-cap and gas-tip-cap must not be negative")
	}
	if cfg.Timeout <= 0 {
		return config{}, errors.New("timeout-seconds must be positive")
	}
	if shake.Matches(cfg.Contract) && len(cfg.Args) > 0 {
		return config{}, errors.New("use --greeting instead of --arg for Shake")
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) (log.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	return log.NewLogger(log.NewTerminalHandlerWithLevel(w, lvl, false)), nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return log.LevelTrace, nil
	case "crit":
		return log.LevelCrit, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return 0, err
	}
	return lvl, nil
}

func run(ctx context.Context, cfg config, logger log.Logger, stdout io.Writer) error {
	key, deployerAddr, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return err
	}

	if cfg.PublicAddress != "" {
		pub, err := parseAddress(cfg.PublicAddress)
		if err != nil {
			return err
		}
		if pub != deployerAddr {
			return fmt.Errorf("public-address %s does not match private key address %s", pub.Hex(), deployerAddr.Hex())
		}
	}

	artifact, err := publish.LoadArtifact(cfg.ArtifactsDir, cfg.Contract)
	if err != nil {
		return err
	}
	args, gasLimit, err := constructorArgs(cfg, artifact)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	d, err := publish.NewDeployer(ctx, cfg.RPCURL, cfg.ChainID, key, big.NewInt(cfg.GasFeeCap), big.NewInt(cfg.GasTipCap), publish.WithLogger(logger))
	if err != nil {
		return err
	}
	defer d.Close()

	factory := publish.NewContractFactory(artifact, d)
	factory.GasLimit = gasLimit

	logger.Info("Deploying contract", "contract", artifact.ContractName, "artifact", artifact.Path, "deployer", deployerAddr, "chain", d.ChainID())
	contract, err := factory.Deploy(ctx, args...)
	if err != nil {
		return err
	}
	logger.Info("Waiting for confirmation", "contract", contract.Name, "tx", contract.TxHash)
	if err := contract.Deployed(ctx); err != nil {
		return err
	}
	logger.Info("Contract deployed", "contract", contract.Name, "address", contract.Address, "block", contract.Receipt.BlockNumber, "gasUsed", contract.Receipt.GasUsed)

	_, err = fmt.Fprintf(stdout, "%s deployed to: %s\n", contract.Name, contract.Address.Hex())
	return err
}

func constructorArgs(cfg config, artifact *publish.Artifact) ([]any, uint64, error) {
	gasLimit := cfg.GasLimit
	if shake.Matches(cfg.Contract) {
		if gasLimit == 0 {
			gasLimit = shake.MaxGasLimit()
		}
		return shake.ConstructorArgs{Greeting: cfg.Greeting}.Args(), gasLimit, nil
	}

	if gasLimit == 0 {
		gasLimit = publish.DefaultGasLimit
	}
	args, err := publish.ParseConstructorArgs(artifact.ABI.Constructor.Inputs, cfg.Args)
	if err != nil {
		return nil, 0, fmt.Errorf("%s constructor: %w", artifact.ContractName, err)
	}
	return args, gasLimit, nil
}

func parsePrivateKey(v string) (*ecdsa.PrivateKey, common.Address, error) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "0x")
	key, err := crypto.HexToECDSA(v)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("parse private key: %w", err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey), nil
}

func parseAddress(v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("invalid address: %s", v)
	}
	return common.HexToAddress(v), nil
}

func exitErr(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
}
