package publish

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const DefaultGasLimit uint64 = 3_000_000

// ContractFactory deploys instances of one artifact through a Deployer.
type ContractFactory struct {
	Artifact *Artifact
	GasLimit uint64

	deployer *Deployer
}

// DeployedContract is a submitted creation transaction. Receipt is set once
// Deployed returns.
type DeployedContract struct {
	Name    string
	Address common.Address
	TxHash  common.Hash
	Receipt *types.Receipt

	deployer *Deployer
}

// GetContractFactory loads the named artifact from artifactsDir.
func GetContractFactory(artifactsDir, name string, d *Deployer) (*ContractFactory, error) {
	artifact, err := LoadArtifact(artifactsDir, name)
	if err != nil {
		return nil, err
	}
	return NewContractFactory(artifact, d), nil
}

func NewContractFactory(artifact *Artifact, d *Deployer) *ContractFactory {
	return &ContractFactory{
		Artifact: artifact,
		GasLimit: DefaultGasLimit,
		deployer: d,
	}
}

// Deploy sends the creation transaction. It does not wait for it to be mined;
// call Deployed on the result for that.
func (f *ContractFactory) Deploy(ctx context.Context, args ...any) (*DeployedContract, error) {
	data, err := f.Artifact.EncodeDeploy(args...)
	if err != nil {
		return nil, err
	}

	result, err := f.deployer.Deploy(ctx, data, f.GasLimit)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", f.Artifact.ContractName, err)
	}

	return &DeployedContract{
		Name:     f.Artifact.ContractName,
		Address:  result.ContractAddress,
		TxHash:   result.TxHash,
		deployer: f.deployer,
	}, nil
}

// Deployed blocks until the creation transaction is mined and code is present
// at the contract address.
func (c *DeployedContract) Deployed(ctx context.Context) error {
	receipt, err := c.deployer.WaitForReceipt(ctx, c.TxHash)
	if err != nil {
		return fmt.Errorf("wait %s: %w", c.Name, err)
	}
	c.Receipt = receipt

	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%s deployment failed: %s", c.Name, receipt.TxHash.Hex())
	}
	if receipt.ContractAddress != (common.Address{}) && receipt.ContractAddress != c.Address {
		return fmt.Errorf("%s deployed to %s, expected %s", c.Name, receipt.ContractAddress.Hex(), c.Address.Hex())
	}

	code, err := c.deployer.CodeAt(ctx, c.Address)
	if err != nil {
		return err
	}
	if len(code) == 0 {
		return fmt.Errorf("%s address %s has no code", c.Name, c.Address.Hex())
	}
	return nil
}
