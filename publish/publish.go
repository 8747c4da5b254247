package publish

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/lmittmann/w3"
	"github.com/lmittmann/w3/module/eth"
)

const receiptPollInterval = 2 * time.Second

type (
	DeployResult struct {
		TxHash          common.Hash
		ContractAddress common.Address
	}

	Deployer struct {
		client    *w3.Client
		signer    types.Signer
		chainID   *big.Int
		key       *ecdsa.PrivateKey
		address   common.Address
		gasFeeCap *big.Int
		gasTipCap *big.Int
		logger    log.Logger
	}

	Option func(*Deployer)
)

// WithLogger sets the logger used for submission and receipt polling. The
// default is the geth root logger.
func WithLogger(logger log.Logger) Option {
	return func(d *Deployer) { d.logger = logger }
}

// NewDeployer dials rpcURL. A zero chainID is resolved from the node with
// eth_chainId.
func NewDeployer(ctx context.Context, rpcURL string, chainID int64, privateKey *ecdsa.PrivateKey, gasFeeCap, gasTipCap *big.Int, opts ...Option) (*Deployer, error) {
	client, err := w3.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	d := &Deployer{
		client:    client,
		key:       privateKey,
		address:   crypto.PubkeyToAddress(privateKey.PublicKey),
		gasFeeCap: gasFeeCap,
		gasTipCap: gasTipCap,
		logger:    log.Root(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if chainID == 0 {
		var id uint64
		if err := client.CallCtx(ctx, eth.ChainID().Returns(&id)); err != nil {
			client.Close()
			return nil, fmt.Errorf("get chain id: %w", err)
		}
		d.chainID = new(big.Int).SetUint64(id)
	} else {
		d.chainID = big.NewInt(chainID)
	}
	d.signer = types.NewLondonSigner(d.chainID)
	return d, nil
}

// Address is the account derived from the signing key.
func (d *Deployer) Address() common.Address {
	return d.address
}

func (d *Deployer) ChainID() *big.Int {
	return new(big.Int).Set(d.chainID)
}

func (d *Deployer) Close() error {
	return d.client.Close()
}

func (d *Deployer) getNonce(ctx context.Context) (uint64, error) {
	var nonce uint64
	if err := d.client.CallCtx(ctx, eth.Nonce(d.address, nil).Returns(&nonce)); err != nil {
		return 0, fmt.Errorf("get nonce: %w", err)
	}
	return nonce, nil
}

func (d *Deployer) sendTx(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	signedTx, err := types.SignTx(tx, d.signer, d.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	var txHash common.Hash
	if err := d.client.CallCtx(ctx, eth.SendTx(signedTx).Returns(&txHash)); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}
	if txHash != signedTx.Hash() {
		return common.Hash{}, fmt.Errorf("send tx: node returned hash %s, expected %s", txHash.Hex(), signedTx.Hash().Hex())
	}
	return txHash, nil
}

// Deploy submits a single contract creation transaction carrying data
// (creation bytecode followed by encoded constructor arguments).
func (d *Deployer) Deploy(ctx context.Context, data []byte, gasLimit uint64) (DeployResult, error) {
	nonce, err := d.getNonce(ctx)
	if err != nil {
		return DeployResult{}, err
	}

	contractAddr := crypto.CreateAddress(d.address, nonce)

	//  EIP-1559 only
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   d.chainID,
		Nonce:     nonce,
		GasFeeCap: d.gasFeeCap,
		GasTipCap: d.gasTipCap,
		Gas:       gasLimit,
		Data:      data,
	})

	txHash, err := d.sendTx(ctx, tx)
	if err != nil {
		return DeployResult{}, err
	}
	d.logger.Debug("Submitted deployment", "tx", txHash, "nonce", nonce, "address", contractAddr)

	return DeployResult{
		TxHash:          txHash,
		ContractAddress: contractAddr,
	}, nil
}

func (d *Deployer) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		var receipt *types.Receipt
		err := d.client.CallCtx(ctx, eth.TxReceipt(txHash).Returns(&receipt))
		if err == nil && receipt != nil {
			return receipt, nil
		}
		d.logger.Trace("Receipt not available yet", "tx", txHash, "err", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for receipt %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// CodeAt returns the code at addr in the latest block.
func (d *Deployer) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	var code []byte
	if err := d.client.CallCtx(ctx, eth.Code(addr, nil).Returns(&code)); err != nil {
		return nil, fmt.Errorf("get code at %s: %w", addr.Hex(), err)
	}
	return code, nil
}
