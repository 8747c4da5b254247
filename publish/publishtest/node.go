// Package publishtest provides an in-process JSON-RPC node and artifact
// fixtures for deployment tests.
package publishtest

import (
	"bytes"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

const (
	// Hardhat's first default account.
	PrivateKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	ShakeABI = `[
  {"inputs":[{"internalType":"string","name":"_greeting","type":"string"}],"stateMutability":"nonpayable","type":"constructor"},
  {"inputs":[],"name":"greet","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"string","name":"_greeting","type":"string"}],"name":"setGreeting","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

	// Init code that returns a 10 byte runtime storing 42 at memory 0.
	ShakeBytecode = "0x600a600c600039600a6000f3602a60005260206000f3"

	DefaultChainID uint64 = 31337
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

// Node answers the handful of eth_ methods a deployment needs. Every
// transaction is mined immediately.
type Node struct {
	URL string

	// ReceiptStatus is reported for every mined transaction.
	ReceiptStatus uint64
	// Code is returned for deployed addresses. Empty means no code.
	Code []byte
	// RejectTx makes eth_sendRawTransaction fail with this message.
	RejectTx string

	chainID uint64
	server  *httptest.Server

	mu       sync.Mutex
	nonce    uint64
	txs      []*types.Transaction
	created  map[common.Hash]common.Address
	deployed map[common.Address]bool
	calls    map[string]int
}

func NewNode(t testing.TB) *Node {
	t.Helper()
	n := &Node{
		ReceiptStatus: types.ReceiptStatusSuccessful,
		Code:          common.FromHex("0x602a60005260206000f3"),
		chainID:       DefaultChainID,
		created:       make(map[common.Hash]common.Address),
		deployed:      make(map[common.Address]bool),
		calls:         make(map[string]int),
	}
	n.server = httptest.NewServer(http.HandlerFunc(n.serveHTTP))
	n.URL = n.server.URL
	t.Cleanup(n.server.Close)
	return n
}

// Close stops the server so later calls fail as an unreachable node would.
func (n *Node) Close() {
	n.server.Close()
}

func (n *Node) ChainID() uint64 { return n.chainID }

// Calls returns how many times method was invoked.
func (n *Node) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

func (n *Node) Transactions() []*types.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*types.Transaction(nil), n.txs...)
}

func (n *Node) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var reqs []rpcRequest
		if err := json.Unmarshal(body, &reqs); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resps := make([]rpcResponse, len(reqs))
		for i, req := range reqs {
			resps[i] = n.handle(req)
		}
		_ = json.NewEncoder(w).Encode(resps)
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_ = json.NewEncoder(w).Encode(n.handle(req))
}

func (n *Node) handle(req rpcRequest) rpcResponse {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls[req.Method]++

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	fail := func(msg string) rpcResponse {
		resp.Error = &rpcError{Code: -32000, Message: msg}
		return resp
	}

	switch req.Method {
	case "eth_chainId":
		resp.Result = hexutil.Uint64(n.chainID)
	case "eth_getTransactionCount":
		resp.Result = hexutil.Uint64(n.nonce)
	case "eth_sendRawTransaction":
		if n.RejectTx != "" {
			return fail(n.RejectTx)
		}
		tx, err := n.decodeTx(req.Params)
		if err != nil {
			return fail(err.Error())
		}
		from, err := types.Sender(types.LatestSignerForChainID(new(big.Int).SetUint64(n.chainID)), tx)
		if err != nil {
			return fail(err.Error())
		}
		if tx.Nonce() != n.nonce {
			return fail("nonce too low")
		}
		n.nonce++
		n.txs = append(n.txs, tx)
		if tx.To() == nil {
			addr := crypto.CreateAddress(from, tx.Nonce())
			n.created[tx.Hash()] = addr
			n.deployed[addr] = n.ReceiptStatus == types.ReceiptStatusSuccessful
		}
		resp.Result = tx.Hash()
	case "eth_getTransactionReceipt":
		var hash common.Hash
		if len(req.Params) == 0 || json.Unmarshal(req.Params[0], &hash) != nil {
			return fail("invalid params")
		}
		receipt := n.receipt(hash)
		if receipt == nil {
			resp.Result = nil
			return resp
		}
		resp.Result = receipt
	case "eth_getCode":
		var addr common.Address
		if len(req.Params) == 0 || json.Unmarshal(req.Params[0], &addr) != nil {
			return fail("invalid params")
		}
		code := hexutil.Bytes{}
		if n.deployed[addr] && len(n.Code) > 0 {
			code = n.Code
		}
		resp.Result = code
	default:
		return fail("method not supported: " + req.Method)
	}
	return resp
}

func (n *Node) decodeTx(params []json.RawMessage) (*types.Transaction, error) {
	var raw hexutil.Bytes
	if len(params) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	if err := json.Unmarshal(params[0], &raw); err != nil {
		return nil, err
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return tx, nil
}

func (n *Node) receipt(hash common.Hash) *types.Receipt {
	for i, tx := range n.txs {
		if tx.Hash() != hash {
			continue
		}
		return &types.Receipt{
			Type:              tx.Type(),
			Status:            n.ReceiptStatus,
			CumulativeGasUsed: 21_000,
			Bloom:             types.Bloom{},
			Logs:              []*types.Log{},
			TxHash:            hash,
			ContractAddress:   n.created[hash],
			GasUsed:           21_000,
			EffectiveGasPrice: big.NewInt(1),
			BlockHash:         common.BigToHash(big.NewInt(int64(i + 1))),
			BlockNumber:       big.NewInt(int64(i + 1)),
			TransactionIndex:  0,
		}
	}
	return nil
}

// WriteArtifact writes a Hardhat style artifact to
// dir/contracts/<source>/<contract>.json and returns its path.
func WriteArtifact(t testing.TB, dir, source, contract, abiJSON, bytecode string) string {
	t.Helper()
	artifact := map[string]any{
		"_format":                "hh-sol-artifact-1",
		"contractName":           contract,
		"sourceName":             "contracts/" + source,
		"abi":                    json.RawMessage(abiJSON),
		"bytecode":               bytecode,
		"deployedBytecode":       "0x",
		"linkReferences":         map[string]any{},
		"deployedLinkReferences": map[string]any{},
	}
	blob, err := json.MarshalIndent(artifact, "", "  ")
	require.NoError(t, err)

	path := filepath.Join(dir, "contracts", source, contract+".json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, blob, 0o644))
	return path
}

// WriteShakeArtifact writes the Shake fixture under dir.
func WriteShakeArtifact(t testing.TB, dir string) string {
	t.Helper()
	return WriteArtifact(t, dir, "Shake.sol", "Shake", ShakeABI, ShakeBytecode)
}
