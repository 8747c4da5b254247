package publish

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrAmbiguousName    = errors.New("ambiguous contract name")
	ErrAbstractContract = errors.New("contract is abstract and can't be deployed")
	ErrUnlinkedLibrary  = errors.New("contract bytecode has unlinked libraries")
)

// Artifact is a compiled contract as emitted by Hardhat or Foundry.
type Artifact struct {
	ContractName string
	SourceName   string
	ABI          abi.ABI
	Bytecode     []byte
	Path         string
}

type artifactFile struct {
	ContractName   string                     `json:"contractName"`
	SourceName     string                     `json:"sourceName"`
	ABI            json.RawMessage            `json:"abi"`
	Bytecode       json.RawMessage            `json:"bytecode"`
	LinkReferences map[string]json.RawMessage `json:"linkReferences"`
}

type foundryBytecode struct {
	Object         string                     `json:"object"`
	LinkReferences map[string]json.RawMessage `json:"linkReferences"`
}

// LoadArtifact resolves name under dir. name is either a bare contract name
// ("Shake") or a fully qualified one ("contracts/Shake.sol:Shake").
func LoadArtifact(dir, name string) (*Artifact, error) {
	source, contract := splitQualifiedName(name)
	if contract == "" {
		return nil, fmt.Errorf("%w: empty contract name", ErrArtifactNotFound)
	}

	paths, err := findArtifacts(dir, source, contract)
	if err != nil {
		return nil, err
	}
	switch len(paths) {
	case 0:
		return nil, fmt.Errorf("%w: %s in %s", ErrArtifactNotFound, name, dir)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %s matches %s", ErrAmbiguousName, name, strings.Join(paths, ", "))
	}

	return ReadArtifact(paths[0])
}

// ReadArtifact parses a single artifact JSON file.
func ReadArtifact(path string) (*Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	var f artifactFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}

	parsedABI, err := abi.JSON(bytes.NewReader(f.ABI))
	if err != nil {
		return nil, fmt.Errorf("parse abi %s: %w", path, err)
	}

	name := f.ContractName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), ".json")
	}

	bytecodeHex, links, err := decodeBytecodeField(f.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", path, err)
	}
	if len(f.LinkReferences) > 0 || len(links) > 0 || strings.Contains(bytecodeHex, "__$") {
		return nil, fmt.Errorf("%w: %s", ErrUnlinkedLibrary, name)
	}

	bytecode, err := decodeHex(bytecodeHex)
	if err != nil {
		return nil, fmt.Errorf("artifact %s bytecode: %w", path, err)
	}
	if len(bytecode) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAbstractContract, name)
	}

	return &Artifact{
		ContractName: name,
		SourceName:   f.SourceName,
		ABI:          parsedABI,
		Bytecode:     bytecode,
		Path:         path,
	}, nil
}

// EncodeDeploy returns the creation bytecode followed by the ABI-encoded
// constructor arguments.
func (a *Artifact) EncodeDeploy(args ...any) ([]byte, error) {
	encoded, err := a.ABI.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s constructor: %w", a.ContractName, err)
	}
	data := make([]byte, 0, len(a.Bytecode)+len(encoded))
	data = append(data, a.Bytecode...)
	return append(data, encoded...), nil
}

func decodeBytecodeField(raw json.RawMessage) (string, map[string]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", nil, fmt.Errorf("decode bytecode: %w", err)
		}
		return s, nil, nil
	}
	var obj foundryBytecode
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", nil, fmt.Errorf("decode bytecode: %w", err)
	}
	return obj.Object, obj.LinkReferences, nil
}

func decodeHex(v string) ([]byte, error) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "0x")
	b, err := hex.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return b, nil
}

func splitQualifiedName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, ":"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

func findArtifacts(dir, source, contract string) ([]string, error) {
	var exact, byBase []string
	err := filepath.WalkDir(dir, func(file string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if entry.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.Name() != contract+".json" {
			return nil
		}
		parent := filepath.Dir(file)
		if !strings.HasSuffix(parent, ".sol") {
			return nil
		}
		if source == "" {
			exact = append(exact, file)
			return nil
		}
		rel, err := filepath.Rel(dir, parent)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		switch {
		case rel == source:
			exact = append(exact, file)
		case path.Base(rel) == path.Base(source):
			// Foundry drops the source directory: out/Shake.sol/Shake.json
			byBase = append(byBase, file)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: artifacts directory %s does not exist", ErrArtifactNotFound, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("scan artifacts: %w", err)
	}
	paths := exact
	if len(paths) == 0 {
		paths = byBase
	}
	sort.Strings(paths)
	return paths, nil
}
