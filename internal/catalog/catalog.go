// Package catalog holds the static ticker-to-address lookup tables.
// Catalogs are loaded once at startup and are immutable afterwards,
// so they are safe for concurrent reads.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mr-tron/base58"
)

// Chain identifies the chain an address lives on.
type Chain string

const (
	ChainSolana   Chain = "solana"
	ChainEthereum Chain = "ethereum"
)

// ErrEmptyCatalog is returned when a catalog file contains no entries.
var ErrEmptyCatalog = errors.New("catalog contains no entries")

// Catalog maps lowercase ticker symbols to on-chain addresses for the
// two supported chains. A symbol present in both catalogs resolves to
// the solana entry; lookup order is solana first.
type Catalog struct {
	solana   map[string]string
	ethereum map[string]string
}

// Load reads both catalog files. Any parse or validation failure is
// fatal: the caller is expected to abort startup.
func Load(solanaPath, ethereumPath string) (*Catalog, error) {
	sol, err := loadFile(solanaPath)
	if err != nil {
		return nil, fmt.Errorf("load solana catalog: %w", err)
	}
	eth, err := loadFile(ethereumPath)
	if err != nil {
		return nil, fmt.Errorf("load ethereum catalog: %w", err)
	}
	return New(sol, eth)
}

// New builds a catalog from in-memory maps. Keys are lowercased.
// Solana addresses must decode as 32-byte base58; ethereum addresses
// are stored as-is (the source files carry no stronger contract).
func New(solana, ethereum map[string]string) (*Catalog, error) {
	if len(solana) == 0 && len(ethereum) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		solana:   make(map[string]string, len(solana)),
		ethereum: make(map[string]string, len(ethereum)),
	}
	for sym, addr := range solana {
		if err := validateSolanaAddress(addr); err != nil {
			return nil, fmt.Errorf("solana catalog entry %q: %w", sym, err)
		}
		c.solana[strings.ToLower(sym)] = addr
	}
	for sym, addr := range ethereum {
		if addr == "" {
			return nil, fmt.Errorf("ethereum catalog entry %q: empty address", sym)
		}
		c.ethereum[strings.ToLower(sym)] = addr
	}
	return c, nil
}

// Contains reports whether the symbol exists in either catalog.
// Matching is case-insensitive.
func (c *Catalog) Contains(symbol string) bool {
	key := strings.ToLower(symbol)
	if _, ok := c.solana[key]; ok {
		return true
	}
	_, ok := c.ethereum[key]
	return ok
}

// Resolve returns the address and chain for a symbol. The solana
// catalog takes precedence when the symbol exists on both chains.
func (c *Catalog) Resolve(symbol string) (address string, chain Chain, ok bool) {
	key := strings.ToLower(symbol)
	if addr, found := c.solana[key]; found {
		return addr, ChainSolana, true
	}
	if addr, found := c.ethereum[key]; found {
		return addr, ChainEthereum, true
	}
	return "", "", false
}

// Size returns the number of entries per chain.
func (c *Catalog) Size() (solana, ethereum int) {
	return len(c.solana), len(c.ethereum)
}

func loadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
	}
	return entries, nil
}

// validateSolanaAddress checks the address decodes as a 32-byte base58
// public key. Malformed entries abort catalog load.
func validateSolanaAddress(addr string) error {
	decoded, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("decode base58 address: %w", err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("address decodes to %d bytes, want 32", len(decoded))
	}
	return nil
}
