// Package solana holds the chain-side key material and counterparty identity
// checks used for fill confirmation.
package solana

import (
	"fmt"
	"os"

	solana "github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
)

// LoadPrivateKeyFromEnv reads the wallet key from the named environment
// variable, loading a .env file first when present.
func LoadPrivateKeyFromEnv(envKey string) (solana.PrivateKey, error) {
	_ = godotenv.Load() // best-effort
	b58 := os.Getenv(envKey)
	if b58 == "" {
		return nil, fmt.Errorf("%s not set", envKey)
	}
	return solana.PrivateKeyFromBase58(b58)
}

// ValidateCounterparties checks every configured counterparty is a well-formed
// base58 public key, so a typo fails at startup instead of silently never
// matching a fill.
func ValidateCounterparties(addrs []string) error {
	for _, a := range addrs {
		if _, err := solana.PublicKeyFromBase58(a); err != nil {
			return fmt.Errorf("counterparty %q: %w", a, err)
		}
	}
	return nil
}
