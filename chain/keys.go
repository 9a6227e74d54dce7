package chain

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnknownKey is returned when a key handle cannot be resolved.
var ErrUnknownKey = errors.New("chain: unknown signing key handle")

// KeyProvider resolves a signing-key handle to key material. Custody of the
// key (HSM, KMS, secret store) lives behind this interface.
type KeyProvider interface {
	SigningKey(ctx context.Context, handle string) ([]byte, error)
}

// KeyProviderFunc is an adapter to use a plain function as a KeyProvider.
type KeyProviderFunc func(ctx context.Context, handle string) ([]byte, error)

// SigningKey implements KeyProvider.
func (f KeyProviderFunc) SigningKey(ctx context.Context, handle string) ([]byte, error) {
	return f(ctx, handle)
}

// StaticKeys is an in-process KeyProvider keyed by handle.
type StaticKeys map[string][]byte

// SigningKey implements KeyProvider.
func (k StaticKeys) SigningKey(_ context.Context, handle string) ([]byte, error) {
	key, ok := k[handle]
	if !ok || len(key) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, handle)
	}
	return key, nil
}

// EnvKeys reads keys from environment variables named Prefix + HANDLE, with
// the handle upper-cased and dashes turned into underscores. Values are hex
// or standard base64; "hex:" and "base64:" prefixes force the encoding.
type EnvKeys struct {
	Prefix string
}

// SigningKey implements KeyProvider.
func (e EnvKeys) SigningKey(_ context.Context, handle string) ([]byte, error) {
	name := e.Prefix + strings.ToUpper(strings.ReplaceAll(handle, "-", "_"))
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return nil, fmt.Errorf("%w: %q (env %s)", ErrUnknownKey, handle, name)
	}
	return DecodeKey(raw)
}

// DecodeKey decodes key material given as hex or standard base64. The
// prefixes "hex:" and "base64:" force the encoding.
func DecodeKey(raw string) ([]byte, error) {
	switch {
	case strings.HasPrefix(raw, "hex:"):
		return hex.DecodeString(strings.TrimPrefix(raw, "hex:"))
	case strings.HasPrefix(raw, "base64:"):
		return base64.StdEncoding.DecodeString(strings.TrimPrefix(raw, "base64:"))
	}
	if b, err := hex.DecodeString(raw); err == nil {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return b, nil
	}
	return nil, fmt.Errorf("chain: key material is neither hex nor base64")
}

// ResolveSigner looks up handle through p and builds a Signer.
func ResolveSigner(ctx context.Context, p KeyProvider, handle string) (*Signer, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: no key provider configured", ErrUnknownKey)
	}
	key, err := p.SigningKey(ctx, handle)
	if err != nil {
		return nil, err
	}
	return NewSigner(key)
}
