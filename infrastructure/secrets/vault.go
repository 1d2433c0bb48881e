// Package secrets implements the Secrets & Config Store of spec.md §4.9:
// encrypted-at-rest provider credentials, validation-state bookkeeping,
// and development-mode gating between the encrypted store and the
// process environment. Grounded on the symmetric encryption pattern in
// golang.org/x/crypto/nacl/secretbox (already an indirect teacher
// dependency) combined with the single-active-row persistence backend's
// internal/repository layer models for configuration rows.
package secrets

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/groundgraph/engine/application/ports"
	domainconfig "github.com/groundgraph/engine/domain/config"
	"github.com/groundgraph/engine/pkg/apperr"
)

const nonceSize = 24

// Vault implements ports.SecretsStore: it seals plaintext credentials
// with a symmetric secretbox key held out-of-band (an env var named by
// Security.SecretboxKeyEnv) and persists ciphertext through ConfigStore.
// In development mode, Get instead reads the plaintext directly from the
// environment — no silent fallback happens outside that explicit gate
// (spec.md §4.9 "no silent environment fallback in production").
type Vault struct {
	store           ports.ConfigStore
	key             [32]byte
	developmentMode bool
	envPrefix       string
}

// NewVault builds a Vault from a 32-byte symmetric key (typically loaded
// from the env var named by config.Security.SecretboxKeyEnv). envPrefix
// names the prefix used to look up a provider's plaintext credential in
// development mode, e.g. envPrefix="GROUNDGRAPH_PROVIDER_" makes provider
// "anthropic" resolve to GROUNDGRAPH_PROVIDER_ANTHROPIC.
func NewVault(store ports.ConfigStore, key [32]byte, developmentMode bool, envPrefix string) *Vault {
	return &Vault{store: store, key: key, developmentMode: developmentMode, envPrefix: envPrefix}
}

// KeyFromBytes validates and copies a secretbox key from raw bytes (e.g.
// read from a file or env var and base64/hex-decoded by the caller).
func KeyFromBytes(b []byte) ([32]byte, error) {
	var key [32]byte
	if len(b) != 32 {
		return key, fmt.Errorf("secretbox key must be exactly 32 bytes, got %d", len(b))
	}
	copy(key[:], b)
	return key, nil
}

var _ ports.SecretsStore = (*Vault)(nil)

func (v *Vault) envVarName(provider string) string {
	return v.envPrefix + strings.ToUpper(provider)
}

// Get returns provider's plaintext credential: from the environment when
// DevelopmentMode is set, otherwise by decrypting the stored ciphertext.
func (v *Vault) Get(ctx context.Context, provider string) ([]byte, error) {
	if v.developmentMode {
		val := envLookup(v.envVarName(provider))
		if val == "" {
			return nil, apperr.New(apperr.NotFound, fmt.Sprintf("no credential in environment for provider %q", provider))
		}
		return []byte(val), nil
	}

	rec, err := v.store.GetEncryptedKey(ctx, provider)
	if err != nil {
		return nil, err
	}
	plaintext, err := v.open(rec.Ciphertext)
	if err != nil {
		return nil, apperr.Wrap(apperr.IntegrityError, "decrypt stored credential failed", err)
	}
	return plaintext, nil
}

// Set seals plaintext and persists it, marking validation untested until
// the next startup validation pass confirms it (spec.md §4.9).
func (v *Vault) Set(ctx context.Context, provider string, plaintext []byte) error {
	ciphertext, err := v.seal(plaintext)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "encrypt credential failed", err)
	}
	key := domainconfig.EncryptedKey{
		Provider:         provider,
		Ciphertext:       ciphertext,
		ValidationStatus: domainconfig.ValidationUntested,
	}
	return v.store.SaveEncryptedKey(ctx, key)
}

// ValidationStatus reports the last-known validation outcome for provider's
// credential without decrypting it.
func (v *Vault) ValidationStatus(ctx context.Context, provider string) (string, error) {
	if v.developmentMode {
		if envLookup(v.envVarName(provider)) == "" {
			return string(domainconfig.ValidationInvalid), nil
		}
		return string(domainconfig.ValidationUntested), nil
	}
	rec, err := v.store.GetEncryptedKey(ctx, provider)
	if err != nil {
		return "", err
	}
	return string(rec.ValidationStatus), nil
}

// seal encrypts plaintext under a freshly generated nonce, prefixing the
// nonce to the returned ciphertext the way nacl/secretbox examples do.
func (v *Vault) seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	out := make([]byte, nonceSize)
	copy(out, nonce[:])
	return secretbox.Seal(out, plaintext, &nonce, &v.key), nil
}

func (v *Vault) open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])
	plaintext, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, &v.key)
	if !ok {
		return nil, fmt.Errorf("secretbox authentication failed")
	}
	return plaintext, nil
}

func envLookup(name string) string {
	val, _ := os.LookupEnv(name)
	return val
}
