// Package config holds the process-wide, read-mostly registry entities:
// the single active EmbeddingConfig and AiProviderConfig rows, and the
// EncryptedKey vault entries. Grounded on the "global mutable state ...
// swap operations that invalidate dependent caches" design note in
// spec.md §9.
package config

import "time"

// Precision is the stored numeric precision of embedding vectors.
type Precision string

const (
	PrecisionFloat32 Precision = "float32"
	PrecisionFloat16 Precision = "float16"
)

// EmbeddingConfig is the single active embedding backend selection.
// Invariant 2: exactly one active row at a time; changing Dimension
// invalidates every existing embedding (spec.md §4.2 model-change
// semantics).
type EmbeddingConfig struct {
	ID        string
	Provider  string
	ModelName string
	Dimension int
	Precision Precision
	Active    bool
	ActivatedAt time.Time
}

// AiProviderConfig is the single active reasoning backend selection.
type AiProviderConfig struct {
	ID           string
	Provider     string
	ModelName    string
	CanExtract   bool
	CanDecide    bool
	Active       bool
	ActivatedAt  time.Time
}

// ValidationStatus is the outcome of the most recent credential check for
// a provider's EncryptedKey.
type ValidationStatus string

const (
	ValidationValid   ValidationStatus = "valid"
	ValidationInvalid ValidationStatus = "invalid"
	ValidationUntested ValidationStatus = "untested"
)

// EncryptedKey is a provider's ciphertext-at-rest API credential plus its
// last-known validation state.
type EncryptedKey struct {
	Provider        string
	Ciphertext      []byte
	ValidationStatus ValidationStatus
	LastValidatedAt time.Time
	ValidationError string
}

const maxTruncatedError = 200

// SetValidation records a validation attempt outcome, truncating any error
// message (spec.md §4.9 "failure sets validation_status=invalid with
// truncated error").
func (k *EncryptedKey) SetValidation(ok bool, errMsg string) {
	k.LastValidatedAt = time.Now()
	if ok {
		k.ValidationStatus = ValidationValid
		k.ValidationError = ""
		return
	}
	k.ValidationStatus = ValidationInvalid
	if len(errMsg) > maxTruncatedError {
		errMsg = errMsg[:maxTruncatedError]
	}
	k.ValidationError = errMsg
}
