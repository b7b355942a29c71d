// Package keychain stores secrets that can be injected into the environment
// of spawned processes.
package keychain

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/99designs/keyring"
)

// ServiceName is the service identifier used for all spawn secrets.
const ServiceName = "spawn"

var (
	// ErrNotFound is returned when a secret is not found in the keychain.
	ErrNotFound = errors.New("secret not found in keychain")

	// ErrInvalidName is returned for a secret name that cannot be used as an
	// environment variable name.
	ErrInvalidName = errors.New("invalid secret name")
)

// Keychain provides secure secret storage.
type Keychain interface {
	// Set stores a secret, replacing any existing value.
	Set(name, secret string) error

	// Get retrieves a secret.
	// Returns ErrNotFound if the secret does not exist.
	Get(name string) (string, error)

	// Delete removes a secret.
	// Returns nil if the secret does not exist.
	Delete(name string) error

	// List returns the names of all stored secrets, sorted.
	List() ([]string, error)
}

// Options configures the backing keyring.
type Options struct {
	// Backends restricts which keyring backends may be used. Empty allows
	// every backend available on the platform.
	Backends []keyring.BackendType

	// FileDir is the directory for the encrypted file backend.
	FileDir string

	// FilePassword supplies the password for the encrypted file backend.
	FilePassword keyring.PromptFunc
}

type keychain struct {
	ring keyring.Keyring
}

// Open opens the platform keyring for the spawn service.
func Open(opts Options) (Keychain, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:              ServiceName,
		AllowedBackends:          opts.Backends,
		KeychainName:             "login",
		KeychainTrustApplication: true,
		FileDir:                  opts.FileDir,
		FilePasswordFunc:         opts.FilePassword,
		LibSecretCollectionName:  "login",
		KWalletAppID:             ServiceName,
		KWalletFolder:            ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return New(ring), nil
}

// New wraps an already opened keyring.
func New(ring keyring.Keyring) Keychain {
	return &keychain{ring: ring}
}

func (k *keychain) Set(name, secret string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	err := k.ring.Set(keyring.Item{
		Key:   name,
		Data:  []byte(secret),
		Label: "spawn - " + name,
	})
	if err != nil {
		return fmt.Errorf("store secret %s: %w", name, err)
	}
	return nil
}

func (k *keychain) Get(name string) (string, error) {
	item, err := k.ring.Get(name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", name, err)
	}
	return string(item.Data), nil
}

func (k *keychain) Delete(name string) error {
	err := k.ring.Remove(name)
	if err == nil || errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return fmt.Errorf("delete secret %s: %w", name, err)
}

func (k *keychain) List() ([]string, error) {
	keys, err := k.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("list secrets: %w", err)
	}
	slices.Sort(keys)
	return keys, nil
}

// ValidateName reports whether name can be used as both a secret key and an
// environment variable name.
func ValidateName(name string) error {
	if name == "" || strings.ContainsAny(name, "=\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Resolve reads each named secret and returns them as environment overrides
// keyed by the same name.
func Resolve(kc Keychain, names []string) (map[string]string, error) {
	env := make(map[string]string, len(names))
	for _, name := range names {
		value, err := kc.Get(name)
		if err != nil {
			return nil, err
		}
		env[name] = value
	}
	return env, nil
}
