package kv

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name entries are filed under.
const KeyringService = "washbay"

// Keyring is a Store backed by the operating system credential store.
type Keyring struct {
	service string
}

// NewKeyring returns a Keyring store for service.
func NewKeyring(service string) *Keyring {
	if service == "" {
		service = KeyringService
	}
	return &Keyring{service: service}
}

// KeyringAvailable probes the system keyring with a throwaway entry.
func KeyringAvailable(service string) bool {
	if service == "" {
		service = KeyringService
	}
	probe := service + "::probe"
	if err := keyring.Set(service, probe, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(service, probe) // best-effort cleanup
	return true
}

func (k *Keyring) Get(key string) ([]byte, bool, error) {
	v, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &Error{Op: "get", Backend: "keyring", Key: key, Cause: err}
	}
	return []byte(v), true, nil
}

func (k *Keyring) Set(key string, value []byte) error {
	if err := keyring.Set(k.service, key, string(value)); err != nil {
		return &Error{Op: "set", Backend: "keyring", Key: key, Cause: err}
	}
	return nil
}

func (k *Keyring) Remove(key string) error {
	err := keyring.Delete(k.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return &Error{Op: "remove", Backend: "keyring", Key: key, Cause: err}
	}
	return nil
}
