package gateway

import (
	"errors"
	"strings"
)

// SettingSecretKey is the host setting holding the provider secret key.
const SettingSecretKey = "secretKey"

// ErrMissingCredentials is returned when no secret key is available.
var ErrMissingCredentials = errors.New("missing provider secret key")

// Setting is one host-supplied configuration pair.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// AdapterContext is the host configuration an adapter is created with.
type AdapterContext struct {
	Settings []Setting `json:"settings"`
}

// Setting returns the value of the first setting named key.
func (c AdapterContext) Setting(key string) (string, bool) {
	for _, s := range c.Settings {
		if s.Key == key {
			return s.Value, true
		}
	}
	return "", false
}

// Credentials holds the provider keys used for one adapter.
type Credentials struct {
	SecretAPIKey string
}

// ResolveCredentials reads the secret key from the host settings, falling
// back to the process-level key when the host supplies none.
func ResolveCredentials(actx AdapterContext, fallbackSecret string) (Credentials, error) {
	if v, ok := actx.Setting(SettingSecretKey); ok && strings.TrimSpace(v) != "" {
		return Credentials{SecretAPIKey: strings.TrimSpace(v)}, nil
	}
	if fallbackSecret != "" {
		return Credentials{SecretAPIKey: fallbackSecret}, nil
	}
	return Credentials{}, ErrMissingCredentials
}
