package params

import (
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/jacentio/plinth/internal/paramkey"
)

// DefaultEnvPrefix is prepended to the encoded parameter name when
// resolving mock overrides from the environment.
const DefaultEnvPrefix = "PLINTH_PARAM_"

// Provider resolves mock overrides for parameter names. An override, when
// present, shadows both the cache and the remote source unconditionally.
type Provider interface {
	Lookup(name string) (value string, ok bool)
}

// EnvProvider sources overrides from the process environment. The variable
// for a parameter is Prefix plus the paramkey encoding of the name, so the
// mapping is total and invertible for every name shape.
type EnvProvider struct {
	// Prefix for override variables. Default: DefaultEnvPrefix.
	Prefix string

	// LookupEnv reads one variable. Default: os.LookupEnv. Tests inject a
	// fake here instead of mutating the real environment.
	LookupEnv func(key string) (string, bool)
}

// Lookup resolves the override for name, if set.
func (p EnvProvider) Lookup(name string) (string, bool) {
	lookup := p.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return lookup(p.EnvName(name))
}

// EnvName returns the environment variable that shadows name.
func (p EnvProvider) EnvName(name string) string {
	prefix := p.Prefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return prefix + paramkey.Encode(name)
}

// ParameterName inverts EnvName. ok is false when the variable does not
// carry the prefix or the encoded remainder is malformed.
func (p EnvProvider) ParameterName(envName string) (string, bool) {
	prefix := p.Prefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	encoded, found := strings.CutPrefix(envName, prefix)
	if !found {
		return "", false
	}
	name, err := paramkey.Decode(encoded)
	if err != nil {
		return "", false
	}
	return name, true
}

// MapProvider resolves overrides from a fixed map. Useful in tests that
// want overrides without touching the environment.
type MapProvider map[string]string

// Lookup resolves the override for name, if present in the map.
func (p MapProvider) Lookup(name string) (string, bool) {
	v, ok := p[name]
	return v, ok
}

// LoadDotenv loads override variables from dotenv files into the process
// environment before the cache is constructed. Missing files are ignored.
// With no arguments it loads ".env" then ".env.local".
func LoadDotenv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env", ".env.local"}
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}
