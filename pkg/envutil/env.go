// Package envutil deals with ordered lists of KEY=VALUE environment
// variables, as they appear in pipeline files and in os/exec environments.
package envutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Var is a single environment variable.
type Var struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// String returns the variable in KEY=VALUE form.
func (v Var) String() string {
	return v.Key + "=" + v.Value
}

// Parse parses a KEY=VALUE string in to a Var.  The key must be non-empty and
// must not itself contain an "="; the value may be empty and may contain
// anything.
func Parse(s string) (Var, error) {
	idx := strings.Index(s, "=")
	if idx < 1 {
		return Var{}, fmt.Errorf("invalid environment variable: %q", s)
	}
	return Var{
		Key:   s[:idx],
		Value: s[idx+1:],
	}, nil
}

// ParseList parses a list of KEY=VALUE strings in to an Env, preserving
// order.
func ParseList(strs []string) (Env, error) {
	env := make(Env, 0, len(strs))
	for _, s := range strs {
		v, err := Parse(s)
		if err != nil {
			return nil, err
		}
		env = append(env, v)
	}
	return env, nil
}

// Env is an ordered list of environment variables.  Order matters: when the
// same key appears more than once, the later entry wins, which is what lets a
// matrix entry override a global entry that it was merged on top of.
type Env []Var

// Merge returns a new Env with the entries of others appended after the
// entries of env.  Later entries shadow earlier ones on Lookup.
func (env Env) Merge(others ...Env) Env {
	ret := make(Env, len(env))
	copy(ret, env)
	for _, other := range others {
		ret = append(ret, other...)
	}
	return ret
}

// Lookup returns the value of the last entry with the given key.
func (env Env) Lookup(key string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		if env[i].Key == key {
			return env[i].Value, true
		}
	}
	return "", false
}

// Strings renders the Env as a list of KEY=VALUE strings, suitable for
// exec.Cmd.Env.
func (env Env) Strings() []string {
	ret := make([]string, 0, len(env))
	for _, v := range env {
		ret = append(ret, v.String())
	}
	return ret
}

// Expand substitutes ${var} or $var references in s, resolving against env
// first and falling back to the process environment.
func (env Env) Expand(s string) string {
	return os.Expand(s, func(key string) string {
		if val, ok := env.Lookup(key); ok {
			return val
		}
		return os.Getenv(key)
	})
}

// LoadFiles reads dotenv files and returns their variables as a single Env,
// in file order.  A missing file is an error.
func LoadFiles(paths ...string) (Env, error) {
	var ret Env
	for _, path := range paths {
		vars, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("env file %q: %w", path, err)
		}
		// godotenv hands back a map; sort-free deterministic order comes
		// from re-reading the keys in file order.
		keys, err := keysInFileOrder(path, vars)
		if err != nil {
			return nil, fmt.Errorf("env file %q: %w", path, err)
		}
		for _, key := range keys {
			ret = append(ret, Var{Key: key, Value: vars[key]})
		}
	}
	return ret, nil
}

func keysInFileOrder(path string, vars map[string]string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(vars))
	var keys []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "export ")
		idx := strings.IndexAny(line, "=:")
		if idx < 1 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		if _, ok := vars[key]; ok && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	// Anything godotenv parsed that the line scan missed still gets
	// appended, so no variable is silently dropped.
	for key := range vars {
		if !seen[key] {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
