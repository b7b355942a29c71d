// Package environ builds the environment table handed to spawned processes.
package environ

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/joho/godotenv"
)

// ErrInvalidPair is returned when a NAME=VALUE pair cannot be parsed.
var ErrInvalidPair = errors.New("invalid environment pair")

// Merge combines the parent environment with caller overrides.
//
// Every parent entry survives unless its name appears in overrides, in which
// case the override value replaces it in place. Override names the parent does
// not define are appended in sorted order. A name never appears twice; when the
// parent repeats a name, the last occurrence wins.
func Merge(parent []string, overrides map[string]string) []string {
	out := make([]string, 0, len(parent)+len(overrides))
	index := make(map[string]int, len(parent))

	for _, kv := range parent {
		name, _ := split(kv)
		entry := kv
		if v, ok := overrides[name]; ok {
			entry = name + "=" + v
		}
		if i, ok := index[name]; ok {
			out[i] = entry
			continue
		}
		index[name] = len(out)
		out = append(out, entry)
	}

	for _, name := range slices.Sorted(maps.Keys(overrides)) {
		if _, ok := index[name]; ok {
			continue
		}
		out = append(out, name+"="+overrides[name])
	}

	return out
}

// Parse converts NAME=VALUE pairs (typically from --env flags) to a map.
func Parse(pairs []string) (map[string]string, error) {
	m := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q (expected NAME=VALUE)", ErrInvalidPair, pair)
		}
		m[name] = value
	}
	return m, nil
}

// ReadFiles loads dotenv files. Values from later files win.
func ReadFiles(paths ...string) (map[string]string, error) {
	result := make(map[string]string)
	for _, path := range paths {
		vars, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", path, err)
		}
		maps.Copy(result, vars)
	}
	return result, nil
}

// Layer merges maps left to right; later maps win.
func Layer(layers ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, layer := range layers {
		maps.Copy(result, layer)
	}
	return result
}

// Keys returns the sorted names defined in m.
func Keys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}

func split(kv string) (name, value string) {
	// Skip a leading '=' so Windows-style "=C:=C:\" entries keep their name.
	if i := strings.Index(kv[min(1, len(kv)):], "="); i >= 0 {
		i += min(1, len(kv))
		return kv[:i], kv[i+1:]
	}
	return kv, ""
}
