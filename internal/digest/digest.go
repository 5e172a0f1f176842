// Package digest names the hash functions used to fingerprint merge output.
package digest

import (
	"encoding/hex"
	"fmt"
	"hash"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/minio/sha256-simd"
	"github.com/zeebo/blake3"
)

var constructors = map[string]func() hash.Hash{
	"xxhash": func() hash.Hash { return xxhash.New() },
	"blake3": func() hash.Hash { return blake3.New() },
	"sha256": sha256.New,
}

// New returns a fresh hash for name. Names are case insensitive.
func New(name string) (hash.Hash, error) {
	ctor, ok := constructors[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown digest %q, want one of %s", name, strings.Join(Names(), ", "))
	}
	return ctor(), nil
}

// Names lists the supported digests in sorted order.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Hex formats the current sum of h.
func Hex(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}
