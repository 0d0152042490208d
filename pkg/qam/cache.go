package qam

import (
	lru "github.com/hashicorp/golang-lru"
)

const constellationCacheSize = 32

type constellationKey struct {
	bitsPerSymbol   int
	rotationDegrees float64
	saturate        bool
}

// constellations holds recently used constellations. Entries are immutable
// so the same instance may be shared between modulators.
var constellations = mustNewCache(constellationCacheSize)

func mustNewCache(size int) *lru.Cache {
	cache, err := lru.New(size)
	if err != nil {
		panic(err)
	}
	return cache
}

// Lookup returns the constellation for the given parameters, building and
// caching it on first use.
func Lookup(bitsPerSymbol int, rotationDegrees float64, saturate bool) (*Constellation, error) {
	key := constellationKey{bitsPerSymbol, rotationDegrees, saturate}
	if cached, ok := constellations.Get(key); ok {
		return cached.(*Constellation), nil
	}

	c, err := NewConstellation(bitsPerSymbol, rotationDegrees, saturate)
	if err != nil {
		return nil, err
	}
	constellations.Add(key, c)
	return c, nil
}
