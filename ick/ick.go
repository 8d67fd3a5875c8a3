// The ick package is for things I can't believe I have to write.
package ick

import (
	"cmp"
	"math/rand"
	"slices"
)

// SortedKeys returns a map's keys in sorted order, for anything that wants
// deterministic iteration over a map.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// NShuffle shuffles a slice in-place.
//
// The "N" prefix is a nod to CL.
func NShuffle[T any](data []T) []T {
	rand.Shuffle(len(data), func(i, j int) { data[i], data[j] = data[j], data[i] })
	return data
}

// Shuffle copies a slice, then shuffles the copy.
func Shuffle[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	NShuffle(out)
	return out
}
