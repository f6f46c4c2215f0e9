// Package internal holds small helpers shared by the lc3 packages.
package internal

import (
	"iter"
)

// Concat2 chains several key/value sequences into one, in argument order.
func Concat2[K any, V any](seqs ...iter.Seq2[K, V]) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, seq := range seqs {
			for k, v := range seq {
				if !yield(k, v) {
					return
				}
			}
		}
	}
}
