package utils

import "iter"

const DEFAULT_BATCH_SIZE = 10

// Chunk yields consecutive sub-slices of items holding at most size elements.
// The sequence is lazy and can be ranged over any number of times; each pass
// re-derives the same chunks from items. A size below 1 is treated as 1.
func Chunk[T any](items []T, size int) iter.Seq[[]T] {
	if size < 1 {
		size = 1
	}

	return func(yield func([]T) bool) {
		for start := 0; start < len(items); start += size {
			end := min(start+size, len(items))
			// cap the capacity so appending to a chunk never writes into the next one
			if !yield(items[start:end:end]) {
				return
			}
		}
	}
}

// ChunkCount returns how many chunks Chunk produces for a list of the given length.
func ChunkCount(length, size int) int {
	if size < 1 {
		size = 1
	}
	if length <= 0 {
		return 0
	}
	return (length + size - 1) / size
}
