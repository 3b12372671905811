package frontier

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	t.Parallel()

	require.Nil(t, Chunk([]int{}, 3))

	chunks := Chunk([]int{1, 2, 3, 4, 5, 6, 7}, 3)
	require.Equal(t, [][]int{{1, 2, 3}, {4, 5, 6}, {7}}, chunks)

	require.Equal(t, [][]int{{1, 2}}, Chunk([]int{1, 2}, 0))
}

func TestChunkCoversLargeInput(t *testing.T) {
	t.Parallel()

	urls := make([]string, 25000)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/%d", i)
	}

	chunks := Chunk(urls, ScoreChunkSize)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], 10000)
	require.Len(t, chunks[1], 10000)
	require.Len(t, chunks[2], 5000)
	require.Equal(t, "https://example.com/24999", chunks[2][4999])
}

func TestChunkDoesNotAliasAppends(t *testing.T) {
	t.Parallel()

	items := []int{1, 2, 3, 4}
	chunks := Chunk(items, 2)
	_ = append(chunks[0], 99)

	require.Equal(t, 3, items[2])
}
