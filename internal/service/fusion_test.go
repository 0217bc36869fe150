package service

import (
	"testing"

	"doc-rag-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunks(ids ...string) []model.Chunk {
	out := make([]model.Chunk, len(ids))
	for i, id := range ids {
		out[i] = model.Chunk{ID: id, Text: "text " + id, Seq: uint64(id[0])}
	}
	return out
}

func ids(results []model.ScoredChunk) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Chunk.ID
	}
	return out
}

const scoreDelta = 1e-12

// rrf 在运行时累加 1/(rank+1)，与融合时的浮点运算保持一致。
func rrf(ranks ...int) float64 {
	var score float64
	for _, r := range ranks {
		score += 1 / float64(r+1)
	}
	return score
}

func TestFuseRRFScores(t *testing.T) {
	keyword := chunks("a", "b", "c")
	vector := chunks("c", "a", "d")

	got := FuseRRF(4, keyword, vector)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"a", "c", "b", "d"}, ids(got))

	// a 在两个列表中的名次为 0 和 1
	assert.InDelta(t, rrf(0, 1), got[0].Score, scoreDelta)
	// c 在两个列表中的名次为 2 和 0
	assert.InDelta(t, rrf(2, 0), got[1].Score, scoreDelta)
	assert.InDelta(t, rrf(1), got[2].Score, scoreDelta)
	assert.Equal(t, got[0].Score, got[0].Chunk.Score)
}

func TestFuseRRFIsCommutative(t *testing.T) {
	cases := [][2][]model.Chunk{
		{chunks("a", "b", "c"), chunks("c", "a", "d")},
		{chunks("a", "b"), chunks("b", "a")},
		{chunks("x", "y", "z"), chunks("p", "q", "r")},
		{chunks("a"), nil},
	}
	for _, c := range cases {
		forward := FuseRRF(4, c[0], c[1])
		backward := FuseRRF(4, c[1], c[0])
		assert.Equal(t, ids(forward), ids(backward))
		for i := range forward {
			assert.Equal(t, forward[i].Score, backward[i].Score)
		}
	}
}

func TestFuseRRFBoundedAndSorted(t *testing.T) {
	keyword := chunks("a", "b", "c", "d", "e")
	vector := chunks("e", "f", "a", "g", "h")
	for topK := 1; topK <= 10; topK++ {
		got := FuseRRF(topK, keyword, vector)
		assert.LessOrEqual(t, len(got), topK)
		for i := 1; i < len(got); i++ {
			assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
		}
	}
}

func TestFuseRRFTiesFollowInsertionOrder(t *testing.T) {
	// b 和 x 的得分和名次都相同，按写入序号排序
	keyword := chunks("a", "b")
	vector := chunks("a", "x")
	got := FuseRRF(3, keyword, vector)
	assert.Equal(t, "a", got[0].Chunk.ID)
	assert.Equal(t, got[1].Score, got[2].Score)
	assert.Equal(t, []string{"a", "b", "x"}, ids(got))
}

func TestFuseRRFEmpty(t *testing.T) {
	assert.Empty(t, FuseRRF(4, nil, nil))
	assert.Nil(t, FuseRRF(0, chunks("a")))
}
