package service

import (
	"sort"

	"doc-rag-go/internal/model"
)

type fusedEntry struct {
	chunk     model.Chunk
	score     float64
	firstRank int
}

// FuseRRF 用倒数排名融合合并多个有序列表。
// 分块得分为它在每个列表中 1/(rank+1) 之和，rank 从 0 开始。
// 同分时先比较在任一列表中最靠前的名次，再比较写入序号和 id，因此结果与列表顺序无关。
func FuseRRF(topK int, lists ...[]model.Chunk) []model.ScoredChunk {
	if topK <= 0 {
		return nil
	}
	entries := make(map[string]*fusedEntry)
	for _, list := range lists {
		for rank, c := range list {
			e, ok := entries[c.ID]
			if !ok {
				e = &fusedEntry{chunk: c, firstRank: rank}
				entries[c.ID] = e
			}
			e.score += 1.0 / float64(rank+1)
			if rank < e.firstRank {
				e.firstRank = rank
			}
		}
	}

	fused := make([]*fusedEntry, 0, len(entries))
	for _, e := range entries {
		fused = append(fused, e)
	}
	sort.Slice(fused, func(i, j int) bool {
		a, b := fused[i], fused[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.firstRank != b.firstRank {
			return a.firstRank < b.firstRank
		}
		if a.chunk.Seq != b.chunk.Seq {
			return a.chunk.Seq < b.chunk.Seq
		}
		return a.chunk.ID < b.chunk.ID
	})

	if len(fused) > topK {
		fused = fused[:topK]
	}
	out := make([]model.ScoredChunk, len(fused))
	for i, e := range fused {
		c := e.chunk
		c.Score = e.score
		out[i] = model.ScoredChunk{Chunk: c, Score: e.score}
	}
	return out
}
