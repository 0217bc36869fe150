package pipeline

import "strings"

// 两种分块粒度：检索用小块，摘要用大块以减少并发调用数。
const (
	RetrievalChunkWords = 350
	SummaryChunkWords   = 3000
)

// Split 按词边界把文本切成连续、不重叠的块，每块最多 maxWords 个词，最后一块可以更短。
// 块内的词以单个空格连接，相同输入总是得到相同的边界。
func Split(text string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = RetrievalChunkWords
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(words)+maxWords-1)/maxWords)
	for start := 0; start < len(words); start += maxWords {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
