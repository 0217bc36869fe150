package pipeline

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestSplitBoundsAndCoverage(t *testing.T) {
	text := words(1000)
	for _, maxWords := range []int{1, 7, 350, 999, 1000, 3000} {
		chunks := Split(text, maxWords)

		var rejoined []string
		for i, c := range chunks {
			n := len(strings.Fields(c))
			assert.LessOrEqual(t, n, maxWords)
			if i < len(chunks)-1 {
				assert.Equal(t, maxWords, n, "only the last chunk may be shorter")
			}
			rejoined = append(rejoined, c)
		}
		assert.Equal(t, text, strings.Join(rejoined, " "), "chunks must be contiguous and non-overlapping")
		assert.Equal(t, (1000+maxWords-1)/maxWords, len(chunks))
	}
}

func TestSplitIsDeterministic(t *testing.T) {
	text := "alpha  beta\n\tgamma delta epsilon zeta eta"
	assert.Equal(t, Split(text, 3), Split(text, 3))
	assert.Equal(t, []string{"alpha beta gamma", "delta epsilon zeta", "eta"}, Split(text, 3))
}

func TestSplitEmpty(t *testing.T) {
	assert.Empty(t, Split("   \n\t", 350))
	assert.Len(t, Split(words(10), 0), 1)
}
