package service

import (
	"context"
	"errors"
	"testing"

	"doc-rag-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		reply string
		want  model.Intent
	}{
		{"(1)", model.IntentSummary},
		{"(2)", model.IntentContextual},
		{"(3)", model.IntentSimple},
		{"hello", model.IntentUnrecognized},
		{"  (2) the query needs context", model.IntentContextual},
		{"", model.IntentUnrecognized},
		{"1", model.IntentUnrecognized},
	}
	for _, c := range cases {
		t.Run(c.reply, func(t *testing.T) {
			llm := &fakeLLM{complete: func(string, string) (string, error) { return c.reply, nil }}
			got, err := NewRouterService(llm).Classify(context.Background(), "what is in the report?")
			require.NoError(t, err)
			assert.Equal(t, c.want, got)

			require.Len(t, llm.completes, 1)
			assert.Empty(t, llm.streams)
			assert.Equal(t, routerSystemPrompt, llm.completes[0].system)
			assert.Contains(t, llm.completes[0].user, "Here is the query: what is in the report?")
		})
	}
}

func TestClassifyRemoteFailure(t *testing.T) {
	callErr := model.WrapError(model.ErrRemoteCall, "llm", errors.New("timeout"))
	llm := &fakeLLM{complete: func(string, string) (string, error) { return "", callErr }}

	_, err := NewRouterService(llm).Classify(context.Background(), "hi")
	assert.ErrorIs(t, err, model.ErrRemoteCall)
}
