package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"doc-rag-go/internal/model"
	"doc-rag-go/pkg/stream"
)

type llmCall struct {
	system string
	user   string
}

// fakeLLM 记录每次调用，回复由测试提供。
type fakeLLM struct {
	mu          sync.Mutex
	complete    func(system, user string) (string, error)
	streamReply func(system, user string) ([]string, error)
	completes   []llmCall
	streams     []llmCall
}

func (f *fakeLLM) Complete(_ context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.completes = append(f.completes, llmCall{system, user})
	f.mu.Unlock()
	if f.complete == nil {
		return "", nil
	}
	return f.complete(system, user)
}

func (f *fakeLLM) CompleteStream(ctx context.Context, system, user string) *stream.Stream {
	f.mu.Lock()
	f.streams = append(f.streams, llmCall{system, user})
	f.mu.Unlock()
	var tokens []string
	var err error
	if f.streamReply != nil {
		tokens, err = f.streamReply(system, user)
	}
	return stream.New(ctx, func(_ context.Context, emit stream.EmitFunc) error {
		for _, t := range tokens {
			if e := emit(t); e != nil {
				return e
			}
		}
		return err
	})
}

func (f *fakeLLM) calls(system string) []llmCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []llmCall
	for _, c := range append(append([]llmCall{}, f.completes...), f.streams...) {
		if c.system == system {
			out = append(out, c)
		}
	}
	return out
}

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

// fakeChatRepo 是内存版的 ChatRepository。
type fakeChatRepo struct {
	mu        sync.Mutex
	chats     map[uint]model.Chat
	messages  []model.Message
	appendErr error
	appends   int
	nextID    uint
}

func newFakeChatRepo(ids ...uint) *fakeChatRepo {
	r := &fakeChatRepo{chats: map[uint]model.Chat{}}
	for _, id := range ids {
		r.chats[id] = model.Chat{ID: id, Name: fmt.Sprintf("Chat %d", id), CreatedAt: time.Now()}
		if id > r.nextID {
			r.nextID = id
		}
	}
	return r
}

func notFound(chatID uint) error {
	return model.WrapError(model.ErrNotFound, "chat", fmt.Errorf("id %d", chatID))
}

func (r *fakeChatRepo) CreateChat(context.Context) (*model.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c := model.Chat{ID: r.nextID, Name: fmt.Sprintf("Chat %d", len(r.chats)+1), CreatedAt: time.Now()}
	r.chats[c.ID] = c
	return &c, nil
}

func (r *fakeChatRepo) GetChat(_ context.Context, chatID uint) (*model.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatID]
	if !ok {
		return nil, notFound(chatID)
	}
	return &c, nil
}

func (r *fakeChatRepo) ListChats(context.Context) ([]model.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Chat, 0, len(r.chats))
	for _, c := range r.chats {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeChatRepo) GetMessages(_ context.Context, chatID uint) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chats[chatID]; !ok {
		return nil, notFound(chatID)
	}
	var out []model.Message
	for _, m := range r.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeChatRepo) AppendExchange(_ context.Context, chatID uint, userText, assistantText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appends++
	if r.appendErr != nil {
		return r.appendErr
	}
	if _, ok := r.chats[chatID]; !ok {
		return notFound(chatID)
	}
	now := time.Now()
	r.messages = append(r.messages,
		model.Message{ID: uint(len(r.messages) + 1), ChatID: chatID, Role: model.RoleUser, Content: userText, CreatedAt: now},
		model.Message{ID: uint(len(r.messages) + 2), ChatID: chatID, Role: model.RoleAssistant, Content: assistantText, CreatedAt: now},
	)
	return nil
}

func (r *fakeChatRepo) DeleteChat(_ context.Context, chatID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chats[chatID]; !ok {
		return notFound(chatID)
	}
	delete(r.chats, chatID)
	kept := r.messages[:0]
	for _, m := range r.messages {
		if m.ChatID != chatID {
			kept = append(kept, m)
		}
	}
	r.messages = kept
	return nil
}

func (r *fakeChatRepo) messageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

type fakeLoader map[string]string

func (l fakeLoader) Load(_ context.Context, name string) (string, error) {
	text, ok := l[name]
	if !ok {
		return "", model.WrapError(model.ErrNotFound, "load", fmt.Errorf("document %q", name))
	}
	return text, nil
}
