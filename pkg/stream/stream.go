// Package stream 提供一次性消费的增量文本流。
// 每个流由一个生产者 goroutine 写入，以 Done 或 Error 事件结束。
package stream

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
)

const bufferSize = 16

var (
	// ErrConsumed 表示流已经被消费过一次。
	ErrConsumed = errors.New("stream already consumed")
	// ErrIncomplete 表示流在没有终止事件的情况下被关闭。
	ErrIncomplete = errors.New("stream ended without terminal event")
)

// Kind 区分流事件的类型。
type Kind int

const (
	KindToken Kind = iota
	KindDone
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindToken:
		return "token"
	case KindDone:
		return "done"
	default:
		return "error"
	}
}

// Event 是流中的一个事件：Token(Text) | Done | Error(Err)。
type Event struct {
	Kind Kind
	Text string
	Err  error
}

func Token(text string) Event { return Event{Kind: KindToken, Text: text} }

func Done() Event { return Event{Kind: KindDone} }

func Failure(err error) Event { return Event{Kind: KindError, Err: err} }

// EmitFunc 向流写入一段文本。消费方已离开时返回 context 错误，生产者应尽快退出。
type EmitFunc func(text string) error

// ProduceFunc 生产流的内容，返回 nil 表示正常结束。
type ProduceFunc func(ctx context.Context, emit EmitFunc) error

// Stream 是一个有限、按生成顺序、只能消费一次的文本流。
type Stream struct {
	events   chan Event
	cancel   context.CancelFunc
	consumed atomic.Bool
}

// New 启动生产者 goroutine 并返回对应的流。
func New(ctx context.Context, produce ProduceFunc) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		events: make(chan Event, bufferSize),
		cancel: cancel,
	}

	go func() {
		defer close(s.events)
		defer cancel()

		emit := func(text string) error {
			if text == "" {
				return nil
			}
			select {
			case s.events <- Token(text):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		final := Done()
		if err := produce(ctx, emit); err != nil {
			final = Failure(err)
		}
		select {
		case s.events <- final:
		case <-ctx.Done():
		}
	}()
	return s
}

// FromText 返回只包含一段文本的流。
func FromText(ctx context.Context, text string) *Stream {
	return New(ctx, func(_ context.Context, emit EmitFunc) error {
		return emit(text)
	})
}

// Failed 返回一个立即以 err 结束的流。
func Failed(ctx context.Context, err error) *Stream {
	return New(ctx, func(context.Context, EmitFunc) error {
		return err
	})
}

// Events 返回事件通道。第二次调用得到只含 ErrConsumed 的通道。
func (s *Stream) Events() <-chan Event {
	if !s.consumed.CompareAndSwap(false, true) {
		ch := make(chan Event, 1)
		ch <- Failure(ErrConsumed)
		close(ch)
		return ch
	}
	return s.events
}

// Close 取消生产者。消费方提前离开时调用。
func (s *Stream) Close() {
	s.cancel()
}

// Drain 按顺序把每个 token 交给 fn，直到流结束。
// fn 返回错误时关闭流并返回该错误。
func Drain(s *Stream, fn func(text string) error) error {
	for ev := range s.Events() {
		switch ev.Kind {
		case KindToken:
			if err := fn(ev.Text); err != nil {
				s.Close()
				return err
			}
		case KindDone:
			return nil
		case KindError:
			return ev.Err
		}
	}
	return ErrIncomplete
}

// Collect 拼接流中所有 token。
func Collect(s *Stream) (string, error) {
	var b strings.Builder
	err := Drain(s, func(text string) error {
		b.WriteString(text)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
