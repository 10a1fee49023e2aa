package llm

import (
	"context"
	"io"
	"sync"
)

// Fragment 是流式响应中的一个增量文本片段，Err 非空表示流已中断。
type Fragment struct {
	Text string
	Err  error
}

// Stream 是片段序列的消费端，序列惰性产生、有限且不可重放。
type Stream struct {
	fragments <-chan Fragment
	cancel    context.CancelFunc
	err       error
}

// Producer 是向 Stream 推送片段的一端。
type Producer struct {
	ch        chan<- Fragment
	ctx       context.Context
	closeOnce sync.Once
}

// NewStream 创建一对相连的 Stream 与 Producer。
// 取消 parent 或调用 Stream.Close 都会让 Producer.Send 立即返回 false。
func NewStream(parent context.Context) (*Stream, *Producer) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan Fragment)
	return &Stream{fragments: ch, cancel: cancel}, &Producer{ch: ch, ctx: ctx}
}

// Send 推送一个片段，消费者已离开时返回 false。
func (p *Producer) Send(text string) bool {
	select {
	case p.ch <- Fragment{Text: text}:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// Fail 以 err 结束流。
func (p *Producer) Fail(err error) {
	select {
	case p.ch <- Fragment{Err: err}:
	case <-p.ctx.Done():
	}
}

// Close 标记流正常结束，可重复调用。
func (p *Producer) Close() {
	p.closeOnce.Do(func() { close(p.ch) })
}

// Recv 返回下一个片段；流正常结束时返回 io.EOF，中断时返回流错误。
// 一旦返回错误，之后的调用都返回同一个错误。
func (s *Stream) Recv() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	f, ok := <-s.fragments
	if !ok {
		s.err = io.EOF
		s.cancel()
		return "", io.EOF
	}
	if f.Err != nil {
		s.err = f.Err
		s.cancel()
		return "", f.Err
	}
	return f.Text, nil
}

// Close 放弃剩余片段并释放生产者。
func (s *Stream) Close() {
	s.cancel()
}
