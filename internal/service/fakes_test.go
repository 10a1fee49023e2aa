package service

import (
	"context"
	"errors"
	"kkx-toolkit-go/internal/model"
	"kkx-toolkit-go/pkg/llm"
	"sync"
)

var errBrokenPipe = errors.New("stream: connection reset")

// fakeLLM 按脚本产出片段；failAt >= 0 时在发送第 failAt 个片段前中断。
type fakeLLM struct {
	mu        sync.Mutex
	requests  []llm.Request
	fragments []string
	failAt    int
	openErr   error
	gate      chan struct{}
	started   chan struct{}

	response    *llm.Response
	generateErr error
}

func newFakeLLM(fragments ...string) *fakeLLM {
	return &fakeLLM{fragments: fragments, failAt: -1}
}

func (f *fakeLLM) record(req llm.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeLLM) lastRequest() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeLLM) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.record(req)
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	if f.response != nil {
		return f.response, nil
	}
	var text string
	for _, frag := range f.fragments {
		text += frag
	}
	return &llm.Response{Text: text}, nil
}

func (f *fakeLLM) StreamGenerate(ctx context.Context, req llm.Request) (*llm.Stream, error) {
	f.record(req)
	if f.openErr != nil {
		return nil, f.openErr
	}
	stream, producer := llm.NewStream(ctx)
	go func() {
		defer producer.Close()
		if f.started != nil {
			close(f.started)
		}
		if f.gate != nil {
			<-f.gate
		}
		for i, frag := range f.fragments {
			if i == f.failAt {
				producer.Fail(errBrokenPipe)
				return
			}
			if !producer.Send(frag) {
				return
			}
		}
		if f.failAt == len(f.fragments) {
			producer.Fail(errBrokenPipe)
		}
	}()
	return stream, nil
}

// memQuota 是内存中的 QuotaStore，可以注入写失败。
type memQuota struct {
	mu       sync.Mutex
	quota    model.UsageQuota
	writes   []int
	writeErr error
}

func (m *memQuota) Read(context.Context) (model.UsageQuota, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quota, nil
}

func (m *memQuota) Write(_ context.Context, q model.UsageQuota) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, q.Count)
	if m.writeErr != nil {
		return m.writeErr
	}
	m.quota = q
	return nil
}
