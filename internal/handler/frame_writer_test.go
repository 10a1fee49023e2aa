package handler

import (
	"encoding/json"
	"kkx-toolkit-go/internal/model"
	"kkx-toolkit-go/internal/service"
	"sync"
	"testing"
)

// recordingConn 记录写出的帧。
type recordingConn struct {
	mu     sync.Mutex
	frames []snapshotFrame
	closes int
}

func (c *recordingConn) WriteMessage(_ int, data []byte) error {
	var f snapshotFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func TestFrameWriterDropsStaleSnapshots(t *testing.T) {
	conn := &recordingConn{}
	w := &frameWriter{conn: conn}

	final := service.Snapshot{
		State:    service.StateIdle,
		Messages: []model.ChatMessage{{Role: model.RoleUser, Content: "hi"}, {Role: model.RoleAI, Content: "hello world"}},
		Seq:      7,
	}
	stale := service.Snapshot{
		State:    service.StateStreaming,
		Messages: []model.ChatMessage{{Role: model.RoleUser, Content: "hi"}, {Role: model.RoleAI}},
		Seq:      5,
	}
	w.writeSnapshot(final)
	w.writeSnapshot(stale)
	w.writeSnapshot(final)

	if len(conn.frames) != 1 {
		t.Fatalf("frames written = %d, want 1", len(conn.frames))
	}
	if got := conn.frames[0]; got.State != service.StateIdle || got.Messages[1].Content != "hello world" {
		t.Fatalf("frame = %+v", got)
	}
}

func TestFrameWriterIgnoresWritesAfterClose(t *testing.T) {
	conn := &recordingConn{}
	w := &frameWriter{conn: conn}

	w.writeSnapshot(service.Snapshot{State: service.StateStreaming, Seq: 1})
	w.close()
	w.close()
	w.writeSnapshot(service.Snapshot{State: service.StateIdle, Seq: 2})

	if len(conn.frames) != 1 {
		t.Fatalf("frames written = %d, want 1", len(conn.frames))
	}
	if conn.closes != 1 {
		t.Fatalf("conn closed %d times, want 1", conn.closes)
	}
}

func TestFrameWriterLockedNotice(t *testing.T) {
	conn := &recordingConn{}
	w := &frameWriter{conn: conn}
	w.writeSnapshot(service.Snapshot{State: service.StateLocked, Language: model.LanguageZH, Seq: 1})

	if got := conn.frames[0].Notice; got != model.LanguageZH.LimitReachedText() {
		t.Fatalf("notice = %q", got)
	}
}
