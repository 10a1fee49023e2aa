// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"encoding/json"
	"kkx-toolkit-go/internal/middleware"
	"kkx-toolkit-go/internal/model"
	"kkx-toolkit-go/internal/service"
	"kkx-toolkit-go/pkg/log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// chatFrame 是客户端发来的一帧消息，两个字段都可省略。
type chatFrame struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

// snapshotFrame 是推送给客户端的会话快照。
type snapshotFrame struct {
	Type string `json:"type"`
	service.Snapshot
	Notice string `json:"notice,omitempty"`
}

// ChatHandler 负责处理 WebSocket 聊天连接与配额查询。
type ChatHandler struct {
	chatService       service.ChatService
	preferenceService service.PreferenceService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, preferenceService service.PreferenceService) *ChatHandler {
	return &ChatHandler{
		chatService:       chatService,
		preferenceService: preferenceService,
	}
}

// Quota 返回当前设备的消息配额。
func (h *ChatHandler) Quota(c *gin.Context) {
	deviceID := c.GetString(middleware.DeviceIDKey)
	quota, err := h.chatService.Quota(c.Request.Context(), deviceID)
	if err != nil {
		log.Errorf("读取配额失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "读取配额失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{
		"count":     quota.Count,
		"limit":     quota.Limit,
		"remaining": quota.Remaining(),
		"locked":    quota.Exhausted(),
	}})
}

// Handle 处理一个传入的 WebSocket 连接，每个连接对应一个聊天会话。
func (h *ChatHandler) Handle(c *gin.Context) {
	deviceID := c.GetString(middleware.DeviceIDKey)
	lang := resolveLanguage(c, h.preferenceService)

	// 会话在升级前创建，存储不可用时还能返回普通的 HTTP 错误
	session, err := h.chatService.NewSession(c.Request.Context(), deviceID, lang)
	if err != nil {
		log.Errorf("创建聊天会话失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法创建聊天会话", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	out := &frameWriter{conn: conn}
	defer out.close()

	log.Infof("WebSocket 连接已建立，设备: %s", deviceID)
	session.OnUpdate(out.writeSnapshot)
	out.writeSnapshot(session.Snapshot())

	// 回复在后台生成，连接关闭后仍会跑完并写入配额
	var inflight sync.WaitGroup
	sendCtx := context.WithoutCancel(c.Request.Context())

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			break
		}

		var frame chatFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			// 纯文本消息按输入内容处理
			frame = chatFrame{Text: string(message)}
		}
		if frame.Lang != "" {
			if l, err := model.ParseLanguage(frame.Lang); err == nil {
				session.SetLanguage(l)
			}
		}
		if frame.Text == "" {
			continue
		}

		inflight.Add(1)
		go func(text string) {
			defer inflight.Done()
			// 忙碌或已锁定时 Send 不产生任何变化，补发一帧让客户端同步状态
			if !session.Send(sendCtx, text) {
				out.writeSnapshot(session.Snapshot())
			}
		}(frame.Text)
	}
	// 先停止写入再等待，剩余片段不会再写到已断开的连接上
	out.close()
	inflight.Wait()
	log.Infof("WebSocket 连接已关闭，设备: %s", deviceID)
}

// frameConn 是 frameWriter 用到的 *websocket.Conn 方法。
type frameConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// frameWriter 串行化对同一连接的写入。
// 比已写出的快照更旧的快照以及连接关闭后的写入都直接丢弃。
type frameWriter struct {
	mu      sync.Mutex
	conn    frameConn
	closed  bool
	lastSeq uint64
}

func (w *frameWriter) writeSnapshot(snap service.Snapshot) {
	frame := snapshotFrame{Type: "snapshot", Snapshot: snap}
	if snap.State == service.StateLocked {
		frame.Notice = snap.Language.LimitReachedText()
	}
	b, err := json.Marshal(frame)
	if err != nil {
		log.Errorf("序列化会话快照失败: %v", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || snap.Seq <= w.lastSeq {
		return
	}
	w.lastSeq = snap.Seq
	if err := w.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Warnf("向 WebSocket 写入快照失败: %v", err)
	}
}

func (w *frameWriter) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	_ = w.conn.Close()
}
