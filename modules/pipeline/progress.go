package pipeline

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// ProgressEvent - Job 진행 상황 브로드캐스트 메시지
type ProgressEvent struct {
	Type      string `json:"type"`
	JobID     string `json:"job_id"`
	ProductID string `json:"product_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Progress  int    `json:"progress"`
	Total     int    `json:"total"`
	Error     string `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 개발용 - 모든 origin 허용
		return true
	},
}

// subscriber - 구독자 1명. 쓰기는 writePump 하나만 수행한다 (websocket 단일 writer 계약)
type subscriber struct {
	conn      *websocket.Conn
	jobFilter string
	send      chan []byte
}

// ProgressHub - Job 진행 상황을 구독하는 WebSocket 클라이언트 관리
type ProgressHub struct {
	mutex   sync.Mutex
	clients map[*subscriber]bool
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		clients: make(map[*subscriber]bool),
	}
}

// HandleWebSocket - /ws/jobs 연결 처리 (?job=<id>로 특정 Job만 구독 가능)
func (h *ProgressHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	jobFilter := r.URL.Query().Get("job")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade failed: %v", err)
		return
	}

	sub := &subscriber{
		conn:      conn,
		jobFilter: jobFilter,
		send:      make(chan []byte, 64),
	}

	h.mutex.Lock()
	h.clients[sub] = true
	count := len(h.clients)
	h.mutex.Unlock()

	log.Printf("🔌 Progress subscriber connected (job: %q, total: %d)", jobFilter, count)

	go sub.writePump()
	go h.readPump(sub)
}

// readPump - 연결 종료 감지용 (구독자가 보내는 메시지는 무시)
func (h *ProgressHub) readPump(sub *subscriber) {
	defer h.remove(sub)

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump - 구독자로 메시지 쓰기 (이 연결에 쓰는 유일한 goroutine)
func (sub *subscriber) writePump() {
	defer sub.conn.Close()

	for message := range sub.send {
		if err := sub.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}

	sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Broadcast - 구독자별 send 채널로 이벤트 전달 (직접 쓰지 않음)
// 채널이 가득 찬 느린 구독자는 끊는다.
func (h *ProgressHub) Broadcast(event ProgressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("⚠️  Failed to marshal progress event: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for sub := range h.clients {
		if sub.jobFilter != "" && sub.jobFilter != event.JobID {
			continue
		}

		select {
		case sub.send <- data:
		default:
			close(sub.send)
			delete(h.clients, sub)
		}
	}
}

// remove - 구독 해제
func (h *ProgressHub) remove(sub *subscriber) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[sub]; ok {
		delete(h.clients, sub)
		close(sub.send)
	}
}
