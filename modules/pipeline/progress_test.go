package pipeline

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestProgressHubBroadcast(t *testing.T) {
	hub := NewProgressHub()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("WebSocket 연결 실패: %v", err)
	}
	defer conn.Close()

	sent := ProgressEvent{
		Type:     "product_completed",
		JobID:    "job-1",
		Progress: 2,
		Total:    5,
	}

	// 서버 쪽 등록이 끝날 때까지 브로드캐스트를 재시도
	var received ProgressEvent
	deadline := time.Now().Add(3 * time.Second)
	for {
		hub.Broadcast(sent)

		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		_, data, err := conn.ReadMessage()
		if err == nil {
			if err := json.Unmarshal(data, &received); err != nil {
				t.Fatalf("이벤트 파싱 실패: %v", err)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("이벤트를 받지 못했습니다: %v", err)
		}
	}

	if received.JobID != sent.JobID || received.Progress != sent.Progress {
		t.Errorf("기대 이벤트 %+v, 실제 이벤트 %+v", sent, received)
	}
}

func TestProgressHubJobFilter(t *testing.T) {
	hub := NewProgressHub()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?job=job-2"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("WebSocket 연결 실패: %v", err)
	}
	defer conn.Close()

	// 구독 등록 대기: 필터와 일치하는 이벤트가 도착할 때까지 재시도
	deadline := time.Now().Add(3 * time.Second)
	for {
		hub.Broadcast(ProgressEvent{Type: "job_started", JobID: "job-1"})
		hub.Broadcast(ProgressEvent{Type: "job_started", JobID: "job-2"})

		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		_, data, err := conn.ReadMessage()
		if err == nil {
			var received ProgressEvent
			if err := json.Unmarshal(data, &received); err != nil {
				t.Fatalf("이벤트 파싱 실패: %v", err)
			}
			// 다른 Job의 이벤트는 걸러져야 함
			if received.JobID != "job-2" {
				t.Errorf("필터와 다른 Job 이벤트를 받았습니다: %s", received.JobID)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("필터와 일치하는 이벤트를 받지 못했습니다: %v", err)
		}
	}
}

func TestProgressHubConcurrentBroadcast(t *testing.T) {
	hub := NewProgressHub()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("WebSocket 연결 실패: %v", err)
	}
	defer conn.Close()

	// 구독 등록 대기
	deadline := time.Now().Add(3 * time.Second)
	for {
		hub.Broadcast(ProgressEvent{Type: "job_started", JobID: "job-1"})

		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		if _, _, err := conn.ReadMessage(); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("구독 등록을 확인하지 못했습니다")
		}
	}

	// 여러 goroutine이 동시에 브로드캐스트해도 프레임이 깨지면 안 됨
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				hub.Broadcast(ProgressEvent{
					Type:     "product_completed",
					JobID:    "job-1",
					Progress: i,
					Total:    50,
				})
			}
		}()
	}
	wg.Wait()

	// 받은 프레임이 전부 온전한 JSON 이벤트인지 확인
	received := 0
	for {
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var event ProgressEvent
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("깨진 프레임을 받았습니다: %v (%s)", err, data)
		}
		if event.JobID != "job-1" {
			t.Errorf("기대하지 않은 Job 이벤트: %s", event.JobID)
		}
		received++
	}

	if received == 0 {
		t.Error("동시 브로드캐스트 중 이벤트를 하나도 받지 못했습니다")
	}
}

func TestProgressHubBroadcastWithoutClients(t *testing.T) {
	hub := NewProgressHub()

	// 구독자가 없어도 브로드캐스트는 조용히 지나가야 함
	hub.Broadcast(ProgressEvent{Type: "job_started", JobID: "job-1"})
}
