package manager

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/farmrunner/engine/internal/protocol"
)

// nonRetryableLoginServer upgrades exactly one connection and replies to the
// first request frame (the Login call) with a RemoteError whose message
// classifies as non-retryable, so the real start path fails permanently on
// attempt 1 without exhausting the configured retry budget.
func nonRetryableLoginServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		req, err := protocol.ReadMessageFromBytes(data)
		if err != nil {
			return
		}

		reply := protocol.Message{Meta: protocol.Meta{
			ServiceName:  req.Meta.ServiceName,
			MethodName:   req.Meta.MethodName,
			MessageType:  protocol.MessageTypeReply,
			ClientSeq:    req.Meta.ClientSeq,
			ServerSeq:    1,
			ErrorCode:    1,
			ErrorMessage: "账号不存在",
		}}
		w2, err := conn.NextWriter(websocket.BinaryMessage)
		if err != nil {
			return
		}
		if err := protocol.WriteMessage(w2, reply); err != nil {
			w2.Close()
			return
		}
		w2.Close()

		// Keep reading until the client tears the connection down so the
		// handler doesn't exit (and log an unrelated write error) first.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	return srv
}

func TestStartAccountReportsActualAttemptCountOnNonRetryableFailure(t *testing.T) {
	srv := nonRetryableLoginServer(t)
	defer srv.Close()
	gatewayURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	cfg := testConfig()
	cfg.GatewayURL = gatewayURL
	cfg.StartRetryMaxAttempts = 3

	m, err := Open(t.TempDir(), cfg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.StopAll()

	acc, err := m.UpsertAccount("", "alice", "android", "code-1", "", "", "")
	if err != nil {
		t.Fatalf("UpsertAccount: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	startErr := m.StartAccount(ctx, acc.ID)
	if startErr == nil {
		t.Fatal("expected start to fail: the fake gateway rejects login as 账号不存在")
	}

	if !strings.Contains(startErr.Error(), "(重试1/3)") {
		t.Errorf("start error = %q, want it to report attempt 1 of 3 (non-retryable failure on the first attempt), not the configured max", startErr.Error())
	}

	_, snap, err := m.GetStatus(acc.ID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if snap.RuntimeState != RuntimeFailed {
		t.Fatalf("runtime state = %q, want failed", snap.RuntimeState)
	}
	if !strings.Contains(snap.LastStartError, "(重试1/3)") {
		t.Errorf("LastStartError = %q, want it to report attempt 1 of 3", snap.LastStartError)
	}
}
