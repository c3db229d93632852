package ws

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeConn 测试用连接：记录写入的帧和控制消息
type fakeConn struct {
	mu       sync.Mutex
	written  []interface{}
	controls []int
	closed   bool
	writeErr error
	pingErr  error
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, v)
	return nil
}

func (f *fakeConn) WriteControl(messageType int, _ []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if messageType == websocket.PingMessage && f.pingErr != nil {
		return f.pingErr
	}
	f.controls = append(f.controls, messageType)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) writtenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) sentClose() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, mt := range f.controls {
		if mt == websocket.CloseMessage {
			return true
		}
	}
	return false
}

func newTestManager() *Manager {
	return NewManager(time.Second, time.Second, zap.NewNop())
}

func TestRegister_DuplicateRejected(t *testing.T) {
	m := newTestManager()

	first := &fakeConn{}
	require.NoError(t, m.Register("a@example.com", 1, first))

	second := &fakeConn{}
	err := m.Register("a@example.com", 1, second)
	require.ErrorIs(t, err, ErrDuplicateConnection)

	// 旧连接保留，新连接被关闭并收到策略违规关闭帧
	assert.Equal(t, 1, m.Count())
	assert.True(t, m.IsConnected("a@example.com"))
	assert.True(t, second.isClosed())
	assert.True(t, second.sentClose())
	assert.False(t, first.isClosed())
}

func TestUnregister_Idempotent(t *testing.T) {
	m := newTestManager()

	conn := &fakeConn{}
	require.NoError(t, m.Register("a@example.com", 1, conn))

	m.Unregister("a@example.com")
	assert.Equal(t, 0, m.Count())
	assert.True(t, conn.isClosed())

	// 再次注销同一身份：空操作
	m.Unregister("a@example.com")
	m.Unregister("never-connected@example.com")
	assert.Equal(t, 0, m.Count())
}

func TestSendToUser_AfterDisconnectIsNoop(t *testing.T) {
	m := newTestManager()

	conn := &fakeConn{}
	require.NoError(t, m.Register("a@example.com", 1, conn))
	m.Unregister("a@example.com")

	// 不崩溃、不投递
	m.SendToUser("a@example.com", map[string]string{"type": "sensor_data"})
	assert.Equal(t, 0, conn.writtenCount())
}

func TestSendToUser_WriteFailurePrunes(t *testing.T) {
	m := newTestManager()

	conn := &fakeConn{writeErr: errors.New("broken pipe")}
	require.NoError(t, m.Register("a@example.com", 1, conn))

	m.SendToUser("a@example.com", map[string]string{"type": "notification"})

	assert.Equal(t, 0, m.Count())
	assert.True(t, conn.isClosed())
}

func TestSendToUserID_SecondaryIndex(t *testing.T) {
	m := newTestManager()

	conn := &fakeConn{}
	require.NoError(t, m.Register("a@example.com", 42, conn))

	m.SendToUserID(42, map[string]string{"type": "sensor_data"})
	assert.Equal(t, 1, conn.writtenCount())

	// 注销后二级索引同步清除
	m.Unregister("a@example.com")
	m.SendToUserID(42, map[string]string{"type": "sensor_data"})
	assert.Equal(t, 1, conn.writtenCount())
}

func TestBroadcast_FailuresDoNotSkipOthers(t *testing.T) {
	m := newTestManager()

	good1 := &fakeConn{}
	bad := &fakeConn{writeErr: errors.New("broken pipe")}
	good2 := &fakeConn{}
	require.NoError(t, m.Register("a@example.com", 1, good1))
	require.NoError(t, m.Register("b@example.com", 2, bad))
	require.NoError(t, m.Register("c@example.com", 3, good2))

	m.Broadcast(map[string]string{"type": "notification"})

	assert.Equal(t, 1, good1.writtenCount())
	assert.Equal(t, 1, good2.writtenCount())
	assert.Equal(t, 2, m.Count())
	assert.False(t, m.IsConnected("b@example.com"))
}

func TestPingAll_DeadConnectionReclaimed(t *testing.T) {
	m := newTestManager()

	alive := &fakeConn{}
	dead := &fakeConn{pingErr: errors.New("connection reset")}
	require.NoError(t, m.Register("alive@example.com", 1, alive))
	require.NoError(t, m.Register("dead@example.com", 2, dead))

	m.pingAll()

	assert.True(t, m.IsConnected("alive@example.com"))
	assert.False(t, m.IsConnected("dead@example.com"))

	// 槽位释放后同一身份可以重连
	require.NoError(t, m.Register("dead@example.com", 2, &fakeConn{}))
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := newTestManager()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			email := string(rune('a'+id)) + "@example.com"
			_ = m.Register(email, id, &fakeConn{})
			m.SendToUserID(id, map[string]string{"type": "sensor_data"})
			m.Broadcast(map[string]string{"type": "notification"})
			m.Unregister(email)
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, 0, m.Count())
}
