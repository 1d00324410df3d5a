package ipc

import (
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Subscriber receives mixer/pack snapshots from the engine process over a
// Unix socket.
type Subscriber struct {
	socketPath string
	conn       net.Conn
	connMu     sync.Mutex

	// Latest snapshot (lock-free access)
	latestSnapshot atomic.Value // *MixerSnapshot

	config   EngineConfigMessage
	configMu sync.RWMutex
	configCh chan EngineConfigMessage

	snapshotsReceived int64 // atomic
	reconnects        int64 // atomic
	errors            int64 // atomic

	running int32 // atomic
	stopCh  chan struct{}
	wg      sync.WaitGroup

	onSnapshot   func(*MixerSnapshot)
	onConfig     func(*EngineConfigMessage)
	onConnect    func()
	onDisconnect func()
}

// NewSubscriber creates a new IPC subscriber.
func NewSubscriber(socketPath string) *Subscriber {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	return &Subscriber{
		socketPath: socketPath,
		configCh:   make(chan EngineConfigMessage, 1),
		stopCh:     make(chan struct{}),
	}
}

// OnSnapshot sets a callback for when a snapshot is received.
func (s *Subscriber) OnSnapshot(fn func(*MixerSnapshot)) {
	s.onSnapshot = fn
}

// OnConfig sets a callback for when config is received.
func (s *Subscriber) OnConfig(fn func(*EngineConfigMessage)) {
	s.onConfig = fn
}

// OnConnect sets a callback for when connection is established.
func (s *Subscriber) OnConnect(fn func()) {
	s.onConnect = fn
}

// OnDisconnect sets a callback for when connection is lost.
func (s *Subscriber) OnDisconnect(fn func()) {
	s.onDisconnect = fn
}

// Start starts the subscriber, connecting to the engine process.
func (s *Subscriber) Start() error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return nil
	}

	s.wg.Add(1)
	go s.connectionLoop()

	log.Printf("ipc: subscriber started, connecting to %s", s.socketPath)
	return nil
}

// Stop stops the subscriber.
func (s *Subscriber) Stop() {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return
	}

	close(s.stopCh)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	log.Println("ipc: subscriber stopped")
}

// GetLatestSnapshot returns the most recent snapshot (lock-free).
func (s *Subscriber) GetLatestSnapshot() *MixerSnapshot {
	if val := s.latestSnapshot.Load(); val != nil {
		return val.(*MixerSnapshot)
	}
	return nil
}

// GetConfig returns the engine configuration.
func (s *Subscriber) GetConfig() EngineConfigMessage {
	s.configMu.RLock()
	defer s.configMu.RUnlock()
	return s.config
}

// WaitForConfig blocks until config is received or timeout.
func (s *Subscriber) WaitForConfig(timeout time.Duration) *EngineConfigMessage {
	select {
	case cfg := <-s.configCh:
		return &cfg
	case <-time.After(timeout):
		return nil
	case <-s.stopCh:
		return nil
	}
}

// GetStats returns subscriber statistics.
func (s *Subscriber) GetStats() (received int64, reconnects int64, errors int64) {
	return atomic.LoadInt64(&s.snapshotsReceived),
		atomic.LoadInt64(&s.reconnects),
		atomic.LoadInt64(&s.errors)
}

// IsConnected returns whether the subscriber is connected.
func (s *Subscriber) IsConnected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn != nil
}

func (s *Subscriber) connectionLoop() {
	defer s.wg.Done()

	for atomic.LoadInt32(&s.running) == 1 {
		conn, err := s.connect()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			case <-time.After(ReconnectDelay):
				continue
			}
		}

		s.connMu.Lock()
		s.conn = conn
		s.connMu.Unlock()

		if s.onConnect != nil {
			s.onConnect()
		}

		s.readLoop(conn)

		s.connMu.Lock()
		s.conn = nil
		s.connMu.Unlock()

		if s.onDisconnect != nil {
			s.onDisconnect()
		}

		atomic.AddInt64(&s.reconnects, 1)

		select {
		case <-s.stopCh:
			return
		case <-time.After(ReconnectDelay):
		}
	}
}

func (s *Subscriber) connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", s.socketPath, time.Second)
	if err != nil {
		return nil, err
	}

	log.Printf("ipc: connected to engine at %s", s.socketPath)
	return conn, nil
}

func (s *Subscriber) readLoop(conn net.Conn) {
	for atomic.LoadInt32(&s.running) == 1 {
		conn.SetReadDeadline(time.Now().Add(ReadTimeout))

		msgType, data, err := ReadMessage(conn)
		if err != nil {
			if err == io.EOF {
				log.Println("ipc: engine closed connection")
				return
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			log.Printf("ipc: read error: %v", err)
			atomic.AddInt64(&s.errors, 1)
			return
		}

		switch msgType {
		case MsgTypeSnapshot:
			s.handleSnapshot(data)

		case MsgTypeConfig:
			s.handleConfig(data)

		case MsgTypePing:
			conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			WriteMessage(conn, MsgTypePong, nil)
		}
	}
}

func (s *Subscriber) handleSnapshot(data []byte) {
	snapshot, err := DecodeMixerSnapshot(data)
	if err != nil {
		log.Printf("ipc: failed to decode snapshot: %v", err)
		atomic.AddInt64(&s.errors, 1)
		return
	}

	s.latestSnapshot.Store(snapshot)
	atomic.AddInt64(&s.snapshotsReceived, 1)

	if s.onSnapshot != nil {
		s.onSnapshot(snapshot)
	}
}

func (s *Subscriber) handleConfig(data []byte) {
	config, err := DecodeConfig(data)
	if err != nil {
		log.Printf("ipc: failed to decode config: %v", err)
		atomic.AddInt64(&s.errors, 1)
		return
	}

	s.configMu.Lock()
	s.config = *config
	s.configMu.Unlock()

	log.Printf("ipc: received engine config: %d Hz, %d channel(s), preload idle TTL %ds",
		config.SampleRate, config.Channels, config.PreloadIdleTTLSeconds)

	select {
	case s.configCh <- *config:
	default:
	}

	if s.onConfig != nil {
		s.onConfig(config)
	}
}
