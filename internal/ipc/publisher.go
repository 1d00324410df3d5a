package ipc

import (
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Publisher publishes mixer/pack snapshots to connected control processes
// over a Unix socket.
type Publisher struct {
	socketPath string
	listener   net.Listener

	clients   map[net.Conn]struct{}
	clientsMu sync.RWMutex

	// Snapshot channel (ring buffer behavior - drop old if full)
	snapshotCh chan *MixerSnapshot

	config   EngineConfigMessage
	configMu sync.RWMutex

	clientCount   int32 // atomic
	snapshotsSent int64 // atomic
	droppedFrames int64 // atomic

	running int32 // atomic
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPublisher creates a new IPC publisher.
func NewPublisher(socketPath string) *Publisher {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	return &Publisher{
		socketPath: socketPath,
		clients:    make(map[net.Conn]struct{}),
		snapshotCh: make(chan *MixerSnapshot, 8),
		stopCh:     make(chan struct{}),
	}
}

// SetConfig sets the engine configuration to send to new clients.
func (p *Publisher) SetConfig(sampleRate, channels, preloadIdleTTLSeconds int) {
	p.configMu.Lock()
	p.config = EngineConfigMessage{
		SampleRate:            sampleRate,
		Channels:              channels,
		PreloadIdleTTLSeconds: preloadIdleTTLSeconds,
	}
	p.configMu.Unlock()
}

// Start starts the publisher server.
func (p *Publisher) Start() error {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		return nil
	}

	listener, err := CreateListener(p.socketPath)
	if err != nil {
		atomic.StoreInt32(&p.running, 0)
		return err
	}
	p.listener = listener

	p.wg.Add(1)
	go p.acceptLoop()

	p.wg.Add(1)
	go p.broadcastLoop()

	log.Printf("ipc: publisher started on %s", p.socketPath)
	return nil
}

// Stop stops the publisher.
func (p *Publisher) Stop() {
	if !atomic.CompareAndSwapInt32(&p.running, 1, 0) {
		return
	}

	close(p.stopCh)

	if p.listener != nil {
		p.listener.Close()
	}

	p.clientsMu.Lock()
	for conn := range p.clients {
		conn.Close()
	}
	p.clients = make(map[net.Conn]struct{})
	p.clientsMu.Unlock()

	p.wg.Wait()

	CleanupSocket(p.socketPath)
	log.Println("ipc: publisher stopped")
}

// PublishSnapshot queues a snapshot for broadcast. Non-blocking: drops
// the oldest snapshot if the buffer is full.
func (p *Publisher) PublishSnapshot(snapshot *MixerSnapshot) {
	if atomic.LoadInt32(&p.running) == 0 {
		return
	}

	select {
	case p.snapshotCh <- snapshot:
	default:
		select {
		case <-p.snapshotCh:
			atomic.AddInt64(&p.droppedFrames, 1)
		default:
		}
		select {
		case p.snapshotCh <- snapshot:
		default:
		}
	}
}

// GetStats returns publisher statistics.
func (p *Publisher) GetStats() (clients int, sent int64, dropped int64) {
	return int(atomic.LoadInt32(&p.clientCount)),
		atomic.LoadInt64(&p.snapshotsSent),
		atomic.LoadInt64(&p.droppedFrames)
}

func (p *Publisher) acceptLoop() {
	defer p.wg.Done()

	for atomic.LoadInt32(&p.running) == 1 {
		conn, err := p.listener.Accept()
		if err != nil {
			if atomic.LoadInt32(&p.running) == 0 {
				return
			}
			log.Printf("ipc: accept error: %v", err)
			continue
		}

		p.addClient(conn)
	}
}

func (p *Publisher) addClient(conn net.Conn) {
	p.clientsMu.Lock()
	p.clients[conn] = struct{}{}
	p.clientsMu.Unlock()

	atomic.AddInt32(&p.clientCount, 1)
	log.Printf("ipc: control client connected: %s (total: %d)", conn.RemoteAddr(), atomic.LoadInt32(&p.clientCount))

	p.configMu.RLock()
	config := p.config
	p.configMu.RUnlock()

	go func() {
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := WriteMessage(conn, MsgTypeConfig, config); err != nil {
			log.Printf("ipc: failed to send config: %v", err)
		}
	}()
}

func (p *Publisher) removeClient(conn net.Conn) {
	p.clientsMu.Lock()
	if _, ok := p.clients[conn]; ok {
		delete(p.clients, conn)
		conn.Close()
		p.clientsMu.Unlock()

		count := atomic.AddInt32(&p.clientCount, -1)
		log.Printf("ipc: control client disconnected (remaining: %d)", count)
	} else {
		p.clientsMu.Unlock()
	}
}

func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return

		case snapshot := <-p.snapshotCh:
			p.broadcast(snapshot)
		}
	}
}

func (p *Publisher) broadcast(snapshot *MixerSnapshot) {
	p.clientsMu.RLock()
	clients := make([]net.Conn, 0, len(p.clients))
	for conn := range p.clients {
		clients = append(clients, conn)
	}
	p.clientsMu.RUnlock()

	var failed []net.Conn
	for _, conn := range clients {
		conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
		if err := WriteMessage(conn, MsgTypeSnapshot, snapshot); err != nil {
			failed = append(failed, conn)
		}
	}

	for _, conn := range failed {
		p.removeClient(conn)
	}

	if len(clients) > 0 && len(failed) < len(clients) {
		atomic.AddInt64(&p.snapshotsSent, 1)
	}
}
