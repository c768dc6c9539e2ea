package webchat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const defaultWriteTimeout = 5 * time.Second

// wsConn is the part of *websocket.Conn the pool writes through.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// ConnectionPool holds the websocket connections watching one chat session.
// A connection whose write fails is dropped and closed.
type ConnectionPool struct {
	sessionID    string
	mu           sync.Mutex
	conns        map[wsConn]struct{}
	writeTimeout time.Duration
	idleTimer    *time.Timer
	idleTimeout  time.Duration
	onIdle       func()
}

func NewConnectionPool(sessionID string, idleTimeout time.Duration, onIdle func()) *ConnectionPool {
	return &ConnectionPool{
		sessionID:    sessionID,
		conns:        map[wsConn]struct{}{},
		writeTimeout: defaultWriteTimeout,
		idleTimeout:  idleTimeout,
		onIdle:       onIdle,
	}
}

func (cp *ConnectionPool) Add(conn wsConn) {
	if cp == nil || conn == nil {
		return
	}
	cp.mu.Lock()
	cp.conns[conn] = struct{}{}
	cp.stopIdleTimerLocked()
	cp.mu.Unlock()
}

func (cp *ConnectionPool) Remove(conn wsConn) {
	if conn == nil {
		return
	}
	if cp != nil {
		cp.mu.Lock()
		delete(cp.conns, conn)
		cp.scheduleIdleTimerLocked()
		cp.mu.Unlock()
	}
	_ = conn.Close()
}

func (cp *ConnectionPool) Broadcast(data []byte) {
	if cp == nil || len(data) == 0 {
		return
	}
	cp.mu.Lock()
	defer cp.mu.Unlock()
	for conn := range cp.conns {
		if err := cp.writeLocked(conn, data); err != nil {
			log.Warn().Err(err).Str("component", "webchat").Str("session_id", cp.sessionID).Msg("ws broadcast failed, dropping connection")
			delete(cp.conns, conn)
			_ = conn.Close()
		}
	}
	cp.scheduleIdleTimerLocked()
}

func (cp *ConnectionPool) writeLocked(conn wsConn, data []byte) error {
	if cp.writeTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(cp.writeTimeout)); err != nil {
			return err
		}
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (cp *ConnectionPool) Count() int {
	if cp == nil {
		return 0
	}
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return len(cp.conns)
}

func (cp *ConnectionPool) IsEmpty() bool {
	return cp.Count() == 0
}

func (cp *ConnectionPool) CloseAll() {
	if cp == nil {
		return
	}
	cp.mu.Lock()
	for conn := range cp.conns {
		_ = conn.Close()
		delete(cp.conns, conn)
	}
	cp.stopIdleTimerLocked()
	cp.mu.Unlock()
}

func (cp *ConnectionPool) stopIdleTimerLocked() {
	if cp.idleTimer != nil {
		cp.idleTimer.Stop()
		cp.idleTimer = nil
	}
}

func (cp *ConnectionPool) scheduleIdleTimerLocked() {
	cp.stopIdleTimerLocked()
	if len(cp.conns) != 0 || cp.idleTimeout <= 0 || cp.onIdle == nil {
		return
	}
	cp.idleTimer = time.AfterFunc(cp.idleTimeout, cp.triggerIdle)
}

func (cp *ConnectionPool) triggerIdle() {
	var callback func()
	cp.mu.Lock()
	if len(cp.conns) == 0 {
		callback = cp.onIdle
	}
	cp.idleTimer = nil
	cp.mu.Unlock()
	if callback != nil {
		callback()
	}
}

// pools maps session IDs to their connection pools. A pool that stays empty
// for idleTimeout is forgotten.
type pools struct {
	mu          sync.Mutex
	bySession   map[string]*ConnectionPool
	idleTimeout time.Duration
}

func newPools(idleTimeout time.Duration) *pools {
	return &pools{bySession: map[string]*ConnectionPool{}, idleTimeout: idleTimeout}
}

func (p *pools) getOrCreate(sessionID string) *ConnectionPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cp, ok := p.bySession[sessionID]; ok {
		return cp
	}
	var cp *ConnectionPool
	cp = NewConnectionPool(sessionID, p.idleTimeout, func() {
		p.mu.Lock()
		if p.bySession[sessionID] == cp {
			delete(p.bySession, sessionID)
		}
		p.mu.Unlock()
	})
	p.bySession[sessionID] = cp
	return cp
}

func (p *pools) get(sessionID string) *ConnectionPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bySession[sessionID]
}

func (p *pools) closeAll() {
	p.mu.Lock()
	all := make([]*ConnectionPool, 0, len(p.bySession))
	for id, cp := range p.bySession {
		all = append(all, cp)
		delete(p.bySession, id)
	}
	p.mu.Unlock()
	for _, cp := range all {
		cp.CloseAll()
	}
}
