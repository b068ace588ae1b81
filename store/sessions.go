// Package store 用 sqlite 记录已结束的会话，数据来自区域的断线钩子，启动时不回读。
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"tickzone/server"
)

const queueSize = 4096

// SessionLog 由单个写协程落盘，Tick 不等待磁盘
type SessionLog struct {
	db *sql.DB
	ch chan server.SessionRecord
	wg sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

var _ server.DisconnectHandler = (*SessionLog)(nil)

func Open(path string) (*SessionLog, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SessionLog{db: db, ch: make(chan server.SessionRecord, queueSize)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			player_id INTEGER NOT NULL,
			remote TEXT NOT NULL,
			joined_at INTEGER NOT NULL,
			left_at INTEGER NOT NULL,
			reason TEXT NOT NULL,
			pos_x REAL NOT NULL,
			pos_y REAL NOT NULL,
			pos_z REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS sessions_player ON sessions(player_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// OnDisconnect 非阻塞入队；队列满或已关闭时丢弃并计数
func (s *SessionLog) OnDisconnect(rec server.SessionRecord) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.ch <- rec:
	default:
		s.dropped.Add(1)
		server.Log.Warnw("session log full, dropping record", "conn", rec.PlayerID)
	}
}

// Dropped 未写入数据库的记录数
func (s *SessionLog) Dropped() int64 { return s.dropped.Load() }

func (s *SessionLog) loop() {
	for rec := range s.ch {
		if err := s.insert(rec); err != nil {
			server.Log.Errorw("session log write failed", "conn", rec.PlayerID, "err", err)
		}
	}
}

func (s *SessionLog) insert(rec server.SessionRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (player_id, remote, joined_at, left_at, reason, pos_x, pos_y, pos_z)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(rec.PlayerID), rec.Remote, unixMilli(rec.JoinedAt), unixMilli(rec.LeftAt), string(rec.Reason),
		float64(rec.Position.X()), float64(rec.Position.Y()), float64(rec.Position.Z()),
	)
	return err
}

// Recent 按时间倒序返回最近的会话
func (s *SessionLog) Recent(ctx context.Context, limit int) ([]server.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT player_id, remote, joined_at, left_at, reason, pos_x, pos_y, pos_z
		 FROM sessions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []server.SessionRecord
	for rows.Next() {
		var (
			rec              server.SessionRecord
			playerID         int64
			joined, left     int64
			reason           string
			posX, posY, posZ float64
		)
		if err := rows.Scan(&playerID, &rec.Remote, &joined, &left, &reason, &posX, &posY, &posZ); err != nil {
			return nil, err
		}
		rec.PlayerID = uint64(playerID)
		rec.JoinedAt = fromUnixMilli(joined)
		rec.LeftAt = fromUnixMilli(left)
		rec.Reason = server.LeaveReason(reason)
		rec.Position[0], rec.Position[1], rec.Position[2] = float32(posX), float32(posY), float32(posZ)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close 写完队列中的记录后关闭数据库
func (s *SessionLog) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	s.wg.Wait()
	return s.db.Close()
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
