package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelcore.ai/internal/parallel"
)

// SQLiteIndex is a secondary, query-friendly index of pool runs. Writes are
// queued and applied by a single writer goroutine; the run log stays the
// source of truth, so a full queue drops the row instead of blocking the pool.
type SQLiteIndex struct {
	db        *sql.DB
	insertRun *sql.Stmt

	// mu guards closed and sends on ch; Close takes it exclusively before
	// closing ch so no RecordRun can send on a closed channel.
	mu     sync.RWMutex
	closed bool
	ch     chan parallel.RunInfo
	wg     sync.WaitGroup
	once   sync.Once

	dropped atomic.Uint64
	written atomic.Uint64
}

type Stats struct {
	QueueDepth   int    `json:"queue_depth"`
	WrittenTotal uint64 `json:"written_total"`
	DroppedTotal uint64 `json:"dropped_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
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

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	insertRun, err := db.Prepare(`INSERT INTO runs(started_at,begin_idx,end_idx,workers,duration_ns,spans_json) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}

	s := &SQLiteIndex{
		db:        db,
		insertRun: insertRun,
		// Bursty benchmarks can emit many short runs back to back.
		ch: make(chan parallel.RunInfo, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT NOT NULL,
			begin_idx INTEGER NOT NULL,
			end_idx INTEGER NOT NULL,
			workers INTEGER NOT NULL,
			duration_ns INTEGER NOT NULL,
			spans_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_workers ON runs(workers, end_idx, begin_idx);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the queue, commits, and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()

		s.wg.Wait()
		_ = s.insertRun.Close()
		err = s.db.Close()
	})
	return err
}

// RecordRun queues ri for insertion. It never blocks.
func (s *SQLiteIndex) RecordRun(ri parallel.RunInfo) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ri:
	default:
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) ObserveRun(ri parallel.RunInfo) { s.RecordRun(ri) }

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:   len(s.ch),
		WrittenTotal: s.written.Load(),
		DroppedTotal: s.dropped.Load(),
	}
}

// RunSummary aggregates the rows recorded for one worker count.
type RunSummary struct {
	Workers       int
	Runs          int
	Indices       int64
	TotalDuration time.Duration
}

// Summaries groups recorded runs by worker count, ascending.
func (s *SQLiteIndex) Summaries(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT workers, COUNT(*), SUM(end_idx-begin_idx), SUM(duration_ns)
		FROM runs GROUP BY workers ORDER BY workers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			rs  RunSummary
			dur int64
		)
		if err := rows.Scan(&rs.Workers, &rs.Runs, &rs.Indices, &dur); err != nil {
			return nil, err
		}
		rs.TotalDuration = time.Duration(dur)
		out = append(out, rs)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	var (
		tx            *sql.Tx
		pending       uint64
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 1000
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		pending = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err == nil {
			s.written.Add(pending)
		}
		tx = nil
		opCount = 0
		pending = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		pending = 0
		lastCommit = time.Now()
	}

	for ri := range s.ch {
		begin()
		if tx == nil {
			s.dropped.Add(1)
			continue
		}
		spans, _ := json.Marshal(ri.Spans)
		if _, err := tx.Stmt(s.insertRun).Exec(
			ri.StartedAt.UTC().Format(time.RFC3339Nano),
			ri.Begin,
			ri.End,
			ri.Workers,
			int64(ri.Duration),
			string(spans),
		); err != nil {
			s.dropped.Add(pending + 1)
			rollback()
			continue
		}
		opCount++
		pending++

		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}
	commit()
}
