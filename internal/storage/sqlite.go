package storage

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/san-kum/trisim/internal/physics"
	"github.com/san-kum/trisim/internal/sim"
)

const schema = `
CREATE TABLE ticks (
	tick 	INTEGER,
	t 		REAL,
	id 		INTEGER, -- body id
	x 		REAL,
	y 		REAL,
	vx 		REAL,
	vy 		REAL,
	ax 		REAL,
	ay 		REAL);
`

const insertTick = `INSERT INTO ticks VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`
const queryTicks = `SELECT tick, t, id, x, y, vx, vy, ax, ay FROM ticks ORDER BY tick ASC, id ASC;`

// SQLiteLog stores full precision values, one row per body per tick.
type SQLiteLog struct {
	mu   sync.Mutex
	db   *sql.DB
	stmt *sql.Stmt
	tick int
	err  error
}

func openSQLiteLog(filename string) (*SQLiteLog, error) {
	if _, err := os.Stat(filename); err == nil {
		return nil, fmt.Errorf("%s exists", filename)
	}

	db, err := sql.Open("sqlite3", "file:"+filename+"?_journal_mode=OFF&_synchronous=OFF")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	stmt, err := db.Prepare(insertTick)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteLog{db: db, stmt: stmt}, nil
}

func (l *SQLiteLog) OnTick(f sim.Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return
	}

	tx, err := l.db.Begin()
	if err != nil {
		l.err = err
		return
	}
	stmt := tx.Stmt(l.stmt)
	for _, b := range f.Bodies {
		_, err = stmt.Exec(l.tick, f.Time, b.ID,
			b.Position.X, b.Position.Y,
			b.Velocity.X, b.Velocity.Y,
			b.Acceleration.X, b.Acceleration.Y)
		if err != nil {
			break
		}
	}

	if err != nil {
		tx.Rollback()
		l.err = err
		return
	}
	l.err = tx.Commit()
	l.tick++
}

func (l *SQLiteLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stmt.Close()
	if err := l.db.Close(); err != nil && l.err == nil {
		l.err = err
	}
	return l.err
}

func readSQLiteLog(filename string) (*RunData, error) {
	if _, err := os.Stat(filename); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", "file:"+filename+"?mode=ro")
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(queryTicks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	data := &RunData{Columns: Columns()}
	var row []float64
	lastTick := -1
	for rows.Next() {
		var (
			tick, id                int
			t, x, y, vx, vy, ax, ay float64
		)
		if err := rows.Scan(&tick, &t, &id, &x, &y, &vx, &vy, &ax, &ay); err != nil {
			return nil, err
		}
		if id < 1 || id > physics.NumBodies {
			return nil, fmt.Errorf("%s: tick %d: body id %d out of range", filename, tick, id)
		}
		if tick != lastTick {
			row = make([]float64, len(data.Columns))
			row[0] = t
			data.Rows = append(data.Rows, row)
			lastTick = tick
		}
		copy(row[1+(id-1)*6:], []float64{x, y, vx, vy, ax, ay})
	}
	return data, rows.Err()
}
