package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordEvent(e Event) error {
	_, err := j.db.Exec(`
		INSERT INTO events
		(id, time, symbol, kind, ticket, side, volume, price, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Time, e.Symbol, string(e.Kind), e.Ticket,
		string(e.Side), e.Volume, e.Price, e.Note,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(s EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, balance, equity, margin_used, margin_free, margin_level)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.Time, s.Balance, s.Equity, s.MarginUsed, s.MarginFree, s.MarginLevel,
	)
	return err
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
