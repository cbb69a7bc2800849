package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/executor/market"
	"github.com/rustyeddy/executor/pkg/id"
)

func sampleEvent() Event {
	return Event{
		ID:     id.New(),
		Time:   time.Date(2026, 3, 3, 10, 30, 0, 0, time.UTC),
		Symbol: "EURUSD",
		Kind:   EventOpen,
		Ticket: 1001,
		Side:   market.Buy,
		Volume: 0.5,
		Price:  1.0842,
		Note:   "",
	}
}

func TestCSVJournal(t *testing.T) {
	dir := t.TempDir()
	events := filepath.Join(dir, "events.csv")
	equity := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(events, equity)
	require.NoError(t, err)

	require.NoError(t, j.RecordEvent(sampleEvent()))
	require.NoError(t, j.RecordEquity(EquitySnapshot{
		Time: time.Now().UTC(), Balance: 10000, Equity: 9980,
		MarginUsed: 100, MarginFree: 9880, MarginLevel: 9980,
	}))
	require.NoError(t, j.Close())

	ef, err := os.Open(events)
	require.NoError(t, err)
	defer ef.Close()
	rows, err := csv.NewReader(ef).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus one event")
	assert.Equal(t, "EURUSD", rows[1][2])
	assert.Equal(t, "open", rows[1][3])
	assert.Equal(t, "1001", rows[1][4])

	qf, err := os.Open(equity)
	require.NoError(t, err)
	defer qf.Close()
	qrows, err := csv.NewReader(qf).ReadAll()
	require.NoError(t, err)
	require.Len(t, qrows, 2)
	assert.Equal(t, "10000", qrows[1][1])
}

func TestSQLiteJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)
	defer j.Close()

	e := sampleEvent()
	require.NoError(t, j.RecordEvent(e))
	require.NoError(t, j.RecordEquity(EquitySnapshot{
		Time: time.Now().UTC(), Balance: 10000, Equity: 9980,
	}))

	var kind, side string
	var ticket int64
	err = j.db.QueryRow(`SELECT kind, side, ticket FROM events WHERE id = ?`, e.ID).
		Scan(&kind, &side, &ticket)
	require.NoError(t, err)
	assert.Equal(t, "open", kind)
	assert.Equal(t, "buy", side)
	assert.Equal(t, int64(1001), ticket)

	var n int
	require.NoError(t, j.db.QueryRow(`SELECT COUNT(*) FROM equity`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLiteJournalDuplicateEventID(t *testing.T) {
	j, err := NewSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	e := sampleEvent()
	require.NoError(t, j.RecordEvent(e))
	assert.Error(t, j.RecordEvent(e), "event ids are primary keys")
}

func TestNopJournal(t *testing.T) {
	var j Journal = Nop{}
	assert.NoError(t, j.RecordEvent(sampleEvent()))
	assert.NoError(t, j.RecordEquity(EquitySnapshot{}))
	assert.NoError(t, j.Close())
}
