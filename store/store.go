// Package store persists the one in-flight position per symbol so the
// executor can resynchronize after a process restart.
//
// The record is a single line of five whitespace-separated fields, in fixed
// order: ticket id, opening price, quoted side string, opened flag, protected
// flag. The file is fully overwritten after every cycle. Parsing is
// defensive: any record that does not match the schema exactly is treated as
// "no prior state", never evaluated loosely.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rustyeddy/executor/market"
	"github.com/rustyeddy/executor/position"
)

// ErrNoRecord means no usable prior state exists: the file is missing or its
// content does not match the schema. Callers warn and start flat.
var ErrNoRecord = errors.New("store: no usable record")

type Store struct {
	dir    string
	symbol string
}

func New(dir, symbol string) *Store {
	return &Store{dir: dir, symbol: symbol}
}

// Path returns the record file location for this symbol.
func (s *Store) Path() string {
	return filepath.Join(s.dir, s.symbol+".rec")
}

// Save overwrites the record with the current position snapshot.
func (s *Store) Save(p position.Position) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("store: create dir: %w", err)
	}
	side := p.Side
	if side == "" {
		side = market.None
	}
	rec := fmt.Sprintf("%d %s %q %t %t\n",
		p.Ticket,
		strconv.FormatFloat(p.OpenPrice, 'g', -1, 64),
		string(side),
		p.Opened,
		p.Protected,
	)
	if err := os.WriteFile(s.Path(), []byte(rec), 0o644); err != nil {
		return fmt.Errorf("store: write record: %w", err)
	}
	return nil
}

// Load reads and validates the record. A missing file or any schema mismatch
// returns a zero position and ErrNoRecord.
func (s *Store) Load() (position.Position, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return flat(), fmt.Errorf("%w: %s missing", ErrNoRecord, s.Path())
		}
		return flat(), fmt.Errorf("%w: read %s: %v", ErrNoRecord, s.Path(), err)
	}

	fields := strings.Fields(string(data))
	if len(fields) != 5 {
		return flat(), fmt.Errorf("%w: want 5 fields, got %d", ErrNoRecord, len(fields))
	}

	ticket, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || ticket < 0 {
		return flat(), fmt.Errorf("%w: bad ticket %q", ErrNoRecord, fields[0])
	}
	openPrice, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return flat(), fmt.Errorf("%w: bad open price %q", ErrNoRecord, fields[1])
	}
	sideStr, err := strconv.Unquote(fields[2])
	if err != nil {
		return flat(), fmt.Errorf("%w: side not quoted: %q", ErrNoRecord, fields[2])
	}
	side := market.Side(sideStr)
	if !side.Valid() {
		return flat(), fmt.Errorf("%w: bad side %q", ErrNoRecord, sideStr)
	}
	opened, err := strconv.ParseBool(fields[3])
	if err != nil {
		return flat(), fmt.Errorf("%w: bad opened flag %q", ErrNoRecord, fields[3])
	}
	protected, err := strconv.ParseBool(fields[4])
	if err != nil {
		return flat(), fmt.Errorf("%w: bad protected flag %q", ErrNoRecord, fields[4])
	}

	return position.Position{
		Ticket:    ticket,
		OpenPrice: openPrice,
		Side:      side,
		Opened:    opened,
		Protected: protected,
	}, nil
}

func flat() position.Position {
	return position.Position{Side: market.None}
}
