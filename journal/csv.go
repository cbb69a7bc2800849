package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

type CSVJournal struct {
	events *csv.Writer
	equity *csv.Writer
	vf, ef *os.File
}

func NewCSV(eventsPath, equityPath string) (*CSVJournal, error) {
	vf, err := os.Create(eventsPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		return nil, err
	}

	vw := csv.NewWriter(vf)
	ew := csv.NewWriter(ef)

	if err := vw.Write([]string{"id", "time", "symbol", "kind", "ticket", "side", "volume", "price", "note"}); err != nil {
		return nil, err
	}
	if err := ew.Write([]string{"time", "balance", "equity", "margin_used", "margin_free", "margin_level"}); err != nil {
		return nil, err
	}

	vw.Flush()
	if err := vw.Error(); err != nil {
		return nil, err
	}
	ew.Flush()
	if err := ew.Error(); err != nil {
		return nil, err
	}

	return &CSVJournal{vw, ew, vf, ef}, nil
}

func (j *CSVJournal) RecordEvent(e Event) error {
	j.events.Write([]string{
		e.ID,
		e.Time.Format(time.RFC3339),
		e.Symbol,
		string(e.Kind),
		strconv.FormatInt(e.Ticket, 10),
		string(e.Side),
		f(e.Volume),
		f(e.Price),
		e.Note,
	})
	j.events.Flush()
	return j.events.Error()
}

func (j *CSVJournal) RecordEquity(s EquitySnapshot) error {
	err := j.equity.Write([]string{
		s.Time.Format(time.RFC3339),
		f(s.Balance),
		f(s.Equity),
		f(s.MarginUsed),
		f(s.MarginFree),
		f(s.MarginLevel),
	})
	if err != nil {
		return err
	}

	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) Close() error {
	j.events.Flush()
	if err := j.events.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}

	if err := j.vf.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
