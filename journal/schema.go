package journal

const Schema = `
CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	kind TEXT NOT NULL,
	ticket INTEGER NOT NULL,
	side TEXT NOT NULL,
	volume REAL NOT NULL,
	price REAL NOT NULL,
	note TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL,
	margin_used REAL NOT NULL,
	margin_free REAL NOT NULL,
	margin_level REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_time ON events(time);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
