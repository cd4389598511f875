package journal

// SchemaVersion tags the on-disk layout. Loads fail wholesale when the
// stored version differs.
const SchemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	trade_id TEXT NOT NULL,
	sec_market TEXT NOT NULL,
	sec_code TEXT NOT NULL,
	time INTEGER NOT NULL,
	kind INTEGER NOT NULL,
	plan_price REAL NOT NULL,
	real_price REAL NOT NULL,
	goal_price REAL NOT NULL,
	quantity REAL NOT NULL,
	cost_commission REAL NOT NULL,
	cost_stamptax REAL NOT NULL,
	cost_transfer REAL NOT NULL,
	cost_other REAL NOT NULL,
	cost_total REAL NOT NULL,
	stop_loss REAL NOT NULL,
	cash_after REAL NOT NULL,
	source INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	pos_id INTEGER PRIMARY KEY AUTOINCREMENT,
	closed INTEGER NOT NULL, -- 0 open, 1 history
	sec_market TEXT NOT NULL,
	sec_code TEXT NOT NULL,
	opened_at INTEGER NOT NULL,
	closed_at INTEGER NOT NULL,
	quantity REAL NOT NULL,
	stop_loss REAL NOT NULL,
	goal_price REAL NOT NULL,
	total_quantity REAL NOT NULL,
	buy_money REAL NOT NULL,
	total_cost REAL NOT NULL,
	total_risk REAL NOT NULL,
	sell_money REAL NOT NULL,
	last_settle_time INTEGER NOT NULL,
	last_settle_profit REAL NOT NULL,
	last_settle_close REAL NOT NULL,
	last_settle_delta REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS contracts (
	pos_id INTEGER NOT NULL REFERENCES positions(pos_id),
	ord INTEGER NOT NULL, -- FIFO order within the position
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	stop_loss REAL NOT NULL,
	goal_price REAL NOT NULL,
	cost REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS params (
	name TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_time ON trades(time);
`
