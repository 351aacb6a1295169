package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL,
	trade_id TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	realized_pl REAL NOT NULL,
	reason TEXT NOT NULL,
	PRIMARY KEY (run_id, trade_id)
);

CREATE INDEX IF NOT EXISTS idx_trades_close_time ON trades(close_time);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	balance REAL NOT NULL,
	locked REAL NOT NULL,
	free REAL NOT NULL,
	unrealized_pl REAL NOT NULL,
	fees REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);

CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	params TEXT NOT NULL,
	dataset TEXT NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	initial_balance TEXT NOT NULL,
	final_equity TEXT NOT NULL,
	net_pl TEXT NOT NULL,
	fees TEXT NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	win_rate REAL NOT NULL,
	profit_factor REAL,
	max_dd_pct REAL NOT NULL,
	sharpe REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS optimization_runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	dataset TEXT NOT NULL,
	workers INTEGER NOT NULL,
	combinations INTEGER NOT NULL,
	failures INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS optimization_results (
	run_id TEXT NOT NULL,
	idx INTEGER NOT NULL,
	params TEXT NOT NULL,
	value REAL NOT NULL,
	PRIMARY KEY (run_id, idx)
);
`
