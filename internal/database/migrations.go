package database

// SQL migrations for the trading gateway database.
// All migrations use IF NOT EXISTS to be idempotent.

const migrationClients = `
CREATE TABLE IF NOT EXISTS clients (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    client_code TEXT UNIQUE NOT NULL,
    name TEXT NOT NULL,
    email TEXT,
    is_active INTEGER DEFAULT 1,
    enc_api_key_interactive TEXT,
    enc_secret_interactive TEXT,
    enc_user_id_interactive TEXT,
    enc_password_interactive TEXT,
    enc_totp_seed_interactive TEXT,
    enc_api_key_commodity TEXT,
    enc_secret_commodity TEXT,
    enc_user_id_commodity TEXT,
    enc_password_commodity TEXT,
    enc_totp_seed_commodity TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const migrationOrders = `
CREATE TABLE IF NOT EXISTS orders (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ref_id TEXT UNIQUE NOT NULL,
    broker_order_id TEXT NOT NULL,
    client_id INTEGER NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
    symbol TEXT NOT NULL,
    symbol_token TEXT NOT NULL,
    exchange TEXT NOT NULL,
    order_type TEXT NOT NULL,
    transaction_type TEXT NOT NULL,
    product_type TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    price REAL,
    trigger_price REAL,
    validity TEXT DEFAULT 'DAY',
    status TEXT DEFAULT 'PENDING',
    remarks TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME
);
`

const migrationRuns = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT UNIQUE NOT NULL,
    kind TEXT NOT NULL,
    dry_run INTEGER DEFAULT 0,
    total INTEGER NOT NULL,
    succeeded INTEGER NOT NULL,
    failed INTEGER NOT NULL,
    total_quantity INTEGER DEFAULT 0,
    elapsed_ms INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const migrationIndexes = `
CREATE INDEX IF NOT EXISTS idx_clients_active ON clients(is_active);
CREATE INDEX IF NOT EXISTS idx_orders_client ON orders(client_id);
CREATE INDEX IF NOT EXISTS idx_orders_broker_order ON orders(broker_order_id);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`
