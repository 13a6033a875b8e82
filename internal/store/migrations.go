package store

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	mobile        TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	role          VARCHAR(20) NOT NULL DEFAULT 'customer',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS products (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL DEFAULT '',
	grade       TEXT NOT NULL DEFAULT '',
	unit        TEXT NOT NULL DEFAULT 'kg',
	price       BIGINT NOT NULL CHECK (price >= 0),
	stock       INT NOT NULL DEFAULT 0 CHECK (stock >= 0),
	image_url   TEXT NOT NULL DEFAULT '',
	is_active   BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);

CREATE TABLE IF NOT EXISTS carts (
	id         BIGSERIAL PRIMARY KEY,
	user_id    BIGINT NOT NULL UNIQUE REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS cart_items (
	id           BIGSERIAL PRIMARY KEY,
	cart_id      BIGINT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
	product_id   BIGINT NOT NULL REFERENCES products(id),
	product_name TEXT NOT NULL,
	quantity     INT NOT NULL CHECK (quantity >= 1),
	price        BIGINT NOT NULL,
	subtotal     BIGINT NOT NULL,
	UNIQUE (cart_id, product_id)
);

CREATE TABLE IF NOT EXISTS orders (
	id               BIGSERIAL PRIMARY KEY,
	order_code       VARCHAR(32) NOT NULL UNIQUE,
	user_id          BIGINT NOT NULL REFERENCES users(id),
	customer_name    TEXT NOT NULL,
	customer_mobile  TEXT NOT NULL DEFAULT '',
	customer_email   TEXT NOT NULL DEFAULT '',
	address_line     TEXT NOT NULL,
	city             TEXT NOT NULL,
	state            TEXT NOT NULL,
	postal_code      TEXT NOT NULL,
	items_total      BIGINT NOT NULL,
	delivery_charges BIGINT NOT NULL,
	total            BIGINT NOT NULL,
	payment_method   VARCHAR(20) NOT NULL,
	payment_status   VARCHAR(20) NOT NULL,
	transaction_id   TEXT NOT NULL DEFAULT '',
	payment_gateway  TEXT NOT NULL DEFAULT '',
	paid_at          TIMESTAMPTZ,
	status           VARCHAR(30) NOT NULL,
	reviewed_by      BIGINT REFERENCES users(id),
	reviewed_at      TIMESTAMPTZ,
	review_note      TEXT NOT NULL DEFAULT '',
	approval_status  VARCHAR(20) NOT NULL DEFAULT 'pending',
	is_locked        BOOLEAN NOT NULL DEFAULT FALSE,
	delivered_at     TIMESTAMPTZ,
	cancelled_by     VARCHAR(20) NOT NULL DEFAULT '',
	cancel_reason    TEXT NOT NULL DEFAULT '',
	idempotency_key  TEXT NOT NULL UNIQUE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT orders_total_check CHECK (total = items_total + delivery_charges)
);

CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
CREATE INDEX IF NOT EXISTS idx_orders_transaction_id ON orders(transaction_id);

CREATE TABLE IF NOT EXISTS order_items (
	id           BIGSERIAL PRIMARY KEY,
	order_id     BIGINT NOT NULL REFERENCES orders(id),
	product_id   BIGINT NOT NULL,
	product_name TEXT NOT NULL,
	quantity     INT NOT NULL CHECK (quantity >= 1),
	unit_price   BIGINT NOT NULL,
	subtotal     BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);

CREATE TABLE IF NOT EXISTS order_status_history (
	id         BIGSERIAL PRIMARY KEY,
	order_id   BIGINT NOT NULL REFERENCES orders(id),
	status     VARCHAR(30) NOT NULL,
	note       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_order_status_history_order_id ON order_status_history(order_id);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS dealer_requests (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT NOT NULL,
	business_name TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	mobile        TEXT NOT NULL,
	city          TEXT NOT NULL DEFAULT '',
	message       TEXT NOT NULL DEFAULT '',
	status        VARCHAR(20) NOT NULL DEFAULT 'pending',
	admin_note    TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// RunMigrations creates the schema if it does not exist yet
func (s *Store) RunMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
