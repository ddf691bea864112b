package postgres

// Schema creates the ledger tables. Applied by deploy tooling and by tests.
const Schema = `
CREATE TABLE IF NOT EXISTS tables (
	id UUID PRIMARY KEY,
	venue TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	capacity INT NOT NULL
);

CREATE TABLE IF NOT EXISTS seats (
	id UUID PRIMARY KEY,
	table_id UUID NOT NULL,
	seat_number INT NOT NULL,
	status TEXT NOT NULL DEFAULT 'free' CHECK (status IN ('free', 'held', 'booked')),
	hold_id UUID,
	booking_id UUID,
	UNIQUE (table_id, seat_number),
	CHECK (
		(status = 'free' AND hold_id IS NULL AND booking_id IS NULL) OR
		(status = 'held' AND hold_id IS NOT NULL AND booking_id IS NULL) OR
		(status = 'booked' AND hold_id IS NULL AND booking_id IS NOT NULL)
	)
);

CREATE TABLE IF NOT EXISTS holds (
	id UUID PRIMARY KEY,
	table_id UUID NOT NULL,
	owner_session TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('active', 'committed', 'released', 'expired')),
	extended BOOL NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS holds_active_expiry ON holds (expires_at) WHERE status = 'active';
CREATE UNIQUE INDEX IF NOT EXISTS holds_owner_session ON holds (owner_session) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS hold_seats (
	hold_id UUID NOT NULL,
	seat_id UUID NOT NULL,
	seat_number INT NOT NULL,
	PRIMARY KEY (hold_id, seat_id)
);

CREATE TABLE IF NOT EXISTS bookings (
	id UUID PRIMARY KEY,
	hold_id UUID NOT NULL UNIQUE,
	table_id UUID NOT NULL,
	owner_session TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('confirmed', 'cancelled')),
	guest_name TEXT NOT NULL DEFAULT '',
	guest_count INT NOT NULL DEFAULT 0,
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS booking_seats (
	booking_id UUID NOT NULL,
	seat_id UUID NOT NULL,
	seat_number INT NOT NULL,
	PRIMARY KEY (booking_id, seat_id)
);
`
