package postgres

// RosterChannel is the NOTIFY channel raised by the students trigger.
const RosterChannel = "roster_changes"

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_students", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_users", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "notify_roster_changes", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

const migration001Up = `
CREATE TABLE IF NOT EXISTS students (
	id               UUID PRIMARY KEY,
	roll_no          TEXT NOT NULL DEFAULT '',
	name             TEXT NOT NULL,
	email            TEXT NOT NULL DEFAULT '',
	attendance       DOUBLE PRECISION NOT NULL,
	study_hours      DOUBLE PRECISION NOT NULL,
	past_score       DOUBLE PRECISION NOT NULL,
	participation    TEXT NOT NULL DEFAULT 'medium',
	assignments      DOUBLE PRECISION NOT NULL DEFAULT 80,
	extra_activities TEXT NOT NULL DEFAULT 'some',
	predicted_score  DOUBLE PRECISION NOT NULL CHECK (predicted_score BETWEEN 0 AND 100),
	risk_level       TEXT NOT NULL CHECK (risk_level IN ('high', 'medium', 'low')),
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_students_risk_level ON students (risk_level);
CREATE INDEX IF NOT EXISTS idx_students_email ON students (lower(email)) WHERE email <> '';
`

const migration001Down = `DROP TABLE IF EXISTS students;`

const migration002Up = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	role          TEXT NOT NULL CHECK (role IN ('admin', 'teacher', 'student')),
	institution   TEXT NOT NULL DEFAULT '',
	password_hash BYTEA NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_login    TIMESTAMPTZ
);
`

const migration002Down = `DROP TABLE IF EXISTS users;`

const migration003Up = `
CREATE OR REPLACE FUNCTION notify_roster_change() RETURNS trigger AS $$
DECLARE
	kind TEXT;
	rid  UUID;
BEGIN
	IF TG_OP = 'INSERT' THEN
		kind := 'added';   rid := NEW.id;
	ELSIF TG_OP = 'UPDATE' THEN
		kind := 'modified'; rid := NEW.id;
	ELSE
		kind := 'removed'; rid := OLD.id;
	END IF;
	PERFORM pg_notify('roster_changes', json_build_object('kind', kind, 'id', rid)::text);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS students_notify ON students;
CREATE TRIGGER students_notify
	AFTER INSERT OR UPDATE OR DELETE ON students
	FOR EACH ROW EXECUTE FUNCTION notify_roster_change();
`

const migration003Down = `
DROP TRIGGER IF EXISTS students_notify ON students;
DROP FUNCTION IF EXISTS notify_roster_change();
`
