package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id              TEXT PRIMARY KEY,
	phone           TEXT NOT NULL UNIQUE,
	name            TEXT NOT NULL DEFAULT '',
	last_contact_at DATETIME NOT NULL,
	subscribed      INTEGER NOT NULL DEFAULT 0 CHECK(subscribed IN (0, 1)),
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	description     TEXT NOT NULL,
	due_at          DATETIME NOT NULL,
	reminder_at     DATETIME NOT NULL,
	reminder_minute INTEGER NOT NULL,
	meta            TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_user_due ON tasks(user_id, due_at);
CREATE INDEX IF NOT EXISTS idx_tasks_reminder_minute ON tasks(reminder_minute);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS reminder_fires (
	task_id  TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	minute   INTEGER NOT NULL,
	fired_at DATETIME NOT NULL,
	PRIMARY KEY (task_id, minute)
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
