package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create knowledge documents with FTS5",
		SQL: `
			CREATE TABLE knowledge_documents (
				id          TEXT PRIMARY KEY,
				title       TEXT NOT NULL DEFAULT '',
				content     TEXT NOT NULL,
				source      TEXT NOT NULL DEFAULT '',
				embedding   BLOB,
				created_at  TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_knowledge_source ON knowledge_documents (source);

			CREATE VIRTUAL TABLE knowledge_fts USING fts5(
				title,
				content,
				content='knowledge_documents',
				content_rowid='rowid'
			);

			CREATE TRIGGER knowledge_ai AFTER INSERT ON knowledge_documents BEGIN
				INSERT INTO knowledge_fts(rowid, title, content)
				VALUES (new.rowid, new.title, new.content);
			END;

			CREATE TRIGGER knowledge_ad AFTER DELETE ON knowledge_documents BEGIN
				INSERT INTO knowledge_fts(knowledge_fts, rowid, title, content)
				VALUES ('delete', old.rowid, old.title, old.content);
			END;

			CREATE TRIGGER knowledge_au AFTER UPDATE ON knowledge_documents BEGIN
				INSERT INTO knowledge_fts(knowledge_fts, rowid, title, content)
				VALUES ('delete', old.rowid, old.title, old.content);
				INSERT INTO knowledge_fts(rowid, title, content)
				VALUES (new.rowid, new.title, new.content);
			END;
		`,
	},
}
