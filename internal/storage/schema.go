package storage

const schema = `
-- The 'sources' table tracks the origin of the decks, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local', -- local | git
    last_scanned DATETIME
);

-- One item per deck file.
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    source_id INTEGER NOT NULL,
    title TEXT NOT NULL,
    path TEXT NOT NULL,
    created_at DATETIME NOT NULL,

    FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE CASCADE
);

-- Flashcards are read back in rowid order, which is insertion order.
CREATE TABLE IF NOT EXISTS flashcards (
    id TEXT PRIMARY KEY,
    item_id TEXT NOT NULL,
    front TEXT NOT NULL,
    back TEXT NOT NULL DEFAULT '',
    context TEXT NOT NULL DEFAULT '',
    ease REAL NOT NULL DEFAULT 2.5 CHECK (ease >= 1.3),
    next_review_at DATETIME NOT NULL,
    last_review_at DATETIME,
    origin TEXT NOT NULL DEFAULT 'deck', -- deck | generated

    FOREIGN KEY(item_id) REFERENCES items(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS flashcards_item_id ON flashcards(item_id);

CREATE TABLE IF NOT EXISTS mcqs (
    id TEXT PRIMARY KEY,
    item_id TEXT NOT NULL,
    question TEXT NOT NULL,
    options TEXT NOT NULL, -- JSON array
    correct_index INTEGER NOT NULL,
    explanation TEXT NOT NULL DEFAULT '',
    difficulty TEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT '[]', -- JSON array
    origin TEXT NOT NULL DEFAULT 'deck',

    FOREIGN KEY(item_id) REFERENCES items(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS mcqs_item_id ON mcqs(item_id);

-- completed_at and score are set together or not at all.
CREATE TABLE IF NOT EXISTS quiz_sessions (
    id TEXT PRIMARY KEY,
    item_id TEXT NOT NULL,
    started_at DATETIME NOT NULL,
    completed_at DATETIME,
    score INTEGER,

    CHECK ((completed_at IS NULL) = (score IS NULL))
);

-- Questions are snapshotted so a session survives deck edits.
CREATE TABLE IF NOT EXISTS quiz_session_questions (
    session_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    question TEXT NOT NULL, -- JSON encoded MCQ

    PRIMARY KEY(session_id, position),
    FOREIGN KEY(session_id) REFERENCES quiz_sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS quiz_submissions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    question_id TEXT NOT NULL,
    selected_index INTEGER NOT NULL,
    is_correct INTEGER NOT NULL,
    time_spent_ms INTEGER NOT NULL DEFAULT 0,

    FOREIGN KEY(session_id) REFERENCES quiz_sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS summaries (
    id TEXT PRIMARY KEY,
    item_id TEXT NOT NULL,
    tldr TEXT NOT NULL,
    bullets TEXT NOT NULL, -- JSON array
    outline TEXT NOT NULL, -- JSON array
    created_at DATETIME NOT NULL,

    FOREIGN KEY(item_id) REFERENCES items(id) ON DELETE CASCADE
);
`
