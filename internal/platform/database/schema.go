package database

// Schema is applied by Migrate. Every statement is idempotent.
//
// Soft-deleted rows (is_active = false) are kept; uniqueness only applies to
// active rows, which lets a period be replaced while its history is retained.
const Schema = `
CREATE TABLE IF NOT EXISTS exams (
  id           UUID PRIMARY KEY,
  name         TEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL DEFAULT '',
  is_active    BOOLEAN NOT NULL DEFAULT TRUE,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS subjects (
  id           UUID PRIMARY KEY,
  exam_id      UUID NOT NULL REFERENCES exams(id),
  name         TEXT NOT NULL,
  display_name TEXT NOT NULL DEFAULT '',
  is_active    BOOLEAN NOT NULL DEFAULT TRUE,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  UNIQUE (exam_id, name)
);

CREATE TABLE IF NOT EXISTS sub_categories (
  id           UUID PRIMARY KEY,
  exam_id      UUID NOT NULL REFERENCES exams(id),
  name         TEXT NOT NULL,
  display_name TEXT NOT NULL DEFAULT '',
  is_active    BOOLEAN NOT NULL DEFAULT TRUE,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  UNIQUE (exam_id, name)
);

CREATE TABLE IF NOT EXISTS tracks (
  id              UUID PRIMARY KEY,
  exam_id         UUID NOT NULL REFERENCES exams(id),
  sub_category_id UUID NOT NULL REFERENCES sub_categories(id),
  name            TEXT NOT NULL,
  display_name    TEXT NOT NULL DEFAULT '',
  track_type      TEXT NOT NULL CHECK (track_type IN ('weeks', 'days', 'months', 'semester', 'years')),
  duration        INTEGER,
  is_active       BOOLEAN NOT NULL DEFAULT TRUE,
  created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  UNIQUE (exam_id, sub_category_id, name)
);

CREATE OR REPLACE FUNCTION tracks_forbid_type_change() RETURNS trigger AS $$
BEGIN
  IF NEW.track_type <> OLD.track_type THEN
    RAISE EXCEPTION 'track_type of track % is immutable', OLD.id USING ERRCODE = 'check_violation';
  END IF;
  RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS tracks_type_immutable ON tracks;
CREATE TRIGGER tracks_type_immutable
  BEFORE UPDATE OF track_type ON tracks
  FOR EACH ROW EXECUTE FUNCTION tracks_forbid_type_change();

CREATE TABLE IF NOT EXISTS topics (
  id           UUID PRIMARY KEY,
  exam_id      UUID NOT NULL REFERENCES exams(id),
  subject_id   UUID NOT NULL REFERENCES subjects(id),
  name         TEXT NOT NULL,
  display_name TEXT NOT NULL DEFAULT '',
  description  TEXT NOT NULL DEFAULT '',
  created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  UNIQUE (exam_id, subject_id, name)
);

CREATE TABLE IF NOT EXISTS content_items (
  id                UUID PRIMARY KEY,
  kind              TEXT NOT NULL CHECK (kind IN ('content', 'question')),
  exam_id           UUID NOT NULL REFERENCES exams(id),
  subject_id        UUID NOT NULL REFERENCES subjects(id),
  track_id          UUID NOT NULL REFERENCES tracks(id),
  sub_category_id   UUID NOT NULL REFERENCES sub_categories(id),
  topic_id          UUID REFERENCES topics(id),
  exam_name         TEXT NOT NULL,
  subject_name      TEXT NOT NULL,
  track_name        TEXT NOT NULL,
  sub_category_name TEXT NOT NULL,
  name              TEXT NOT NULL,
  display_name      TEXT NOT NULL DEFAULT '',
  description       TEXT NOT NULL DEFAULT '',
  order_index       BIGINT NOT NULL,
  period_key        TEXT NOT NULL,
  metadata          JSONB NOT NULL DEFAULT '{}'::jsonb,
  year              INTEGER,
  topic             TEXT,
  question          TEXT,
  options           JSONB,
  answer            TEXT,
  explanation       TEXT,
  is_active         BOOLEAN NOT NULL DEFAULT TRUE,
  created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS content_items_active_name
  ON content_items (exam_id, subject_id, track_id, sub_category_id, name)
  WHERE is_active;

CREATE INDEX IF NOT EXISTS content_items_active_period
  ON content_items (exam_id, subject_id, track_id, sub_category_id, period_key)
  WHERE is_active;

CREATE INDEX IF NOT EXISTS content_items_active_topic
  ON content_items (exam_id, subject_id, topic_id)
  WHERE is_active;

CREATE TABLE IF NOT EXISTS topic_assignments (
  id              UUID PRIMARY KEY,
  exam_id         UUID NOT NULL REFERENCES exams(id),
  subject_id      UUID NOT NULL REFERENCES subjects(id),
  track_id        UUID NOT NULL REFERENCES tracks(id),
  sub_category_id UUID NOT NULL REFERENCES sub_categories(id),
  time_period     TEXT NOT NULL CHECK (time_period IN ('week', 'day', 'semester')),
  period_value    TEXT NOT NULL,
  topic_id        UUID NOT NULL REFERENCES topics(id),
  order_index     INTEGER NOT NULL,
  is_active       BOOLEAN NOT NULL DEFAULT TRUE,
  created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS topic_assignments_active_topic
  ON topic_assignments (exam_id, subject_id, track_id, sub_category_id, time_period, period_value, topic_id)
  WHERE is_active;
`
