package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"policyforge/internal/config"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}

	prefix := config.TablePrefix(env)

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = db.Close() }() // Error ignored: script exiting

	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]sdrafts (
			id UUID PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			modified_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			client_name TEXT NOT NULL DEFAULT '',
			client_country TEXT NOT NULL DEFAULT '',
			client_city TEXT NOT NULL DEFAULT '',
			client_industry TEXT NOT NULL DEFAULT '',
			function TEXT NOT NULL DEFAULT '',
			most_similar_policy_id TEXT NOT NULL DEFAULT '',
			toc_source TEXT NOT NULL DEFAULT '',
			client_specific_requests TEXT NOT NULL DEFAULT '',
			sector_specific_comments TEXT NOT NULL DEFAULT '',
			regulations TEXT NOT NULL DEFAULT '',
			detail_level INT NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS %[1]stopics (
			id UUID PRIMARY KEY,
			draft_id UUID NOT NULL REFERENCES %[1]sdrafts(id) ON DELETE CASCADE,
			title VARCHAR(255) NOT NULL,
			sort_order INT NOT NULL,
			source_topic_id TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			conversation_history JSONB NOT NULL DEFAULT '[]'
		);

		CREATE TABLE IF NOT EXISTS %[1]ssubtopics (
			id UUID PRIMARY KEY,
			topic_id UUID NOT NULL REFERENCES %[1]stopics(id) ON DELETE CASCADE,
			title VARCHAR(255) NOT NULL,
			sort_order INT NOT NULL,
			source_subtopic_id TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			conversation_history JSONB NOT NULL DEFAULT '[]'
		);

		CREATE INDEX IF NOT EXISTS %[1]stopics_draft_idx ON %[1]stopics(draft_id, sort_order);
		CREATE INDEX IF NOT EXISTS %[1]ssubtopics_topic_idx ON %[1]ssubtopics(topic_id, sort_order);
	`, prefix)

	if _, err := db.Exec(createSQL); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	fmt.Printf("All tables created successfully (prefix: %s)\n", prefix)
}
