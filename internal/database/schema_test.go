package database

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ntrli-bot/internal/config"
)

const migrationsDir = "../../migrations"

func TestMigrationFilesExist(t *testing.T) {
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		t.Fatal("Migrations directory does not exist")
	}

	expectedMigrations := []string{
		"00001_create_subscriptions_table.sql",
	}

	for _, migration := range expectedMigrations {
		path := filepath.Join(migrationsDir, migration)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("Migration file %s does not exist", migration)
		}
	}
}

func TestMigrationFilesHaveUpAndDown(t *testing.T) {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("Failed to read migrations directory: %v", err)
	}

	sqlFileCount := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		sqlFileCount++
		content, err := os.ReadFile(filepath.Join(migrationsDir, file.Name()))
		if err != nil {
			t.Errorf("Failed to read migration file %s: %v", file.Name(), err)
			continue
		}

		contentStr := string(content)

		for _, directive := range []string{
			"-- +goose Up",
			"-- +goose Down",
			"-- +goose StatementBegin",
			"-- +goose StatementEnd",
		} {
			if !strings.Contains(contentStr, directive) {
				t.Errorf("Migration file %s missing '%s' directive", file.Name(), directive)
			}
		}
	}

	if sqlFileCount == 0 {
		t.Error("No SQL migration files found")
	}
}

func TestSubscriptionsTableHasRequiredColumns(t *testing.T) {
	path := filepath.Join(migrationsDir, "00001_create_subscriptions_table.sql")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read subscriptions migration: %v", err)
	}

	contentStr := string(content)
	requiredColumns := []string{
		"CREATE TABLE IF NOT EXISTS subscriptions",
		"user_id BIGINT PRIMARY KEY",
		"tier VARCHAR",
		"status VARCHAR",
		"started_at TIMESTAMPTZ",
		"renews_at TIMESTAMPTZ",
		"updated_at TIMESTAMPTZ",
		"DROP TABLE IF EXISTS subscriptions",
	}

	for _, column := range requiredColumns {
		if !strings.Contains(contentStr, column) {
			t.Errorf("Subscriptions migration missing: %s", column)
		}
	}

	for _, value := range []string{"standard", "advanced", "active", "paused", "cancelled"} {
		if !strings.Contains(contentStr, "'"+value+"'") {
			t.Errorf("Subscriptions check constraint missing value: %s", value)
		}
	}
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     "5432",
		User:     "bot",
		Password: "p@ss word",
		Database: "ntrli",
		Schema:   "public",
		SSLMode:  "disable",
	})

	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("DSN is not a valid URL: %v", err)
	}
	if u.Host != "db:5432" || u.Path != "/ntrli" {
		t.Errorf("unexpected host or path in %s", dsn)
	}
	if pwd, _ := u.User.Password(); pwd != "p@ss word" {
		t.Errorf("password not preserved, got %q", pwd)
	}
	if u.Query().Get("sslmode") != "disable" || u.Query().Get("search_path") != "public" {
		t.Errorf("unexpected query in %s", dsn)
	}
}
