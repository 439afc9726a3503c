package repository

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/blitznow/ridertraining/internal/database"
)

// setupTestDB はマイグレーション適用済みのテスト用データベースを返す。
// TEST_DATABASE_URL 未設定または接続できない場合はスキップする。
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}

	reset := `
		DROP TABLE IF EXISTS day_hub_tutorials CASCADE;
		DROP TABLE IF EXISTS tutorials CASCADE;
		DROP TABLE IF EXISTS training_progress CASCADE;
		DROP TABLE IF EXISTS schema_migrations CASCADE;
	`
	if _, err := db.Exec(reset); err != nil {
		db.Close()
		t.Fatalf("クリーンアップに失敗: %v", err)
	}
	if _, err := database.RunMigrations(dbURL); err != nil {
		db.Close()
		t.Fatalf("マイグレーションに失敗: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// setupRiderSchema はライダーDBと同じ形のrider/node/tourテーブルを
// テスト専用スキーマに作成する。
func setupRiderSchema(t *testing.T, db *sql.DB, schema string) {
	t.Helper()

	q := database.QuoteSchema(schema)
	stmts := []string{
		"DROP SCHEMA IF EXISTS " + q + " CASCADE",
		"CREATE SCHEMA " + q,
		"CREATE TABLE " + q + ".node (node_id BIGINT PRIMARY KEY, node_type TEXT)",
		"CREATE TABLE " + q + ".rider (rider_id BIGINT PRIMARY KEY, node_node_id BIGINT NOT NULL, created_at TIMESTAMPTZ)",
		"CREATE TABLE " + q + ".tour (tour_id BIGSERIAL PRIMARY KEY, node_id BIGINT NOT NULL, tour_date TIMESTAMPTZ NOT NULL)",
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("ライダースキーマの作成に失敗: %v", err)
		}
	}
	t.Cleanup(func() {
		db.Exec("DROP SCHEMA IF EXISTS " + q + " CASCADE")
	})
}
