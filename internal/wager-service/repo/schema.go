package repo

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema cria as tabelas do ledger caso ainda não existam
// Idempotente; executado no startup do serviço
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			balance BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS wagers (
			id BIGSERIAL PRIMARY KEY,
			stake BIGINT NOT NULL,
			closed BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS user_wagers (
			id BIGSERIAL PRIMARY KEY,
			wager_id BIGINT NOT NULL REFERENCES wagers(id),
			user_id BIGINT NOT NULL REFERENCES users(id),
			UNIQUE (wager_id, user_id)
		)`,
	}

	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
