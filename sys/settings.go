package sys

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	_ "github.com/mattn/go-sqlite3"
)

var DB *sql.DB

// InitDatabase opens the sqlite store holding per-guild playback
// settings and applies the WAL pragmas.
func InitDatabase(ctx context.Context, dataSourceName string) error {
	var err error
	DB, err = sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return err
	}

	DB.SetMaxOpenConns(5)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA cache_size=-2000;",
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, p := range pragmas {
		if _, err := DB.ExecContext(initCtx, p); err != nil {
			return fmt.Errorf("failed to set pragma %s: %w", p, err)
		}
	}

	tx, err := DB.BeginTx(initCtx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tableQueries := []string{
		`CREATE TABLE IF NOT EXISTS guild_settings (
			guild_id TEXT PRIMARY KEY,
			volume INTEGER DEFAULT 100,
			repeat_mode INTEGER DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, q := range tableQueries {
		if _, err := tx.ExecContext(initCtx, q); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	LogDatabase("Database initialized successfully")
	return nil
}

func CloseDatabase() {
	if DB != nil {
		DB.Close()
	}
}

// GuildSettings are the playback knobs persisted across restarts.
type GuildSettings struct {
	GuildID    snowflake.ID
	Volume     int
	RepeatMode int
	UpdatedAt  time.Time
}

// GetGuildSettings returns the stored settings, or the defaults when the
// guild has none.
func GetGuildSettings(ctx context.Context, guildID snowflake.ID) (*GuildSettings, error) {
	s := &GuildSettings{GuildID: guildID, Volume: 100}
	err := DB.QueryRowContext(ctx, `
		SELECT volume, repeat_mode, updated_at FROM guild_settings WHERE guild_id = ?
	`, guildID.String()).Scan(&s.Volume, &s.RepeatMode, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SaveGuildSettings upserts the guild's playback settings.
func SaveGuildSettings(ctx context.Context, s *GuildSettings) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, volume, repeat_mode) VALUES (?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			volume = excluded.volume,
			repeat_mode = excluded.repeat_mode,
			updated_at = CURRENT_TIMESTAMP
	`, s.GuildID.String(), s.Volume, s.RepeatMode)
	return err
}
