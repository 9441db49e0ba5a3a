package store

import (
	"bufio"
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/contacts-service/internal/model"
)

//go:embed schema/*.sql
var schemas embed.FS

// Schema returns the DDL script that creates the contacts table for the dialect.
func Schema(dialect string) (io.ReadCloser, error) {
	file, err := schemas.Open("schema/" + dialect + ".sql")
	if err != nil {
		return nil, fmt.Errorf("no schema for dialect %q: %w", dialect, err)
	}
	return file, nil
}

// Migrate creates the contacts table if it does not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB, dialect string) error {
	script, err := Schema(dialect)
	if err != nil {
		return err
	}
	defer script.Close()
	return ExecScript(ctx, db, script)
}

// ExecScript executes an SQL script statement by statement. A statement ends on the line that
// contains a ';'. Lines starting with "--" are ignored.
func ExecScript(ctx context.Context, db *sqlx.DB, script io.Reader) error {
	scanner := bufio.NewScanner(script)
	scanner.Split(bufio.ScanLines)
	builder := strings.Builder{}
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		builder.WriteString(line)
		builder.WriteString(" ")
		if strings.Contains(line, ";") {
			if _, err := db.ExecContext(ctx, builder.String()); err != nil {
				return fmt.Errorf("execute %q: %w", strings.TrimSpace(builder.String()), err)
			}
			builder = strings.Builder{}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(builder.String()) != "" {
		return errors.New("script ends with an unterminated statement")
	}
	return nil
}

// Seed creates the given contacts unless a live contact with the same name already exists. It
// returns the number of contacts created.
func (s *Store) Seed(ctx context.Context, contacts []model.Fields) (int, error) {
	created := 0
	for _, fields := range contacts {
		var count int
		query := s.db.Rebind("SELECT COUNT(*) FROM contacts WHERE name = ? AND " + liveOnly)
		if err := s.db.GetContext(ctx, &count, query, deref(fields.Name)); err != nil {
			return created, fmt.Errorf("look up contact %q: %w", deref(fields.Name), err)
		}
		if count > 0 {
			continue
		}
		if _, err := s.Create(ctx, fields); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
