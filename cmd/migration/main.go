package main

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gitlab.com/dirk.krummacker/contacts-service/internal/config"
	"gitlab.com/dirk.krummacker/contacts-service/internal/logger"
	"gitlab.com/dirk.krummacker/contacts-service/internal/model"
	"gitlab.com/dirk.krummacker/contacts-service/internal/store"
	"gitlab.com/dirk.krummacker/contacts-service/internal/validation"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed string

// Usage example on the command line:
// > DBHOST=localhost:3306 DBUSER=dirk DBPWD=bullo92 go run ./cmd/migration up
// > DBHOST=localhost:3306 DBUSER=dirk DBPWD=bullo92 go run ./cmd/migration up --file=../../scripts/database.sql
// > DBDRIVER=sqlite DBNAME=contacts go run ./cmd/migration seed
func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "migration",
		Short:        "Prepares the database of the contacts service",
		SilenceUsage: true,
	}

	var schemaFile string
	up := &cobra.Command{
		Use:   "up",
		Short: "Creates the contacts table",
		Long:  "Creates the contacts table with the built-in schema of the configured driver, or executes the given SQL file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, db *sqlx.DB, cfg *config.Config, log *zap.Logger) error {
				if err := migrate(ctx, db, cfg.DBDriver, schemaFile); err != nil {
					return err
				}
				log.Info("schema applied", zap.String("driver", cfg.DBDriver), zap.String("file", schemaFile))
				return nil
			})
		},
	}
	up.Flags().StringVar(&schemaFile, "file", "", "the sql file to execute instead of the built-in schema")

	var seedFile string
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Adds the initial contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, db *sqlx.DB, cfg *config.Config, log *zap.Logger) error {
				created, err := seedContacts(ctx, db, cfg.DBDriver, seedFile)
				if err != nil {
					return err
				}
				log.Info("contacts seeded", zap.Int("created", created))
				return nil
			})
		},
	}
	seed.Flags().StringVar(&seedFile, "file", "", "the YAML file with the contacts instead of the built-in ones")

	root.AddCommand(up, seed)
	return root
}

// withDatabase loads the configuration, connects to the database and runs fn.
func withDatabase(ctx context.Context, fn func(context.Context, *sqlx.DB, *config.Config, *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := store.Open(ctx, cfg)
	if err != nil {
		log.Error("could not connect to the database", zap.Error(err))
		return err
	}
	defer db.Close()
	return fn(ctx, db, cfg, log)
}

// migrate executes the schema file, or the built-in schema when file is empty.
func migrate(ctx context.Context, db *sqlx.DB, dialect string, file string) error {
	if file == "" {
		return store.Migrate(ctx, db, dialect)
	}
	readFile, err := os.Open(file) // nosemgrep
	if err != nil {
		return err
	}
	defer readFile.Close()
	return store.ExecScript(ctx, db, readFile)
}

// seedContacts adds the contacts of the seed file, or the built-in ones when file is empty.
func seedContacts(ctx context.Context, db *sqlx.DB, dialect string, file string) (int, error) {
	var source io.Reader = strings.NewReader(defaultSeed)
	if file != "" {
		readFile, err := os.Open(file) // nosemgrep
		if err != nil {
			return 0, err
		}
		defer readFile.Close()
		source = readFile
	}
	contacts, err := parseSeed(source)
	if err != nil {
		return 0, err
	}

	s, err := store.New(db, dialect)
	if err != nil {
		return 0, err
	}
	defer s.Close()
	return s.Seed(ctx, contacts)
}

// parseSeed reads the contacts of a seed file. Every contact must pass the same validation as a
// contact submitted through the form.
func parseSeed(source io.Reader) ([]model.Fields, error) {
	var file struct {
		Contacts []validation.StoreContactRequest `yaml:"contacts"`
	}
	if err := yaml.NewDecoder(source).Decode(&file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	contacts := make([]model.Fields, 0, len(file.Contacts))
	for i := range file.Contacts {
		request := &file.Contacts[i]
		if err := request.Validate(); err != nil {
			return nil, fmt.Errorf("seed contact %d: %w", i+1, err)
		}
		contacts = append(contacts, request.Fields())
	}
	return contacts, nil
}
