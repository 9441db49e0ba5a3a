package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/contacts-service/internal/config"
	"gitlab.com/dirk.krummacker/contacts-service/internal/model"
	"modernc.org/sqlite"
)

// PerPage is the number of contacts on one page of a listing.
const PerPage = 10

// ErrNotFound is returned when no live contact exists for an id.
var ErrNotFound = errors.New("contact not found")

// liveOnly is the predicate that hides soft-deleted contacts. Every read goes through it.
const liveOnly = "deleted_at IS NULL"

// searchColumns are the columns that the search filter is matched against.
var searchColumns = []string{"name", "email", "company", "phone"}

// unicodeLower is the SQLite function that lowercases all of Unicode. The built-in LOWER only
// folds ASCII letters.
const unicodeLower = "unicode_lower"

func init() {
	// modernc.org/sqlite registers itself as "sqlite", which sqlx does not know yet.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
	if err := sqlite.RegisterDeterministicScalarFunction(unicodeLower, 1, lowerValue); err != nil {
		panic(err)
	}
}

// lowerValue implements unicode_lower. NULL stays NULL.
func lowerValue(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch value := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(value), nil
	case []byte:
		return strings.ToLower(string(value)), nil
	default:
		return strings.ToLower(fmt.Sprint(value)), nil
	}
}

// driverNames maps the configured driver to the name the database/sql driver registered.
var driverNames = map[string]string{
	config.DriverMySQL:    "mysql",
	config.DriverPostgres: "pgx",
	config.DriverSQLite:   "sqlite",
}

// Page is one page of a contact listing.
type Page struct {
	Contacts []model.Contact
	Page     int
	PerPage  int
	Total    int
	LastPage int
}

// Store reads and writes contacts. It is safe for concurrent use; consistency between concurrent
// writers is left to the database.
type Store struct {
	db      *sqlx.DB
	dialect string
	now     func() time.Time

	// insert is a prepared statement for creating a contact.
	insert *sqlx.NamedStmt
	// selectWhereId is a prepared statement for selecting a live contact with a given id.
	selectWhereId *sqlx.Stmt
	// softDeleteWhereId is a prepared statement for marking a live contact as deleted.
	softDeleteWhereId *sqlx.Stmt
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces the clock used for the created_at, updated_at and deleted_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open connects to the database described by the configuration and verifies the connection.
func Open(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	driverName, ok := driverNames[cfg.DBDriver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
	db, err := sqlx.Open(driverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.DBDriver == config.DriverSQLite {
		// Every connection to an in-memory database sees its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// New wraps the database handle and prepares all statements. The dialect is one of the driver
// names of the config package. The database can be a real database for production use or a mock
// database within unit tests.
func New(db *sqlx.DB, dialect string, opts ...Option) (*Store, error) {
	s := &Store{
		db:      db,
		dialect: dialect,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Prepared statements offer a significant speed increase if executed many times.
	var err error
	insertSQL := `
		INSERT INTO contacts (name, email, phone, company, address, notes, status, created_at, updated_at)
		VALUES (:name, :email, :phone, :company, :address, :notes, :status, :created_at, :updated_at)`
	if dialect == config.DriverPostgres {
		insertSQL += " RETURNING id"
	}
	s.insert, err = db.PrepareNamed(insertSQL)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	s.selectWhereId, err = db.Preparex(db.Rebind(`
		SELECT * FROM contacts WHERE id = ? AND ` + liveOnly))
	if err != nil {
		return nil, fmt.Errorf("prepare select: %w", err)
	}
	s.softDeleteWhereId, err = db.Preparex(db.Rebind(`
		UPDATE contacts SET deleted_at = ? WHERE id = ? AND ` + liveOnly))
	if err != nil {
		return nil, fmt.Errorf("prepare soft delete: %w", err)
	}
	return s, nil
}

// Close releases the prepared statements. The database handle stays open.
func (s *Store) Close() error {
	return errors.Join(s.insert.Close(), s.selectWhereId.Close(), s.softDeleteWhereId.Close())
}

// Ping verifies that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// timestamp returns the current time as it is stored in the database.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// List returns one page of live contacts, newest first. Contacts created at the same instant are
// ordered by descending id. A non-empty filter keeps the contacts where it appears, ignoring case,
// in the name, email, company or phone. Pages below 1 are treated as page 1.
func (s *Store) List(ctx context.Context, filter string, page int) (Page, error) {
	if page < 1 {
		page = 1
	}
	where := liveOnly
	var args []interface{}
	if filter != "" {
		pattern := "%" + escapeLike(strings.ToLower(filter)) + "%"
		lower := "LOWER"
		if s.dialect == config.DriverSQLite {
			lower = unicodeLower
		}
		conditions := make([]string, 0, len(searchColumns))
		for _, column := range searchColumns {
			conditions = append(conditions, lower+"("+column+") LIKE ? ESCAPE '!'")
			args = append(args, pattern)
		}
		where += " AND (" + strings.Join(conditions, " OR ") + ")"
	}

	var total int
	countSQL := s.db.Rebind("SELECT COUNT(*) FROM contacts WHERE " + where)
	if err := s.db.GetContext(ctx, &total, countSQL, args...); err != nil {
		return Page{}, fmt.Errorf("count contacts: %w", err)
	}

	contacts := []model.Contact{}
	selectSQL := s.db.Rebind(`
		SELECT *
		FROM contacts
		WHERE ` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ?
		OFFSET ?`)
	args = append(args, PerPage, (page-1)*PerPage)
	if err := s.db.SelectContext(ctx, &contacts, selectSQL, args...); err != nil {
		return Page{}, fmt.Errorf("select contacts: %w", err)
	}

	lastPage := (total + PerPage - 1) / PerPage
	if lastPage < 1 {
		lastPage = 1
	}
	return Page{Contacts: contacts, Page: page, PerPage: PerPage, Total: total, LastPage: lastPage}, nil
}

// escapeLike escapes the LIKE wildcards so that the text only matches itself. '!' is used as the
// escape character because the backslash is treated differently by the supported databases.
func escapeLike(text string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(text)
}

// Get returns the live contact with the given id.
func (s *Store) Get(ctx context.Context, id int64) (model.Contact, error) {
	var contact model.Contact
	err := s.selectWhereId.GetContext(ctx, &contact, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, ErrNotFound
	}
	if err != nil {
		return model.Contact{}, fmt.Errorf("select contact %d: %w", id, err)
	}
	return contact, nil
}

// Create inserts a contact with the given fields and responds with the full contact including the
// newly assigned id. The status of a new contact is always active.
func (s *Store) Create(ctx context.Context, fields model.Fields) (model.Contact, error) {
	now := s.timestamp()
	contact := model.Contact{
		Name:      deref(fields.Name),
		Email:     deref(fields.Email),
		Phone:     nullable(fields.Phone),
		Company:   nullable(fields.Company),
		Address:   nullable(fields.Address),
		Notes:     nullable(fields.Notes),
		Status:    model.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if s.dialect == config.DriverPostgres {
		if err := s.insert.QueryRowxContext(ctx, &contact).Scan(&contact.Id); err != nil {
			return model.Contact{}, fmt.Errorf("insert contact: %w", err)
		}
		return contact, nil
	}
	result, err := s.insert.ExecContext(ctx, &contact)
	if err != nil {
		return model.Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	contact.Id, err = result.LastInsertId()
	if err != nil {
		return model.Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	return contact, nil
}

// Update overwrites the supplied fields (and only those) of a live contact, refreshes its
// updated_at timestamp and responds with the new version of the contact. An empty set of fields
// only refreshes the timestamp.
func (s *Store) Update(ctx context.Context, id int64, fields model.Fields) (model.Contact, error) {
	var sets []string
	var args []interface{}
	set := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if fields.Name != nil {
		set("name", *fields.Name)
	}
	if fields.Email != nil {
		set("email", *fields.Email)
	}
	if fields.Phone != nil {
		set("phone", nullable(fields.Phone))
	}
	if fields.Company != nil {
		set("company", nullable(fields.Company))
	}
	if fields.Address != nil {
		set("address", nullable(fields.Address))
	}
	if fields.Notes != nil {
		set("notes", nullable(fields.Notes))
	}
	set("updated_at", s.timestamp())
	args = append(args, id)

	query := s.db.Rebind("UPDATE contacts SET " + strings.Join(sets, ", ") + " WHERE id = ? AND " + liveOnly)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return model.Contact{}, fmt.Errorf("update contact %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return model.Contact{}, fmt.Errorf("update contact %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return model.Contact{}, ErrNotFound
	}

	// Respond with the full contact after the update.
	return s.Get(ctx, id)
}

// SoftDelete marks a live contact as deleted. The row stays in the table with all its other
// values unchanged. Deleting a contact that is already deleted returns ErrNotFound.
func (s *Store) SoftDelete(ctx context.Context, id int64) error {
	result, err := s.softDeleteWhereId.ExecContext(ctx, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("delete contact %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete contact %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// deref returns the string a pointer points to, or the empty string.
func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// nullable maps both a missing value and an empty string to NULL.
func nullable(value *string) *string {
	if value == nil || *value == "" {
		return nil
	}
	return value
}
