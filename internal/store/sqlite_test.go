package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/contacts-service/internal/config"
	"gitlab.com/dirk.krummacker/contacts-service/internal/model"
)

// tickingClock advances by one second on every reading so that creation order is visible in the
// timestamps.
type tickingClock struct {
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

// sameInstant compares timestamps regardless of their location.
var sameInstant = cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })

// newSQLiteStore returns a store on a fresh in-memory SQLite database with the schema applied.
func newSQLiteStore(t *testing.T, opts ...Option) (*Store, *sqlx.DB) {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(context.Background(), db, config.DriverSQLite))
	s, err := New(db, config.DriverSQLite, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, db
}

func mustCreate(t *testing.T, s *Store, name, email string, more ...func(*model.Fields)) model.Contact {
	t.Helper()
	fields := model.Fields{Name: ptr(name), Email: ptr(email)}
	for _, m := range more {
		m(&fields)
	}
	contact, err := s.Create(context.Background(), fields)
	require.NoError(t, err)
	return contact
}

// TestSQLiteCreateThenGet verifies that a created contact is read back with the submitted values
// and the status active.
func TestSQLiteCreateThenGet(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, model.Fields{
		Name:    ptr("John Doe"),
		Email:   ptr("john@example.com"),
		Phone:   ptr("+1234567890"),
		Company: ptr("Acme Corp"),
		Address: ptr("123 Main St"),
		Notes:   ptr("Important client"),
	})
	require.NoError(t, err)
	assert.NotZero(t, created.Id)

	got, err := s.Get(ctx, created.Id)
	require.NoError(t, err)
	if diff := cmp.Diff(created, got, sameInstant); diff != "" {
		t.Errorf("contact differs after reading it back (-created +got):\n%s", diff)
	}
	assert.Equal(t, model.StatusActive, got.Status)
	assert.Equal(t, "Acme Corp", *got.Company)
	assert.Nil(t, got.DeletedAt)
}

// TestSQLiteSoftDelete verifies that a deleted contact disappears from all reads but stays in the
// table with deleted_at set.
func TestSQLiteSoftDelete(t *testing.T) {
	s, db := newSQLiteStore(t)
	ctx := context.Background()
	contact := mustCreate(t, s, "Erika Mustermann", "erika@example.com")

	require.NoError(t, s.SoftDelete(ctx, contact.Id))

	_, err := s.Get(ctx, contact.Id)
	assert.ErrorIs(t, err, ErrNotFound)
	page, err := s.List(ctx, "", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	page, err = s.List(ctx, "Erika", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)

	var stored model.Contact
	require.NoError(t, db.Get(&stored, "SELECT * FROM contacts WHERE id = ?", contact.Id))
	assert.Equal(t, "Erika Mustermann", stored.Name)
	require.NotNil(t, stored.DeletedAt)
	assert.True(t, stored.UpdatedAt.Equal(contact.UpdatedAt), "soft delete must not touch updated_at")

	assert.ErrorIs(t, s.SoftDelete(ctx, contact.Id), ErrNotFound)
}

// TestSQLiteUpdateAfterDelete verifies that a deleted contact cannot be updated.
func TestSQLiteUpdateAfterDelete(t *testing.T) {
	s, db := newSQLiteStore(t)
	ctx := context.Background()
	contact := mustCreate(t, s, "Rudi Völler", "rudi@example.com")
	require.NoError(t, s.SoftDelete(ctx, contact.Id))

	_, err := s.Update(ctx, contact.Id, model.Fields{Name: ptr("Someone Else")})
	assert.ErrorIs(t, err, ErrNotFound)

	var name string
	require.NoError(t, db.Get(&name, "SELECT name FROM contacts WHERE id = ?", contact.Id))
	assert.Equal(t, "Rudi Völler", name)
}

// TestSQLiteUpdate verifies partial updates and that an empty update refreshes updated_at only.
func TestSQLiteUpdate(t *testing.T) {
	clock := &tickingClock{now: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)}
	s, _ := newSQLiteStore(t, WithClock(clock.Now))
	ctx := context.Background()
	contact := mustCreate(t, s, "Rudi Völler", "rudi@example.com", func(f *model.Fields) {
		f.Phone = ptr("+49 1234567890")
	})

	updated, err := s.Update(ctx, contact.Id, model.Fields{Company: ptr("DFB"), Phone: ptr("")})
	require.NoError(t, err)
	assert.Equal(t, "Rudi Völler", updated.Name)
	assert.Equal(t, "DFB", *updated.Company)
	assert.Nil(t, updated.Phone)
	assert.True(t, updated.CreatedAt.Equal(contact.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(contact.UpdatedAt))

	touched, err := s.Update(ctx, contact.Id, model.Fields{})
	require.NoError(t, err)
	assert.True(t, touched.UpdatedAt.After(updated.UpdatedAt))
	touched.UpdatedAt = updated.UpdatedAt
	if diff := cmp.Diff(updated, touched, sameInstant); diff != "" {
		t.Errorf("empty update changed data fields (-before +after):\n%s", diff)
	}
}

// TestSQLiteSearch verifies the John/Jane scenario and that every searchable column is matched
// without regard to case.
func TestSQLiteSearch(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()
	john := mustCreate(t, s, "John Doe", "john@example.com")
	mustCreate(t, s, "Jane Smith", "jane@example.com")
	acme := mustCreate(t, s, "Max Power", "max@example.com", func(f *model.Fields) {
		f.Company = ptr("ACME Corp")
		f.Phone = ptr("+49 555 0100")
	})
	mustCreate(t, s, "Percent", "percent@example.com", func(f *model.Fields) {
		f.Notes = ptr("john is mentioned in the notes only")
	})

	ids := func(filter string) []int64 {
		page, err := s.List(ctx, filter, 1)
		require.NoError(t, err)
		result := []int64{}
		for _, contact := range page.Contacts {
			result = append(result, contact.Id)
		}
		assert.Equal(t, len(result), page.Total, "total for filter %q", filter)
		return result
	}

	assert.Equal(t, []int64{john.Id}, ids("John"))
	assert.Equal(t, []int64{john.Id}, ids("jOHN dOE"))
	assert.Len(t, ids(""), 4)
	assert.Equal(t, []int64{acme.Id}, ids("acme"))
	assert.Equal(t, []int64{acme.Id}, ids("555 01"))
	assert.Equal(t, []int64{acme.Id}, ids("MAX@"))
	assert.Empty(t, ids("%"))
	assert.Empty(t, ids("_"))
	assert.Empty(t, ids("nobody"))
}

// TestSQLiteSearchUnicode verifies that letters outside ASCII are matched without regard to case,
// whichever case is stored.
func TestSQLiteSearchUnicode(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()
	emile := mustCreate(t, s, "Émile Zola", "emile@example.com")
	juergen := mustCreate(t, s, "Jürgen Müller", "juergen@example.com", func(f *model.Fields) {
		f.Company = ptr("ÖKO GmbH")
	})

	for filter, expected := range map[string]int64{
		"Émile":  emile.Id,
		"émile":  emile.Id,
		"ÉMILE":  emile.Id,
		"MÜLLER": juergen.Id,
		"öko":    juergen.Id,
	} {
		page, err := s.List(ctx, filter, 1)
		require.NoError(t, err)
		require.Equal(t, 1, page.Total, "total for filter %q", filter)
		assert.Equal(t, expected, page.Contacts[0].Id, "filter %q", filter)
	}
}

// TestSQLitePagination verifies page sizes, totals and the newest-first order across pages.
func TestSQLitePagination(t *testing.T) {
	clock := &tickingClock{now: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)}
	s, _ := newSQLiteStore(t, WithClock(clock.Now))
	ctx := context.Background()
	for i := 1; i <= 25; i++ {
		mustCreate(t, s, fmt.Sprintf("Contact %02d", i), fmt.Sprintf("c%02d@example.com", i))
	}

	expectedSizes := map[int]int{1: 10, 2: 10, 3: 5, 4: 0}
	var names []string
	for page := 1; page <= 4; page++ {
		result, err := s.List(ctx, "", page)
		require.NoError(t, err)
		assert.Equal(t, 25, result.Total)
		assert.Equal(t, 3, result.LastPage)
		assert.Len(t, result.Contacts, expectedSizes[page], "page %d", page)
		for _, contact := range result.Contacts {
			names = append(names, contact.Name)
		}
	}
	require.Len(t, names, 25)
	assert.Equal(t, "Contact 25", names[0])
	assert.Equal(t, "Contact 01", names[24])
}

// TestSQLiteTieBreak verifies that contacts created at the same instant are ordered by descending
// id.
func TestSQLiteTieBreak(t *testing.T) {
	instant := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	s, _ := newSQLiteStore(t, WithClock(func() time.Time { return instant }))
	ctx := context.Background()
	var expected []int64
	for i := 0; i < 12; i++ {
		contact := mustCreate(t, s, "Twin", "twin@example.com")
		expected = append([]int64{contact.Id}, expected...)
	}

	var got []int64
	for page := 1; page <= 2; page++ {
		result, err := s.List(ctx, "twin", page)
		require.NoError(t, err)
		for _, contact := range result.Contacts {
			got = append(got, contact.Id)
		}
	}
	assert.Equal(t, expected, got)
}

// TestSQLiteSeed verifies that seeding skips contacts whose name already exists.
func TestSQLiteSeed(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()
	mustCreate(t, s, "Dirk Krummacker", "dirk@example.com")

	created, err := s.Seed(ctx, []model.Fields{
		{Name: ptr("Dirk Krummacker"), Email: ptr("dirk@example.com")},
		{Name: ptr("Adam Krummacker"), Email: ptr("adam@example.com")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	created, err = s.Seed(ctx, []model.Fields{{Name: ptr("Adam Krummacker"), Email: ptr("adam@example.com")}})
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}

// TestExecScriptUnterminated verifies that a trailing statement without ';' is reported.
func TestExecScriptUnterminated(t *testing.T) {
	_, db := newSQLiteStore(t)
	err := ExecScript(context.Background(), db, strings.NewReader("-- comment\nSELECT 1;\nSELECT 2"))
	assert.ErrorContains(t, err, "unterminated")
}

// TestSchemaUnknownDialect verifies that there is no schema for unsupported databases.
func TestSchemaUnknownDialect(t *testing.T) {
	_, err := Schema("oracle")
	assert.Error(t, err)
}
