package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/amankumarsingh77/directory_pipeline/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewPostgresStoreFromDB(sqlx.NewDb(mockDB, "postgres")), mock
}

func TestGetOrCreateEntity_Existing(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, name FROM tags WHERE name").
		WithArgs("open_source").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(3, "open_source"))

	e, err := s.GetOrCreateEntity(context.Background(), models.EntityTag, "open_source")
	require.NoError(t, err)
	assert.Equal(t, models.Entity{ID: 3, Name: "open_source"}, e)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateEntity_Creates(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, name FROM labels WHERE name").
		WithArgs("cli_tools").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	mock.ExpectQuery("INSERT INTO labels").
		WithArgs("cli_tools").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	e, err := s.GetOrCreateEntity(context.Background(), models.EntityLabel, "cli_tools")
	require.NoError(t, err)
	assert.Equal(t, int64(11), e.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateEntity_RaceConverges(t *testing.T) {
	cases := map[string]func(*sqlmock.ExpectedQuery){
		"do nothing returns no row": func(q *sqlmock.ExpectedQuery) {
			q.WillReturnRows(sqlmock.NewRows([]string{"id"}))
		},
		"lib/pq unique violation": func(q *sqlmock.ExpectedQuery) {
			q.WillReturnError(&pq.Error{Code: "23505"})
		},
		"pgx unique violation": func(q *sqlmock.ExpectedQuery) {
			q.WillReturnError(&pgconn.PgError{Code: "23505"})
		},
	}
	for name, insertResult := range cases {
		t.Run(name, func(t *testing.T) {
			s, mock := newMockStore(t)
			mock.ExpectQuery("SELECT id, name FROM categories WHERE name").
				WithArgs("dev").
				WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
			insertResult(mock.ExpectQuery("INSERT INTO categories").WithArgs("dev"))
			mock.ExpectQuery("SELECT id, name FROM categories WHERE name").
				WithArgs("dev").
				WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(5, "dev"))

			e, err := s.GetOrCreateEntity(context.Background(), models.EntityCategory, "dev")
			require.NoError(t, err)
			assert.Equal(t, int64(5), e.ID)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGetOrCreateEntity_OtherInsertErrorPropagates(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, name FROM tags WHERE name").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	mock.ExpectQuery("INSERT INTO tags").
		WillReturnError(errors.New("connection reset"))

	_, err := s.GetOrCreateEntity(context.Background(), models.EntityTag, "api")
	assert.ErrorContains(t, err, "connection reset")
}

func TestGetOrCreateEntity_UnknownKind(t *testing.T) {
	s, _ := newMockStore(t)
	_, err := s.GetOrCreateEntity(context.Background(), models.EntityKind("users; drop table"), "x")
	assert.ErrorIs(t, err, ErrUnknownEntityKind)
}

func TestUpsertProducts_SingleStatement(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO products .* ON CONFLICT \(codename\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := s.UpsertProducts(context.Background(), []models.Product{
		{Codename: "npm", FullName: "npm", Tags: []string{"javascript"}, Approved: true},
		{Codename: "figma", FullName: "Figma", Labels: []string{"design_tools"}, Approved: true},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertProducts_LeavesModerationFieldsAlone(t *testing.T) {
	assert.NotContains(t, upsertProducts, "approved = EXCLUDED")
	assert.NotContains(t, upsertProducts, "featured = EXCLUDED")
	assert.NotContains(t, upsertProducts, "view_count")
	assert.NotContains(t, upsertProducts, "user_id = EXCLUDED")
}

func TestUpsertProducts_Empty(t *testing.T) {
	s, mock := newMockStore(t)
	require.NoError(t, s.UpsertProducts(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProduct(t *testing.T) {
	s, mock := newMockStore(t)
	cols := []string{"id", "codename", "full_name", "email", "twitter_handle", "product_website",
		"punchline", "description", "logo_src", "categories", "tags", "labels", "view_count",
		"approved", "featured", "user_id", "created_at"}
	mock.ExpectQuery("SELECT .* FROM products WHERE codename").
		WithArgs("npm").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			1, "npm", "npm", "", "", "https://npmjs.com", "p", "d", "https://cdn/logos/npm.png",
			"dev", "{javascript,node}", "{package_managers}", 0, true, false, nil, time.Now(),
		))

	p, err := s.GetProduct(context.Background(), "npm")
	require.NoError(t, err)
	assert.Equal(t, []string{"javascript", "node"}, p.Tags)
	assert.Equal(t, []string{"package_managers"}, p.Labels)
	assert.Nil(t, p.UserID)

	mock.ExpectQuery("SELECT .* FROM products WHERE codename").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(cols))
	_, err = s.GetProduct(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestRemoveInvalidUTF8(t *testing.T) {
	assert.Equal(t, "ok", removeInvalidUTF8("ok"))
	assert.Equal(t, "ab", removeInvalidUTF8("a\xffb"))
}
