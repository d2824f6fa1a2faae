package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amankumarsingh77/directory_pipeline/config"
	"github.com/amankumarsingh77/directory_pipeline/models"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects with the configured driver, "postgres" (lib/pq)
// or "pgx".
func NewPostgresStore(ctx context.Context, cfg *config.PostgresConfig) (*PostgresStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := sqlx.ConnectContext(connectCtx, driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("db connection error: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	return NewPostgresStoreFromDB(db), nil
}

func NewPostgresStoreFromDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}

func (s *PostgresStore) GetOrCreateEntity(ctx context.Context, kind models.EntityKind, name string) (models.Entity, error) {
	table, err := entityTable(kind)
	if err != nil {
		return models.Entity{}, err
	}
	name = removeInvalidUTF8(name)

	var entity models.Entity
	err = s.db.GetContext(ctx, &entity, getEntityByName(table), name)
	if err == nil {
		return entity, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Entity{}, fmt.Errorf("failed to query %s %q: %w", kind, name, err)
	}

	entity.Name = name
	err = s.db.QueryRowxContext(ctx, insertEntity(table), name).Scan(&entity.ID)
	if err == nil {
		return entity, nil
	}
	// No row back means another writer created it between our select and
	// insert; read theirs.
	if !errors.Is(err, sql.ErrNoRows) && !isUniqueViolation(err) {
		return models.Entity{}, fmt.Errorf("failed to insert %s %q: %w", kind, name, err)
	}
	if err = s.db.GetContext(ctx, &entity, getEntityByName(table), name); err != nil {
		return models.Entity{}, fmt.Errorf("failed to re-read %s %q: %w", kind, name, err)
	}
	return entity, nil
}

type productRow struct {
	Codename       string         `db:"codename"`
	FullName       string         `db:"full_name"`
	Email          string         `db:"email"`
	TwitterHandle  string         `db:"twitter_handle"`
	ProductWebsite string         `db:"product_website"`
	Punchline      string         `db:"punchline"`
	Description    string         `db:"description"`
	LogoSrc        string         `db:"logo_src"`
	Categories     string         `db:"categories"`
	Tags           pq.StringArray `db:"tags"`
	Labels         pq.StringArray `db:"labels"`
	Approved       bool           `db:"approved"`
	Featured       bool           `db:"featured"`
	UserID         *string        `db:"user_id"`
}

func toRow(p models.Product) productRow {
	return productRow{
		Codename:       removeInvalidUTF8(p.Codename),
		FullName:       removeInvalidUTF8(p.FullName),
		Email:          p.Email,
		TwitterHandle:  p.TwitterHandle,
		ProductWebsite: removeInvalidUTF8(p.ProductWebsite),
		Punchline:      removeInvalidUTF8(p.Punchline),
		Description:    removeInvalidUTF8(p.Description),
		LogoSrc:        p.LogoSrc,
		Categories:     p.Categories,
		Tags:           pq.StringArray(nonNil(p.Tags)),
		Labels:         pq.StringArray(nonNil(p.Labels)),
		Approved:       p.Approved,
		Featured:       p.Featured,
		UserID:         p.UserID,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// UpsertProducts writes the whole slice as one multi-row statement. Callers
// batch; a slice must not repeat a codename or Postgres rejects the statement.
func (s *PostgresStore) UpsertProducts(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	rows := make([]productRow, len(products))
	for i, p := range products {
		rows[i] = toRow(p)
	}
	if _, err := s.db.NamedExecContext(ctx, upsertProducts, rows); err != nil {
		return fmt.Errorf("failed to upsert %d products: %w", len(products), err)
	}
	return nil
}

type productRecord struct {
	models.Product
	Tags   pq.StringArray `db:"tags"`
	Labels pq.StringArray `db:"labels"`
}

func (s *PostgresStore) GetProduct(ctx context.Context, codename string) (*models.Product, error) {
	var rec productRecord
	err := s.db.GetContext(ctx, &rec, getProductByCodename, codename)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, codename)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", codename, err)
	}
	p := rec.Product
	p.Tags = rec.Tags
	p.Labels = rec.Labels
	return &p, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
