package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sldpreview/internal/domain"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ProfileStore implements domain.ConnectionProfileStore on SQLite.
type ProfileStore struct {
	db *DB
}

func NewProfileStore(db *DB) *ProfileStore {
	return &ProfileStore{db: db}
}

const profileColumns = `id, name, driver, host, port, database_name, username, schema_name,
	ssl_mode, table_name, extra_json, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*domain.ConnectionProfile, error) {
	c := &domain.ConnectionProfile{}
	err := row.Scan(&c.ID, &c.Name, &c.Driver, &c.Host, &c.Port, &c.Database, &c.Username, &c.Schema,
		&c.SSLMode, &c.Table, &c.ExtraJSON, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateProfile inserts c, assigning an ID when it has none.
func (s *ProfileStore) CreateProfile(c *domain.ConnectionProfile) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.ExtraJSON == "" {
		c.ExtraJSON = "{}"
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.Conn().Exec(
		`INSERT INTO connection_profiles (`+profileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Driver, c.Host, c.Port, c.Database, c.Username, c.Schema,
		c.SSLMode, c.Table, c.ExtraJSON, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *ProfileStore) GetProfile(id string) (*domain.ConnectionProfile, error) {
	row := s.db.Conn().QueryRow(`SELECT `+profileColumns+` FROM connection_profiles WHERE id = ?`, id)
	c, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("connection profile %s: %w", id, ErrNotFound)
	}
	return c, err
}

func (s *ProfileStore) ListProfiles() ([]domain.ConnectionProfile, error) {
	rows, err := s.db.Conn().Query(`SELECT ` + profileColumns + ` FROM connection_profiles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ConnectionProfile
	for rows.Next() {
		c, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *ProfileStore) UpdateProfile(c *domain.ConnectionProfile) error {
	c.UpdatedAt = time.Now()
	res, err := s.db.Conn().Exec(
		`UPDATE connection_profiles SET name=?, driver=?, host=?, port=?, database_name=?, username=?,
		 schema_name=?, ssl_mode=?, table_name=?, extra_json=?, updated_at=?
		 WHERE id=?`,
		c.Name, c.Driver, c.Host, c.Port, c.Database, c.Username,
		c.Schema, c.SSLMode, c.Table, c.ExtraJSON, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("connection profile %s: %w", c.ID, ErrNotFound)
	}
	return nil
}

func (s *ProfileStore) DeleteProfile(id string) error {
	_, err := s.db.Conn().Exec(`DELETE FROM connection_profiles WHERE id = ?`, id)
	return err
}
