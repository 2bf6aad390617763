package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"sldpreview/internal/domain"
)

// SampleValueStore keeps the values a user entered for synthesized fields,
// per document, so previews of the same document reuse them.
type SampleValueStore struct {
	db *DB
}

func NewSampleValueStore(db *DB) *SampleValueStore {
	return &SampleValueStore{db: db}
}

// Save replaces the stored values of docPath. Fields without a value are
// skipped.
func (s *SampleValueStore) Save(docPath string, fields []domain.AttributeField) error {
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM sample_values WHERE document_path = ?`, docPath); err != nil {
		return fmt.Errorf("clear sample values: %w", err)
	}

	now := time.Now()
	for i, f := range fields {
		if f.Name == "" || f.Value == nil {
			continue
		}
		raw, err := json.Marshal(f.Value)
		if err != nil {
			return fmt.Errorf("encode value of %s: %w", f.Name, err)
		}
		_, err = tx.Exec(
			`INSERT INTO sample_values (document_path, field_name, field_type, value_json, sort_order, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			docPath, f.Name, string(f.Type), string(raw), i, now,
		)
		if err != nil {
			return fmt.Errorf("save sample value %s: %w", f.Name, err)
		}
	}
	return tx.Commit()
}

// Load returns the stored values of docPath in the order they were saved.
// Numbers come back as the Go type of their field.
func (s *SampleValueStore) Load(docPath string) ([]domain.AttributeField, error) {
	rows, err := s.db.Conn().Query(
		`SELECT field_name, field_type, value_json FROM sample_values
		 WHERE document_path = ? ORDER BY sort_order`, docPath,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AttributeField
	for rows.Next() {
		var name, typ, raw string
		if err := rows.Scan(&name, &typ, &raw); err != nil {
			return nil, err
		}
		t := domain.ScalarType(typ)
		v, err := decodeValue(t, raw)
		if err != nil {
			return nil, fmt.Errorf("decode value of %s: %w", name, err)
		}
		out = append(out, domain.AttributeField{Name: name, Type: t, Value: v})
	}
	return out, rows.Err()
}

func (s *SampleValueStore) Delete(docPath string) error {
	_, err := s.db.Conn().Exec(`DELETE FROM sample_values WHERE document_path = ?`, docPath)
	return err
}

func decodeValue(t domain.ScalarType, raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	if _, ok := v.(float64); !ok {
		return v, nil
	}
	return domain.CoerceValue(t, v), nil
}
