package app

import (
	"fmt"

	"sldpreview/internal/domain"
)

// FieldInput is the frontend form for one attribute. Value arrives as
// text and is converted to the field's type.
type FieldInput struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (in FieldInput) field() (domain.AttributeField, error) {
	if in.Name == "" {
		return domain.AttributeField{}, fmt.Errorf("field name is required")
	}
	t, err := domain.ParseScalarType(in.Type)
	if err != nil {
		return domain.AttributeField{}, err
	}
	if t == domain.TypeAny {
		t = domain.TypeString
	}
	f := domain.AttributeField{Name: in.Name, Type: t}
	if in.Value != "" {
		f.Value = domain.CoerceValue(t, in.Value)
	}
	return f, nil
}

func fieldList(inputs []FieldInput) (domain.FieldList, error) {
	out := domain.FieldList{}
	for _, in := range inputs {
		f, err := in.field()
		if err != nil {
			return nil, err
		}
		out = out.Add(f)
	}
	return out, nil
}

// ProfileView is the frontend-safe view of a connection profile (no password).
type ProfileView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Schema   string `json:"schema"`
	SSLMode  string `json:"sslMode"`
	Table    string `json:"table"`
}

func profileView(p domain.ConnectionProfile) ProfileView {
	return ProfileView{
		ID: p.ID, Name: p.Name, Driver: string(p.Driver),
		Host: p.Host, Port: p.Port, Database: p.Database,
		Username: p.Username, Schema: p.Schema, SSLMode: p.SSLMode, Table: p.Table,
	}
}
