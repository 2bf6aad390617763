package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"sldpreview/internal/datasource"
	"sldpreview/internal/domain"
	"sldpreview/internal/geometry"
	"sldpreview/internal/inference"
	"sldpreview/internal/style"
)

func (s *Server) registerSchemaTools() {
	s.mcp.AddTool(mcp.NewTool("infer_schema",
		mcp.WithDescription("Infer the attribute fields a style document refers to. Uses the open document unless one is passed inline."),
		mcp.WithString("document", mcp.Description("Style document JSON (optional)")),
	), s.handleInferSchema)

	s.mcp.AddTool(mcp.NewTool("classify_geometry",
		mcp.WithDescription("Report the geometry kind (point, line, polygon, raster) a style document's symbolizers imply"),
		mcp.WithString("document", mcp.Description("Style document JSON (optional)")),
	), s.handleClassifyGeometry)

	s.mcp.AddTool(mcp.NewTool("get_attributes",
		mcp.WithDescription("List the active source's attribute names usable where a value of the given type is expected"),
		mcp.WithString("expectedType", mcp.Description("String, Integer, Long, Short, Float, Double, Geometry... (optional, any type when empty)")),
	), s.handleGetAttributes)

	s.mcp.AddTool(mcp.NewTool("add_field",
		mcp.WithDescription("Add an attribute to the synthesized source. Fails while connected to a real source."),
		mcp.WithString("name", mcp.Description("Attribute name"), mcp.Required()),
		mcp.WithString("type", mcp.Description("Attribute type (default String)")),
		mcp.WithString("value", mcp.Description("Sample value (optional)")),
	), s.handleAddField)

	s.mcp.AddTool(mcp.NewTool("update_fields",
		mcp.WithDescription("Replace all attributes of the synthesized source. 🛑 Requires user approval."),
		mcp.WithString("fields", mcp.Description(`JSON array of {"name","type","value"}`), mcp.Required()),
	), s.handleUpdateFields)

	s.mcp.AddTool(mcp.NewTool("save_sample_values",
		mcp.WithDescription("Store sample values for the open document so they survive a restart"),
		mcp.WithString("fields", mcp.Description(`JSON array of {"name","type","value"}`), mcp.Required()),
	), s.handleSaveSampleValues)
}

// documentArg returns the inline document when one is passed, else the open
// document.
func (s *Server) documentArg(req mcp.CallToolRequest) (*style.Document, error) {
	if data := req.GetString("document", ""); data != "" {
		return decodeDocument(data)
	}
	doc := s.preview.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document is open and none was passed")
	}
	return doc, nil
}

func (s *Server) handleInferSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.documentArg(req)
	if err != nil {
		return nil, err
	}
	return jsonResult(inference.Infer(doc))
}

func (s *Server) handleClassifyGeometry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.documentArg(req)
	if err != nil {
		return nil, err
	}
	return jsonResult(map[string]any{
		"kind":  geometry.ClassifyDocument(doc),
		"tally": geometry.TallyDocument(doc),
	})
}

func (s *Server) handleGetAttributes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	expected, err := domain.ParseScalarType(req.GetString("expectedType", ""))
	if err != nil {
		return nil, err
	}
	names := s.preview.Attributes(expected)
	if names == nil {
		names = []string{}
	}
	return jsonResult(names)
}

func (s *Server) handleAddField(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	t, err := domain.ParseScalarType(req.GetString("type", ""))
	if err != nil {
		return nil, err
	}
	if t == domain.TypeAny {
		t = domain.TypeString
	}
	field := domain.AttributeField{Name: name, Type: t}
	if v := req.GetString("value", ""); v != "" {
		field.Value = domain.CoerceValue(t, v)
	}
	if err := s.preview.AddField(ctx, field); err != nil {
		if errors.Is(err, datasource.ErrConnected) {
			return textResult("Cannot add a field while connected to a real data source."), nil
		}
		return nil, err
	}
	return jsonResult(s.preview.Snapshot(ctx))
}

func (s *Server) handleUpdateFields(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fields, err := fieldsArg(req)
	if err != nil {
		return nil, err
	}

	approved, err := s.approval.Request("update_fields",
		fmt.Sprintf("Replace the synthesized attributes with %d field(s): %s",
			len(fields), truncate(fmt.Sprint(fields.Names()), 100)))
	if err != nil || !approved {
		return textResult("Field update rejected by user"), nil
	}

	if err := s.preview.UpdateFields(ctx, fields); err != nil {
		if errors.Is(err, datasource.ErrConnected) {
			return textResult("Cannot replace fields while connected to a real data source."), nil
		}
		return nil, err
	}
	return jsonResult(s.preview.Snapshot(ctx))
}

func (s *Server) handleSaveSampleValues(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fields, err := fieldsArg(req)
	if err != nil {
		return nil, err
	}
	if err := s.preview.SaveSampleValues(ctx, fields); err != nil {
		return nil, fmt.Errorf("save sample values: %w", err)
	}
	return textResult(fmt.Sprintf("Saved %d sample value(s)", len(fields))), nil
}

// fieldsArg decodes the "fields" argument. Types are validated and values
// converted to their field's Go type.
func fieldsArg(req mcp.CallToolRequest) (domain.FieldList, error) {
	raw := req.GetString("fields", "")
	if raw == "" {
		return nil, fmt.Errorf("fields is required")
	}
	var wire []struct {
		Name  string          `json:"name"`
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := parseJSON(raw, &wire); err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	out := domain.FieldList{}
	for _, w := range wire {
		if w.Name == "" {
			return nil, fmt.Errorf("fields: every field needs a name")
		}
		t, err := domain.ParseScalarType(w.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", w.Name, err)
		}
		if t == domain.TypeAny {
			t = domain.TypeString
		}
		f := domain.AttributeField{Name: w.Name, Type: t}
		if len(w.Value) > 0 {
			var v any
			if err := json.Unmarshal(w.Value, &v); err != nil {
				return nil, fmt.Errorf("field %s: %w", w.Name, err)
			}
			f.Value = domain.CoerceValue(t, v)
		}
		out = out.Add(f)
	}
	return out, nil
}
