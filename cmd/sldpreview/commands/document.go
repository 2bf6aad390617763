package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sldpreview/internal/domain"
	"sldpreview/internal/geometry"
	"sldpreview/internal/inference"
	"sldpreview/internal/style"
)

func newInferCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "infer <document>",
		Short: "Print the attribute schema a style document refers to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), inference.Infer(doc))
		},
	}
}

// ClassifyResult is the output of the classify command.
type ClassifyResult struct {
	Kind  geometry.Kind  `json:"kind"`
	Tally geometry.Tally `json:"tally"`
}

func newClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <document>",
		Short: "Print the geometry kind a style document's symbolizers imply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), ClassifyResult{
				Kind:  geometry.ClassifyDocument(doc),
				Tally: geometry.TallyDocument(doc),
			})
		},
	}
}

func newSampleCommand() *cobra.Command {
	var values []string
	cmd := &cobra.Command{
		Use:   "sample <document>",
		Short: "Print the synthesized feature a style document previews with",
		Long: `Print the synthesized feature a style document previews with. String
attributes default to their own name and numbers to their position; use
--value name=value to supply your own.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(args[0])
			if err != nil {
				return err
			}
			assigned, err := parseAssignments(values)
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc := newDetachedService()
			defer svc.Close()
			if _, err := svc.LoadDocument(ctx, args[0], doc); err != nil {
				return err
			}

			if len(assigned) > 0 {
				fields := svc.Orchestrator().Fields()
				for name, raw := range assigned {
					i := fields.Index(name)
					if i < 0 {
						return fmt.Errorf("the document does not use attribute %q", name)
					}
					if fields[i].Type.IsGeometry() {
						return fmt.Errorf("attribute %q is a geometry", name)
					}
					fields[i].Value = domain.CoerceValue(fields[i].Type, raw)
				}
				if err := svc.UpdateFields(ctx, fields); err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), svc.Snapshot(ctx))
		},
	}
	cmd.Flags().StringArrayVar(&values, "value", nil, "Sample value as name=value (repeatable)")
	return cmd
}

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of style documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := style.JSONSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
