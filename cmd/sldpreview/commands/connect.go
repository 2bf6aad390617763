package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sldpreview/internal/app"
	"sldpreview/internal/config"
	"sldpreview/internal/domain"
	"sldpreview/internal/inference"
	"sldpreview/internal/service"
)

type connectOptions struct {
	profile    string
	properties []string
}

func (o *connectOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.profile, "profile", "", "Saved connection profile ID")
	cmd.Flags().StringArrayVarP(&o.properties, "property", "p", nil,
		"Connection property as key=value, e.g. -p dbtype=geojson -p url=roads.geojson (repeatable)")
}

// connect opens path and connects it as the options say. Without a profile
// no database is opened; the returned close func releases what was.
func (o *connectOptions) connect(ctx context.Context, cfg config.Config, path string) (*service.PreviewService, *service.Snapshot, func(), error) {
	if o.profile != "" && len(o.properties) > 0 {
		return nil, nil, nil, fmt.Errorf("--profile and --property are exclusive")
	}

	var (
		svc     *service.PreviewService
		closeFn func()
	)
	if o.profile != "" {
		backend, err := app.OpenBackend(cfg, service.LogEmitter{})
		if err != nil {
			return nil, nil, nil, err
		}
		svc = backend.Preview
		closeFn = func() { backend.Close() }
	} else {
		svc = newDetachedService()
		closeFn = svc.Close
	}

	fail := func(err error) (*service.PreviewService, *service.Snapshot, func(), error) {
		closeFn()
		return nil, nil, nil, err
	}

	if _, err := svc.OpenDocument(ctx, path); err != nil {
		return fail(err)
	}

	var (
		snap *service.Snapshot
		err  error
	)
	if o.profile != "" {
		snap, err = svc.ConnectProfile(ctx, o.profile)
	} else {
		var props domain.ConnectionProperties
		props, err = connectionProperties(o.properties)
		if err != nil {
			return fail(err)
		}
		snap, err = svc.ConnectProperties(ctx, props)
	}
	if err != nil {
		return fail(err)
	}
	return svc, snap, closeFn, nil
}

func newConnectCommand(cfg func() config.Config) *cobra.Command {
	var opts connectOptions
	cmd := &cobra.Command{
		Use:   "connect <document>",
		Short: "Connect a style document to a data source and print the preview state",
		Long: `Connect a style document to a data source and print the preview state.
When the source cannot be opened the preview falls back to a synthesized
feature and "connected" is false; the reason is logged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snap, closeFn, err := opts.connect(context.Background(), cfg(), args[0])
			if err != nil {
				return err
			}
			defer closeFn()
			return writeJSON(cmd.OutOrStdout(), snap)
		},
	}
	opts.bind(cmd)
	return cmd
}

// Correction is one attribute whose inferred type the data source changed.
type Correction struct {
	Field    string            `json:"field"`
	Inferred domain.ScalarType `json:"inferred"`
	Actual   domain.ScalarType `json:"actual"`
}

// CorrectResult is the output of the correct command.
type CorrectResult struct {
	Connected   bool         `json:"connected"`
	Corrections []Correction `json:"corrections"`
	Missing     []string     `json:"missing"`
}

func newCorrectCommand(cfg func() config.Config) *cobra.Command {
	var opts connectOptions
	cmd := &cobra.Command{
		Use:   "correct <document>",
		Short: "Compare the inferred attribute types with those of a data source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, snap, closeFn, err := opts.connect(context.Background(), cfg(), args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			inferred, err := svc.InferSchema()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), compareSchema(inferred, snap))
		},
	}
	opts.bind(cmd)
	return cmd
}

func compareSchema(inferred inference.Result, snap *service.Snapshot) CorrectResult {
	res := CorrectResult{Connected: snap.Connected, Corrections: []Correction{}, Missing: []string{}}
	actual := make(map[string]domain.ScalarType, len(snap.Fields))
	for _, f := range snap.Fields {
		actual[f.Name] = f.Type
	}
	for _, f := range inferred.Fields {
		t, ok := actual[f.Name]
		switch {
		case !ok:
			res.Missing = append(res.Missing, f.Name)
		case t != f.Type:
			res.Corrections = append(res.Corrections, Correction{Field: f.Name, Inferred: f.Type, Actual: t})
		}
	}
	return res
}
