package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/seantiz/timelock/internal/config"
)

// InitResult is the output of the init command.
type InitResult struct {
	Admin string `json:"admin"`
	Store string `json:"store"`
}

func (r InitResult) String() string {
	return fmt.Sprintf("initialized %s store with administrator %q", r.Store, r.Admin)
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	var admin string

	cmd := &cobra.Command{
		Use:   "init --admin <principal>",
		Short: "Set the administrator of the configured store",
		Long: `Record the administrator principal in the configured store.

This succeeds exactly once per store. Run it from a deployment context that
is trusted to choose the administrator.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, rootOpts, admin)
		},
	}

	cmd.Flags().StringVar(&admin, "admin", "", "administrator principal (required)")
	_ = cmd.MarkFlagRequired("admin")

	return cmd
}

func runInit(cmd *cobra.Command, opts *RootOptions, admin string) error {
	f := opts.formatter(cmd)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return f.Fail("load config", err)
	}

	a, err := newApp(cmd.Context(), cfg, config.NewLogger(io.Discard, cfg.LogLevel), appOptions{})
	if err != nil {
		return f.Fail("open store", err)
	}
	defer a.Close()

	f.VerboseLog("initializing %s store", cfg.Store.Driver)
	if err := a.engine.Initialize(cmd.Context(), admin); err != nil {
		return f.Fail("initialize", err)
	}

	return f.Success(InitResult{Admin: admin, Store: cfg.Store.Driver})
}
