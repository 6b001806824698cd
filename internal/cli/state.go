package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/seantiz/timelock/internal/config"
	"github.com/seantiz/timelock/internal/engine"
	"github.com/seantiz/timelock/internal/model"
)

// StateResult is the output of the state command.
type StateResult struct {
	model.Operation
}

func (r StateResult) String() string {
	if r.State == model.StateUnknown {
		return fmt.Sprintf("%s %s", r.ID, r.State)
	}
	return fmt.Sprintf("%s %s execute_at=%d", r.ID, r.State, r.ExecuteAt)
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "state <hex-id>",
		Short:         "Show the lifecycle state of an operation",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func runState(cmd *cobra.Command, opts *RootOptions, rawID string) error {
	f := opts.formatter(cmd)

	id, err := model.ParseOperationID(rawID)
	if err != nil {
		return f.Fail("parse id", &engine.Error{Kind: engine.KindInvalidOperationID, Err: err})
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return f.Fail("load config", err)
	}

	a, err := newApp(cmd.Context(), cfg, config.NewLogger(io.Discard, cfg.LogLevel), appOptions{})
	if err != nil {
		return f.Fail("open store", err)
	}
	defer a.Close()

	op, err := a.engine.Lookup(cmd.Context(), id)
	if err != nil {
		return f.Fail("lookup", err)
	}
	return f.Success(StateResult{Operation: op})
}
