package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/seantiz/timelock/internal/auth"
	"github.com/seantiz/timelock/internal/config"
)

// TokenResult is the output of the token command.
type TokenResult struct {
	Subject   string    `json:"subject"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (r TokenResult) String() string {
	return r.Token
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token --subject <principal>",
		Short: "Mint a bearer token signed with the configured secret",
		Long: `Mint an HS256 bearer token whose subject is the given principal.

The token authenticates API calls as that principal; only the administrator's
token can queue, execute, or cancel.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, rootOpts, subject, ttl)
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "principal the token authenticates (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func runToken(cmd *cobra.Command, opts *RootOptions, subject string, ttl time.Duration) error {
	f := opts.formatter(cmd)

	if ttl <= 0 {
		return f.Fail("mint token", errors.New("ttl must be positive"))
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return f.Fail("load config", err)
	}

	v, err := auth.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	if err != nil {
		return f.Fail("mint token", err)
	}

	issuedAt := time.Now()
	tok, err := v.Issue(subject, ttl)
	if err != nil {
		return f.Fail("mint token", err)
	}
	return f.Success(TokenResult{Subject: subject, Token: tok, ExpiresAt: issuedAt.Add(ttl).UTC().Truncate(time.Second)})
}
