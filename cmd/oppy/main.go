// Command oppy is an interactive browser for 1Password vaults, driven by the
// op command-line tool and queried with TQL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avoiney/oppy/pkg/config"
	apperrors "github.com/avoiney/oppy/pkg/errors"
)

type options struct {
	configPath string
	debug      bool
	vault      string
}

func (o *options) overrides() config.Overrides {
	return config.Overrides{Debug: o.debug, Vault: o.vault}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "oppy <profile>",
		Short:         "Browse 1Password vaults with the Tag Query Language",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), opts, args[0])
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "path to config file")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVar(&opts.vault, "vault", "", "restrict the listing to one vault")

	root.AddCommand(
		newSearchCmd(opts),
		newCheckCmd(),
		newDoctorCmd(opts),
		newAuditCmd(opts),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "oppy:", err)
		os.Exit(apperrors.ExitCode(err))
	}
}
