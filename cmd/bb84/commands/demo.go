package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jaskrrish/Go-BB84/internal/qkd/quantum"
)

func demoCmd(o *rootOptions) *cobra.Command {
	var pf protocolFlags

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Show encoding, measurement and sifting step by step",
		Long: `Demo runs only the first half of BB84 with no eavesdropping check.
The printed key is for illustration and must not be used as a secret.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := pf.config(cmd, o)
			cfg.Eavesdropper = false
			bb84, err := o.protocol(o.source(), cfg)
			if err != nil {
				return err
			}
			demo, err := bb84.RunDemo()
			if err != nil {
				return err
			}

			mask := make([]byte, len(demo.Mask))
			for i, keep := range demo.Mask {
				mask[i] = '.'
				if keep {
					mask[i] = '^'
				}
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "alice bases: %s\n", quantum.FormatBases(demo.AliceBases))
			fmt.Fprintf(w, "bob bases:   %s\n", quantum.FormatBases(demo.BobBases))
			fmt.Fprintf(w, "kept:        %s\n", mask)
			fmt.Fprintf(w, "sifted key:  %s (%d of %d bits)\n", quantum.FormatBits(demo.Key), len(demo.Key), len(demo.Mask))
			phases := make([]string, len(demo.Phases))
			for i, p := range demo.Phases {
				phases[i] = p.String()
			}
			fmt.Fprintf(w, "phases:      %s\n", strings.Join(phases, " -> "))
			fmt.Fprintln(w, "warning: this key was never checked for eavesdropping")
			return nil
		},
	}

	pf.register(cmd.Flags())
	return cmd
}
