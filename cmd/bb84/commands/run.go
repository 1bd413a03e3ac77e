package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jaskrrish/Go-BB84/internal/qkd"
	"github.com/jaskrrish/Go-BB84/internal/qkd/crypto"
	"github.com/jaskrrish/Go-BB84/internal/qkd/quantum"
)

// protocolFlags are the per-run parameters shared by several commands
type protocolFlags struct {
	qubits         int
	revealFraction float64
	threshold      float64
	eve            bool
}

func (p *protocolFlags) register(fs *pflag.FlagSet) {
	fs.IntVar(&p.qubits, "qubits", qkd.DefaultQubits, "qubits Alice sends")
	fs.Float64Var(&p.revealFraction, "reveal-fraction", qkd.DefaultRevealFraction, "share of the sifted key revealed for checking")
	fs.Float64Var(&p.threshold, "threshold", qkd.DefaultThreshold, "highest tolerated error rate on the revealed sample")
	fs.BoolVar(&p.eve, "eve", false, "put a measure-and-resend interceptor on the channel")
}

// config starts from the configuration file and applies the flags the user set
func (p *protocolFlags) config(cmd *cobra.Command, o *rootOptions) qkd.Config {
	cfg := o.cfg.Protocol.QKD(p.eve)
	flags := cmd.Flags()
	if flags.Changed("qubits") {
		cfg.Qubits = p.qubits
	}
	if flags.Changed("reveal-fraction") {
		cfg.RevealFraction = p.revealFraction
	}
	if flags.Changed("threshold") {
		cfg.Threshold = p.threshold
	}
	return cfg
}

func runCmd(o *rootOptions) *cobra.Command {
	var (
		pf      protocolFlags
		retries int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full BB84 protocol and print the outcome",
		Long: `Run prepares, transmits, measures and sifts qubits, reveals a sample of the
sifted key to check for eavesdropping, and distills the rest into a key.
A detected interceptor aborts the run and the command fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bb84, err := o.protocol(o.source(), pf.config(cmd, o))
			if err != nil {
				return err
			}

			attempts := retries + 1
			if !cmd.Flags().Changed("retries") {
				attempts = o.cfg.Protocol.MaxAttempts
			}
			out, made, err := bb84.RunWithRetry(cmd.Context(), attempts)
			if out == nil {
				return err
			}
			printOutcome(cmd, out, made)
			return err
		},
	}

	pf.register(cmd.Flags())
	cmd.Flags().IntVar(&retries, "retries", 0, "extra runs after an aborted one")
	return cmd
}

func printOutcome(cmd *cobra.Command, out *qkd.Outcome, attempts int) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "attempts:        %d\n", attempts)
	fmt.Fprintf(w, "qubits:          %d\n", out.Qubits)
	fmt.Fprintf(w, "sifted bits:     %d\n", out.SiftedKeyLength)
	if d := out.Detection; d != nil {
		fmt.Fprintf(w, "revealed bits:   %d\n", d.Sampled)
		fmt.Fprintf(w, "error rate:      %.2f%% (threshold %.2f%%)\n", d.ErrorRate*100, d.Threshold*100)
		fmt.Fprintf(w, "miss chance:     %.3g\n", d.MissProbability())
	}
	fmt.Fprintf(w, "status:          %v\n", out.Status)
	if out.Aborted() {
		return
	}
	fmt.Fprintf(w, "key length:      %d\n", len(out.SecretKey))
	fmt.Fprintf(w, "key:             %s\n", quantum.FormatBits(out.SecretKey))
	fmt.Fprintf(w, "fingerprint:     %s\n", crypto.Fingerprint(out.SecretKey))
}
