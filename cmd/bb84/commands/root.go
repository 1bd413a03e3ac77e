package commands

import (
	"flag"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jaskrrish/Go-BB84/internal/config"
	"github.com/jaskrrish/Go-BB84/internal/qkd"
	"github.com/jaskrrish/Go-BB84/internal/qkd/quantum"
)

// rootOptions holds the persistent flags and the configuration they refine
type rootOptions struct {
	configFile string
	seed       int64
	backend    string
	shots      int
	noise      float64

	cfg *config.Config
}

// Execute runs the bb84 command line
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}

	root := &cobra.Command{
		Use:          "bb84",
		Short:        "Simulate BB84 quantum key distribution",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(o.configFile)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("backend") {
				cfg.Protocol.Backend = quantum.BackendType(o.backend)
			}
			if flags.Changed("shots") {
				cfg.Protocol.Shots = o.shots
			}
			if flags.Changed("noise") {
				cfg.Protocol.NoiseLevel = o.noise
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			o.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.configFile, "config", "", "path to a YAML configuration file")
	pf.Int64Var(&o.seed, "seed", 0, "seed for a reproducible run (0 draws from system entropy)")
	pf.StringVar(&o.backend, "backend", string(quantum.BackendSimulator), "channel backend: simulator or shots")
	pf.IntVar(&o.shots, "shots", quantum.DefaultShots, "trials per measurement for the shots backend (odd)")
	pf.Float64Var(&o.noise, "noise", 0, "probability that the channel flips a qubit")
	pf.AddGoFlagSet(flag.CommandLine)

	root.AddCommand(
		demoCmd(o),
		runCmd(o),
		benchCmd(o),
		encryptCmd(o),
		decryptCmd(o),
		decryptFileCmd(o),
	)
	return root
}

// source returns the random source selected by --seed
func (o *rootOptions) source() quantum.Source {
	if o.seed == 0 {
		return quantum.CryptoSource{}
	}
	return quantum.NewSeededSource(o.seed)
}

// protocol builds a protocol over the configured backend, drawing all
// randomness from src
func (o *rootOptions) protocol(src quantum.Source, cfg qkd.Config) (*qkd.BB84Protocol, error) {
	p := o.cfg.Protocol
	backend, err := quantum.NewBackend(p.Backend, src, quantum.BackendOptions{
		NoiseLevel: p.NoiseLevel,
		Shots:      p.Shots,
	})
	if err != nil {
		return nil, fmt.Errorf("creating backend: %w", err)
	}
	return qkd.NewBB84Protocol(backend, src, cfg)
}
