/**
 * Filename: /Users/bao/code/gax/cmd/gax.go
 * Path: /Users/bao/code/gax/cmd
 * Created Date: Tuesday, March 17th 2020, 9:12:40 pm
 * Author: bao
 *
 * Copyright (c) 2020 Haibao Tang
 */

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	logging "github.com/op/go-logging"
	"github.com/spf13/cobra"
	"github.com/tanghaibao/gax"
)

var log = logging.MustGetLogger("main")

// Flags shared by every command
var (
	envfile  string
	threads  int
	failFast bool
	deadline string
	logLevel string
	outfile  string
	cfg      *Config
)

// banner prints the separate steps
func banner(message string) {
	message = "* " + message + " *"
	log.Noticef(strings.Repeat("*", len(message)))
	log.Noticef(message)
	log.Noticef(strings.Repeat("*", len(message)))
}

// runner is what every conversion command drives
type runner interface {
	Run(ctx context.Context) error
}

func run(r runner) error {
	ctx, cancel := cfg.Context()
	defer cancel()
	return r.Run(ctx)
}

// outfileOr falls back to the input name with a new extension
func outfileOr(infile, ext string) string {
	if outfile != "" {
		return outfile
	}
	return gax.RemoveExt(infile) + ext
}

// loadConfig merges .env, environment and the flags that were set
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	if cfg, err = LoadConfig(envfile); err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("threads") {
		cfg.Threads = threads
	}
	if flags.Changed("fail-fast") {
		cfg.FailFast = failFast
	}
	if flags.Changed("deadline") {
		d, err := time.ParseDuration(deadline)
		if err != nil {
			return fmt.Errorf("deadline `%s`: %w", deadline, err)
		}
		cfg.Deadline = d
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return gax.SetLogLevel(strings.ToUpper(cfg.LogLevel))
}

var rootCmd = &cobra.Command{
	Use:               "gax",
	Short:             "Convert variation graph alignments between GAF, GAM and GAMP",
	Version:           gax.Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var gaf2gamCmd = &cobra.Command{
	Use:   "gaf2gam graph.gfa input.gaf",
	Short: "Convert GAF to GAM",
	Long: `
Given a graph and a GAF file, translate every segment/interval path into
per-node mappings with edits. The query sequence comes from --reads when
given, otherwise it is rebuilt from the graph and the cs/cg operations.
`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		banner("GAF to GAM")
		readsfile, _ := cmd.Flags().GetString("reads")
		return run(&gax.GafToGamRunner{
			Gfafile:   args[0],
			Gaffile:   args[1],
			Readsfile: readsfile,
			Outfile:   outfileOr(args[1], ".gam"),
			Pipeline:  cfg.Pipeline(),
		})
	},
}

var gam2gafCmd = &cobra.Command{
	Use:   "gam2gaf graph.gfa input.gam",
	Short: "Convert GAM to GAF",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		banner("GAM to GAF")
		return run(&gax.GamToGafRunner{
			Gfafile:  args[0],
			Gamfile:  args[1],
			Outfile:  outfileOr(args[1], ".gaf"),
			Pipeline: cfg.Pipeline(),
		})
	},
}

var gam2gampCmd = &cobra.Command{
	Use:   "gam2gamp graph.gfa input.gam",
	Short: "Convert GAM to GAMP",
	Long: `
Wrap every alignment into a multipath alignment. Alignments annotated with
score_regions are cut into a chain of subpaths, one per region.
`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		banner("GAM to GAMP")
		return run(&gax.GamToGampRunner{
			Gfafile:  args[0],
			Gamfile:  args[1],
			Outfile:  outfileOr(args[1], ".gamp"),
			Pipeline: cfg.Pipeline(),
		})
	},
}

var gamp2gamCmd = &cobra.Command{
	Use:   "gamp2gam input.gamp",
	Short: "Flatten GAMP to GAM along the first subpath chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		banner("GAMP to GAM")
		return run(&gax.GampToGamRunner{
			Gampfile: args[0],
			Outfile:  outfileOr(args[0], ".gam"),
			Pipeline: cfg.Pipeline(),
		})
	},
}

var gampCheckCmd = &cobra.Command{
	Use:   "gamp-check input.gamp",
	Short: "Parse a GAMP file and check that subpaths are topologically ordered",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		banner("GAMP check")
		return run(&gax.GampChecker{
			Gampfile: args[0],
			Pipeline: cfg.Pipeline(),
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gax %s\n", gax.Version)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&envfile, "env", "", "Environment file to load, .env when present")
	pf.IntVarP(&threads, "threads", "t", 0, "Number of records converted in parallel ("+EnvThreads+")")
	pf.BoolVar(&failFast, "fail-fast", false, "Stop at the first bad record ("+EnvFailFast+")")
	pf.StringVar(&deadline, "deadline", "", "Stop starting new records after this long, e.g. 10m ("+EnvDeadline+")")
	pf.StringVar(&logLevel, "log-level", "", "DEBUG, INFO, NOTICE, WARNING or ERROR ("+EnvLogLevel+")")

	for _, cmd := range []*cobra.Command{gaf2gamCmd, gam2gafCmd, gam2gampCmd, gamp2gamCmd} {
		cmd.Flags().StringVarP(&outfile, "output", "o", "", "Output file, `-` for stdout")
	}
	gaf2gamCmd.Flags().StringP("reads", "r", "", "FASTA/FASTQ file with the query sequences")

	rootCmd.AddCommand(gaf2gamCmd, gam2gafCmd, gam2gampCmd, gamp2gamCmd, gampCheckCmd, versionCmd)
}

// Execute runs the command line
func Execute() error {
	return rootCmd.Execute()
}
