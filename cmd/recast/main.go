package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/go-go-golems/recast/pkg/bus"
	"github.com/go-go-golems/recast/pkg/config"
	"github.com/go-go-golems/recast/pkg/reform"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var version = "dev"

type options struct {
	inputPath string
	format    string
	showStats bool
}

func main() {
	opts := options{}

	rootCmd := &cobra.Command{
		Use:     "recast",
		Short:   "Reshape structured log events with a declared record template",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.InitLoggerFromCobra(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd, opts)
		},
	}

	cobra.CheckErr(logging.AddLoggingLayerToRootCommand(rootCmd, "recast"))

	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: .recast.yaml in the working directory)")
	rootCmd.PersistentFlags().String("tag", "event", "Routing tag for records without one")
	addTransformFlags(rootCmd.PersistentFlags())

	rootCmd.Flags().StringVar(&opts.inputPath, "input", "", "Input file path (default: stdin)")
	rootCmd.Flags().StringVar(&opts.format, "format", "ndjson", "Output format: ndjson|pretty")
	rootCmd.Flags().BoolVar(&opts.showStats, "stats", false, "Print a reform summary on stderr when done")

	rootCmd.AddCommand(newRelayCmd())

	cobra.CheckErr(rootCmd.Execute())
}

func run(ctx context.Context, cmd *cobra.Command, opts options) error {
	_ = ctx

	if opts.format != "ndjson" && opts.format != "pretty" {
		return errors.New("--format must be ndjson or pretty")
	}

	reformer, defaultTag, err := buildReformer(cmd)
	if err != nil {
		return err
	}

	var r io.Reader
	if opts.inputPath != "" {
		f, err := os.Open(opts.inputPath)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		r = f
	} else {
		r = cmd.InOrStdin()
	}

	bw := bufio.NewWriter(cmd.OutOrStdout())
	defer func() { _ = bw.Flush() }()

	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	br := bufio.NewReader(r)
	var lineNumber int64
	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if line == "" && errors.Is(err, io.EOF) {
			break
		}

		lineNumber++
		env, perr := bus.DecodeEnvelope([]byte(line), defaultTag)
		if perr != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "recast: line %d: %v\n", lineNumber, perr)
			if errors.Is(err, io.EOF) {
				break
			}
			continue
		}

		for _, out := range reformEnvelope(reformer, env) {
			switch opts.format {
			case "ndjson":
				if err := enc.Encode(out); err != nil {
					return err
				}
			case "pretty":
				b, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				if _, err := bw.Write(append(b, '\n')); err != nil {
					return err
				}
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
	}

	if opts.showStats {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), renderStats(reformer.Stats()))
	}
	return nil
}

func buildReformer(cmd *cobra.Command) (*reform.Reformer, string, error) {
	flags := cmd.Root().PersistentFlags()

	path, err := flags.GetString("config")
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		path = config.DefaultPath(wd)
	}

	cfg, err := config.LoadOptional(path)
	if err != nil {
		return nil, "", err
	}

	tr := cfg.Transform
	if err := applyTransformFlags(flags, &tr); err != nil {
		return nil, "", err
	}

	reformer, err := tr.Build()
	if err != nil {
		return nil, "", err
	}

	tag, err := flags.GetString("tag")
	if err != nil {
		return nil, "", err
	}
	return reformer, tag, nil
}

func reformEnvelope(r *reform.Reformer, env bus.Envelope) []bus.Envelope {
	out := r.ReformBatch(env.Tag, []reform.Event{{Time: env.EventTime(), Record: env.Record}})
	envs := make([]bus.Envelope, 0, len(out))
	for _, ev := range out {
		envs = append(envs, bus.Envelope{
			Tag:    env.Tag,
			Time:   ev.Time.Unix(),
			Record: ev.Record,
		})
	}
	return envs
}

var (
	statsTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	statsLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	statsValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E"))
)

func renderStats(st reform.Stats) string {
	pair := func(label string, v int64) string {
		return statsLabelStyle.Render(label+"=") + statsValueStyle.Render(strconv.FormatInt(v, 10))
	}
	return fmt.Sprintf("%s %s %s %s",
		statsTitleStyle.Render("reform"),
		pair("processed", st.Processed),
		pair("emitted", st.Emitted),
		pair("dropped", st.Dropped))
}
