package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metcalfc/prr/internal/config"
	"github.com/metcalfc/prr/internal/extract"
	"github.com/metcalfc/prr/internal/layout"
	"github.com/metcalfc/prr/internal/logging"
	"github.com/metcalfc/prr/internal/server"
	"github.com/metcalfc/prr/internal/session"
	"github.com/metcalfc/prr/internal/state"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	logLevel   string
}

// env is what every command needs after flags are parsed.
type env struct {
	cfg      config.Config
	log      *zap.Logger
	closeLog func() error
}

func (o *rootOptions) load(logSink io.Writer) (*env, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	log, closeLog, err := logging.Open(cfg.Log.Level, cfg.Log.File, logSink)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, closeLog: closeLog}, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "prr",
		Short:         "Paced page reader",
		Long:          "prr lays a document out into fixed pages and reads through it word by word.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newReadCmd(opts))
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newPaginateCmd(opts))
	root.AddCommand(newLocateCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

type readOptions struct {
	fresh    bool
	interval time.Duration
}

func newReadCmd(opts *rootOptions) *cobra.Command {
	ro := &readOptions{}
	cmd := &cobra.Command{
		Use:   "read [file]",
		Short: "Read a document (PDF, EPUB, Markdown or text)",
		Long:  "Read a document word by word, or standard input when no file is given.\n\n" + formatsText(),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(nil)
			if err != nil {
				return err
			}
			defer e.closeLog()
			if ro.interval != 0 {
				e.cfg.Playback.TickInterval = ro.interval
			}

			var name string
			var data []byte
			if len(args) > 0 {
				name = args[0]
				if data, err = os.ReadFile(name); err != nil {
					return fmt.Errorf("read %s: %w", name, err)
				}
			}

			var store session.PositionStore
			if s, err := state.NewStore(); err != nil {
				e.log.Warn("position store unavailable", zap.Error(err))
			} else {
				store = s
			}
			return withFormats(runReader(cmd.Context(), e, name, data, store, ro))
		},
	}
	cmd.Flags().BoolVar(&ro.fresh, "fresh", false, "ignore the saved reading position")
	cmd.Flags().DurationVar(&ro.interval, "interval", 0, "tick interval between words, e.g. 200ms")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload and layout endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.closeLog()
			if addr != "" {
				e.cfg.Server.Addr = addr
			}

			m, err := layout.NewFaceMeasurer(e.cfg.Viewport.FontSize)
			if err != nil {
				return err
			}
			defer m.Close()

			srv := server.New(server.Config{
				Addr:           e.cfg.Server.Addr,
				MaxUploadBytes: e.cfg.Server.MaxUploadBytes,
				Viewport:       e.cfg.Viewport.Layout(),
			}, extract.Default, m, e.log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func formatsText() string {
	return "Supported formats: " + strings.Join(extract.SupportedFormats(), ", ") + "."
}

// withFormats lists the supported formats on unsupported-document errors.
func withFormats(err error) error {
	if errors.Is(err, extract.ErrUnsupported) {
		return fmt.Errorf("%w\n%s", err, formatsText())
	}
	return err
}

type layoutOptions struct {
	terminal bool
}

// buildLayout extracts path and lays it out in the pixel viewport, or in
// the terminal viewport measured in cells.
func buildLayout(ctx context.Context, e *env, path string, lo layoutOptions) (*layout.Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	text, err := extract.Extract(ctx, path, data)
	if err != nil {
		return nil, withFormats(err)
	}

	if lo.terminal {
		return layout.Build(text, e.cfg.Terminal.Layout(), layout.Monospace(1)), nil
	}
	m, err := layout.NewFaceMeasurer(e.cfg.Viewport.FontSize)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	return layout.Build(text, e.cfg.Viewport.Layout(), m), nil
}

func newPaginateCmd(opts *rootOptions) *cobra.Command {
	var lo layoutOptions
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "paginate <file>",
		Short: "Print the page layout of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.closeLog()

			l, err := buildLayout(cmd.Context(), e, args[0], lo)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(server.LayoutJSON(l))
			}
			printLayout(out, l)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&lo.terminal, "terminal", false, "use the terminal viewport")
	return cmd
}

func printLayout(w io.Writer, l *layout.Layout) {
	fmt.Fprintf(w, "%d words, %d paragraphs, %d pages\n", len(l.Words), len(l.Paragraphs), l.PageCount())
	for _, p := range l.Pages {
		last := p.FirstWord + p.WordCount - 1
		fmt.Fprintf(w, "\n-- page %d (words %d-%d) --\n", p.Number, p.FirstWord, last)
		for _, ln := range p.Lines {
			marker := " "
			if ln.Fragment {
				marker = "~"
			}
			fmt.Fprintf(w, "%s %s\n", marker, ln.Text())
		}
	}
}

func newLocateCmd(opts *rootOptions) *cobra.Command {
	var lo layoutOptions
	cmd := &cobra.Command{
		Use:   "locate <file> <word>",
		Short: "Print the paragraph and page of a global word number",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(strings.TrimSpace(args[1]))
			if err != nil {
				return fmt.Errorf("%w: %q", session.ErrMalformedInput, args[1])
			}
			e, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.closeLog()

			l, err := buildLayout(cmd.Context(), e, args[0], lo)
			if err != nil {
				return err
			}
			if l.Empty() {
				return session.ErrEmptyDocument
			}
			pos, err := l.Locate(n)
			if err != nil {
				if errors.Is(err, layout.ErrOutOfRange) {
					return fmt.Errorf("%w: word %d not in [0, %d]", session.ErrInvalidRange, n, len(l.Words)-1)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "word %d %q: paragraph %d (word %d), page %d\n",
				pos.Word, l.Words[pos.Word], pos.Paragraph, pos.WordInParagraph, pos.Page)
			return nil
		},
	}
	cmd.Flags().BoolVar(&lo.terminal, "terminal", false, "use the terminal viewport")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "prr %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
