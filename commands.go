package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"shiftscan/aggregation"
	"shiftscan/automation"
	"shiftscan/client"
	"shiftscan/config"
	"shiftscan/database"
	"shiftscan/export"
	"shiftscan/gate"
	"shiftscan/ingest"
	"shiftscan/loader"
	"shiftscan/mapping"
	"shiftscan/mirror"
	"shiftscan/model"
	"shiftscan/parsers"
	"shiftscan/render"
	"shiftscan/tui"
	"shiftscan/watcher"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var (
	openAfterStart bool
	staticDir      string

	serverURL string
	pipeMode  bool

	passphrase   string
	exportFormat string
	outPath      string
	assumeYes    bool

	mappingCharset string
	importLocal    bool
)

func init() {
	serveCmd.Flags().BoolVar(&openAfterStart, "open", false, "Open the public URL in a browser once the server is up")
	serveCmd.Flags().StringVar(&staticDir, "static", "", "Serve a web front-end from this directory")

	for _, c := range []*cobra.Command{scanCmd, exportCmd, importMappingsCmd, clearCmd, reportCmd, reportPDFCmd} {
		c.Flags().StringVar(&serverURL, "server", "", "Server base URL (default from config)")
	}
	scanCmd.Flags().BoolVar(&pipeMode, "pipe", false, "Read newline-terminated codes from stdin instead of the interactive screen")

	for _, c := range []*cobra.Command{exportCmd, clearCmd} {
		c.Flags().StringVarP(&passphrase, "passphrase", "p", "", "Passphrase for protected operations (default $"+config.EnvPassphrase+")")
	}
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", export.FormatXLSX, "Export format: xlsx or csv")
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default scanned-items-<date>.<format>)")
	reportPDFCmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default scan-report-<date>.pdf)")
	clearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")

	importMappingsCmd.Flags().StringVar(&mappingCharset, "charset", "", "Charset of a CSV file (default from config)")
	importMappingsCmd.Flags().BoolVar(&importLocal, "local", false, "Write straight into the configured database instead of calling the server")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scan server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		loc, err := cfg.Location()
		if err != nil {
			return err
		}

		db, err := database.Open(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		table, err := mapping.NewTable(db, logger)
		if err != nil {
			return fmt.Errorf("failed to load mapping table: %w", err)
		}
		if err := loader.InitDatabase(ctx, table, cfg.MappingSeedFile, cfg.MappingCharset, logger); err != nil {
			logger.Error("mapping seed failed", zap.Error(err))
		}

		g, err := gate.New(cfg.Gate)
		if err != nil {
			return err
		}
		if !g.Configured() {
			logger.Warn("no passphrase configured, clearing and exporting are disabled")
		}

		app := &App{
			DB:        db,
			Logger:    logger,
			Ingest:    ingest.NewService(db, logger),
			Debouncer: ingest.NewDebouncer(cfg.DebounceWindow),
			Mappings:  table,
			Scans:     aggregation.NewService(db, table, loc),
			Gate:      g,
			StaticDir: staticDir,
		}
		srv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           NewRouter(app),
			ReadHeaderTimeout: 10 * time.Second,
		}

		eg, egCtx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			logger.Info("server listening", zap.String("addr", cfg.ListenAddr), zap.String("public_url", cfg.PublicURL))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		eg.Go(func() error {
			<-egCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			logger.Info("shutting down")
			return srv.Shutdown(shutdownCtx)
		})
		if cfg.MappingWatchDir != "" {
			w := watcher.New(cfg.MappingWatchDir, cfg.MappingCharset, table, logger)
			eg.Go(func() error { return w.Run(egCtx) })
		}

		if openAfterStart && cfg.PublicURL != "" {
			openBrowser(cfg.PublicURL)
		}
		return eg.Wait()
	},
}

func newClient() (*client.Client, error) {
	base := serverURL
	if base == "" {
		base = cfg.Client.ServerURL
	}
	return client.New(base, nil)
}

// resolvePassphrase prefers the flag; cfg already carries the environment override.
func resolvePassphrase() string {
	if passphrase != "" {
		return passphrase
	}
	return cfg.Gate.Passphrase
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a scanning station with an offline mirror",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		store, err := mirror.Open(cfg.Client.MirrorPath)
		if err != nil {
			return fmt.Errorf("failed to open mirror: %w", err)
		}
		defer store.Close()

		// The interactive screen owns the terminal, so logs go nowhere unless
		// a log file was asked for.
		log := logger
		if !pipeMode && logFile == "" {
			log = zap.NewNop()
		}
		syncer := mirror.NewSyncer(store, c, log)
		debouncer := ingest.NewDebouncer(cfg.DebounceWindow)

		if !pipeMode {
			return tui.Run(ctx, tui.New(ctx, syncer, debouncer, cfg.Client.ReconcileInterval, loc))
		}

		station := newPipeStation(syncer, debouncer, cfg.Client.ReconcileInterval, loc, log)
		return station.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download the scan export from the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportFormat != export.FormatXLSX && exportFormat != export.FormatCSV {
			return fmt.Errorf("unknown export format %q", exportFormat)
		}
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}

		path := outPath
		if path == "" {
			path = export.Filename(exportFormat, time.Now().In(loc))
		}
		tmp := path + ".part"
		f, err := os.Create(tmp)
		if err != nil {
			return err
		}
		err = c.Export(cmd.Context(), exportFormat, resolvePassphrase(), f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(tmp)
			return err
		}
		if err := os.Rename(tmp, path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Export written to %s\n", path)
		return nil
	},
}

var importMappingsCmd = &cobra.Command{
	Use:   "import-mappings FILE",
	Short: "Replace the code to path mapping table from an xlsx or csv file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		charset := mappingCharset
		if charset == "" {
			charset = cfg.MappingCharset
		}
		ctx := cmd.Context()

		if importLocal {
			db, err := database.Open(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()
			table, err := mapping.NewTable(db, logger)
			if err != nil {
				return err
			}
			n, err := loader.LoadMappingFile(ctx, table, args[0], charset)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d mapping rows into %s\n", n, cfg.DatabasePath)
			return nil
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		entries, err := parsers.ParseMappingFile(filepath.Base(args[0]), f, charset)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.ReplaceMappings(ctx, entries); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d mapping rows\n", len(entries))
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every scan on the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !assumeYes {
			fmt.Fprint(cmd.OutOrStdout(), "Delete all scanned items on the server? [y/N] ")
			answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		n, err := c.Clear(cmd.Context(), resolvePassphrase())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d scanned items\n", n)
		return nil
	},
}

// fetchReport lists the server's scans and regroups them in the local time zone.
func fetchReport(ctx context.Context) (model.GroupedScans, time.Time, error) {
	loc, err := cfg.Location()
	if err != nil {
		return model.GroupedScans{}, time.Time{}, err
	}
	c, err := newClient()
	if err != nil {
		return model.GroupedScans{}, time.Time{}, err
	}
	g, err := c.List(ctx)
	if err != nil {
		return model.GroupedScans{}, time.Time{}, err
	}
	return aggregation.Group(g.All(), nil, loc), time.Now().In(loc), nil
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the shift report in the terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, now, err := fetchReport(cmd.Context())
		if err != nil {
			return err
		}
		out, err := glamour.Render(render.RenderReportMarkdown(g, now), "auto")
		if err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

var reportPDFCmd = &cobra.Command{
	Use:   "report-pdf",
	Short: "Print the shift report to a PDF file with a headless browser",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, now, err := fetchReport(cmd.Context())
		if err != nil {
			return err
		}
		path := outPath
		if path == "" {
			path = "scan-report-" + now.Format("2006-01-02") + ".pdf"
		}
		if err := automation.PrintHTMLToFile(cmd.Context(), render.RenderReportHTML(g, now), path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
		return nil
	},
}

var hashPassphraseCmd = &cobra.Command{
	Use:   "hash-passphrase [PASSPHRASE]",
	Short: "Print a bcrypt hash for gate.passphrase_hash",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var p string
		if len(args) == 1 {
			p = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read passphrase: %w", err)
			}
			p = strings.TrimRight(line, "\r\n")
		}
		hash, err := gate.HashPassphrase(p)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}
