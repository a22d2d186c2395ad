package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/spf13/cobra"

	"github.com/danielledeleo/wikiforge/internal/config"
	"github.com/danielledeleo/wikiforge/internal/console"
	"github.com/danielledeleo/wikiforge/internal/dump"
	"github.com/danielledeleo/wikiforge/internal/sandbox/lua"
	"github.com/danielledeleo/wikiforge/internal/store"
	"github.com/danielledeleo/wikiforge/internal/wikitext"
	"github.com/danielledeleo/wikiforge/internal/wikitext/namespace"
	"github.com/danielledeleo/wikiforge/internal/wikitext/parse"
)

func main() {
	root := &cobra.Command{
		Use:   "wikiforge",
		Short: "wikitext preprocessing, parsing, and template expansion over a dump",
	}

	ingestCmd := &cobra.Command{
		Use:   "ingest <dump-file>",
		Short: "load a dump into the page store and run template analysis, without expanding any page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(args[0])
		},
	}
	root.AddCommand(ingestCmd)

	var workers int
	replayCmd := &cobra.Command{
		Use:   "replay <dump-file>",
		Short: "ingest a dump, analyze templates, and expand every page through the full pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(args[0], workers)
		},
	}
	replayCmd.Flags().IntVar(&workers, "workers", 0, "replay worker count, defaults to the config value")
	root.AddCommand(replayCmd)

	var addr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the operator console over an already-ingested page store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "console listen address")
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		slog.Error("wikiforge: fatal", "error", err)
		os.Exit(1)
	}
}

// openProjectStore, given the loaded config, opens the page store and its sqlite
// snapshot at cfg.DataDir, and restores a prior snapshot if one exists.
func openProjectStore(cfg *config.Config) (*store.Store, *namespace.Table, error) {
	ns := namespace.NewDefault(cfg.Project.NamespaceAliases)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating data dir: %w", err)
	}

	st, err := store.Open(filepath.Join(cfg.DataDir, "pages.dat"), ns, cfg.Project.FirstLetterCaseSensitive)
	if err != nil {
		return nil, nil, fmt.Errorf("opening page store: %w", err)
	}

	db, err := store.OpenSnapshotDB(filepath.Join(cfg.DataDir, "snapshot.db"))
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("opening snapshot db: %w", err)
	}
	defer db.Close()

	if err := st.LoadSnapshot(db); err != nil {
		slog.Info("no usable snapshot found, starting from an empty store", "error", err)
	}

	return st, ns, nil
}

func saveProjectSnapshot(cfg *config.Config, st *store.Store) error {
	db, err := store.OpenSnapshotDB(filepath.Join(cfg.DataDir, "snapshot.db"))
	if err != nil {
		return err
	}
	defer db.Close()
	return st.SaveSnapshot(db)
}

func runIngest(dumpPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, ns, err := openProjectStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	r, err := dump.OpenDump(dumpPath)
	if err != nil {
		return fmt.Errorf("opening dump: %w", err)
	}
	defer r.Close()

	d := &dump.Driver{Store: st, Namespaces: ns}

	stats, err := d.Ingest(r)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	slog.Info("ingest complete", "seen", stats.Seen, "ingested", stats.Ingested, "skipped", stats.Skipped)

	if err := d.RunAnalysis(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}

	if err := saveProjectSnapshot(cfg, st); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	slog.Info("snapshot saved", "digest", st.TemplateDigest())
	return nil
}

func runReplay(dumpPath string, workers int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if workers <= 0 {
		workers = cfg.Workers
	}

	st, ns, err := openProjectStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	r, err := dump.OpenDump(dumpPath)
	if err != nil {
		return fmt.Errorf("opening dump: %w", err)
	}
	defer r.Close()

	scriptHost := lua.New(func(name string) (string, bool) {
		return st.ReadByTitle("Module:" + strings.TrimPrefix(name, "Module:"))
	})

	engine := &wikitext.Engine{
		Store:                    st,
		Scripts:                  scriptHost,
		Namespaces:               ns,
		FirstLetterCaseSensitive: cfg.Project.FirstLetterCaseSensitive,
	}

	handle := func(model store.ContentModel, title, body string) (any, error) {
		if model == store.ModelRedirect {
			return nil, nil
		}

		deadline := time.Now().Add(cfg.ScriptTimeout)

		page := wikitext.NewPage()
		if err := page.StartPage(title); err != nil {
			return nil, err
		}

		text := page.Preprocess(body)
		text = page.Encode(text)
		text = engine.Expand(page, text, nil, wikitext.Flags{Deadline: deadline})
		text = wikitext.Finalize(page, text)

		root := parse.Parse(text, page)
		html, err := parse.ToHTML(root)
		if err != nil {
			return nil, fmt.Errorf("serializing %q: %w", title, err)
		}
		return html, nil
	}

	d := &dump.Driver{Store: st, Namespaces: ns}
	ctx, cancel := signalContext()
	defer cancel()

	stats, results, err := d.Run(ctx, r, workers, handle)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	errCount := 0
	for _, res := range results {
		if res.Err != nil {
			errCount++
		}
	}
	slog.Info("replay complete",
		"seen", stats.Seen, "ingested", stats.Ingested,
		"pages", len(results), "errors", errCount)

	if err := saveProjectSnapshot(cfg, st); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

func runServe(addr string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, _, err := openProjectStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	db, err := store.OpenSnapshotDB(filepath.Join(cfg.DataDir, "snapshot.db"))
	if err != nil {
		return fmt.Errorf("opening snapshot db: %w", err)
	}
	defer db.Close()

	srv, err := console.New(st, db, securecookie.GenerateRandomKey(32), securecookie.GenerateRandomKey(32))
	if err != nil {
		return fmt.Errorf("starting console: %w", err)
	}

	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("console server error", "error", err)
			os.Exit(1)
		}
	}()
	slog.Info("operator console listening", "addr", addr)

	ctx, cancel := signalContext()
	defer cancel()
	<-ctx.Done()

	slog.Info("shutting down console...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// signalContext returns a context canceled on SIGINT/SIGTERM, the same
// shutdown trigger cmd/periwiki/main.go listens for.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
