package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/tessera/internal"
	"github.com/starford/tessera/internal/index"
	"github.com/starford/tessera/internal/mcpserver"
	"github.com/starford/tessera/internal/noteservice"
	"github.com/starford/tessera/internal/ranker"
	pkgconfig "github.com/starford/tessera/pkg/config"
)

func loadConfig(cmd *cli.Command) (*pkgconfig.Holder[internal.Config], error) {
	h, err := pkgconfig.NewHolder(cmd.String("config"), internal.NewDefaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return h, nil
}

// open wires the runtime for one-shot commands. Logs go to stderr so that
// stdout carries only command output.
func open(cmd *cli.Command) (*internal.Runtime, error) {
	h, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return internal.Open(internal.WithConfigHolder(h), internal.WithLogOutput(os.Stderr))
}

func serve(ctx context.Context, cmd *cli.Command) error {
	h, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfigHolder(h)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func resync(ctx context.Context, cmd *cli.Command) error {
	rt, err := open(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	rebuild := cmd.Bool("rebuild")
	color.Green("Reconciling index for %s", rt.Layout.NotesRoot)
	start := time.Now()

	var stats index.Stats
	if rebuild {
		stats, err = rt.Service.Rebuild(ctx, "requested from command line")
	} else {
		stats, err = rt.Service.Resync(ctx)
	}
	if err != nil {
		return fmt.Errorf("resync: %w", err)
	}

	color.Green("✓ Index up to date")
	fmt.Printf("  Scanned:   %d\n", stats.Scanned)
	fmt.Printf("  Updated:   %d\n", stats.Updated)
	fmt.Printf("  Removed:   %d\n", stats.Removed)
	fmt.Printf("  Rendered:  %d\n", stats.Rendered)
	fmt.Printf("  Duration:  %.2fs\n", time.Since(start).Seconds())
	return nil
}

func check(ctx context.Context, cmd *cli.Command) error {
	rt, err := open(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ok, err := rt.Service.QuickCheck(ctx)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}
	if !ok {
		color.Yellow("✗ Index is out of sync with %s; run `tessera resync`", rt.Layout.NotesRoot)
		return cli.Exit("", 1)
	}
	color.Green("✓ Index is in sync with %s", rt.Layout.NotesRoot)
	return nil
}

func search(ctx context.Context, cmd *cli.Command) error {
	limit := noteservice.DefaultSearchLimit
	if s := cmd.String("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid --limit %q", s)
		}
		limit = n
	}

	rt, err := open(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	hits, err := rt.Service.SearchHits(ctx, cmd.Args().First(), limit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if len(hits) == 0 {
		color.Yellow("No matches")
		return nil
	}

	tierColor := map[ranker.Tier]*color.Color{
		ranker.TierTitleExact:  color.New(color.FgGreen, color.Bold),
		ranker.TierTitlePrefix: color.New(color.FgGreen),
		ranker.TierTitleFuzzy:  color.New(color.FgCyan),
		ranker.TierContent:     color.New(color.FgWhite),
	}
	for _, h := range hits {
		c := tierColor[h.Tier]
		fmt.Printf("%s  %s  %s\n", c.Sprintf("%-12s", h.Tier), h.Filename, color.HiBlackString(h.Title))
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	rt, err := open(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.Service.Startup(ctx)
	return mcpserver.New(rt.Service, rt.Logger).ServeStdio()
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:   "tessera",
		Usage:  "Durable plain-text note store with a self-healing search index",
		Action: serve,
		Flags:  []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, SSE stream and file watcher",
				Action: serve,
			},
			{
				Name:  "resync",
				Usage: "Reconcile the index with the notes root",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "rebuild", Usage: "Drop the index and rebuild it from scratch"},
				},
				Action: resync,
			},
			{
				Name:   "check",
				Usage:  "Quick consistency check of the index",
				Action: check,
			},
			{
				Name:      "search",
				Usage:     "Search notes from the command line",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum number of results"},
				},
				Action: search,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
