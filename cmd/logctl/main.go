package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	apiclient "github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/pkg/api/client"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/pkg/loggen"
)

const defaultAPIBase = "http://localhost:5000"

type cliConfig struct {
	APIBaseURL string `json:"api_base_url"`
}

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "config":
		err = commandConfig(args)
	case "ingest":
		err = commandIngest(args)
	case "query":
		err = commandQuery(args)
	case "seed":
		err = commandSeed(args)
	case "tail":
		err = commandTail(args)
	case "generate":
		err = commandGenerate(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func commandConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	apiBase := fs.String("api", "", "API base URL to store")
	fs.Parse(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if strings.TrimSpace(*apiBase) == "" {
		path, _ := configPath()
		fmt.Printf("api_base_url: %s\nconfig file:  %s\n", cfg.APIBaseURL, path)
		return nil
	}
	client, err := apiclient.New(*apiBase)
	if err != nil {
		return err
	}
	cfg.APIBaseURL = client.BaseURL()
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("api base url set to %s\n", cfg.APIBaseURL)
	return nil
}

func commandIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	file := fs.String("file", "", "Read a JSON record from a file ('-' for stdin)")
	level := fs.String("level", "info", "Log level (error|warn|info|debug)")
	message := fs.String("message", "", "Log message")
	resource := fs.String("resource", "", "Resource identifier")
	trace := fs.String("trace", "", "Trace identifier")
	span := fs.String("span", "", "Span identifier")
	commit := fs.String("commit", "", "Commit hash")
	timestamp := fs.String("timestamp", "", "RFC 3339 timestamp (default now)")
	meta := fs.String("metadata", "", "Metadata as a JSON object")
	apiBase := fs.String("api", "", "API base URL override")
	fs.Parse(args)

	client, err := newClient(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var stored apiclient.Record
	if strings.TrimSpace(*file) != "" {
		payload, err := readPayload(*file)
		if err != nil {
			return err
		}
		stored, err = client.IngestRaw(ctx, payload)
		if err != nil {
			return err
		}
	} else {
		rec := apiclient.Record{
			Level:      *level,
			Message:    *message,
			ResourceID: *resource,
			Timestamp:  *timestamp,
			TraceID:    *trace,
			SpanID:     *span,
			Commit:     *commit,
		}
		if rec.Timestamp == "" {
			rec.Timestamp = time.Now().UTC().Format(time.RFC3339)
		}
		if strings.TrimSpace(*meta) != "" {
			if err := json.Unmarshal([]byte(*meta), &rec.Metadata); err != nil {
				return fmt.Errorf("--metadata must be a JSON object: %w", err)
			}
		}
		stored, err = client.Ingest(ctx, rec)
		if err != nil {
			return err
		}
	}
	fmt.Printf("log stored: id=%s\n", stored.ID)
	return nil
}

func readPayload(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func commandQuery(args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	var f apiclient.Filter
	fs.StringVar(&f.Level, "level", "", "Match level exactly")
	fs.StringVar(&f.Message, "message", "", "Case-insensitive message substring")
	fs.StringVar(&f.ResourceID, "resource", "", "Match resource identifier")
	fs.StringVar(&f.TraceID, "trace", "", "Match trace identifier")
	fs.StringVar(&f.SpanID, "span", "", "Match span identifier")
	fs.StringVar(&f.Commit, "commit", "", "Match commit hash")
	fs.StringVar(&f.TimestampStart, "since", "", "Inclusive lower timestamp bound (RFC 3339)")
	fs.StringVar(&f.TimestampEnd, "until", "", "Inclusive upper timestamp bound (RFC 3339)")
	asJSON := fs.Bool("json", false, "Print raw JSON")
	limit := fs.Int("limit", 0, "Maximum number of records to print")
	apiBase := fs.String("api", "", "API base URL override")
	fs.Parse(args)

	client, err := newClient(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	records, err := client.Query(ctx, f)
	if err != nil {
		return err
	}
	if *limit > 0 && *limit < len(records) {
		records = records[:*limit]
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	p := newPrinter(os.Stdout, isTerminal(os.Stdout))
	for _, rec := range records {
		p.print(rec)
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "no matching logs")
	}
	return nil
}

func commandSeed(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	apiBase := fs.String("api", "", "API base URL override")
	fs.Parse(args)

	client, err := newClient(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := client.Seed(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("seeded %d sample logs\n", n)
	return nil
}

func commandTail(args []string) error {
	fs := flag.NewFlagSet("tail", flag.ExitOnError)
	level := fs.String("level", "", "Only show records with this level")
	apiBase := fs.String("api", "", "API base URL override")
	fs.Parse(args)

	client, err := newClient(*apiBase)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	want := strings.ToLower(strings.TrimSpace(*level))
	p := newPrinter(os.Stdout, isTerminal(os.Stdout))
	fmt.Fprintf(os.Stderr, "streaming new logs from %s (ctrl-c to stop)\n", client.BaseURL())
	err = client.Stream(ctx, func(rec apiclient.Record) {
		if want != "" && rec.Level != want {
			return
		}
		p.print(rec)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func commandGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	count := fs.Int("count", 10, "Number of records to send (0 runs until interrupted)")
	interval := fs.Duration("interval", time.Second, "Pause between records")
	seed := fs.Uint64("seed", 0, "Seed for a reproducible sequence (0 picks one)")
	apiBase := fs.String("api", "", "API base URL override")
	fs.Parse(args)

	client, err := newClient(*apiBase)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := newPrinter(os.Stdout, isTerminal(os.Stdout))
	opts := []loggen.Option{loggen.WithInterval(*interval), loggen.OnEmit(p.print)}
	if *seed != 0 {
		opts = append(opts, loggen.WithSeed(*seed))
	}
	gen, err := loggen.New(client, opts...)
	if err != nil {
		return err
	}
	sent, err := gen.Run(ctx, *count)
	fmt.Fprintf(os.Stderr, "sent %d synthetic logs\n", sent)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newClient(override string) (*apiclient.Client, error) {
	base := strings.TrimSpace(override)
	if base == "" {
		base = strings.TrimSpace(os.Getenv("LOGCTL_API"))
	}
	if base == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		base = cfg.APIBaseURL
	}
	return apiclient.New(base)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: defaultAPIBase}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBase
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "logctl", "config.json"), nil
}

func printUsage() {
	fmt.Printf("logctl %s\n\n", buildVersion)
	fmt.Print(`Usage:
	logctl config [--api http://localhost:5000]
	logctl ingest --level error --message "disk full" --resource server-1 --trace t-1 --span s-1 --commit abc123 [--metadata '{"k":"v"}']
	logctl ingest --file record.json
	logctl query [--level L] [--message text] [--resource id] [--trace id] [--span id] [--commit sha] [--since ts] [--until ts] [--json] [--limit N]
	logctl seed
	logctl tail [--level L]
	logctl generate [--count N] [--interval 1s] [--seed N]
	logctl version

Every command accepts --api to override the stored base URL; LOGCTL_API does the same.
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
