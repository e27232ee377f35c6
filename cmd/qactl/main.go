package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/postgres"
)

// qactl manages the PostgreSQL-backed corpus and API keys.
//
// Usage:
//
//	qactl list
//	qactl add     --question "..." --answer "..."
//	qactl update  --index 2 --question "..." --answer "..."
//	qactl delete  --index 2
//	qactl import  --file qa_data.json
//	qactl export  [--file qa_data.json]
//	qactl seed
//	qactl match   [--policy popup|toolbar] [--limit n] "selected text"
//	qactl keys create --name "extension" [--rate-limit 120] [--expires-in 720h]
//	qactl keys list
//	qactl keys revoke --key <raw-key>
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	store := corpus.NewPostgresStore(db)
	// Running matchers drop their caches on these events.
	publisher := kafka.NewPublisher(cfg.Kafka, cfg.Kafka.Topics.CorpusChanges)
	defer publisher.Close()
	svc := corpus.NewService(store, publisher, nil)

	switch args[0] {
	case "list":
		cmdList(ctx, svc)
	case "add":
		cmdAdd(ctx, svc, args[1:])
	case "update":
		cmdUpdate(ctx, svc, args[1:])
	case "delete":
		cmdDelete(ctx, svc, args[1:])
	case "import":
		cmdImport(ctx, svc, args[1:])
	case "export":
		cmdExport(ctx, svc, args[1:])
	case "seed":
		cmdSeed(ctx, svc)
	case "match":
		cmdMatch(ctx, executor.New(store, cfg.Matcher), args[1:])
	case "keys":
		cmdKeys(ctx, apikey.NewValidator(db), cfg.Auth.DefaultRateLimit, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func cmdList(ctx context.Context, svc *corpus.Service) {
	records, err := svc.List(ctx)
	if err != nil {
		fail("failed to list records", err)
	}
	if len(records) == 0 {
		fmt.Println("Corpus is empty.")
		return
	}
	for i, r := range records {
		fmt.Printf("[%d] Q: %s\n", i, r.Question)
		for _, line := range strings.Split(r.Answer, "\n") {
			fmt.Printf("     A: %s\n", line)
		}
	}
	fmt.Printf("\nTotal: %d record(s)\n", len(records))
}

func cmdAdd(ctx context.Context, svc *corpus.Service, args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	question := fs.String("question", "", "question text")
	answer := fs.String("answer", "", "answer text, one correct option per line")
	fs.Parse(args)

	index, err := svc.Add(ctx, *question, *answer)
	if err != nil {
		fail("failed to add record", err)
	}
	fmt.Printf("Record added at index %d.\n", index)
}

func cmdUpdate(ctx context.Context, svc *corpus.Service, args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	index := fs.Int("index", -1, "record index")
	question := fs.String("question", "", "question text")
	answer := fs.String("answer", "", "answer text")
	fs.Parse(args)

	if err := svc.Update(ctx, *index, *question, *answer); err != nil {
		fail("failed to update record", err)
	}
	fmt.Printf("Record %d updated.\n", *index)
}

func cmdDelete(ctx context.Context, svc *corpus.Service, args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	index := fs.Int("index", -1, "record index")
	fs.Parse(args)

	if err := svc.Delete(ctx, *index); err != nil {
		fail("failed to delete record", err)
	}
	fmt.Printf("Record %d deleted.\n", *index)
}

func cmdImport(ctx context.Context, svc *corpus.Service, args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	path := fs.String("file", "", "qa_data.json to import")
	fs.Parse(args)

	if *path == "" {
		fmt.Fprintln(os.Stderr, "error: --file is required")
		os.Exit(1)
	}
	f, err := os.Open(*path)
	if err != nil {
		fail("failed to open file", err)
	}
	defer f.Close()

	n, err := svc.Import(ctx, f)
	if err != nil {
		fail("failed to import", err)
	}
	fmt.Printf("Imported %d record(s); the previous corpus was replaced.\n", n)
}

func cmdExport(ctx context.Context, svc *corpus.Service, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	path := fs.String("file", "", "output file (default stdout)")
	fs.Parse(args)

	out := os.Stdout
	if *path != "" {
		f, err := os.Create(*path)
		if err != nil {
			fail("failed to create file", err)
		}
		defer f.Close()
		out = f
	}
	if err := svc.Export(ctx, out); err != nil {
		fail("failed to export", err)
	}
}

func cmdSeed(ctx context.Context, svc *corpus.Service) {
	seeded, err := svc.Seed(ctx)
	if err != nil {
		fail("failed to seed", err)
	}
	if seeded {
		fmt.Println("Sample records added.")
	} else {
		fmt.Println("Corpus is not empty; nothing seeded.")
	}
}

func cmdMatch(ctx context.Context, exec *executor.Executor, args []string) {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	policyName := fs.String("policy", executor.PolicyToolbar, "ranking policy (popup|toolbar)")
	limit := fs.Int("limit", 0, "override the policy limit")
	fs.Parse(args)

	query := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(query) == "" {
		fmt.Fprintln(os.Stderr, "error: selected text is required")
		os.Exit(1)
	}
	policy, err := exec.Lookup(*policyName, *limit)
	if err != nil {
		fail("invalid policy", err)
	}
	result, err := exec.Execute(ctx, query, policy)
	if err != nil {
		fail("failed to match", err)
	}
	if len(result.Results) == 0 {
		fmt.Println("No matches.")
		return
	}
	for i, r := range result.Results {
		fmt.Printf("%d. (%.0f%%) %s\n", i+1, r.Score*100, r.Question)
		for _, line := range strings.Split(r.Answer, "\n") {
			fmt.Printf("     %s\n", line)
		}
	}

	best, err := exec.Best(ctx, query)
	if err != nil {
		fail("failed to match", err)
	}
	if best.Accepted {
		fmt.Printf("\nHighlight would mark: %s\n", strings.Join(best.Tokens, " | "))
	} else {
		fmt.Printf("\nBest score is below %.2f; nothing would be highlighted.\n", best.Threshold)
	}
}

func cmdKeys(ctx context.Context, v *apikey.Validator, defaultRateLimit int, args []string) {
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	switch args[0] {
	case "create":
		cmdKeyCreate(ctx, v, defaultRateLimit, args[1:])
	case "list":
		cmdKeyList(ctx, v)
	case "revoke":
		cmdKeyRevoke(ctx, v, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown keys command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func cmdKeyCreate(ctx context.Context, v *apikey.Validator, defaultRateLimit int, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "name for the api key")
	rateLimit := fs.Int("rate-limit", defaultRateLimit, "requests per rate window")
	expiresIn := fs.String("expires-in", "", "expiry duration, e.g. 720h (optional)")
	fs.Parse(args)

	var expiresAt *time.Time
	if *expiresIn != "" {
		d, err := time.ParseDuration(*expiresIn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --expires-in: %v\n", err)
			os.Exit(1)
		}
		t := time.Now().Add(d)
		expiresAt = &t
	}

	raw, info, err := v.CreateKey(ctx, *name, *rateLimit, expiresAt)
	if err != nil {
		fail("failed to create key", err)
	}

	fmt.Println("API key created. It cannot be retrieved again.")
	fmt.Println()
	fmt.Printf("  Key:        %s\n", raw)
	fmt.Printf("  ID:         %d\n", info.ID)
	fmt.Printf("  Name:       %s\n", info.Name)
	fmt.Printf("  Rate Limit: %d\n", info.RateLimit)
	if info.ExpiresAt != nil {
		fmt.Printf("  Expires:    %s\n", info.ExpiresAt.Format(time.RFC3339))
	} else {
		fmt.Println("  Expires:    never")
	}
}

func cmdKeyRevoke(ctx context.Context, v *apikey.Validator, args []string) {
	fs := flag.NewFlagSet("revoke", flag.ExitOnError)
	key := fs.String("key", "", "raw api key to revoke")
	id := fs.String("id", "", "key id to revoke")
	fs.Parse(args)

	var err error
	switch {
	case *key != "":
		err = v.RevokeKey(ctx, *key)
	case *id != "":
		n, perr := strconv.ParseInt(*id, 10, 64)
		if perr != nil {
			fail("invalid --id", perr)
		}
		err = v.RevokeID(ctx, n)
	default:
		fmt.Fprintln(os.Stderr, "error: --key or --id is required")
		os.Exit(1)
	}
	if err != nil {
		fail("failed to revoke key", err)
	}
	fmt.Println("API key revoked.")
}

func cmdKeyList(ctx context.Context, v *apikey.Validator) {
	keys, err := v.ListKeys(ctx)
	if err != nil {
		fail("failed to list keys", err)
	}
	if len(keys) == 0 {
		fmt.Println("No active API keys.")
		return
	}

	fmt.Printf("%-8s  %-20s  %-10s  %s\n", "ID", "Name", "Rate Limit", "Expires")
	fmt.Println("--------  --------------------  ----------  -------------------------")
	for _, k := range keys {
		expires := "never"
		if k.ExpiresAt != nil {
			expires = k.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Printf("%-8d  %-20s  %-10d  %s\n", k.ID, k.Name, k.RateLimit, expires)
	}
	fmt.Printf("\nTotal: %d active key(s)\n", len(keys))
}

func fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: qactl <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  list           List corpus records")
	fmt.Fprintln(os.Stderr, "  add            Add a record")
	fmt.Fprintln(os.Stderr, "  update         Update the record at --index")
	fmt.Fprintln(os.Stderr, "  delete         Delete the record at --index")
	fmt.Fprintln(os.Stderr, "  import         Replace the corpus from a qa_data.json file")
	fmt.Fprintln(os.Stderr, "  export         Write the corpus as qa_data.json")
	fmt.Fprintln(os.Stderr, "  seed           Add the sample records to an empty corpus")
	fmt.Fprintln(os.Stderr, "  match          Rank the corpus against selected text")
	fmt.Fprintln(os.Stderr, "  keys create    Create an API key")
	fmt.Fprintln(os.Stderr, "  keys list      List active API keys")
	fmt.Fprintln(os.Stderr, "  keys revoke    Revoke an API key by --key or --id")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Examples:")
	fmt.Fprintln(os.Stderr, `  qactl add --question "What is a conceptual model" --answer "A mapping"`)
	fmt.Fprintln(os.Stderr, `  qactl match --policy popup "conceptual model"`)
	fmt.Fprintln(os.Stderr, `  qactl keys create --name "extension" --expires-in 720h`)
}
