package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/billrecon/internal/billsource"
	"github.com/dvloznov/billrecon/internal/config"
	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/dvloznov/billrecon/internal/export"
	"github.com/dvloznov/billrecon/internal/ledger"
	"github.com/dvloznov/billrecon/internal/ledger/inmemory"
	"github.com/dvloznov/billrecon/internal/logger"
	"github.com/dvloznov/billrecon/internal/notionsync"
	"github.com/dvloznov/billrecon/internal/pipeline"
	"github.com/dvloznov/billrecon/internal/provider"
	"github.com/dvloznov/billrecon/internal/reconcile"
	"github.com/dvloznov/billrecon/internal/report"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "import":
		runImport(os.Args[2:])
	case "settle":
		runSettle(os.Args[2:])
	case "report":
		runReport(os.Args[2:])
	case "providers":
		runProviders(os.Args[2:])
	case "sync-notion":
		runSyncNotion(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Bill Import & Reconciliation")
	fmt.Println("\nUsage:")
	fmt.Println("  billimport <command> [options] FILE...")
	fmt.Println("\nCommands:")
	fmt.Println("  import       Import bill exports and print their reconciliation verdicts")
	fmt.Println("  settle       Collapse flagged records into one write-off residual")
	fmt.Println("  report       Summarize imported bills by period, category and account")
	fmt.Println("  providers    List the configured bill providers")
	fmt.Println("  sync-notion  Mirror imported transactions into a Notion database")
	fmt.Println("  help         Show this help message")
	fmt.Println("\nFILE may be a local path or a gs://bucket/object URI.")
	fmt.Println("Settings are read from BILLRECON_* environment variables and an optional .env file.")
	fmt.Println("\nRun 'billimport <command> -h' for more information on a command.")
}

// common holds the flags shared by every bill-reading command.
type common struct {
	envFile           *string
	provider          *string
	allowUnreconciled *bool
	strict            *bool
}

func addCommon(fs *flag.FlagSet) *common {
	return &common{
		envFile:           fs.String("env", ".env", "Path to a .env file"),
		provider:          fs.String("provider", "auto", "Bill provider (alipay, wechat or auto to detect from the filename)"),
		allowUnreconciled: fs.Bool("allow-unreconciled", false, "Import bills without a summary as unverified"),
		strict:            fs.Bool("strict", false, "Fail on a reconciliation discrepancy"),
	}
}

// session is the wiring a command needs once config is loaded.
type session struct {
	cfg      config.Config
	log      zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	ingester *pipeline.Ingester
	store    *inmemory.Store
}

func newSession(c *common) *session {
	cfg, err := config.Load(*c.envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *c.allowUnreconciled {
		cfg.AllowUnreconciled = true
	}
	if *c.strict {
		cfg.Strict = true
	}

	log, err := logger.NewFromConfig(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	src := billsource.New()
	engine, err := pipeline.NewEngineFromConfig(cfg, src)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure import engine")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	ctx = logger.WithContext(ctx, log)

	store := inmemory.NewStore()
	return &session{
		cfg:      cfg,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		ingester: pipeline.NewIngester(engine, store, src),
		store:    store,
	}
}

// ingestAll imports every file into the session ledger. Files are processed
// in order; a failed file is reported and skipped.
func (s *session) ingestAll(c *common, files []string) ([]*pipeline.IngestResult, int) {
	opts := pipeline.IngestOptions{
		Options: pipeline.Options{AllowUnreconciled: s.cfg.AllowUnreconciled},
		Strict:  s.cfg.Strict,
	}
	if *c.provider != "" && *c.provider != "auto" {
		opts.Source = domain.Source(*c.provider)
	}

	var (
		results  []*pipeline.IngestResult
		failures int
	)
	for _, uri := range files {
		fileOpts := opts
		if s.cfg.Archive != "" {
			fileOpts.ArchiveTo = billsource.Join(s.cfg.Archive, billsource.Filename(uri))
		}
		res, err := s.ingester.Ingest(s.ctx, uri, fileOpts)
		if err != nil {
			s.log.Error().Err(err).Str("uri", uri).Msg("Import failed")
			failures++
			continue
		}
		results = append(results, res)
	}
	return results, failures
}

func (s *session) allTransactions() []domain.Transaction {
	txs, err := s.store.List(s.ctx, ledger.Filter{})
	if err != nil {
		s.log.Fatal().Err(err).Msg("Failed to list ledger")
	}
	return txs
}

func requireFiles(fs *flag.FlagSet) []string {
	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Error: at least one FILE is required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	return files
}

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	c := addCommon(fs)
	printKeys := fs.Bool("print-keys", false, "Print each record's de-duplication key (for write-off masks)")
	exportPath := fs.String("export", "", "Write imported transactions to a .csv or .xlsx file")
	fs.Parse(args)
	files := requireFiles(fs)

	s := newSession(c)
	defer s.cancel()

	results, failures := s.ingestAll(c, files)

	for _, res := range results {
		imp := res.Import
		fmt.Printf("%s [%s]\n", res.URI, imp.Source)
		fmt.Printf("  Verdict:      %s\n", imp.Verdict)
		fmt.Printf("  Transactions: %d (%d new, %d duplicate)\n", len(imp.Transactions), res.Saved.Inserted, res.Saved.Duplicates)
		if imp.Summary.Found {
			fmt.Printf("  Declared:     income %s (%d), expense %s (%d)\n",
				imp.Summary.Income.StringFixed(2), imp.Summary.IncomeCount,
				imp.Summary.Expense.StringFixed(2), imp.Summary.ExpenseCount)
		}
		for _, w := range imp.Warnings {
			fmt.Printf("  Warning:      row %d (line %d): %s\n", w.RowIndex, w.Line, w.Reason)
		}
		if *printKeys {
			printTransactions(imp.Transactions)
		}
	}

	if *exportPath != "" {
		if err := export.WriteFile(*exportPath, s.allTransactions()); err != nil {
			s.log.Fatal().Err(err).Msg("Export failed")
		}
		fmt.Printf("Exported %d transactions to %s\n", s.store.Len(), *exportPath)
	}

	if failures > 0 {
		s.log.Fatal().Int("failed", failures).Int("total", len(files)).Msg("Some bills failed to import")
	}
}

func printTransactions(txs []domain.Transaction) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  KEY\tSIGNED\tCATEGORY\tCOUNTERPARTY")
	for _, t := range txs {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", t.Key(), t.SignedAmount.StringFixed(2), t.Category, t.Counterparty)
	}
	w.Flush()
}

func runSettle(args []string) {
	fs := flag.NewFlagSet("settle", flag.ExitOnError)
	c := addCommon(fs)
	maskPath := fs.String("mask", "", "Write-off mask file listing flagged de-duplication keys (.yaml or text)")
	target := fs.String("target", "", "Ground-truth batch total; empty keeps the flagged records' own net")
	exportPath := fs.String("export", "", "Write settled transactions to a .csv or .xlsx file")
	fs.Parse(args)
	files := requireFiles(fs)

	if *maskPath == "" {
		fmt.Fprintf(os.Stderr, "Error: --mask is required\n")
		os.Exit(1)
	}

	s := newSession(c)
	defer s.cancel()

	mask, err := reconcile.LoadMask(*maskPath)
	if err != nil {
		s.log.Fatal().Err(err).Msg("Failed to load write-off mask")
	}

	if _, failures := s.ingestAll(c, files); failures > 0 {
		s.log.Fatal().Int("failed", failures).Msg("Cannot settle: some bills failed to import")
	}

	txs := s.allTransactions()
	before := domain.Net(txs)

	var settled []domain.Transaction
	if *target == "" {
		settled, err = reconcile.SettleNet(txs, mask)
	} else {
		var t decimal.Decimal
		t, err = decimal.NewFromString(*target)
		if err != nil {
			s.log.Fatal().Err(err).Str("target", *target).Msg("Invalid --target")
		}
		settled, err = reconcile.SettleToTarget(txs, mask, t)
	}
	if err != nil {
		s.log.Fatal().Err(err).Msg("Write-off settlement failed")
	}

	fmt.Printf("Flagged keys: %d\n", mask.Len())
	fmt.Printf("Net before:   %s\n", before.StringFixed(2))
	fmt.Printf("Net after:    %s\n", domain.Net(settled).StringFixed(2))
	for _, t := range settled {
		if t.WriteOff && !t.SignedAmount.IsZero() {
			fmt.Printf("Residual:     %s on %s (%s)\n", t.SignedAmount.StringFixed(2), t.Key(), t.Direction)
		}
	}

	if *exportPath != "" {
		if err := export.WriteFile(*exportPath, settled); err != nil {
			s.log.Fatal().Err(err).Msg("Export failed")
		}
		fmt.Printf("Exported %d transactions to %s\n", len(settled), *exportPath)
	}
}

func runReport(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	c := addCommon(fs)
	period := fs.String("period", string(report.Monthly), "Period bucket: monthly, quarterly or annual")
	top := fs.Int("top", 10, "Number of largest expenses to list (0 for all)")
	fs.Parse(args)
	files := requireFiles(fs)

	p, err := report.ParsePeriod(*period)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	s := newSession(c)
	defer s.cancel()

	if _, failures := s.ingestAll(c, files); failures > 0 {
		s.log.Warn().Int("failed", failures).Msg("Reporting on the bills that imported")
	}
	txs := s.allTransactions()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	total := report.Totals(txs)
	fmt.Fprintf(w, "TOTAL\tincome %s\texpense %s\tbalance %s\t(%d records)\n",
		total.Income.StringFixed(2), total.Expense.StringFixed(2), total.Balance.StringFixed(2), total.Count)

	fmt.Fprintln(w, "\nPERIOD\tINCOME\tEXPENSE\tBALANCE")
	for _, pt := range report.ByPeriod(txs, p) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", pt.Period, pt.Income.StringFixed(2), pt.Expense.StringFixed(2), pt.Balance.StringFixed(2))
	}

	fmt.Fprintln(w, "\nCATEGORY\tEXPENSE\tCOUNT\tSHARE")
	for _, ct := range report.ByCategory(txs, domain.Expense) {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s%%\n", ct.Category, ct.Amount.StringFixed(2), ct.Count, ct.Share.Mul(decimal.NewFromInt(100)).StringFixed(1))
	}

	fmt.Fprintln(w, "\nTOP EXPENSE\tDATE\tCOUNTERPARTY\tCUMULATIVE")
	for _, r := range report.TopExpenses(txs, *top) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s%%\n", r.Amount.StringFixed(2), r.Transaction.Timestamp.Format("2006-01-02"),
			r.Transaction.Counterparty, r.CumulativeShare.Mul(decimal.NewFromInt(100)).StringFixed(1))
	}

	fmt.Fprintln(w, "\nACCOUNT\tNET")
	for _, acct := range report.Accounts(txs) {
		fmt.Fprintf(w, "%s\t%s\n", acct, report.AccountBalance(txs, acct).StringFixed(2))
	}
}

func runProviders(args []string) {
	fs := flag.NewFlagSet("providers", flag.ExitOnError)
	envFile := fs.String("env", ".env", "Path to a .env file")
	fs.Parse(args)

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	reg := provider.DefaultRegistry()
	if cfg.ProvidersFile != "" {
		if reg, err = provider.LoadFile(cfg.ProvidersFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "SOURCE\tNAME\tHEADER ROW\tENCODING\tFILENAMES")
	for _, src := range reg.Sources() {
		p, _ := reg.Get(src)
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", p.Source, p.DisplayName, p.HeaderRow, p.Encoding, strings.Join(p.FilenamePatterns, ", "))
	}
}

func runSyncNotion(args []string) {
	fs := flag.NewFlagSet("sync-notion", flag.ExitOnError)
	c := addCommon(fs)
	dryRun := fs.Bool("dry-run", false, "Log what would be created without writing to Notion")
	fs.Parse(args)
	files := requireFiles(fs)

	s := newSession(c)
	defer s.cancel()

	if !s.cfg.NotionEnabled() {
		s.log.Fatal().Msg("BILLRECON_NOTION_TOKEN and BILLRECON_NOTION_DATABASE are required")
	}

	if _, failures := s.ingestAll(c, files); failures > 0 {
		s.log.Warn().Int("failed", failures).Msg("Syncing the bills that imported")
	}

	res, err := notionsync.SyncTransactions(s.ctx, notionsync.NewClient(s.cfg.NotionToken), s.cfg.NotionDatabase, s.allTransactions(), *dryRun)
	if err != nil {
		s.log.Fatal().Err(err).Msg("Notion sync failed")
	}

	fmt.Printf("Notion sync: %d created, %d already present, %d failed\n", res.Created, res.Skipped, res.Failed)
}
