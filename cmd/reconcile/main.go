/*
main.go - Interactive command-line surface over the reconciliation engine

PURPOSE:
  The payroll operator's day-to-day tool. Unlike the HTTP server, this
  surface is interactive: unrecognized employee names and conflicting
  amounts are resolved by prompting on the terminal, with name
  suggestions and "apply to all remaining" shortcuts.

COMMANDS:
  import-attendance <file>  Import a MECANO attendance export
  import-insurer <file>     Import a BTL reimbursement export
  import-bonus <file>       Import a 40% bonus export
  calculate                 Rebuild the summary table
  sync                      Enrich periods from insurer rows, tag orphans
  orphans                   Read-only orphan audit
  unpaid-report             Write the unpaid-differences workbook
  reset                     Delete everything except the roster

COMMAND-LINE FLAGS:
  -config  JSON configuration path (default: config.json)

EXAMPLES:
  ./reconcile -config=config.json import-attendance mecano_july.xlsx
  ./reconcile sync
  ./reconcile unpaid-report

SEE ALSO:
  - recon/resolve.go: the decision points the prompts implement
  - cmd/server/main.go: the non-interactive surface
*/
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yelush19/Litay-Panda-miluim/config"
	"github.com/yelush19/Litay-Panda-miluim/ingest"
	"github.com/yelush19/Litay-Panda-miluim/recon"
	"github.com/yelush19/Litay-Panda-miluim/store/workbook"
)

func main() {
	configPath := flag.String("config", "config.json", "JSON configuration path")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("load config: %v", err)
	}
	store, err := cfg.OpenStore()
	if err != nil {
		fatal("open store: %v", err)
	}
	defer closeStore(store)

	ctx := context.Background()
	app := &app{
		store:    store,
		calendar: cfg.Calendar(),
		output:   cfg.OutputDir,
		in:       bufio.NewReader(os.Stdin),
	}

	switch cmd := args[0]; cmd {
	case "import-attendance":
		err = app.importAttendance(ctx, requireFile(args))
	case "import-insurer":
		err = app.importInsurer(ctx, requireFile(args), false)
	case "import-bonus":
		err = app.importInsurer(ctx, requireFile(args), true)
	case "calculate":
		err = app.calculate(ctx)
	case "sync":
		err = app.sync(ctx)
	case "orphans":
		err = app.orphans(ctx)
	case "unpaid-report":
		err = app.unpaidReport(ctx)
	case "reset":
		err = app.reset(ctx)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fatal("%v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: reconcile [-config path] <command> [file]

commands:
  import-attendance <file>
  import-insurer <file>
  import-bonus <file>
  calculate
  sync
  orphans
  unpaid-report
  reset`)
}

func requireFile(args []string) string {
	if len(args) < 2 {
		usage()
		os.Exit(2)
	}
	return args[1]
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "reconcile: "+format+"\n", args...)
	os.Exit(1)
}

func closeStore(s any) {
	if c, ok := s.(io.Closer); ok {
		c.Close()
	}
}

// =============================================================================
// APPLICATION
// =============================================================================

type app struct {
	store    recon.Store
	calendar recon.HolidayCalendar
	output   string
	in       *bufio.Reader
}

func (a *app) merger() *recon.Merger {
	m := recon.NewMerger(a.store, a.calendar)
	m.Names = a
	m.Conflicts = a
	return m
}

func (a *app) importAttendance(ctx context.Context, path string) error {
	rows, err := ingest.ReadMecanoFile(path)
	if err != nil {
		return err
	}
	records, rowErrs := recon.ParseAttendance(rows)
	candidates := recon.Segment(records)
	fmt.Printf("%d attendance rows, %d candidate periods\n", len(records), len(candidates))

	report, err := a.merger().ImportPeriods(ctx, candidates)
	if err != nil {
		return err
	}
	report.RowErrors = append(rowErrs, report.RowErrors...)
	a.printImportReport(report)
	return nil
}

func (a *app) importInsurer(ctx context.Context, path string, bonus bool) error {
	file, err := ingest.ReadBTLFile(path)
	if err != nil {
		return err
	}
	fmt.Printf("batch %s | payment date %s | %d rows\n",
		file.BatchNumber, recon.NormalizeDate(file.PaymentDate), len(file.Rows))

	var report *recon.ImportReport
	if bonus {
		report, err = a.merger().ImportBonus(ctx, *file)
	} else {
		report, err = a.merger().ImportInsurer(ctx, *file)
	}
	if err != nil {
		return err
	}
	a.printImportReport(report)
	return nil
}

func (a *app) calculate(ctx context.Context) error {
	summaries, err := recon.NewReconciler(a.store).Calculate(ctx)
	if err != nil {
		return err
	}
	byStatus := make(map[recon.Status]int)
	for _, s := range summaries {
		byStatus[s.Status]++
	}
	fmt.Printf("%d settlement lines\n", len(summaries))
	for _, st := range []recon.Status{recon.StatusBalanced, recon.StatusPending, recon.StatusNotApplicable} {
		fmt.Printf("  %-12s %d\n", st, byStatus[st])
	}
	return nil
}

func (a *app) sync(ctx context.Context) error {
	report, err := recon.NewReconciler(a.store).Sync(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("periods updated:        %d\n", report.Updated)
	fmt.Printf("periods without payment: %d\n", report.PeriodsWithoutPayment)
	fmt.Printf("orphan insurer rows:    %d\n", len(report.Orphans))
	if report.BackupPath != "" {
		fmt.Printf("backup: %s\n", report.BackupPath)
	}
	return nil
}

func (a *app) orphans(ctx context.Context) error {
	report, err := recon.NewAuditor(a.store).Audit(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("periods awaiting payment: %d\n", len(report.AwaitingPayment))
	for _, p := range report.AwaitingPayment {
		fmt.Printf("  %s | %-24s | %s - %s\n",
			p.ID, p.Employee, recon.FormatDate(p.Start), recon.FormatDate(p.End))
	}
	fmt.Printf("orphan insurer payments: %d\n", len(report.OrphanPayments))
	for _, r := range report.OrphanPayments {
		fmt.Printf("  %-24s | %s - %s | %s\n", r.Employee, r.Start, r.End, r.Reimbursement)
	}
	return nil
}

func (a *app) unpaidReport(ctx context.Context) error {
	periods, err := recon.NewReconciler(a.store).UnpaidPeriods(ctx)
	if err != nil {
		return err
	}
	if len(periods) == 0 {
		fmt.Println("no unpaid differences")
		return nil
	}
	if err := os.MkdirAll(a.output, 0o755); err != nil {
		return err
	}
	path := filepath.Join(a.output,
		fmt.Sprintf("unpaid_%s.xlsx", time.Now().Format("20060102_150405")))
	if err := workbook.WriteUnpaidReport(path, periods); err != nil {
		return err
	}
	fmt.Printf("%d unpaid periods -> %s\n", len(periods), path)
	return nil
}

func (a *app) reset(ctx context.Context) error {
	fmt.Print("delete all periods, insurer rows, batches and summaries? The roster survives. [y/N] ")
	answer, _ := a.in.ReadString('\n')
	if strings.TrimSpace(strings.ToLower(answer)) != "y" {
		fmt.Println("aborted")
		return nil
	}
	backup, err := recon.BackupIfSupported(ctx, a.store)
	if err != nil {
		return err
	}
	if err := a.store.Reset(ctx); err != nil {
		return err
	}
	if err := a.store.Save(ctx); err != nil {
		return &recon.SaveError{BackupPath: backup, Err: err}
	}
	if backup != "" {
		fmt.Printf("backup: %s\n", backup)
	}
	fmt.Println("store reset")
	return nil
}

func (a *app) printImportReport(r *recon.ImportReport) {
	fmt.Printf("added %d | updated %d | skipped %d", r.Added, r.Updated, r.Skipped)
	if r.SkippedNames > 0 {
		fmt.Printf(" | skipped names %d", r.SkippedNames)
	}
	fmt.Println()
	if len(r.NewEmployees) > 0 {
		fmt.Printf("new employees: %s\n", strings.Join(r.NewEmployees, ", "))
	}
	for _, re := range r.RowErrors {
		fmt.Printf("  row %d: %v\n", re.Index, re.Err)
	}
	if !r.TotalReimbursement.IsZero() || !r.TotalCompensation.IsZero() || !r.TotalBonus.IsZero() {
		fmt.Printf("totals: reimbursement %s | compensation %s | bonus %s\n",
			r.TotalReimbursement, r.TotalCompensation, r.TotalBonus)
	}
	if r.BackupPath != "" {
		fmt.Printf("backup: %s\n", r.BackupPath)
	}
}

// =============================================================================
// OPERATOR PROMPTS - the terminal implementation of the decision points
// =============================================================================

// ResolveName prompts for an unrecognized employee name. The operator can
// map it onto a suggested roster name, register it, or skip it.
func (a *app) ResolveName(name string, candidates []string, known []string) (recon.NameDecision, error) {
	fmt.Printf("\nunrecognized employee: %q\n", name)
	for i, c := range candidates {
		fmt.Printf("  %d) %s\n", i+1, c)
	}
	fmt.Print("map to number, (r)egister as new, or (s)kip: ")

	answer, err := a.in.ReadString('\n')
	if err != nil {
		return recon.NameDecision{}, err
	}
	answer = strings.TrimSpace(strings.ToLower(answer))

	switch answer {
	case "r":
		return recon.NameDecision{Action: recon.NameRegister}, nil
	case "s", "":
		return recon.NameDecision{Action: recon.NameSkip}, nil
	}
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(candidates) {
		return recon.NameDecision{Action: recon.NameMap, MapTo: candidates[n-1]}, nil
	}
	fmt.Println("unrecognized answer, skipping")
	return recon.NameDecision{Action: recon.NameSkip}, nil
}

// ResolveConflict prompts for a conflicting insurer amount.
func (a *app) ResolveConflict(c recon.Conflict) (recon.ConflictChoice, error) {
	fmt.Printf("\nconflicting amount for %s | %s\n", c.Employee, c.Start)
	fmt.Printf("  existing: %s\n", c.Existing.Reimbursement)
	fmt.Printf("  incoming: %s\n", c.Incoming.Reimbursement)
	fmt.Print("(u)pdate, (s)kip, update (a)ll, s(k)ip all: ")

	answer, err := a.in.ReadString('\n')
	if err != nil {
		return recon.ChoiceSkip, err
	}
	switch strings.TrimSpace(strings.ToLower(answer)) {
	case "u":
		return recon.ChoiceUpdate, nil
	case "a":
		return recon.ChoiceUpdateAll, nil
	case "k":
		return recon.ChoiceSkipAll, nil
	default:
		return recon.ChoiceSkip, nil
	}
}
