// Command csvimport maps a CSV file onto a platform object from a YAML plan,
// prints the resulting mapping table and optionally saves the mapping and
// uploads the rows.
//
//	csvimport -file accounts.csv -plan accounts.yaml -save -upload
//
// With -existing the rows are uploaded against the mapping already saved on
// the platform; only the plan's object and operation are used.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/ignite/crm-import/internal/config"
	"github.com/ignite/crm-import/internal/notify"
	"github.com/ignite/crm-import/internal/pkg/logger"
	"github.com/ignite/crm-import/internal/plan"
	"github.com/ignite/crm-import/internal/platform"
	"github.com/ignite/crm-import/internal/service/ingest"
	"github.com/ignite/crm-import/internal/service/mapping"
	"github.com/ignite/crm-import/internal/service/wizard"
	"github.com/ignite/crm-import/internal/session"
	"github.com/ignite/crm-import/internal/storage"
)

// remote is the platform as the CLI uses it.
type remote interface {
	wizard.Platform
	ingest.Sink
}

type options struct {
	file       string
	plan       string
	save       bool
	upload     bool
	existing   bool
	chunkSize  int
	primaryKey string
}

func main() {
	configPath := flag.String("config", "", "path to config.yaml (defaults and environment when empty)")
	file := flag.String("file", "", "CSV file to import")
	planPath := flag.String("plan", "", "YAML mapping plan")
	save := flag.Bool("save", false, "save the mapping configuration on the platform")
	upload := flag.Bool("upload", false, "upload the rows after saving")
	existing := flag.Bool("existing", false, "upload with the mapping already saved on the platform, skipping -save")
	flag.Parse()

	if *file == "" || *planPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactEnabled())

	client, err := platform.NewClient(cfg.Platform)
	if err != nil {
		log.Fatalf("Failed to initialize platform client: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := options{
		file:       *file,
		plan:       *planPath,
		save:       *save,
		upload:     *upload,
		existing:   *existing,
		chunkSize:  cfg.Upload.ChunkSize,
		primaryKey: cfg.Upload.PrimaryKeyField,
	}
	if err := run(ctx, client, opts, os.Stdout); err != nil {
		color.Red("ERROR: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, r remote, opts options, out io.Writer) error {
	p, err := plan.Load(opts.plan)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(opts.file)
	if err != nil {
		return fmt.Errorf("read csv: %w", err)
	}

	ledger := storage.New(nil)
	svc := wizard.NewService(r, session.NewMemoryStore(), r,
		wizard.WithLedger(ledger),
		wizard.WithChunkSize(opts.chunkSize),
		wizard.WithPrimaryKeyField(opts.primaryKey),
	)

	sess, err := svc.Create(ctx, filepath.Base(opts.file), string(data))
	if err != nil {
		return err
	}
	if sess.Skipped > 0 {
		color.New(color.FgYellow).Fprintf(out, "Skipped %d malformed rows (lines %v)\n", sess.Skipped, sess.SkippedLines)
	}

	if sess, err = plan.Apply(ctx, svc, sess.ID, p); err != nil {
		return err
	}

	color.New(color.FgCyan).Fprintf(out, "\n=== %s: %s into %s ===\n", sess.FileName, sess.State.Operation, sess.State.ObjectName)
	printTable(out, sess.State.TableRows())
	if sess.State.UniqueKey.Defined() {
		fmt.Fprintf(out, "Unique key: %v\n", sess.State.UniqueKey.Columns)
	}

	if opts.existing {
		return runUpload(ctx, svc, sess.ID, wizard.UploadWithExistingMapping, out)
	}
	if !opts.save && !opts.upload {
		return mapping.Validate(sess.State)
	}

	_, n, err := svc.SaveConfiguration(ctx, sess.ID)
	printNotification(out, n)
	if err != nil {
		return err
	}
	if !opts.upload {
		return nil
	}
	return runUpload(ctx, svc, sess.ID, wizard.UploadWithMapping, out)
}

func runUpload(ctx context.Context, svc *wizard.Service, id string, mode wizard.UploadMode, out io.Writer) error {
	progress, err := svc.Upload(ctx, id, mode)
	fmt.Fprintf(out, "Uploaded %d of %d records in %d batches (%d failed)\n",
		progress.Processed, progress.Total, progress.Batches, progress.FailedBatches)
	variant := notify.VariantSuccess
	if err != nil {
		variant = notify.VariantError
	}
	printNotification(out, notify.Notification{Title: "Upload", Message: progress.Message, Variant: variant})
	return err
}

// printTable renders the mapping review table.
func printTable(out io.Writer, rows []mapping.TableRow) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"#", "CSV Field", "Target Field", "Lookup Object", "Lookup Fields", "Config"})
	table.SetAutoWrapText(false)
	for i, row := range rows {
		table.Append([]string{
			strconv.Itoa(i + 1),
			row.CSVField,
			row.TargetField,
			row.LookupObject,
			row.LookupMapping,
			row.ConfigData,
		})
	}
	table.Render()
}

func printNotification(out io.Writer, n notify.Notification) {
	if n.Message == "" {
		return
	}
	c := color.New(color.FgGreen)
	switch n.Variant {
	case notify.VariantError:
		c = color.New(color.FgRed)
	case notify.VariantInfo:
		c = color.New(color.FgCyan)
	}
	c.Fprintf(out, "%s: %s\n", n.Title, n.Message)
}
