package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"elcotec/internal"
	"elcotec/internal/config"
	"elcotec/internal/connectors"
	gmailconnector "elcotec/internal/connectors/gmail"
	imapconnector "elcotec/internal/connectors/imap"
	"elcotec/internal/customers"
	"elcotec/internal/erp"
	"elcotec/internal/guard"
	"elcotec/internal/listener"
	"elcotec/internal/pipeline"
	"elcotec/internal/storage"
	"elcotec/internal/trace"
)

func main() {
	cfg, err := config.Load()
	must(err)
	trace.Enabled = cfg.TraceEnabled

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d new=%d\n", *provider, result.Fetched, result.Stored, result.New)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := pipeline.NewProcessingService(db, cfg)
		if strings.TrimSpace(*messageID) != "" {
			res, err := processor.ProcessByProviderMessageID(*provider, *messageID)
			must(err)
			fmt.Printf("processed message id=%d classified=%s items=%d findings=%d alerts=%d criticals=%d\n",
				res.MessageID, res.Classified, res.Items, res.Findings, res.Alerts, res.Criticals)
			return
		}
		processedMessages, processedItems, err := processor.ProcessPending(*batch, *provider)
		must(err)
		fmt.Printf("processed pending messages=%d items=%d\n", processedMessages, processedItems)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		messageID := fs.Int("messageId", 0, "internal message id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if *messageID == 0 || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--messageId and --out are required"))
		}
		rows, err := db.GetExportRows(*messageID)
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no export rows for messageId=%d", *messageID))
		}
		must(pipeline.ExportRowsToXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
	case "inject:mkg":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		messageID := fs.Int("messageId", 0, "internal message id")
		_ = fs.Parse(os.Args[2:])
		if *messageID == 0 {
			must(fmt.Errorf("--messageId is required"))
		}
		row, err := db.GetMessageByID(*messageID)
		must(err)
		if row == nil {
			must(fmt.Errorf("message not found: %d", *messageID))
		}
		items, classified, err := db.GetLineItems(*messageID)
		must(err)
		if len(items) == 0 {
			must(fmt.Errorf("no line items for messageId=%d", *messageID))
		}
		registry := customers.NewRegistry(cfg)
		profile := registry.Resolve(pipeline.SenderDomain(row.Sender))
		client := erp.NewClient(cfg)
		result, err := client.InjectItems(context.Background(), profile, classified, items)
		must(err)
		fmt.Printf("inject done messageId=%d injected=%d skipped=%d\n", *messageID, result.Injected, result.Skipped)
	case "mail:listen":
		s := listener.NewService(db, cfg)
		must(s.Run(context.Background()))
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "path to a raw .eml file")
		output := fs.String("output", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if *input == "" || *output == "" {
			must(fmt.Errorf("--input and --output are required"))
		}
		must(runOnce(cfg, *input, *output))
	default:
		usage()
		os.Exit(1)
	}
}

// runOnce pushes a single raw message through the full pipeline without
// touching the database. Meant for trying out a saved .eml during rollout.
func runOnce(cfg config.Config, inputPath, outputPath string) error {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}

	msg, tables, err := pipeline.ParseMessage(raw, internal.MessageRow{Provider: "file", MessageID: inputPath})
	if err != nil {
		return err
	}

	registry := customers.NewRegistry(cfg)
	profile := registry.Resolve(msg.Domain)
	classified := pipeline.Classify(pipeline.ClassifyInput{
		Subject: msg.Subject,
		Body:    msg.Body,
		Domain:  msg.Domain,
		Profile: &profile,
		Rows:    pipeline.Signal(tables),
	})

	extractor := pipeline.NewExtractor(cfg, registry)
	now := time.Now().UTC()
	var items []internal.LineItem
	var dropped []internal.DroppedItem
	switch classified {
	case internal.ContentOrder:
		items, dropped = extractor.ProcessOrdersForInjection(extractor.ExtractOrders(tables, msg), msg.Domain, now)
	case internal.ContentQuote:
		items, dropped = extractor.ProcessQuotesForInjection(extractor.ExtractQuotes(tables, msg), msg.Domain, now)
	case internal.ContentRevision:
		items, dropped = extractor.ProcessRevisionsForInjection(extractor.ExtractRevisions(tables, msg), msg.Domain, now)
	default:
		fmt.Printf("run done classified=%s (no business content)\n", classified)
		return nil
	}

	tracker := guard.NewTracker(guard.ThresholdsFromConfig(cfg))
	obs := tracker.Observe(msg, items)

	rows := make([]internal.ItemExportRow, 0, len(obs.CleanedItems))
	for _, item := range obs.CleanedItems {
		rows = append(rows, exportRow(msg, classified, item))
	}
	if err := pipeline.ExportRowsToXLSX(rows, outputPath); err != nil {
		return err
	}

	fmt.Printf("run done classified=%s items=%d dropped=%d findings=%d alerts=%d criticals=%d output=%s\n",
		classified, len(obs.CleanedItems), len(dropped), len(obs.Duplicates), len(obs.PriceAlerts), len(obs.CriticalErrors), outputPath)
	return nil
}

func exportRow(msg internal.MessageContext, classified internal.ContentType, item internal.LineItem) internal.ItemExportRow {
	row := internal.ItemExportRow{
		MessageID:   msg.MessageID,
		Classified:  string(classified),
		Kind:        string(item.Kind),
		ArticleCode: item.ArticleCode,
		Description: item.Description,
		Quantity:    item.Quantity,
		Unit:        item.Unit,
		Method:      string(item.Method),
		Priority:    item.Priority,
		Status:      item.Status,
	}
	switch {
	case item.Order != nil:
		row.PONumber = &item.Order.PONumber
		row.UnitPrice = item.Order.UnitPrice
	case item.Quote != nil:
		row.RFQNumber = &item.Quote.RFQNumber
		row.UnitPrice = item.Quote.QuotedPrice
	case item.Revision != nil:
		row.CurrentRev = &item.Revision.CurrentRev
		row.NewRev = &item.Revision.NewRev
		if item.Revision.DrawingNumber != "" {
			row.DrawingNumber = &item.Revision.DrawingNumber
		}
	}
	return row
}

func makeConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: elcotec <command>")
	fmt.Println("commands:")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=gmail|imap [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  export:xlsx --messageId=1 --out=./out/result.xlsx")
	fmt.Println("  inject:mkg --messageId=1")
	fmt.Println("  run --input=./mail.eml --output=./out/result.xlsx")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
