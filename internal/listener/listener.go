package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"elcotec/internal/config"
	"elcotec/internal/connectors"
	gmailconnector "elcotec/internal/connectors/gmail"
	imapconnector "elcotec/internal/connectors/imap"
	"elcotec/internal/customers"
	"elcotec/internal/erp"
	"elcotec/internal/pipeline"
	"elcotec/internal/storage"
)

// Service runs the fetch, process, export, inject loop. The processing
// service lives for the lifetime of the listener, so duplicate and price
// state accumulates across cycles until the process restarts.
type Service struct {
	db        *storage.DB
	cfg       config.Config
	processor *pipeline.ProcessingService
	registry  *customers.Registry
	erpClient *erp.Client
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{
		db:        db,
		cfg:       cfg,
		processor: pipeline.NewProcessingService(db, cfg),
		registry:  customers.NewRegistry(cfg),
		erpClient: erp.NewClient(cfg),
	}
}

func (s *Service) Run(ctx context.Context) error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	if last, err := s.db.GetMetadata("listener.last_cycle." + provider); err == nil && last != nil {
		fmt.Printf("listener starting, previous cycle at %s\n", *last)
	}

	for {
		if err := s.runCycle(ctx); err != nil {
			fmt.Printf("listener cycle error: %v\n", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.MailListenerIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	mailConnector, err := s.makeConnector(provider)
	if err != nil {
		return err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector)
	fetchResult, err := fetchService.FetchAndStore(s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return err
	}

	processedMessages, processedItems, err := s.processor.ProcessPending(s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return err
	}

	if s.cfg.MailListenerAutoExport {
		if err := s.handleProcessed(ctx, provider); err != nil {
			return err
		}
	}

	_ = s.db.SetMetadata("listener.last_cycle."+provider, time.Now().UTC().Format(time.RFC3339))

	fmt.Printf("listener cycle done provider=%s fetched=%d new=%d processed=%d items=%d\n",
		provider, fetchResult.Fetched, fetchResult.New, processedMessages, processedItems)
	return nil
}

// handleProcessed exports the processed messages to xlsx and, when auto
// injection is on, pushes the surviving line items into MKG.
func (s *Service) handleProcessed(ctx context.Context, provider string) error {
	messages, err := s.db.ListMessagesByStatus("processed", 200)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		if msg.Provider != provider {
			continue
		}
		rows, err := s.db.GetExportRows(msg.ID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			_ = s.db.UpdateMessageStatus(msg.ID, "exported")
			continue
		}

		filename := fmt.Sprintf("%d_%s.xlsx", msg.ID, sanitizeMessageID(msg.MessageID))
		outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
		if err := pipeline.ExportRowsToXLSX(rows, outputPath); err != nil {
			return err
		}

		if s.cfg.AutoInject {
			if err := s.inject(ctx, msg.ID, msg.Sender); err != nil {
				fmt.Printf("listener inject message=%d failed: %v\n", msg.ID, err)
			}
		}

		_ = s.db.UpdateMessageStatus(msg.ID, "exported")
	}
	return nil
}

func (s *Service) inject(ctx context.Context, messageID int, sender string) error {
	items, classified, err := s.db.GetLineItems(messageID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	profile := s.registry.Resolve(pipeline.SenderDomain(sender))
	result, err := s.erpClient.InjectItems(ctx, profile, classified, items)
	if err != nil {
		return err
	}
	fmt.Printf("listener inject message=%d injected=%d skipped=%d\n", messageID, result.Injected, result.Skipped)
	return nil
}

func (s *Service) makeConnector(provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}

func sanitizeMessageID(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
