package pipeline

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"elcotec/internal"
	"elcotec/internal/config"
	"elcotec/internal/customers"
	"elcotec/internal/guard"
	"elcotec/internal/storage"
	"elcotec/internal/trace"
)

// ProcessingService drives one message through the full pipeline: parse,
// classify, extract, prepare for injection, run the protection checks and
// persist everything. The guard tracker is run-scoped; call NewRun between
// unrelated batches.
type ProcessingService struct {
	db        *storage.DB
	cfg       config.Config
	registry  *customers.Registry
	extractor *Extractor
	tracker   *guard.Tracker
}

func NewProcessingService(db *storage.DB, cfg config.Config) *ProcessingService {
	registry := customers.NewRegistry(cfg)
	return &ProcessingService{
		db:        db,
		cfg:       cfg,
		registry:  registry,
		extractor: NewExtractor(cfg, registry),
		tracker:   guard.NewTracker(guard.ThresholdsFromConfig(cfg)),
	}
}

// NewRun discards all duplicate and price state from previous batches.
func (s *ProcessingService) NewRun() {
	s.tracker.Reset()
}

type ProcessResult struct {
	MessageID  int
	Classified internal.ContentType
	Items      int
	Findings   int
	Alerts     int
	Criticals  int
}

func (s *ProcessingService) ProcessByProviderMessageID(provider, messageID string) (ProcessResult, error) {
	row, err := s.db.MustMessageByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessMessage(row)
}

func (s *ProcessingService) ProcessPending(limit int, provider string) (int, int, error) {
	pending, err := s.db.ListMessagesByStatus("fetched", limit)
	if err != nil {
		return 0, 0, err
	}
	processedMessages := 0
	processedItems := 0
	for _, row := range pending {
		if provider != "" && row.Provider != provider {
			continue
		}
		res, err := s.ProcessMessage(row)
		if err != nil {
			// One poisoned message must not stop the batch.
			fmt.Printf("process: message %s failed: %v\n", row.MessageID, err)
			_ = s.db.UpdateMessageStatus(row.ID, "error")
			continue
		}
		processedMessages++
		processedItems += res.Items
	}
	return processedMessages, processedItems, nil
}

func (s *ProcessingService) ProcessMessage(row internal.MessageRow) (result ProcessResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processing message %s: %v", row.MessageID, r)
		}
	}()

	start := time.Now()
	raw, readErr := os.ReadFile(row.RawRef)
	if readErr != nil {
		return ProcessResult{}, readErr
	}

	msg, tables, parseErr := ParseMessage(raw, row)
	if parseErr != nil {
		return ProcessResult{}, parseErr
	}

	if err := s.db.ClearMessageProcessing(row.ID); err != nil {
		return ProcessResult{}, err
	}

	profile := s.registry.Resolve(msg.Domain)
	if !s.registry.IsPriority(profile) {
		trace.Printf("process skip non-priority domain=%s", msg.Domain)
		_ = s.db.UpdateMessageStatus(row.ID, "skipped")
		s.recordRun(row.ID, start, internal.ContentNone, Observation{})
		return ProcessResult{MessageID: row.ID, Classified: internal.ContentNone}, nil
	}

	classified := Classify(ClassifyInput{
		Subject: msg.Subject,
		Body:    msg.Body,
		Domain:  msg.Domain,
		Profile: &profile,
		Rows:    Signal(tables),
	})
	trace.Printf("process message=%s domain=%s classified=%s", msg.MessageID, msg.Domain, classified)

	var items []internal.LineItem
	var dropped []internal.DroppedItem
	now := time.Now().UTC()
	switch classified {
	case internal.ContentOrder:
		items, dropped = s.extractor.ProcessOrdersForInjection(s.extractor.ExtractOrders(tables, msg), msg.Domain, now)
	case internal.ContentQuote:
		items, dropped = s.extractor.ProcessQuotesForInjection(s.extractor.ExtractQuotes(tables, msg), msg.Domain, now)
	case internal.ContentRevision:
		items, dropped = s.extractor.ProcessRevisionsForInjection(s.extractor.ExtractRevisions(tables, msg), msg.Domain, now)
	case internal.ContentNone, internal.ContentUnknown:
		_ = s.db.UpdateMessageStatus(row.ID, "no_content")
		s.recordRun(row.ID, start, classified, Observation{})
		return ProcessResult{MessageID: row.ID, Classified: classified}, nil
	}
	for _, d := range dropped {
		trace.Printf("process dropped article=%s stage=%s reason=%s", d.ArticleCode, d.Stage, d.Reason)
	}

	obs := s.tracker.Observe(msg, items)

	for _, item := range obs.CleanedItems {
		if _, err := s.db.InsertLineItem(row.ID, classified, item); err != nil {
			return ProcessResult{}, err
		}
	}
	for _, f := range obs.Duplicates {
		if err := s.db.InsertFinding(row.ID, f); err != nil {
			return ProcessResult{}, err
		}
	}
	for _, a := range obs.PriceAlerts {
		if err := s.db.InsertPriceAlert(row.ID, a); err != nil {
			return ProcessResult{}, err
		}
	}
	for _, ce := range obs.CriticalErrors {
		if err := s.db.InsertCriticalError(row.ID, ce); err != nil {
			return ProcessResult{}, err
		}
	}

	if err := s.db.UpdateMessageStatus(row.ID, "processed"); err != nil {
		return ProcessResult{}, err
	}
	s.recordRun(row.ID, start, classified, obs)

	return ProcessResult{
		MessageID:  row.ID,
		Classified: classified,
		Items:      len(obs.CleanedItems),
		Findings:   len(obs.Duplicates),
		Alerts:     len(obs.PriceAlerts),
		Criticals:  len(obs.CriticalErrors),
	}, nil
}

// Observation aliases the guard result so callers of the pipeline package do
// not need to import guard directly.
type Observation = guard.Observation

func (s *ProcessingService) recordRun(messageID int, start time.Time, classified internal.ContentType, obs Observation) {
	_ = s.db.InsertRun(traceID(), messageID,
		map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		map[string]int{
			"items":     len(obs.CleanedItems),
			"findings":  len(obs.Duplicates),
			"alerts":    len(obs.PriceAlerts),
			"criticals": len(obs.CriticalErrors),
			"class_" + string(classified): 1,
		})
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
