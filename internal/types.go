package internal

import "time"

type ContentType string

const (
	ContentNone     ContentType = "none"
	ContentOrder    ContentType = "order"
	ContentQuote    ContentType = "quote"
	ContentRevision ContentType = "revision"
	ContentUnknown  ContentType = "unknown"
)

type ExtractionMethod string

const (
	MethodHTMLTable       ExtractionMethod = "html_table"
	MethodXLSX            ExtractionMethod = "xlsx"
	MethodPDFText         ExtractionMethod = "pdf_text"
	MethodBodyText        ExtractionMethod = "body_text"
	MethodSubjectFallback ExtractionMethod = "subject_fallback"
)

type ItemKind string

const (
	KindOrder    ItemKind = "order"
	KindQuote    ItemKind = "quote"
	KindRevision ItemKind = "revision"
)

type AttachmentInfo struct {
	Name        string
	Extension   string
	ContentType string
	Size        int
}

// MessageContext is the immutable view of one inbound message. It is built
// once per message and carried through classification, extraction and the
// protection checks.
type MessageContext struct {
	Provider    string
	MessageID   string
	Subject     string
	Body        string
	HTML        string
	Sender      string
	Domain      string
	ReceivedAt  time.Time
	Attachments []AttachmentInfo
}

type OrderFields struct {
	PONumber      string
	UnitPrice     *float64
	TotalPrice    *float64
	RequestedDate string
	ConfirmedDate string
}

type QuoteFields struct {
	RFQNumber   string
	QuotedPrice *float64
	ValidUntil  string
	Notes       string
}

type RevisionFields struct {
	CurrentRev       string
	NewRev           string
	Reason           string
	TechnicalChange  string
	CommercialChange string
	DrawingNumber    string
	Major            bool
	ApprovalRequired bool
}

// LineItem is a tagged union over the three transaction kinds. Exactly one
// of Order/Quote/Revision is non-nil and must match Kind.
type LineItem struct {
	ID           string
	Kind         ItemKind
	ArticleCode  string
	Description  string
	Quantity     *float64
	Unit         string
	Method       ExtractionMethod
	SourceDomain string
	Status       string
	Priority     string
	CreatedAt    time.Time

	Order    *OrderFields
	Quote    *QuoteFields
	Revision *RevisionFields
}

// Price returns the unit price relevant to the item's kind, if any.
func (li LineItem) Price() *float64 {
	switch {
	case li.Order != nil:
		return li.Order.UnitPrice
	case li.Quote != nil:
		return li.Quote.QuotedPrice
	}
	return nil
}

type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

type DuplicateType string

const (
	DuplicateCrossSource  DuplicateType = "cross_source"
	DuplicateCrossMessage DuplicateType = "cross_message"
)

type DuplicateFinding struct {
	Type               DuplicateType
	ArticleCode        string
	Description        string
	Methods            []string
	ItemCount          int
	MessageID          string
	RequiresPriceCheck bool
	AutoHandled        bool
}

type PriceObservation struct {
	Price  float64
	Source string
}

type PriceAlert struct {
	ArticleCode    string
	Observations   []PriceObservation
	AbsDifference  float64
	PctDifference  float64
	Risk           RiskTier
	ReviewRequired bool
	Method         string
	DetectedAt     time.Time
}

type CriticalError struct {
	Category       string
	Description    string
	Risk           RiskTier
	ReviewRequired bool
	MessageID      string
	ArticleCode    string
}

// DroppedItem records why a raw item did not survive injection processing.
type DroppedItem struct {
	ArticleCode string
	Stage       string
	Reason      string
}

// MessageRow mirrors the messages table.
type MessageRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

// ItemExportRow is the flattened shape written to the xlsx export.
type ItemExportRow struct {
	MessageDBID   int
	MessageID     string
	Classified    string
	Kind          string
	ArticleCode   string
	Description   string
	Quantity      *float64
	Unit          string
	Method        string
	Priority      string
	Status        string
	PONumber      *string
	RFQNumber     *string
	UnitPrice     *float64
	CurrentRev    *string
	NewRev        *string
	DrawingNumber *string
	Findings      *string
}
