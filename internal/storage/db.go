package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"elcotec/internal"
	"elcotec/internal/util"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS messages (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS line_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  messageId INTEGER NOT NULL,
  classified TEXT NOT NULL,
  kind TEXT NOT NULL,
  articleCode TEXT NOT NULL,
  description TEXT,
  qty REAL,
  unit TEXT,
  method TEXT NOT NULL,
  priority TEXT,
  status TEXT,
  poNumber TEXT,
  rfqNumber TEXT,
  unitPrice REAL,
  currentRev TEXT,
  newRev TEXT,
  drawingNumber TEXT,
  detailsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(messageId) REFERENCES messages(id)
);
CREATE INDEX IF NOT EXISTS idx_line_items_message ON line_items(messageId);
CREATE INDEX IF NOT EXISTS idx_line_items_article ON line_items(articleCode);

CREATE TABLE IF NOT EXISTS findings (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  messageId INTEGER NOT NULL,
  type TEXT NOT NULL,
  articleCode TEXT,
  description TEXT NOT NULL,
  methodsJson TEXT NOT NULL,
  itemCount INTEGER NOT NULL,
  requiresPriceCheck INTEGER NOT NULL DEFAULT 0,
  autoHandled INTEGER NOT NULL DEFAULT 0,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(messageId) REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS price_alerts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  messageId INTEGER NOT NULL,
  articleCode TEXT NOT NULL,
  observationsJson TEXT NOT NULL,
  absDifference REAL NOT NULL,
  pctDifference REAL NOT NULL,
  risk TEXT NOT NULL,
  reviewRequired INTEGER NOT NULL DEFAULT 0,
  method TEXT NOT NULL,
  detectedAt TEXT NOT NULL,
  FOREIGN KEY(messageId) REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS critical_errors (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  messageId INTEGER NOT NULL,
  category TEXT NOT NULL,
  description TEXT NOT NULL,
  risk TEXT NOT NULL,
  reviewRequired INTEGER NOT NULL DEFAULT 0,
  articleCode TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(messageId) REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  messageId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(messageId) REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertMessage(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.MessageRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO messages (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.MessageRow{}, err
	}

	row, err := d.GetMessageByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.MessageRow{}, err
	}
	if row == nil {
		return internal.MessageRow{}, errors.New("failed to upsert message")
	}
	return *row, nil
}

func (d *DB) GetMessageByProviderMessageID(provider, messageID string) (*internal.MessageRow, error) {
	var row internal.MessageRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM messages WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) MustMessageByProviderMessageID(provider, messageID string) (internal.MessageRow, error) {
	row, err := d.GetMessageByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.MessageRow{}, err
	}
	if row == nil {
		return internal.MessageRow{}, fmt.Errorf("message not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

func (d *DB) GetMessageByID(id int) (*internal.MessageRow, error) {
	var row internal.MessageRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM messages WHERE id = ?
`, id).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListMessagesByStatus(status string, limit int) ([]internal.MessageRow, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM messages WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.MessageRow
	for rows.Next() {
		var row internal.MessageRow
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateMessageStatus(messageID int, status string) error {
	_, err := d.conn.Exec(`UPDATE messages SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, messageID)
	return err
}

// ClearMessageProcessing removes everything a previous processing pass wrote
// for the message, so reprocessing starts from a clean slate.
func (d *DB) ClearMessageProcessing(messageID int) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"line_items", "findings", "price_alerts", "critical_errors"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE messageId = ?`, messageID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) InsertLineItem(messageID int, classified internal.ContentType, item internal.LineItem) (int64, error) {
	detailsJSON, _ := json.Marshal(item)

	var poNumber, rfqNumber, currentRev, newRev, drawingNumber *string
	var unitPrice *float64
	switch {
	case item.Order != nil:
		if item.Order.PONumber != "" {
			poNumber = util.StringPtr(item.Order.PONumber)
		}
		unitPrice = item.Order.UnitPrice
	case item.Quote != nil:
		if item.Quote.RFQNumber != "" {
			rfqNumber = util.StringPtr(item.Quote.RFQNumber)
		}
		unitPrice = item.Quote.QuotedPrice
	case item.Revision != nil:
		currentRev = util.StringPtr(item.Revision.CurrentRev)
		newRev = util.StringPtr(item.Revision.NewRev)
		if item.Revision.DrawingNumber != "" {
			drawingNumber = util.StringPtr(item.Revision.DrawingNumber)
		}
	}

	result, err := d.conn.Exec(`
INSERT INTO line_items (
  messageId, classified, kind, articleCode, description, qty, unit, method,
  priority, status, poNumber, rfqNumber, unitPrice, currentRev, newRev, drawingNumber, detailsJson
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, messageID, string(classified), string(item.Kind), item.ArticleCode, item.Description,
		item.Quantity, item.Unit, string(item.Method), item.Priority, item.Status,
		poNumber, rfqNumber, unitPrice, currentRev, newRev, drawingNumber, string(detailsJSON))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (d *DB) InsertFinding(messageID int, f internal.DuplicateFinding) error {
	methodsJSON, _ := json.Marshal(f.Methods)
	_, err := d.conn.Exec(`
INSERT INTO findings (messageId, type, articleCode, description, methodsJson, itemCount, requiresPriceCheck, autoHandled)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, messageID, string(f.Type), f.ArticleCode, f.Description, string(methodsJSON), f.ItemCount, boolInt(f.RequiresPriceCheck), boolInt(f.AutoHandled))
	return err
}

func (d *DB) InsertPriceAlert(messageID int, a internal.PriceAlert) error {
	obsJSON, _ := json.Marshal(a.Observations)
	_, err := d.conn.Exec(`
INSERT INTO price_alerts (messageId, articleCode, observationsJson, absDifference, pctDifference, risk, reviewRequired, method, detectedAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, messageID, a.ArticleCode, string(obsJSON), a.AbsDifference, a.PctDifference, string(a.Risk), boolInt(a.ReviewRequired), a.Method, a.DetectedAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
	return err
}

func (d *DB) InsertCriticalError(messageID int, ce internal.CriticalError) error {
	_, err := d.conn.Exec(`
INSERT INTO critical_errors (messageId, category, description, risk, reviewRequired, articleCode)
VALUES (?, ?, ?, ?, ?, ?)
`, messageID, ce.Category, ce.Description, string(ce.Risk), boolInt(ce.ReviewRequired), ce.ArticleCode)
	return err
}

func (d *DB) InsertRun(traceID string, messageID int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, messageId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, messageID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// GetLineItems rebuilds the full line items for a message from the stored
// JSON, plus the classification they were persisted under.
func (d *DB) GetLineItems(messageID int) ([]internal.LineItem, internal.ContentType, error) {
	rows, err := d.conn.Query(`SELECT classified, detailsJson FROM line_items WHERE messageId = ? ORDER BY id ASC`, messageID)
	if err != nil {
		return nil, internal.ContentNone, err
	}
	defer rows.Close()

	var out []internal.LineItem
	classified := internal.ContentNone
	for rows.Next() {
		var class, detailsJSON string
		if err := rows.Scan(&class, &detailsJSON); err != nil {
			return nil, internal.ContentNone, err
		}
		var item internal.LineItem
		if err := json.Unmarshal([]byte(detailsJSON), &item); err != nil {
			return nil, internal.ContentNone, err
		}
		classified = internal.ContentType(class)
		out = append(out, item)
	}
	return out, classified, rows.Err()
}

func (d *DB) GetExportRows(messageID int) ([]internal.ItemExportRow, error) {
	rows, err := d.conn.Query(`
SELECT
  li.messageId,
  m.messageId,
  li.classified,
  li.kind,
  li.articleCode,
  li.description,
  li.qty,
  li.unit,
  li.method,
  li.priority,
  li.status,
  li.poNumber,
  li.rfqNumber,
  li.unitPrice,
  li.currentRev,
  li.newRev,
  li.drawingNumber,
  (SELECT group_concat(f.description, '; ') FROM findings f
   WHERE f.messageId = li.messageId AND f.articleCode = li.articleCode)
FROM line_items li
JOIN messages m ON m.id = li.messageId
WHERE li.messageId = ?
ORDER BY
  CASE li.priority WHEN 'High' THEN 1 ELSE 2 END,
  li.id ASC
`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ItemExportRow
	for rows.Next() {
		var row internal.ItemExportRow
		if err := rows.Scan(
			&row.MessageDBID,
			&row.MessageID,
			&row.Classified,
			&row.Kind,
			&row.ArticleCode,
			&row.Description,
			&row.Quantity,
			&row.Unit,
			&row.Method,
			&row.Priority,
			&row.Status,
			&row.PONumber,
			&row.RFQNumber,
			&row.UnitPrice,
			&row.CurrentRev,
			&row.NewRev,
			&row.DrawingNumber,
			&row.Findings,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
