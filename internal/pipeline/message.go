package pipeline

import (
	"bytes"
	"path/filepath"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"elcotec/internal"
)

// ParseMessage builds the immutable message context plus the tokenized row
// tables out of a raw RFC 5322 message. Attachment tables (xlsx) and PDF
// text lines are folded in next to the HTML body tables.
func ParseMessage(raw []byte, row internal.MessageRow) (internal.MessageContext, []Table, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return internal.MessageContext{}, nil, err
	}

	subject := strings.TrimSpace(env.GetHeader("Subject"))
	if subject == "" {
		subject = row.Subject
	}
	sender := strings.TrimSpace(env.GetHeader("From"))
	if sender == "" {
		sender = row.Sender
	}

	received := time.Now().UTC()
	if parsed, err := time.Parse(time.RFC3339, row.ReceivedAt); err == nil {
		received = parsed
	}

	msg := internal.MessageContext{
		Provider:   row.Provider,
		MessageID:  row.MessageID,
		Subject:    subject,
		Body:       env.Text,
		HTML:       env.HTML,
		Sender:     sender,
		Domain:     SenderDomain(sender),
		ReceivedAt: received,
	}

	tables := ParseTablesFromHTML(env.HTML)

	for _, att := range env.Attachments {
		name := strings.TrimSpace(att.FileName)
		if name == "" {
			name = "attachment"
		}
		ext := strings.ToLower(filepath.Ext(name))
		msg.Attachments = append(msg.Attachments, internal.AttachmentInfo{
			Name:        name,
			Extension:   ext,
			ContentType: att.ContentType,
			Size:        len(att.Content),
		})

		switch ext {
		case ".xlsx", ".xls":
			if extra, err := ParseTablesFromXLSX(att.Content); err == nil {
				tables = append(tables, extra...)
			}
		case ".pdf":
			if lines, err := ParseLinesFromPDF(att.Content); err == nil && len(lines) > 0 {
				msg.Body = msg.Body + "\n" + strings.Join(lines, "\n")
			}
		}
	}

	return msg, tables, nil
}

// SenderDomain pulls the bare mail domain out of any From header shape
// ("Jan <jan@nts-group.nl>", "jan@nts-group.nl").
func SenderDomain(sender string) string {
	s := strings.TrimSpace(sender)
	if i := strings.LastIndex(s, "<"); i >= 0 {
		s = s[i+1:]
		s = strings.TrimSuffix(strings.TrimSpace(s), ">")
	}
	at := strings.LastIndex(s, "@")
	if at < 0 || at == len(s)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimRight(s[at+1:], "> "))
}
