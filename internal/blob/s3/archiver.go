package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
)

// Archiver implements domain.LedgerArchiver by serializing the trade ledger
// and portfolio summary to a single JSON document and uploading it to S3.
//
// Deletion of exported trades from the primary store is intentionally NOT
// performed here; a reset is a separate, explicit operation.
type Archiver struct {
	client *Client
	prefix string
	now    func() time.Time
}

var _ domain.LedgerArchiver = (*Archiver)(nil)

// NewArchiver creates an Archiver uploading under the given key prefix.
func NewArchiver(client *Client, prefix string) *Archiver {
	return &Archiver{
		client: client,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// ledgerExport is the uploaded document shape.
type ledgerExport struct {
	ExportedAt time.Time                `json:"exported_at"`
	Portfolio  domain.PortfolioSnapshot `json:"portfolio"`
	Trades     []domain.Trade           `json:"trades"`
}

// Archive uploads the given trades and portfolio snapshot as one JSON object
// and returns the object key it was written to.
func (a *Archiver) Archive(ctx context.Context, trades []domain.Trade, snapshot domain.PortfolioSnapshot) (string, error) {
	doc := ledgerExport{
		ExportedAt: a.now().UTC(),
		Portfolio:  snapshot,
		Trades:     trades,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	key := a.exportKey(doc.ExportedAt)
	_, err := a.client.S3().PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.client.Bucket()),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("s3blob: archive upload %s: %w", key, err)
	}
	return key, nil
}

// exportKey builds the object key for an export, partitioned by timestamp:
//
//	<prefix>/ledger/2025-01-02T15-04-05Z.json
func (a *Archiver) exportKey(at time.Time) string {
	name := fmt.Sprintf("ledger/%s.json", at.Format("2006-01-02T15-04-05Z"))
	if a.prefix == "" {
		return name
	}
	return a.prefix + "/" + name
}
