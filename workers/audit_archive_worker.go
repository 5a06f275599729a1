package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"progression-service/config"
	"progression-service/models"
	"progression-service/utils"

	"gorm.io/gorm"
)

// AuditArchiveClient exports adjustment-log pages to R2 for compliance
// retention. The DB audit trail stays the system of record; exports are an
// off-site copy.
type AuditArchiveClient struct {
	DB       *gorm.DB
	R2       *utils.R2Client
	Prefix   string
	PageSize int
}

func NewAuditArchiveClient(db *gorm.DB, r2 *utils.R2Client, cfg config.ArchiveConfig) *AuditArchiveClient {
	return &AuditArchiveClient{
		DB:       db,
		R2:       r2,
		Prefix:   cfg.ObjectPrefix,
		PageSize: cfg.PageSize,
	}
}

// AuditPage is the exported document format. Entries are ordered descending by
// created_at (then id), matching the read API, so a reimported page reproduces
// the original query ordering exactly.
type AuditPage struct {
	ExportedAt time.Time              `json:"exported_at"`
	Count      int                    `json:"count"`
	Entries    []models.AdjustmentLog `json:"entries"`
}

// EncodePage serializes a batch of logs into the archive document.
func EncodePage(logs []models.AdjustmentLog, exportedAt time.Time) ([]byte, error) {
	page := AuditPage{ExportedAt: exportedAt, Count: len(logs), Entries: logs}
	return json.Marshal(page)
}

// DecodePage parses an archive document back into its entries, verifying the
// recorded count.
func DecodePage(data []byte) ([]models.AdjustmentLog, error) {
	var page AuditPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("failed to decode audit page: %w", err)
	}
	if page.Count != len(page.Entries) {
		return nil, fmt.Errorf("audit page count mismatch: header says %d, found %d", page.Count, len(page.Entries))
	}
	return page.Entries, nil
}

// ExportSince uploads all logs newer than the cursor, one object per page, and
// returns the new cursor. Pages are cut on the PageSize boundary; ordering
// inside each page is descending created_at.
func (c *AuditArchiveClient) ExportSince(ctx context.Context, since time.Time) (time.Time, int, error) {
	var logs []models.AdjustmentLog
	if err := c.DB.Where("created_at > ?", since).
		Order("created_at DESC, id DESC").
		Find(&logs).Error; err != nil {
		return since, 0, fmt.Errorf("failed to read adjustment logs: %w", err)
	}
	if len(logs) == 0 {
		return since, 0, nil
	}

	exportedAt := time.Now().UTC()
	for i, pageNo := 0, 0; i < len(logs); i, pageNo = i+c.PageSize, pageNo+1 {
		end := i + c.PageSize
		if end > len(logs) {
			end = len(logs)
		}
		body, err := EncodePage(logs[i:end], exportedAt)
		if err != nil {
			return since, 0, err
		}
		key := fmt.Sprintf("%s/%s-p%03d.json", c.Prefix, exportedAt.Format("2006-01-02T15-04-05Z"), pageNo)
		if _, err := c.R2.UploadJSON(ctx, key, body); err != nil {
			// Cursor not advanced — the whole window retries next tick
			return since, 0, err
		}
	}

	// logs[0] is the newest row in the window
	return logs[0].CreatedAt, len(logs), nil
}

// PollAdjustments runs the archive loop until ctx is cancelled.
func PollAdjustments(ctx context.Context, client *AuditArchiveClient, pollInterval time.Duration) {
	log.Println("Starting audit archive polling...")
	cursor := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Audit archive polling stopped.")
			return
		case <-ticker.C:
			next, n, err := client.ExportSince(ctx, cursor)
			if err != nil {
				log.Printf("❌ Audit archive export failed: %v", err)
				continue
			}
			if n == 0 {
				continue
			}
			cursor = next
			log.Printf("📦 Archived %d adjustment log(s) to R2.", n)
		}
	}
}
