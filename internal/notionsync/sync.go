// Package notionsync publishes detected recurring charges to a Notion
// database, one page per charge.
package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/recurring"
)

const (
	// BatchSize is the number of charges logged as one batch.
	BatchSize = 100
	pageSize  = 100
)

// SyncStats counts what a sync did.
type SyncStats struct {
	Created  int
	Updated  int
	Archived int
	Failed   int
}

// SyncCharges makes the database mirror charges. Pages are matched by
// Charge Key: existing ones are updated, missing ones created, and pages
// whose charge is no longer detected are archived. A failed page write is
// logged and counted, not fatal.
func SyncCharges(ctx context.Context, notionClient NotionService, notionDBID string, charges []recurring.Charge, dryRun bool) (SyncStats, error) {
	log := logger.Component(ctx, "notionsync")
	var stats SyncStats

	log.Info().
		Int("charges", len(charges)).
		Bool("dry_run", dryRun).
		Msg("Starting recurring charge sync to Notion")

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return stats, fmt.Errorf("SyncCharges: %w", err)
	}

	existing := make(map[string]string, len(notionPages))
	for _, page := range notionPages {
		if key := extractChargeKey(page); key != "" {
			existing[key] = string(page.ID)
		}
	}

	current := make(map[string]bool, len(charges))
	for i := 0; i < len(charges); i += BatchSize {
		end := i + BatchSize
		if end > len(charges) {
			end = len(charges)
		}
		log.Debug().Int("batch_start", i).Int("batch_end", end).Msg("Processing batch")

		for _, c := range charges[i:end] {
			key := ChargeKey(c)
			current[key] = true
			pageID, found := existing[key]

			if dryRun {
				if found {
					log.Info().Str("charge_key", key).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
					stats.Updated++
				} else {
					log.Info().Str("charge_key", key).Msg("[DRY RUN] Would create Notion page")
					stats.Created++
				}
				continue
			}

			props := ChargeToNotionProperties(c)
			if found {
				if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
					log.Warn().Err(err).Str("charge_key", key).Str("page_id", pageID).Msg("Failed to update Notion page")
					stats.Failed++
					continue
				}
				stats.Updated++
				continue
			}
			page, err := notionClient.CreatePage(ctx, notionDBID, props)
			if err != nil {
				log.Warn().Err(err).Str("charge_key", key).Msg("Failed to create Notion page")
				stats.Failed++
				continue
			}
			log.Debug().Str("charge_key", key).Str("page_id", string(page.ID)).Msg("Created Notion page")
			stats.Created++
		}
	}

	for _, page := range notionPages {
		key := extractChargeKey(page)
		if key != "" && current[key] {
			continue
		}
		if dryRun {
			log.Info().Str("charge_key", key).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
			stats.Archived++
			continue
		}
		if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("charge_key", key).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
			stats.Failed++
			continue
		}
		stats.Archived++
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("archived", stats.Archived).
		Int("failed", stats.Failed).
		Msg("Recurring charge sync completed")

	return stats, nil
}

// queryAllNotionPages follows the cursor until every page is read.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: pageSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
