// Package notionsync mirrors ledger transactions into a Notion database.
package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/dvloznov/billrecon/internal/logger"
	"github.com/jomei/notionapi"
)

// PageSize is the page size used when listing existing rows.
const PageSize = 100

// Result counts what a sync did.
type Result struct {
	Created int
	Skipped int
	Failed  int
}

// SyncTransactions creates a database row for every transaction whose
// de-duplication key is not already present. Existing rows are never
// modified. A row that fails to create is logged and counted, and the sync
// moves on.
func SyncTransactions(ctx context.Context, svc NotionService, databaseID string, txs []domain.Transaction, dryRun bool) (Result, error) {
	log := logger.FromContext(ctx)

	log.Info().
		Int("transaction_count", len(txs)).
		Bool("dry_run", dryRun).
		Msg("Starting transaction sync to Notion")

	pages, err := queryAllPages(ctx, svc, databaseID)
	if err != nil {
		return Result{}, fmt.Errorf("SyncTransactions: %w", err)
	}

	existing := make(map[string]bool, len(pages))
	for _, page := range pages {
		if key := extractKey(page); key != "" {
			existing[key] = true
		}
	}
	log.Debug().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	var res Result
	for _, tx := range txs {
		key := string(tx.Key())
		if existing[key] {
			res.Skipped++
			continue
		}

		if dryRun {
			log.Info().Str("key", key).Msg("[DRY RUN] Would create Notion page")
			res.Created++
			existing[key] = true
			continue
		}

		page, err := svc.CreatePage(ctx, databaseID, TransactionToProperties(tx))
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		existing[key] = true
		res.Created++
		log.Debug().Str("key", key).Str("page_id", string(page.ID)).Msg("Created Notion page")
	}

	log.Info().
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("Transaction sync completed")

	return res, nil
}

// queryAllPages lists every page of a database, following pagination.
func queryAllPages(ctx context.Context, svc NotionService, databaseID string) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: PageSize}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := svc.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}
		all = append(all, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}
	return all, nil
}
