package notionsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockNotionService struct {
	CreatePageFunc    func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabaseFunc func(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

func (m *mockNotionService) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	return m.CreatePageFunc(ctx, databaseID, properties)
}

func (m *mockNotionService) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return m.QueryDatabaseFunc(ctx, databaseID, req)
}

var base = time.Date(2024, 1, 5, 12, 0, 0, 0, time.FixedZone("UTC+8", 8*3600))

func txAt(minute int, signed string, dir domain.Direction) domain.Transaction {
	amount := decimal.RequireFromString(signed)
	return domain.Transaction{
		Timestamp:     base.Add(time.Duration(minute) * time.Minute),
		Direction:     dir,
		RawAmount:     amount.Abs(),
		SignedAmount:  amount,
		PaymentMethod: "花呗",
		Category:      "Shopping",
		Source:        domain.ProviderA,
	}
}

func pageWithKey(key string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID("page-" + key),
		Properties: notionapi.Properties{
			PropKey: &notionapi.TitleProperty{
				Title: []notionapi.RichText{{PlainText: key}},
			},
		},
	}
}

func TestSyncTransactions(t *testing.T) {
	txs := []domain.Transaction{
		txAt(0, "-100", domain.Expense),
		txAt(1, "50", domain.Income),
		txAt(2, "-20", domain.Expense),
	}

	var cursors []notionapi.Cursor
	var created []string
	svc := &mockNotionService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			assert.Equal(t, "db-1", databaseID)
			cursors = append(cursors, req.StartCursor)
			if req.StartCursor == "" {
				return &notionapi.DatabaseQueryResponse{
					Results:    []notionapi.Page{pageWithKey(string(txs[0].Key()))},
					HasMore:    true,
					NextCursor: "next",
				}, nil
			}
			return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{pageWithKey("unrelated")}}, nil
		},
		CreatePageFunc: func(ctx context.Context, databaseID string, props notionapi.Properties) (*notionapi.Page, error) {
			title := props[PropKey].(notionapi.TitleProperty)
			created = append(created, title.Title[0].Text.Content)
			if title.Title[0].Text.Content == string(txs[2].Key()) {
				return nil, errors.New("validation_error")
			}
			return &notionapi.Page{ID: "new"}, nil
		},
	}

	res, err := SyncTransactions(context.Background(), svc, "db-1", txs, false)
	require.NoError(t, err)

	assert.Equal(t, []notionapi.Cursor{"", "next"}, cursors)
	assert.Equal(t, []string{string(txs[1].Key()), string(txs[2].Key())}, created)
	assert.Equal(t, Result{Created: 1, Skipped: 1, Failed: 1}, res)
}

func TestSyncTransactions_DryRun(t *testing.T) {
	svc := &mockNotionService{
		QueryDatabaseFunc: func(context.Context, string, *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return &notionapi.DatabaseQueryResponse{}, nil
		},
		CreatePageFunc: func(context.Context, string, notionapi.Properties) (*notionapi.Page, error) {
			t.Fatal("CreatePage called during dry run")
			return nil, nil
		},
	}

	tx := txAt(0, "-1", domain.Expense)
	res, err := SyncTransactions(context.Background(), svc, "db", []domain.Transaction{tx, tx}, true)
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 1, Skipped: 1}, res)
}

func TestSyncTransactions_QueryError(t *testing.T) {
	queryErr := errors.New("unauthorized")
	svc := &mockNotionService{
		QueryDatabaseFunc: func(context.Context, string, *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return nil, queryErr
		},
	}
	_, err := SyncTransactions(context.Background(), svc, "db", nil, false)
	assert.ErrorIs(t, err, queryErr)
}

func TestTransactionToProperties(t *testing.T) {
	tx := txAt(0, "-12.5", domain.Expense)
	tx.Counterparty = "超市"
	tx.WriteOff = true

	props := TransactionToProperties(tx)

	assert.Equal(t, float64(-12.5), props[PropAmount].(notionapi.NumberProperty).Number)
	assert.Equal(t, "expense", props[PropDirection].(notionapi.SelectProperty).Select.Name)
	assert.True(t, props[PropWriteOff].(notionapi.CheckboxProperty).Checkbox)
	assert.Equal(t, "超市", props[PropCounterparty].(notionapi.RichTextProperty).RichText[0].Text.Content)
	assert.Equal(t, string(tx.Key()), extractKey(notionapi.Page{Properties: props}))

	_, hasDescription := props[PropDescription]
	assert.False(t, hasDescription, "empty description should be omitted")
}
