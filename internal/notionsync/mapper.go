package notionsync

import (
	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the ledger database. The database must define them with
// the types used below; "Key" is the title property.
const (
	PropKey           = "Key"
	PropDate          = "Date"
	PropAmount        = "Amount"
	PropDirection     = "Direction"
	PropCategory      = "Category"
	PropPaymentMethod = "Payment Method"
	PropSource        = "Source"
	PropCounterparty  = "Counterparty"
	PropDescription   = "Description"
	PropStatus        = "Status"
	PropWriteOff      = "Write-off"
)

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: s},
		},
	}
}

// TransactionToProperties maps a transaction onto a ledger database row.
// The de-duplication key is the page title so re-syncs can skip rows that
// already exist.
func TransactionToProperties(tx domain.Transaction) notionapi.Properties {
	date := notionapi.Date(tx.Timestamp)
	amount, _ := tx.SignedAmount.Float64()

	props := notionapi.Properties{
		PropKey: notionapi.TitleProperty{
			Title: richText(string(tx.Key())),
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &date},
		},
		PropAmount: notionapi.NumberProperty{
			Number: amount,
		},
		PropDirection: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(tx.Direction)},
		},
		PropSource: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(tx.Source)},
		},
		PropWriteOff: notionapi.CheckboxProperty{
			Checkbox: tx.WriteOff,
		},
	}

	// Notion rejects select options with empty names.
	if tx.Category != "" {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Category},
		}
	}
	if tx.PaymentMethod != "" {
		props[PropPaymentMethod] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.PaymentMethod},
		}
	}
	if tx.Counterparty != "" {
		props[PropCounterparty] = notionapi.RichTextProperty{RichText: richText(tx.Counterparty)}
	}
	if tx.Description != "" {
		props[PropDescription] = notionapi.RichTextProperty{RichText: richText(tx.Description)}
	}
	if tx.Status != "" {
		props[PropStatus] = notionapi.RichTextProperty{RichText: richText(tx.Status)}
	}

	return props
}

// extractKey returns the de-duplication key stored in a page's title, or "".
func extractKey(page notionapi.Page) string {
	prop, ok := page.Properties[PropKey]
	if !ok {
		return ""
	}
	switch title := prop.(type) {
	case *notionapi.TitleProperty:
		return plainText(title.Title)
	case notionapi.TitleProperty:
		return plainText(title.Title)
	}
	return ""
}

func plainText(rt []notionapi.RichText) string {
	if len(rt) == 0 {
		return ""
	}
	if rt[0].PlainText != "" {
		return rt[0].PlainText
	}
	if rt[0].Text != nil {
		return rt[0].Text.Content
	}
	return ""
}
