package reconcile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var base = time.Date(2024, 1, 5, 12, 0, 0, 0, time.FixedZone("UTC+8", 8*3600))

func tx(minute int, dir domain.Direction, raw string, method string) domain.Transaction {
	amount := d(raw)
	signed := amount
	switch dir {
	case domain.Expense:
		signed = amount.Neg()
	case domain.Neutral:
		signed = decimal.Zero
	}
	return domain.Transaction{
		Timestamp:     base.Add(time.Duration(minute) * time.Minute),
		Direction:     dir,
		RawAmount:     amount,
		SignedAmount:  signed,
		PaymentMethod: method,
	}
}

func TestVerify(t *testing.T) {
	txs := []domain.Transaction{
		tx(0, domain.Expense, "100.00", "花呗"),
		tx(1, domain.Income, "50.00", "余额宝"),
		tx(2, domain.Neutral, "20.00", "花呗"),
	}

	tests := []struct {
		name    string
		summary domain.Summary
		want    domain.VerdictStatus
		delta   string
	}{
		{
			name:    "matches declared balance",
			summary: domain.Summary{Income: d("50.00"), Expense: d("100.00"), Found: true},
			want:    domain.Reconciled,
			delta:   "0",
		},
		{
			name:    "within tolerance",
			summary: domain.Summary{Income: d("50.01"), Expense: d("100.00"), Found: true},
			want:    domain.Reconciled,
			delta:   "-0.01",
		},
		{
			name:    "beyond tolerance",
			summary: domain.Summary{Income: d("50.00"), Expense: d("120.00"), Found: true},
			want:    domain.Discrepancy,
			delta:   "20",
		},
		{
			name:    "no summary",
			summary: domain.Summary{},
			want:    domain.Unverified,
			delta:   "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Verify(txs, tt.summary, DefaultTolerance)
			assert.Equal(t, tt.want, v.Status)
			assert.True(t, v.Delta.Equal(d(tt.delta)), "Delta = %s, want %s", v.Delta, tt.delta)
			assert.True(t, v.Actual.Equal(d("-50")), "Actual = %s", v.Actual)
		})
	}
}

func TestVerify_UsesGrossAmounts(t *testing.T) {
	refunded := tx(0, domain.Expense, "50.00", "零钱")
	refunded.SignedAmount = d("-37.50")

	v := Verify([]domain.Transaction{refunded}, domain.Summary{Expense: d("50.00"), Found: true}, DefaultTolerance)
	assert.Equal(t, domain.Reconciled, v.Status)
	assert.True(t, v.Expense.Equal(d("50")))
}

// flaggedBatch is five records netting to -3.47.
func flaggedBatch() []domain.Transaction {
	return []domain.Transaction{
		tx(0, domain.Expense, "5.00", "零钱"),
		tx(1, domain.Income, "2.00", "零钱"),
		tx(2, domain.Expense, "1.00", "零钱"),
		tx(3, domain.Income, "1.50", "零钱"),
		tx(4, domain.Expense, "0.97", "零钱"),
	}
}

func maskAll(txs []domain.Transaction) Mask {
	keys := make([]domain.DedupKey, len(txs))
	for i, t := range txs {
		keys[i] = t.Key()
	}
	return NewMask(keys...)
}

func TestSettleToTarget_WriteOffScenario(t *testing.T) {
	txs := flaggedBatch()
	require.True(t, domain.Net(txs).Equal(d("-3.47")))

	out, err := SettleToTarget(txs, maskAll(txs), d("3.47"))
	require.NoError(t, err)
	require.Len(t, out, 5)

	var holders int
	for i, r := range out {
		assert.True(t, r.WriteOff, "record %d not marked as write-off", i)
		if !r.SignedAmount.IsZero() {
			holders++
			assert.Equal(t, 1, i, "residual should land on the first income record")
			assert.Equal(t, domain.Income, r.Direction)
			assert.True(t, r.SignedAmount.Equal(d("3.47")), "residual = %s", r.SignedAmount)
		}
	}
	assert.Equal(t, 1, holders)

	total := domain.Net(out)
	assert.True(t, total.Equal(d("3.47")), "final total = %s, want target", total)
	assert.True(t, total.Sub(domain.Net(txs)).Equal(d("6.94")))
}

func TestSettleToTarget_KeepsUnflagged(t *testing.T) {
	txs := append([]domain.Transaction{tx(10, domain.Expense, "100.00", "花呗")}, flaggedBatch()...)
	mask := maskAll(txs[1:])

	out, err := SettleToTarget(txs, mask, d("-96.53"))
	require.NoError(t, err)

	assert.False(t, out[0].WriteOff)
	assert.True(t, out[0].SignedAmount.Equal(d("-100")))
	assert.True(t, domain.Net(out).Equal(d("-96.53")))
}

func TestSettleNet(t *testing.T) {
	txs := flaggedBatch()
	out, err := SettleNet(txs, maskAll(txs))
	require.NoError(t, err)

	assert.True(t, domain.Net(out).Equal(domain.Net(txs)))
	// Negative residual goes to the first expense record.
	assert.True(t, out[0].SignedAmount.Equal(d("-3.47")))
	assert.Equal(t, domain.Expense, out[0].Direction)
}

func TestSettle_RewritesDirectionWhenNoMatch(t *testing.T) {
	txs := []domain.Transaction{
		tx(0, domain.Expense, "1.00", "零钱"),
		tx(1, domain.Expense, "2.00", "零钱"),
	}
	out, err := SettleToTarget(txs, maskAll(txs), d("0.50"))
	require.NoError(t, err)

	assert.Equal(t, domain.Income, out[0].Direction)
	assert.True(t, out[0].SignedAmount.Equal(d("0.5")))
	assert.True(t, out[1].SignedAmount.IsZero())
}

func TestSettle_NoFlaggedRecords(t *testing.T) {
	txs := flaggedBatch()

	_, err := SettleToTarget(txs, NewMask(), d("10.00"))
	assert.True(t, errors.Is(err, domain.ErrNoFlaggedRecords), "error = %v", err)

	out, err := SettleToTarget(txs, NewMask(), domain.Net(txs))
	require.NoError(t, err, "zero residual needs no flagged records")
	assert.Equal(t, txs, out)
}

func TestSettle_DoesNotMutateInput(t *testing.T) {
	txs := flaggedBatch()
	_, err := SettleNet(txs, maskAll(txs))
	require.NoError(t, err)
	for _, r := range txs {
		assert.False(t, r.WriteOff)
	}
}

func TestLoadMask(t *testing.T) {
	txs := flaggedBatch()
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "mask.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("keys:\n  - \""+string(txs[0].Key())+"\"\n  - \""+string(txs[2].Key())+"\"\n"), 0o600))

	textPath := filepath.Join(dir, "mask.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("# other transactions, January\n"+string(txs[1].Key())+"\n\n"), 0o600))

	m, err := LoadMask(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
	assert.True(t, m.Has(txs[0].Key()))
	assert.True(t, m.Has(txs[2].Key()))
	assert.False(t, m.Has(txs[1].Key()))

	m, err = LoadMask(textPath)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
	assert.True(t, m.Has(txs[1].Key()))

	_, err = LoadMask(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
