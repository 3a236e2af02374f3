package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/billrecon/internal/config"
	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/dvloznov/billrecon/internal/ledger/inmemory"
	"github.com/dvloznov/billrecon/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockArchiver struct {
	ArchiveFunc func(ctx context.Context, data []byte, uri string) error
}

func (m *mockArchiver) Archive(ctx context.Context, data []byte, uri string) error {
	return m.ArchiveFunc(ctx, data, uri)
}

func staticSource(files map[string][]byte) *mockBillSource {
	return &mockBillSource{FetchFunc: func(ctx context.Context, uri string) ([]byte, error) {
		data, ok := files[uri]
		if !ok {
			return nil, os.ErrNotExist
		}
		return data, nil
	}}
}

func TestIngester_DetectsSavesAndArchives(t *testing.T) {
	ctx := context.Background()
	src := staticSource(map[string][]byte{
		"gs://bills/inbox/alipay_202401.csv": alipayBill().AlipayCSV(),
	})
	store := inmemory.NewStore()

	var archived []string
	arch := &mockArchiver{ArchiveFunc: func(ctx context.Context, data []byte, uri string) error {
		archived = append(archived, uri)
		return nil
	}}

	in := pipeline.NewIngester(pipeline.NewEngine(pipeline.WithBillSource(src)), store, arch)

	res, err := in.Ingest(ctx, "gs://bills/inbox/alipay_202401.csv", pipeline.IngestOptions{
		ArchiveTo: "gs://bills/archive/alipay_202401.csv",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderA, res.Import.Source)
	assert.Equal(t, 3, res.Saved.Inserted)
	assert.Equal(t, []string{"gs://bills/archive/alipay_202401.csv"}, archived)

	again, err := in.Ingest(ctx, "gs://bills/inbox/alipay_202401.csv", pipeline.IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Saved.Inserted)
	assert.Equal(t, 3, again.Saved.Duplicates)
	assert.Equal(t, 3, store.Len())
}

func TestIngester_StrictRefusesDiscrepancy(t *testing.T) {
	bill := alipayBill()
	bill.Income = "60.00"
	src := staticSource(map[string][]byte{"alipay.csv": bill.AlipayCSV()})
	store := inmemory.NewStore()
	in := pipeline.NewIngester(pipeline.NewEngine(pipeline.WithBillSource(src)), store, nil)

	res, err := in.Ingest(context.Background(), "alipay.csv", pipeline.IngestOptions{Strict: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDiscrepancy)
	require.NotNil(t, res)
	assert.Equal(t, domain.Discrepancy, res.Import.Verdict.Status)
	assert.Equal(t, 0, store.Len())

	lenient, err := in.Ingest(context.Background(), "alipay.csv", pipeline.IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, lenient.Saved.Inserted)
}

func TestIngester_UndetectableName(t *testing.T) {
	src := staticSource(map[string][]byte{"statement.csv": alipayBill().AlipayCSV()})
	in := pipeline.NewIngester(pipeline.NewEngine(pipeline.WithBillSource(src)), inmemory.NewStore(), nil)

	_, err := in.Ingest(context.Background(), "statement.csv", pipeline.IngestOptions{})
	assert.Error(t, err)

	res, err := in.Ingest(context.Background(), "statement.csv", pipeline.IngestOptions{Source: domain.ProviderA})
	require.NoError(t, err)
	assert.Equal(t, domain.Reconciled, res.Import.Verdict.Status)
}

func TestNewEngineFromConfig(t *testing.T) {
	dir := t.TempDir()
	rules := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte("fallback: Misc\nrules:\n  - category: Groceries\n    pattern: 超市\n"), 0o600))

	cfg := config.Default()
	cfg.RulesFile = rules

	e, err := pipeline.NewEngineFromConfig(cfg, nil)
	require.NoError(t, err)

	res, err := e.Import(context.Background(), alipayBill().AlipayCSV(), "alipay.csv", domain.ProviderA, pipeline.Options{})
	require.NoError(t, err)
	assert.Equal(t, "Groceries", res.Transactions[0].Category)
	assert.Equal(t, "Misc", res.Transactions[1].Category)

	cfg.ProvidersFile = filepath.Join(dir, "missing.yaml")
	_, err = pipeline.NewEngineFromConfig(cfg, nil)
	assert.Error(t, err)
}
