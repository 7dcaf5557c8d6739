package targets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

func TestStaticSupplier(t *testing.T) {
	in := []domain.TargetAllocation{{CoinType: "BTC", TargetPercentage: decimal.NewFromInt(100)}}
	s := NewStaticSupplier(in)
	in[0].CoinType = "ETH"

	out, err := s.Targets(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "BTC", out[0].CoinType)
}

func TestFileSupplier(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml document",
			file: "targets.yaml",
			content: `allocations:
  - coinType: BTC
    percentage: 60
  - coinType: USDT
    percentage: "40"
`,
		},
		{
			name: "yaml list",
			file: "list.yml",
			content: `- coinType: BTC
  percentage: 60
- coinType: USDT
  percentage: 40
`,
		},
		{
			name:    "json tool call",
			file:    "targets.json",
			content: `{"allocations":[{"coinType":"BTC","percentage":"60"},{"coinType":"USDT","percentage":40}]}`,
		},
		{
			name:    "json list",
			file:    "list.JSON",
			content: `[{"coinType":"BTC","percentage":60},{"coinType":"USDT","percentage":40}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			out, err := NewFileSupplier(path).Targets(context.Background())
			require.NoError(t, err)
			require.Len(t, out, 2)
			assert.Equal(t, "BTC", out[0].CoinType)
			assert.True(t, out[0].TargetPercentage.Equal(decimal.NewFromInt(60)))
			assert.Equal(t, "USDT", out[1].CoinType)
			assert.True(t, out[1].TargetPercentage.Equal(decimal.NewFromInt(40)))
		})
	}
}

func TestFileSupplier_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewFileSupplier(filepath.Join(dir, "missing.yaml")).Targets(context.Background())
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`[]`), 0o600))
	_, err = NewFileSupplier(empty).Targets(context.Background())
	require.Error(t, err)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"allocations":[{"coinType":"BTC","percentage":"x"}]}`), 0o600))
	_, err = NewFileSupplier(broken).Targets(context.Background())
	require.Error(t, err)
}
