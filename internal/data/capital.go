package data

import (
	"encoding/json"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfolio/allocation-engine/pkg/types"
)

// capitalFile mirrors the persisted capital record: one or more named
// account balances.
type capitalFile struct {
	Balances map[string]decimal.Decimal `json:"balances"`
}

// CapitalSource loads the capital pool for a sizing run.
type CapitalSource struct {
	logger   *zap.Logger
	fallback decimal.Decimal
}

// NewCapitalSource creates a capital source with the configured fallback.
func NewCapitalSource(logger *zap.Logger, fallback decimal.Decimal) *CapitalSource {
	return &CapitalSource{logger: logger, fallback: fallback}
}

// Load sums the named balances into a CapitalPool. An unreadable source
// degrades to the fallback capital rather than aborting: sizing with a
// conservative fallback is safer than producing no sizing at all. The
// returned pool is always usable, and the accompanying DataSourceDegraded
// (nil when the source was healthy) records why the fallback was taken.
func (cs *CapitalSource) Load(path string) (types.CapitalPool, *types.DataSourceDegraded) {
	raw, err := os.ReadFile(path)
	if err != nil {
		cs.logger.Warn("capital source unreadable, using fallback",
			zap.String("path", path),
			zap.String("fallback", cs.fallback.String()),
			zap.Error(err),
		)
		return types.CapitalPool{TotalCapital: cs.fallback, Fallback: true},
			&types.DataSourceDegraded{Source: "capital", Err: err}
	}

	var file capitalFile
	if err := json.Unmarshal(raw, &file); err != nil || len(file.Balances) == 0 {
		cs.logger.Warn("capital source unparseable, using fallback",
			zap.String("path", path),
			zap.Error(err),
		)
		return types.CapitalPool{TotalCapital: cs.fallback, Fallback: true},
			&types.DataSourceDegraded{Source: "capital", Err: err}
	}

	total := decimal.Zero
	for _, balance := range file.Balances {
		total = total.Add(balance)
	}

	return types.CapitalPool{TotalCapital: total, Balances: file.Balances}, nil
}
