package data

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/quantfolio/allocation-engine/pkg/types"
)

// kellyFile mirrors the persisted Kelly baseline record. The value is a
// percentage (e.g. 4.48) and is divided by 100 on load.
type kellyFile struct {
	KellyCriterion float64 `json:"kelly_criterion"`
}

// KellyBaseSource loads the global Kelly baseline.
type KellyBaseSource struct {
	logger   *zap.Logger
	fallback float64
}

// NewKellyBaseSource creates a Kelly baseline source with the configured
// fallback fraction.
func NewKellyBaseSource(logger *zap.Logger, fallback float64) *KellyBaseSource {
	return &KellyBaseSource{logger: logger, fallback: fallback}
}

// Load reads the Kelly baseline. On an unreadable or nonsensical source the
// documented fallback constant is used instead; the returned parameters are
// always usable, and the accompanying DataSourceDegraded (nil when the
// source was healthy) records why the fallback was taken.
func (ks *KellyBaseSource) Load(path string) (types.KellyParameters, *types.DataSourceDegraded) {
	raw, err := os.ReadFile(path)
	if err != nil {
		ks.logger.Warn("kelly baseline unreadable, using fallback",
			zap.String("path", path),
			zap.Float64("fallback", ks.fallback),
			zap.Error(err),
		)
		return types.KellyParameters{GlobalKellyBase: ks.fallback, Fallback: true},
			&types.DataSourceDegraded{Source: "kelly_baseline", Err: err}
	}

	var file kellyFile
	if err := json.Unmarshal(raw, &file); err != nil {
		ks.logger.Warn("kelly baseline unparseable, using fallback",
			zap.String("path", path),
			zap.Error(err),
		)
		return types.KellyParameters{GlobalKellyBase: ks.fallback, Fallback: true},
			&types.DataSourceDegraded{Source: "kelly_baseline", Err: err}
	}

	base := file.KellyCriterion / 100
	if base <= 0 || base > 1 {
		err := fmt.Errorf("kelly_criterion %.4f%% outside (0,100]", file.KellyCriterion)
		ks.logger.Warn("kelly baseline out of range, using fallback",
			zap.String("path", path),
			zap.Error(err),
		)
		return types.KellyParameters{GlobalKellyBase: ks.fallback, Fallback: true},
			&types.DataSourceDegraded{Source: "kelly_baseline", Err: err}
	}

	return types.KellyParameters{GlobalKellyBase: base}, nil
}
