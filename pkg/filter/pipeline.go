// pkg/filter/pipeline.go - Sequential filter reduction with per-step recovery
package filter

import (
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
)

// Skip records a step that was not applied because its parameters were malformed
type Skip struct {
	Step   int    `json:"step"`
	Filter string `json:"filter"`
	Err    error  `json:"-"`
}

// Report describes what a pipeline run did
type Report struct {
	Applied int    `json:"applied"`
	Skipped []Skip `json:"skipped,omitempty"`
}

// Pipeline applies filters left to right, each seeing only the survivors of
// the previous step. A step with malformed parameters is logged, recorded in
// the Report and skipped; the run itself never fails.
type Pipeline struct {
	Logger zerolog.Logger
	// Now supplies the time used for the "*" date sentinel; defaults to time.Now
	Now func() time.Time
	// OnSkip, when set, is called for every skipped step
	OnSkip func(Skip)
}

// NewPipeline creates a pipeline logging to logger
func NewPipeline(logger zerolog.Logger) *Pipeline {
	return &Pipeline{Logger: logger}
}

// Apply runs filters over fc and returns a new collection. The input
// collection is not modified. Nil filters are placeholders and are skipped
// without a diagnostic.
func (p *Pipeline) Apply(fc *geojson.FeatureCollection, filters ...Filter) (*geojson.FeatureCollection, Report) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	e := env{now: now()}

	var current []*geojson.Feature
	if fc != nil {
		current = append(make([]*geojson.Feature, 0, len(fc.Features)), fc.Features...)
	}

	var report Report
	for step, f := range filters {
		if f == nil {
			continue
		}

		keep, err := f.keep(e)
		if err != nil {
			skip := Skip{Step: step, Filter: f.Name(), Err: err}
			report.Skipped = append(report.Skipped, skip)
			p.Logger.Warn().
				Err(err).
				Int("step", step).
				Str("filter", f.Name()).
				Msg("skipping filter with malformed parameters")
			if p.OnSkip != nil {
				p.OnSkip(skip)
			}
			continue
		}

		report.Applied++
		if keep == nil {
			continue
		}

		survivors := make([]*geojson.Feature, 0, len(current))
		for _, feat := range current {
			if keep(feat) {
				survivors = append(survivors, feat)
			}
		}
		p.Logger.Debug().
			Int("step", step).
			Str("filter", f.Name()).
			Int("in", len(current)).
			Int("out", len(survivors)).
			Msg("filter applied")
		current = survivors
	}

	out := geojson.NewFeatureCollection()
	out.Features = current
	if out.Features == nil {
		out.Features = []*geojson.Feature{}
	}
	return out, report
}
