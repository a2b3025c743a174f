package conversion

import (
	"fxcalc/internal/domain"
	"fxcalc/internal/expr"
)

type SnapshotSource interface {
	Current() (*domain.Snapshot, error)
}

// Pipeline runs one request through Tokenizing → Resolving → Evaluating. It reads the
// rate repository exactly once, at the start of Resolving, and uses that snapshot for
// every amount of the request.
type Pipeline struct {
	rates     SnapshotSource
	precision int32
}

func (p *Pipeline) Convert(req domain.ConversionRequest, track func(domain.State)) (domain.ConversionResult, error) {
	if track == nil {
		track = func(domain.State) {}
	}

	track(domain.StateTokenizing)
	e, err := expr.Compile(req.Expression, req.Target)
	if err != nil {
		return domain.ConversionResult{}, err
	}

	track(domain.StateResolving)
	result := domain.ConversionResult{Target: e.Target, Tokens: []domain.ResolvedToken{}}
	if result.Target == "" {
		result.Target = domain.NoCurrency
	}
	if e.NeedsRates() {
		snap, err := p.rates.Current()
		if err != nil {
			return domain.ConversionResult{}, err
		}
		tokens, err := expr.Resolve(e, snap, e.Target)
		if err != nil {
			return domain.ConversionResult{}, err
		}
		result.Tokens = tokens
		result.SnapshotVersion = snap.Version()
		result.SnapshotTime = snap.CapturedAt()
	}

	track(domain.StateEvaluating)
	value, err := expr.Evaluate(e, expr.ConvertedValues(result.Tokens), p.precision)
	if err != nil {
		return domain.ConversionResult{}, err
	}
	result.Value = value
	return result, nil
}

func NewPipeline(rates SnapshotSource, precision int32) *Pipeline {
	return &Pipeline{rates: rates, precision: precision}
}
