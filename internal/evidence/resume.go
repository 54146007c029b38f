package evidence

import "fmt"

// PriorStats holds the pre-aggregated totals of an earlier batch. Loaded
// once at logger construction and only ever added to live totals; never
// re-derived from raw records afterwards.
type PriorStats struct {
	Iterations       int
	OverallSuccesses int
	StageSuccesses   map[string]int
	ToolHits         map[string]int
	ToolMisses       map[string]int
	APICalls         int
	TokensPrompt     int
	TokensCompletion int
	TokensTotal      int
}

// LoadPrior reads a persisted evidence document and reduces it to the
// additive totals needed for a resumed run.
func LoadPrior(path string) (PriorStats, error) {
	var doc Document
	if err := ReadJSON(path, &doc); err != nil {
		return PriorStats{}, fmt.Errorf("load prior log: %w", err)
	}

	prior := PriorStats{
		StageSuccesses: make(map[string]int),
		ToolHits:       make(map[string]int),
		ToolMisses:     make(map[string]int),
	}
	for _, r := range doc.Records {
		prior.Iterations++
		if r.OverallSuccess {
			prior.OverallSuccesses++
		}
		for _, stage := range stageOrder {
			if r.stageSuccess(stage) {
				prior.StageSuccesses[stage]++
			}
		}
		for _, s := range r.StageResults {
			for _, c := range s.ToolCalls {
				if c.Hit() {
					prior.ToolHits[s.Stage]++
				} else {
					prior.ToolMisses[s.Stage]++
				}
			}
		}
		prior.APICalls += r.APICalls
		prior.TokensPrompt += r.TokensPrompt
		prior.TokensCompletion += r.TokensCompletion
		prior.TokensTotal += r.TokensTotal
	}
	return prior, nil
}

// LoadDocument reads a persisted evidence document without aggregation.
func LoadDocument(path string) (*Document, error) {
	var doc Document
	if err := ReadJSON(path, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
