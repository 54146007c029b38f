// Package harness drives evaluation runs: it resolves registered pipelines,
// executes them sequentially over a prompt batch, and isolates each
// pipeline's faults so one broken strategy never takes down the batch.
package harness

import (
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"github.com/lucasnoah/cellbench/internal/config"
	"github.com/lucasnoah/cellbench/internal/evidence"
	"github.com/lucasnoah/cellbench/internal/prompts"
)

// Pipeline is one opaque task-completion strategy. Run evaluates the given
// prompts, assigning iteration IDs startID+1 .. startID+len(prompts), and
// returns the evidence logger holding the results. resumeFrom optionally
// names a prior evidence document whose totals extend this run's summary.
type Pipeline interface {
	Name() string
	Run(taskPrompts []prompts.TaskPrompt, cfg *config.Config, startID int, resumeFrom string) (*evidence.Logger, error)
}

var registry = make(map[string]Pipeline)

// Register adds a pipeline to the registry. Call from init or startup;
// duplicate names panic because they indicate a wiring bug.
func Register(p Pipeline) {
	name := p.Name()
	if name == "" {
		panic("harness: pipeline with empty name")
	}
	if _, dup := registry[name]; dup {
		panic("harness: pipeline " + name + " registered twice")
	}
	registry[name] = p
}

// Get looks up a registered pipeline.
func Get(name string) (Pipeline, bool) {
	p, ok := registry[name]
	return p, ok
}

// Names returns the registered pipeline names, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Resolve maps selector names to pipelines. The single selector "all"
// expands to every registered pipeline.
func Resolve(selectors []string) ([]Pipeline, error) {
	if len(selectors) == 1 && selectors[0] == "all" {
		selectors = Names()
	}
	out := make([]Pipeline, 0, len(selectors))
	for _, name := range selectors {
		p, ok := Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown pipeline %q (registered: %v)", name, Names())
		}
		out = append(out, p)
	}
	return out, nil
}

// RunResult pairs a pipeline with the evidence of its run. Err records the
// fault when the pipeline failed and Logger holds the substituted empty log.
type RunResult struct {
	Pipeline string
	Logger   *evidence.Logger
	Err      error
}

// RunEvaluation executes the pipelines sequentially over the prompt batch.
// An error or panic from one pipeline is logged and replaced by an empty
// evidence log so downstream reporting sees every pipeline. Never retries;
// rerunning with resume is an operator decision.
func RunEvaluation(pipes []Pipeline, taskPrompts []prompts.TaskPrompt, cfg *config.Config, startID int, resume bool) []RunResult {
	results := make([]RunResult, 0, len(pipes))
	for _, p := range pipes {
		resumeFrom := ""
		if resume {
			if path, err := FindLatestLog(cfg.LogsDir, p.Name()); err == nil {
				resumeFrom = path
			} else {
				log.Printf("pipeline %s: no prior log to resume: %v", p.Name(), err)
			}
		}

		lg, err := runIsolated(p, taskPrompts, cfg, startID, resumeFrom)
		if err != nil {
			log.Printf("pipeline %s failed, substituting empty log: %v", p.Name(), err)
			lg = emptyLog(p.Name(), cfg.LogsDir)
		}
		results = append(results, RunResult{Pipeline: p.Name(), Logger: lg, Err: err})
	}
	return results
}

// runIsolated invokes one pipeline, converting a panic into an error.
func runIsolated(p Pipeline, taskPrompts []prompts.TaskPrompt, cfg *config.Config, startID int, resumeFrom string) (lg *evidence.Logger, err error) {
	defer func() {
		if r := recover(); r != nil {
			lg = nil
			err = fmt.Errorf("pipeline %s panicked: %v", p.Name(), r)
		}
	}()
	lg, err = p.Run(taskPrompts, cfg, startID, resumeFrom)
	if err == nil && lg == nil {
		err = fmt.Errorf("pipeline %s returned no evidence log", p.Name())
	}
	return lg, err
}

func emptyLog(pipeline, dir string) *evidence.Logger {
	lg, err := evidence.New(pipeline, dir, "")
	if err != nil {
		log.Printf("pipeline %s: cannot write substitute log: %v", pipeline, err)
		return nil
	}
	if err := lg.Close(); err != nil {
		log.Printf("pipeline %s: close substitute log: %v", pipeline, err)
	}
	return lg
}

// FindLatestLog returns the newest non-empty evidence document for a
// pipeline in logsDir. Filenames embed the run timestamp, so the
// lexicographic maximum is the latest run. Zero-record documents are passed
// over: a faulted run leaves an empty substitute log, and resuming from it
// would drop every earlier batch's totals and re-issue already-used
// iteration IDs. When only empty documents exist the latest one is
// returned.
func FindLatestLog(logsDir, pipeline string) (string, error) {
	pattern := filepath.Join(logsDir, pipeline+"_evidence_*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no evidence logs for %s in %s", pipeline, logsDir)
	}
	sort.Strings(matches)
	for i := len(matches) - 1; i >= 0; i-- {
		if doc, err := evidence.LoadDocument(matches[i]); err == nil && len(doc.Records) > 0 {
			return matches[i], nil
		}
	}
	return matches[len(matches)-1], nil
}

// NextStartID derives the iteration ID floor for a resumed batch from a
// prior document: the highest ID already assigned. Keeping batches disjoint
// this way makes resumed totals identical to a single unbatched run.
func NextStartID(priorLogPath string) (int, error) {
	doc, err := evidence.LoadDocument(priorLogPath)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, r := range doc.Records {
		if r.IterationID > max {
			max = r.IterationID
		}
	}
	return max, nil
}
