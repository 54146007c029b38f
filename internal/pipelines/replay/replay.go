// Package replay evaluates pre-recorded stage artifacts. Each prompt maps
// to a directory <replay_dir>/<prompt_id>/ holding stage1.json, stage2.json
// and stage3.json; whatever an external strategy produced offline is pushed
// through the same validators and evidence machinery as a live run. A
// missing file is a missing artifact, not an error.
package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lucasnoah/cellbench/internal/artifact"
	"github.com/lucasnoah/cellbench/internal/config"
	"github.com/lucasnoah/cellbench/internal/evidence"
	"github.com/lucasnoah/cellbench/internal/harness"
	"github.com/lucasnoah/cellbench/internal/prompts"
	"github.com/lucasnoah/cellbench/internal/validate"
)

// Pipeline replays stored artifacts through the evaluation engine.
type Pipeline struct{}

// New returns the replay pipeline.
func New() *Pipeline { return &Pipeline{} }

// Name implements harness.Pipeline.
func (p *Pipeline) Name() string { return "replay" }

var stageFiles = map[string]string{
	artifact.Stage1: "stage1.json",
	artifact.Stage2: "stage2.json",
	artifact.Stage3: "stage3.json",
}

const referenceFile = "reference.json"

// loadArtifact reads one stored stage payload. Absent files return nil, so
// validators report the stage as missing.
func loadArtifact(dir, stage string) (json.RawMessage, error) {
	raw, err := os.ReadFile(filepath.Join(dir, stageFiles[stage]))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read stage %s artifact: %w", stage, err)
	}
	return raw, nil
}

// Run implements harness.Pipeline.
func (p *Pipeline) Run(taskPrompts []prompts.TaskPrompt, cfg *config.Config, startID int, resumeFrom string) (*evidence.Logger, error) {
	lg, err := evidence.New(p.Name(), cfg.LogsDir, resumeFrom)
	if err != nil {
		return nil, err
	}
	for i, task := range taskPrompts {
		if err := p.runIteration(lg, cfg, startID+1+i, task); err != nil {
			lg.Close()
			return nil, err
		}
	}
	if err := lg.Close(); err != nil {
		return nil, err
	}
	return lg, nil
}

func (p *Pipeline) runIteration(lg *evidence.Logger, cfg *config.Config, id int, task prompts.TaskPrompt) error {
	if err := lg.StartIteration(id, task.ID, task.Prompt); err != nil {
		return err
	}
	dir := filepath.Join(cfg.ReplayDir, task.ID)

	// Stage 1
	raw1, err := loadArtifact(dir, artifact.Stage1)
	if err != nil {
		return err
	}
	if err := lg.StartStage(artifact.Stage1); err != nil {
		return err
	}
	s1 := validate.Stage1(raw1)
	if err := lg.EndStage(s1.OK, s1.Message, raw1, s1.Checks); err != nil {
		return err
	}

	// Stage 2, gated on stage 1.
	stage2OK := false
	if err := lg.StartStage(artifact.Stage2); err != nil {
		return err
	}
	if !s1.OK {
		if err := lg.EndStage(false, "Skipped – Stage 1 failed", nil, nil); err != nil {
			return err
		}
	} else {
		raw2, err := loadArtifact(dir, artifact.Stage2)
		if err != nil {
			return err
		}
		s2 := scoreLayout(dir, cfg, raw2)
		cross := validate.Stage1VsTask(raw1, task.ExpectedRobot, task.ExpectedComponents)
		stage2OK = s2.OK && cross.OK
		msg := s2.Message
		if s2.OK && !cross.OK {
			msg = cross.Message
		}
		details := append(append([]validate.Check(nil), s2.Checks...), cross.Checks...)
		if err := lg.EndStage(stage2OK, msg, raw2, details); err != nil {
			return err
		}
	}

	// Stage 3, gated on stage 2. Stored submissions are raw: only the
	// robot's asset path is expected to resolve locally.
	if err := lg.StartStage(artifact.Stage3); err != nil {
		return err
	}
	if !stage2OK {
		if err := lg.EndStage(false, "Skipped – Stage 2 failed", nil, nil); err != nil {
			return err
		}
	} else {
		raw3, err := loadArtifact(dir, artifact.Stage3)
		if err != nil {
			return err
		}
		var s3 validate.Result
		if cfg.EnableSceneExecution {
			s3 = validate.Stage3Run(raw3)
		} else {
			s3 = validate.Stage3Submission(raw3, cfg.ProjectRoot)
		}
		if err := lg.EndStage(s3.OK, s3.Message, raw3, s3.Checks); err != nil {
			return err
		}
	}

	_, err = lg.EndIteration()
	return err
}

// scoreLayout validates the stored layout, preferring comparison against a
// known-good reference solution stored beside the artifacts. An absent,
// unreadable or component-less reference downgrades to structural
// validation.
func scoreLayout(dir string, cfg *config.Config, raw json.RawMessage) validate.Result {
	if ref := loadReference(dir); ref != nil {
		res := validate.CompareToReference(raw, ref, validate.CompareOpts{
			PositionToleranceM: cfg.Compare.PositionToleranceM,
			MotionToleranceM:   cfg.Compare.MotionToleranceM,
			MinMatchFraction:   cfg.Compare.MinMatchFraction,
		})
		if res.Kind != validate.KindMissing {
			return res
		}
	}
	return validate.Stage2(raw)
}

func loadReference(dir string) *artifact.LayoutSolution {
	raw, err := os.ReadFile(filepath.Join(dir, referenceFile))
	if err != nil {
		return nil
	}
	ref, err := artifact.DecodeLayoutSolution(raw)
	if err != nil {
		return nil
	}
	return ref
}

// Register adds the replay pipeline to the harness registry.
func Register() {
	harness.Register(New())
}
