package analysis

import (
	"context"
	"fmt"
	"runtime"

	"github.com/google/uuid"

	gaoconfig "github.com/JaimeStill/go-agents-orchestration/pkg/config"
	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/JaimeStill/safestack/internal/classifier"
	"github.com/JaimeStill/safestack/internal/policies"
)

// State keys shared by the workflow nodes.
const (
	KeySubmission = "submission"
	KeyDocument   = "policy_document"
	KeyVideoID    = "video_id"
	KeyViolations = "violations"
	KeyFrames     = "frames"
	KeyResult     = "result"
)

// Execute classifies a stored segment and records its findings.
// The graph runs classify → extract? → record, skipping extraction
// when the model reports nothing.
func Execute(ctx context.Context, rt *Runtime, videoID uuid.UUID, doc *policies.Document, sub Submission) (*Result, error) {
	ex := &execution{rt: rt}

	graph, err := buildGraph(ex)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	initial := state.New(nil).
		Set(KeySubmission, sub).
		Set(KeyDocument, doc).
		Set(KeyVideoID, videoID)

	final, err := graph.Execute(ctx, initial)
	if err != nil {
		if ex.err != nil {
			return nil, ex.err
		}
		return nil, fmt.Errorf("execute graph: %w", err)
	}

	return get[*Result](final, KeyResult)
}

func buildGraph(ex *execution) (state.StateGraph, error) {
	cfg := gaoconfig.DefaultGraphConfig("safestack-analysis")
	cfg.Observer = "noop"

	graph, err := state.NewGraph(cfg)
	if err != nil {
		return nil, err
	}

	if err := graph.AddNode("classify", classifyNode(ex)); err != nil {
		return nil, err
	}

	if err := graph.AddNode("extract", extractNode(ex)); err != nil {
		return nil, err
	}

	if err := graph.AddNode("record", recordNode(ex)); err != nil {
		return nil, err
	}

	if err := graph.AddEdge("classify", "extract", hasViolations); err != nil {
		return nil, err
	}

	if err := graph.AddEdge("classify", "record", state.Not(hasViolations)); err != nil {
		return nil, err
	}

	if err := graph.AddEdge("extract", "record", nil); err != nil {
		return nil, err
	}

	if err := graph.SetEntryPoint("classify"); err != nil {
		return nil, err
	}

	if err := graph.SetExitPoint("record"); err != nil {
		return nil, err
	}

	return graph, nil
}

// execution carries one graph run. Node failures are kept here so callers
// can match them with errors.Is regardless of how the graph reports them.
type execution struct {
	rt  *Runtime
	err error
}

func (ex *execution) fail(s state.State, stage string, err error) (state.State, error) {
	ex.err = fmt.Errorf("%s: %w", stage, err)
	return s, ex.err
}

func hasViolations(s state.State) bool {
	v, err := get[[]classifier.Violation](s, KeyViolations)
	return err == nil && len(v) > 0
}

func get[T any](s state.State, key string) (T, error) {
	var zero T

	val, ok := s.Get(key)
	if !ok {
		return zero, fmt.Errorf("missing %s in state", key)
	}

	typed, ok := val.(T)
	if !ok {
		return zero, fmt.Errorf("%s has unexpected type %T", key, val)
	}

	return typed, nil
}

func workerCount(limit, n int) int {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	return max(min(limit, n), 1)
}
