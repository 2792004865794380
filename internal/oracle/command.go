package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pfmtransfer/internal/alignment"
	"github.com/sells-group/pfmtransfer/internal/model"
)

// Operations understood by an external oracle tool.
const (
	OpAlign    = "align"
	OpClassify = "classify"
	OpCompare  = "compare"
	OpMerge    = "merge"
)

// Command runs an external tool once per call. The tool reads a JSON
// request from stdin and writes a JSON reply to stdout; a non-zero exit is
// reported as a *ToolError wrapping the *exec.ExitError.
type Command struct {
	Name    string
	Path    string
	Args    []string
	Timeout time.Duration
}

type request struct {
	Op        string           `json:"op"`
	Sequences []model.Sequence `json:"sequences,omitempty"`
	Matrix    string           `json:"matrix,omitempty"`
	Mode      model.AlignMode  `json:"mode,omitempty"`
	Profiles  []model.PFM      `json:"profiles,omitempty"`
	Features  []float64        `json:"features,omitempty"`
}

type reply struct {
	Trace   *model.AlignmentTrace `json:"trace,omitempty"`
	Score   *float64              `json:"score,omitempty"`
	Profile *model.PercentPFM     `json:"profile,omitempty"`
}

// ToolError is a failed tool invocation with its captured stderr.
type ToolError struct {
	Tool   string
	Op     string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("oracle: %s %s: %v", e.Tool, e.Op, e.Err)
	}
	return fmt.Sprintf("oracle: %s %s: %v: %s", e.Tool, e.Op, e.Err, e.Stderr)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Align implements alignment.Aligner.
func (c Command) Align(ctx context.Context, a, b model.Sequence, m *alignment.SubstitutionMatrix, mode model.AlignMode) (model.AlignmentTrace, error) {
	req := request{Op: OpAlign, Sequences: []model.Sequence{a, b}, Mode: mode}
	if m != nil {
		req.Matrix = m.Name
	}
	rep, err := c.run(ctx, req)
	if err != nil {
		return model.AlignmentTrace{}, err
	}
	if rep.Trace == nil {
		return model.AlignmentTrace{}, c.missing(OpAlign, "trace")
	}
	return *rep.Trace, nil
}

// Compare implements consensus.DistanceOracle.
func (c Command) Compare(ctx context.Context, a, b model.PFM) (float64, error) {
	rep, err := c.run(ctx, request{Op: OpCompare, Profiles: []model.PFM{a, b}})
	if err != nil {
		return 0, err
	}
	if rep.Score == nil {
		return 0, c.missing(OpCompare, "score")
	}
	return *rep.Score, nil
}

// Merge implements consensus.MergeOracle.
func (c Command) Merge(ctx context.Context, profiles []model.PFM) (model.PercentPFM, error) {
	rep, err := c.run(ctx, request{Op: OpMerge, Profiles: profiles})
	if err != nil {
		return model.PercentPFM{}, err
	}
	if rep.Profile == nil {
		return model.PercentPFM{}, c.missing(OpMerge, "profile")
	}
	return *rep.Profile, nil
}

// Score implements pipeline.Classifier.
func (c Command) Score(ctx context.Context, features []float64) (float64, error) {
	rep, err := c.run(ctx, request{Op: OpClassify, Features: features})
	if err != nil {
		return 0, err
	}
	if rep.Score == nil {
		return 0, c.missing(OpClassify, "score")
	}
	return *rep.Score, nil
}

func (c Command) run(ctx context.Context, req request) (reply, error) {
	if c.Path == "" {
		return reply{}, eris.Wrapf(model.ErrInvalidConfig, "oracle: %s: no command path", c.label())
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return reply{}, eris.Wrapf(err, "oracle: %s %s: encode request", c.label(), req.Op)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Stdin = bytes.NewReader(body)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	zap.L().Debug("oracle: command finished",
		zap.String("tool", c.label()),
		zap.String("op", req.Op),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return reply{}, &ToolError{
			Tool:   c.label(),
			Op:     req.Op,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}

	var rep reply
	if err := json.Unmarshal(stdout.Bytes(), &rep); err != nil {
		return reply{}, eris.Wrapf(err, "oracle: %s %s: decode reply", c.label(), req.Op)
	}
	return rep, nil
}

func (c Command) missing(op, field string) error {
	return eris.Errorf("oracle: %s %s: reply has no %s", c.label(), op, field)
}

func (c Command) label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Path
}
