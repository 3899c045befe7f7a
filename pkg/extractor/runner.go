package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/xhad/mmrag/internal/types"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Runner invokes an external converter and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrToolUnavailable, name)
	}
	logutil.GetLogger(ctx).Debug("running tool", zap.String("tool", path), zap.Strings("args", args))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v: %s", types.ErrExtractionFailed, name, err,
			strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
