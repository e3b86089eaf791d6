package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mistakeknot/briefq/internal/core"
)

const maxCapturedOutput = 64 * 1024

// CommandHandler returns a Handler that supervises one subprocess per
// message: the message is piped to stdin as JSON, stdout becomes the result,
// and a non-zero exit fails the message with the captured stderr. Queue
// bookkeeping stays in the worker loop; the subprocess only sees its input
// and produces output.
func CommandHandler(name string, args ...string) Handler {
	return func(ctx context.Context, msg core.Message, report ReportFunc) (string, error) {
		payload, err := json.Marshal(msg)
		if err != nil {
			return "", fmt.Errorf("encode message: %w", err)
		}

		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Stdin = bytes.NewReader(payload)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		report("running " + name)
		if err := cmd.Run(); err != nil {
			detail := strings.TrimSpace(stderr.String())
			if detail == "" {
				detail = err.Error()
			}
			return "", fmt.Errorf("%s: %s", name, truncateOutput(detail))
		}
		return truncateOutput(strings.TrimSpace(stdout.String())), nil
	}
}

func truncateOutput(s string) string {
	if len(s) > maxCapturedOutput {
		return s[:maxCapturedOutput]
	}
	return s
}
