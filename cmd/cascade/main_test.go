package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/solver"
)

func TestReportExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		hint string
	}{
		{"numerical", solver.SimulationErr(12, 340, dynamo.ErrStepTooSmall), exitNumerical, "step_scale"},
		{"configuration", dynamo.Configf("unknown kernel: %s", "fpga"), exitConfig, "cascade models"},
		{"lookup", fmt.Errorf("observers: %w", dynamo.NotFoundf("species %q", "B0")), exitConfig, "cascade models"},
		{"cancelled", fmt.Errorf("solve: %w", context.Canceled), exitCancelled, ""},
		{"other", errors.New("disk full"), exitFailure, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if code := report(&buf, tt.err); code != tt.code {
				t.Errorf("exit code %d, want %d", code, tt.code)
			}
			out := buf.String()
			if !strings.HasPrefix(out, "error: ") {
				t.Errorf("output %q", out)
			}
			if tt.hint != "" && !strings.Contains(out, tt.hint) {
				t.Errorf("output %q missing hint %q", out, tt.hint)
			}
			if tt.hint == "" && strings.Contains(out, "hint:") {
				t.Errorf("unexpected hint in %q", out)
			}
		})
	}
}
