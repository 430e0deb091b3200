package kernel

import (
	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/operator"
)

// NewCUDA reports that no GPU kernel is compiled into this build.
func NewCUDA(ops *operator.Set) (LinearStepKernel, error) {
	return nil, dynamo.Configf("cuda kernel not available in this build")
}
