package engine_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/cascade/internal/engine"
)

func TestEngine(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Engine Suite")
}

// base is the vertical toy run shared by read-only specs.
var base *engine.RunState

var _ = BeforeSuite(func() {
	var err error
	base, err = engine.Build(context.Background(), engine.DefaultRunConfig())
	Expect(err).NotTo(HaveOccurred())
})
