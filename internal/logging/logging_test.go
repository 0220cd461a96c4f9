package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("face-detector", "debug")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logger.Desugar().Core().Enabled(zapcore.DebugLevel), test.ShouldBeTrue)

	logger, err = NewLogger("face-detector", "warn")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logger.Desugar().Core().Enabled(zapcore.InfoLevel), test.ShouldBeFalse)

	_, err = NewLogger("face-detector", "loud")
	test.That(t, err, test.ShouldNotBeNil)
}
