package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetAllowsChainedEvents(t *testing.T) {
	InitWithMode(LogModeTest)

	log := Get()
	assert.NotNil(t, log)
	Get().Debug().Str("key", "value").Msg("chained on the returned logger")
}

func TestWithComponentAllowsChainedEvents(t *testing.T) {
	InitWithMode(LogModeTest)

	log := WithComponent("test")
	assert.NotNil(t, log)
	WithComponent("test").Debug().Msg("chained on the returned logger")
}
