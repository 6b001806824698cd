package engine_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seantiz/timelock/internal/engine"
)

func TestErrorMatchesSentinelByKind(t *testing.T) {
	cause := errors.New("ready at 1060, now 1059")
	err := &engine.Error{Kind: engine.KindTooEarly, Op: "execute", Err: cause}

	assert.ErrorIs(t, err, engine.ErrTooEarly)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, engine.ErrNotFound)
	assert.Equal(t, "execute: operation not ready: ready at 1060, now 1059", err.Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, engine.Kind(""), engine.KindOf(nil))
	assert.Equal(t, engine.KindInternal, engine.KindOf(errors.New("disk on fire")))
	assert.Equal(t, engine.KindAlreadyQueued, engine.KindOf(fmt.Errorf("wrapped: %w", engine.ErrAlreadyQueued)))
}

func TestSentinelMessages(t *testing.T) {
	assert.Equal(t, "timelock not initialized", engine.ErrNotInitialized.Error())
	assert.Equal(t, "operation not found", engine.ErrNotFound.Error())
}
