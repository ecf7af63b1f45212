package queue

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// isBusyGroupErr and the backoff arithmetic are the only parts of this
// transport testable without a live (or faked) Redis server; XREADGROUP,
// XACK, XPENDING and XADD all require a real broker connection.

func TestIsBusyGroupErr(t *testing.T) {
	assert.True(t, isBusyGroupErr(errors.New("BUSYGROUP Consumer Group name already exists")))
	assert.False(t, isBusyGroupErr(errors.New("NOGROUP No such key")))
	assert.False(t, isBusyGroupErr(nil))
	assert.False(t, isBusyGroupErr(errors.New("short")))
}

