package errcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHighestOf(t *testing.T) {
	assert.Equal(t, DeadlineExceeded, HighestOf([]string{InputInvalid, DeadlineExceeded}))
	assert.Equal(t, InputInvalid, HighestOf([]string{InputInvalid}))
	assert.Equal(t, "", HighestOf(nil))
	assert.Equal(t, "", HighestOf([]string{RuleInternal, AIUnavailable}))
}
