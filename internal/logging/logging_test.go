package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogging_New(t *testing.T) {
	t.Run("success - known level", func(t *testing.T) {
		log, err := New("debug")
		assert.NoError(t, err)
		assert.NotNil(t, log)
	})
	t.Run("failure - unknown level", func(t *testing.T) {
		_, err := New("verbose")
		assert.Error(t, err)
	})
}
