package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatsKindAndMessage(t *testing.T) {
	err := NewError(KindConcurrentConflict, "version mismatch").WithEntity("Order")
	assert.Equal(t, "Order", err.EntityID)
	assert.Contains(t, err.Error(), "concurrent-conflict")
	assert.Contains(t, err.Error(), "version mismatch")
}
