package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageIDFromPayload(t *testing.T) {
	assert.Equal(t, "msg-1", messageIDFromPayload([]byte(`{"MessageId":"msg-1","sale_id":"s1"}`)))
	assert.Empty(t, messageIDFromPayload([]byte(`{"sale_id":"s1"}`)))
	assert.Empty(t, messageIDFromPayload([]byte(`not json`)))
}
