package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishAfterCloseIsDropped(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "t", 1, nil)

	p.Close()
	assert.NotPanics(t, func() { p.Publish([]byte("k"), []byte("v")) })
	assert.NotPanics(t, p.Close)
	assert.Empty(t, p.inbox)
}
