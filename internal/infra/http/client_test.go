package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientTimeout(t *testing.T) {
	assert.Equal(t, 5*time.Second, NewClient(5*time.Second).Timeout)
	assert.Equal(t, 30*time.Second, NewClient(0).Timeout)

	transport, ok := NewClient(time.Second).Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 10, transport.MaxIdleConnsPerHost)
}
