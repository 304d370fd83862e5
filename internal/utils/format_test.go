package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestByteCountDecimal(t *testing.T) {
	assert.Equal(t, "0 B", ByteCountDecimal(0))
	assert.Equal(t, "999 B", ByteCountDecimal(999))
	assert.Equal(t, "1.0 kB", ByteCountDecimal(1000))
	assert.Equal(t, "1.5 kB", ByteCountDecimal(1500))
	assert.Equal(t, "2.0 MB", ByteCountDecimal(2_000_000))
	assert.Equal(t, "3.1 GB", ByteCountDecimal(3_100_000_000))
}
