package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSeverity(t *testing.T) {
	assert.Equal(t, "critical", NormalizeSeverity(" CRITICAL "))
	assert.Equal(t, "medium", NormalizeSeverity("medium"))
	assert.Equal(t, "low", NormalizeSeverity(""))
	assert.Equal(t, "low", NormalizeSeverity("apocalyptic"))
}

func TestGetWeight(t *testing.T) {
	assert.Equal(t, 5, GetWeight("low"))
	assert.Equal(t, 50, GetWeight("medium"))
	assert.Equal(t, 250, GetWeight("critical"))
	assert.Equal(t, 0, GetWeight("unknown"))
}
