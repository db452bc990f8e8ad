package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacgo/bacnet/bactypes"
)

func TestPriorityArrayResolveDefault(t *testing.T) {
	p := &PriorityArray{RelinquishDefault: bactypes.Real(5)}
	assert.Equal(t, bactypes.Real(5), p.Resolve())
	assert.Equal(t, 0, p.CurrentCommandPriority())
}

func TestPriorityArraySetResolvesHighestPriority(t *testing.T) {
	p := &PriorityArray{RelinquishDefault: bactypes.Real(0)}
	p.Set(10, bactypes.Real(10), "test", bactypes.Time{})
	p.Set(3, bactypes.Real(3), "test", bactypes.Time{})
	assert.Equal(t, bactypes.Real(3), p.Resolve())
	assert.Equal(t, 3, p.CurrentCommandPriority())

	p.Set(3, nil, "test", bactypes.Time{})
	assert.Equal(t, bactypes.Real(10), p.Resolve())
	assert.Equal(t, 10, p.CurrentCommandPriority())
}

func TestValidatePriority(t *testing.T) {
	require.NoError(t, ValidatePriority(1))
	require.NoError(t, ValidatePriority(16))
	assert.Error(t, ValidatePriority(0))
	assert.Error(t, ValidatePriority(17))
}
