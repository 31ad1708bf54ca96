package charges

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTo(t *testing.T) {
	testCases := []struct {
		value  float64
		places int32
		want   float64
	}{
		{1.005, 2, 1.01},
		{2.675, 2, 2.68},
		{1.004, 2, 1.0},
		{2.5, 0, 3},
		{0.49, 0, 0},
		{1234.5, 0, 1235},
		{-2.5, 0, -2},
		{0, 2, 0},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%v@%d", tc.value, tc.places), func(t *testing.T) {
			assert.Equal(t, tc.want, RoundTo(tc.value, tc.places))
		})
	}
}

func TestRoundToIsIdempotent(t *testing.T) {
	values := []float64{0.125, 1.005, 2.675, 99.995, 1234.5678, 0.0049, 17.3}
	for _, v := range values {
		for _, places := range []int32{0, 2} {
			once := RoundTo(v, places)
			assert.Equal(t, once, RoundTo(once, places), "value %v places %d", v, places)
		}
	}
}

func TestDebit(t *testing.T) {
	assert.Equal(t, -5.0, debit(5))
	assert.Equal(t, -5.0, debit(-5))
	assert.Equal(t, 0.0, debit(0))
}
