package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDirection(t *testing.T) {
	t.Run("accepts source vocabulary", func(t *testing.T) {
		for raw, want := range map[string]Direction{
			"buy":   DirectionLong,
			"BUY":   DirectionLong,
			" Buy ": DirectionLong,
			"long":  DirectionLong,
			"sell":  DirectionShort,
			"SELL":  DirectionShort,
			"short": DirectionShort,
		} {
			got, err := ParseDirection(raw)
			assert.NoError(t, err, raw)
			assert.Equal(t, want, got, raw)
		}
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		for _, raw := range []string{"", "hold", "exit", "buy now"} {
			_, err := ParseDirection(raw)
			assert.ErrorIs(t, err, ErrInvalidSignal, raw)
		}
	})
}

func TestDirectionOpposite(t *testing.T) {
	assert.Equal(t, DirectionShort, DirectionLong.Opposite())
	assert.Equal(t, DirectionLong, DirectionShort.Opposite())
}

func TestSignalValidate(t *testing.T) {
	valid := Signal{
		Ticker:    "GARAN",
		Direction: DirectionLong,
		Price:     27.5,
		At:        time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC),
	}

	t.Run("accepts a well-formed signal", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("rejects blank ticker", func(t *testing.T) {
		sig := valid
		sig.Ticker = "   "
		assert.ErrorIs(t, sig.Validate(), ErrInvalidSignal)
	})

	t.Run("rejects unknown direction", func(t *testing.T) {
		sig := valid
		sig.Direction = "sideways"
		assert.ErrorIs(t, sig.Validate(), ErrInvalidSignal)
	})

	t.Run("rejects non-positive price", func(t *testing.T) {
		for _, price := range []float64{0, -1, math.NaN(), math.Inf(1)} {
			sig := valid
			sig.Price = price
			assert.ErrorIs(t, sig.Validate(), ErrInvalidSignal)
		}
	})

	t.Run("rejects zero timestamp", func(t *testing.T) {
		sig := valid
		sig.At = time.Time{}
		assert.ErrorIs(t, sig.Validate(), ErrInvalidSignal)
	})
}
