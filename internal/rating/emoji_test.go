package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEmoji_FullScale(t *testing.T) {
	expected := map[string]int{
		"0️⃣": 0,
		"1️⃣": 1,
		"2️⃣": 2,
		"3️⃣": 3,
		"4️⃣": 4,
		"5️⃣": 5,
		"6️⃣": 6,
		"7️⃣": 7,
		"8️⃣": 8,
		"9️⃣": 9,
		"🔟":  10,
	}

	for symbol, value := range expected {
		got, ok := DecodeEmoji(symbol)
		require.True(t, ok, "Expected %q to decode", symbol)
		assert.Equal(t, value, got)
	}
}

func TestDecodeEmoji_UnknownSymbols(t *testing.T) {
	for _, symbol := range []string{"👍", "⭐", "1", "", "keycap", "1️⃣1️⃣"} {
		_, ok := DecodeEmoji(symbol)
		assert.False(t, ok, "Expected %q not to decode", symbol)
	}
}

func TestEncodeEmoji_RoundTrip(t *testing.T) {
	for value := 0; value <= 10; value++ {
		symbol, ok := EncodeEmoji(value)
		require.True(t, ok, "Expected %d to encode", value)

		decoded, ok := DecodeEmoji(symbol)
		require.True(t, ok)
		assert.Equal(t, value, decoded)
	}
}

func TestEncodeEmoji_OutOfRange(t *testing.T) {
	for _, value := range []int{-1, 11, 100} {
		_, ok := EncodeEmoji(value)
		assert.False(t, ok, "Expected %d not to encode", value)
	}
}

func TestScaleEmojis_AscendingVotableScale(t *testing.T) {
	scale := ScaleEmojis()
	require.Len(t, scale, 10)

	for i, symbol := range scale {
		value, ok := DecodeEmoji(symbol)
		require.True(t, ok)
		assert.Equal(t, i+1, value, "Scale position %d", i)
	}
}
