package rating

// The rating scale maps to eleven fixed emoji: the keycap digits 0–9 and the
// keycap ten. The zero slot is reserved; the router rejects it (v1 scale is
// 1–10), but the codec stays total over all eleven symbols.

var emojiToValue = map[string]int{
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

var valueToEmoji = func() map[int]string {
	m := make(map[int]string, len(emojiToValue))
	for emoji, value := range emojiToValue {
		m[value] = emoji
	}
	return m
}()

// DecodeEmoji maps a reaction emoji to its rating value.
// Returns false for any symbol outside the fixed set.
func DecodeEmoji(symbol string) (int, bool) {
	value, ok := emojiToValue[symbol]
	return value, ok
}

// EncodeEmoji maps a rating value 0–10 to its reaction emoji.
func EncodeEmoji(value int) (string, bool) {
	emoji, ok := valueToEmoji[value]
	return emoji, ok
}

// ScaleEmojis returns the emoji for the ratable scale 1–10 in ascending order.
// Used to seed reactions on a freshly posted summary message.
func ScaleEmojis() []string {
	emojis := make([]string, 0, 10)
	for value := 1; value <= 10; value++ {
		emojis = append(emojis, valueToEmoji[value])
	}
	return emojis
}
