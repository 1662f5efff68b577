package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"

	"wsp/internal/domain"
)

// safetyNumberDomain is the fixed domain-separation string mixed into the
// safety-number hash.
const safetyNumberDomain = "wsp/v1/safety-number"

// emojiAlphabet is the 64-entry set used to render safety-number bytes as
// visually distinct emoji.
var emojiAlphabet = [64]string{
	"🔑", "🌊", "🎸", "🏔", "🦊", "🌙", "⚡", "🎯",
	"🦋", "🌺", "🎪", "🚀", "🐉", "💎", "🌈", "🔥",
	"🎭", "🦁", "🌻", "⭐", "🎵", "🐺", "🌴", "🎲",
	"🦅", "🌸", "🎩", "💫", "🐬", "🌿", "🔮", "🦜",
	"🌾", "🎻", "🌟", "🐙", "🍀", "🎨", "💥", "🦈",
	"🌵", "🎹", "✨", "🐝", "🌹", "🎬", "🦉", "🍁",
	"🎺", "💠", "🐋", "🌼", "🎳", "🔷", "🦚", "🌱",
	"🎷", "💜", "🐧", "🌳", "🎶", "🔶", "🐺", "🌴",
}

// SafetyNumber computes the deterministic, order-independent safety number
// for a pair of public keys: SHA-256(domain || len(A) || A || len(B) || B)
// over the two keys sorted lexicographically.
func SafetyNumber(a, b domain.PublicKey) domain.SafetyNumber {
	first, second := a, b
	if b.Less(a) {
		first, second = b, a
	}

	h := sha256.New()
	h.Write([]byte(safetyNumberDomain))
	writeLenPrefixed(h, first.Slice())
	writeLenPrefixed(h, second.Slice())
	sum := h.Sum(nil)

	return domain.SafetyNumber{
		Digits: renderDigits(sum),
		Emoji:  renderEmoji(sum),
	}
}

func writeLenPrefixed(h interface{ Write([]byte) (int, error) }, b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	h.Write(lenBuf[:])
	h.Write(b)
}

// renderDigits formats the first 20 hash bytes as 5 groups of 5 digits.
func renderDigits(sum []byte) string {
	groups := make([]string, 5)
	for i := 0; i < 5; i++ {
		off := i * 4
		val := binary.BigEndian.Uint32(sum[off : off+4])
		groups[i] = fmt.Sprintf("%05d", val%100000)
	}
	return strings.Join(groups, " ")
}

// renderEmoji formats hash bytes 20..28 as 8 emoji.
func renderEmoji(sum []byte) string {
	var b strings.Builder
	for i := 20; i < 28; i++ {
		if i > 20 {
			b.WriteByte(' ')
		}
		b.WriteString(emojiAlphabet[int(sum[i])%len(emojiAlphabet)])
	}
	return b.String()
}

