package tick

import (
	"errors"
	"math/bits"

	"github.com/holiman/uint256"
)

// ErrTickMisaligned is returned when a tick is not a multiple of the spacing.
var ErrTickMisaligned = errors.New("tick not aligned to spacing")

// Bitmap indexes initialized ticks, one bit per spacing-compressed tick,
// grouped into 256-bit words.
type Bitmap struct {
	words map[int16]*uint256.Int
}

func NewBitmap() *Bitmap {
	return &Bitmap{words: make(map[int16]*uint256.Int)}
}

// compress floors tick/spacing toward negative infinity.
func compress(tick, spacing int32) int32 {
	c := tick / spacing
	if tick < 0 && tick%spacing != 0 {
		c--
	}
	return c
}

func wordBit(compressed int32) (int16, uint) {
	return int16(compressed >> 8), uint(compressed & 255)
}

// Flip toggles the initialized bit for a tick.
func (b *Bitmap) Flip(tick, spacing int32) error {
	if tick%spacing != 0 {
		return ErrTickMisaligned
	}
	wordPos, bitPos := wordBit(tick / spacing)
	word, ok := b.words[wordPos]
	if !ok {
		word = new(uint256.Int)
		b.words[wordPos] = word
	}
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), bitPos)
	word.Xor(word, mask)
	if word.IsZero() {
		delete(b.words, wordPos)
	}
	return nil
}

// NextInitializedWithinOneWord returns the nearest initialized tick at or
// below tick (searchLeft) or strictly above it (!searchLeft), looking only
// inside the 256-bit word containing tick. When the word holds no candidate
// it returns the word's boundary tick with initialized=false so the caller
// can step again from there.
func (b *Bitmap) NextInitializedWithinOneWord(tick, spacing int32, searchLeft bool) (int32, bool) {
	compressed := compress(tick, spacing)

	if searchLeft {
		wordPos, bitPos := wordBit(compressed)
		word := b.word(wordPos)

		// All bits at or to the right of bitPos.
		mask := new(uint256.Int).Lsh(uint256.NewInt(1), bitPos+1)
		mask.SubUint64(mask, 1)
		masked := new(uint256.Int).And(word, mask)

		if !masked.IsZero() {
			msb := int32(masked.BitLen() - 1)
			return (compressed - (int32(bitPos) - msb)) * spacing, true
		}
		return (compressed - int32(bitPos)) * spacing, false
	}

	next := compressed + 1
	wordPos, bitPos := wordBit(next)
	word := b.word(wordPos)

	// All bits at or to the left of bitPos.
	low := new(uint256.Int).Lsh(uint256.NewInt(1), bitPos)
	low.SubUint64(low, 1)
	mask := new(uint256.Int).Not(low)
	masked := new(uint256.Int).And(word, mask)

	if !masked.IsZero() {
		lsb := leastSignificantBit(masked)
		return (next + (lsb - int32(bitPos))) * spacing, true
	}
	return (next + (255 - int32(bitPos))) * spacing, false
}

func (b *Bitmap) word(pos int16) *uint256.Int {
	if w, ok := b.words[pos]; ok {
		return w
	}
	return new(uint256.Int)
}

func leastSignificantBit(x *uint256.Int) int32 {
	for i := 0; i < 4; i++ {
		if limb := x[i]; limb != 0 {
			return int32(i*64 + bits.TrailingZeros64(limb))
		}
	}
	return 0
}
