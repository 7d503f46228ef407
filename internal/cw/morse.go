// internal/cw/morse.go
// Package cw implements the Morse signal codec: tick-driven key classification,
// symbol sequence decoding and timed pulse encoding.
package cw

// Symbol is a single keyed element.
// Values match the element codes stored by the symbol sequence.
type Symbol uint8

const (
	// SymbolEmpty means no symbol has been decided yet
	SymbolEmpty Symbol = 0
	// Dot is a short element (1 unit)
	Dot Symbol = 1
	// Dash is a long element (3 units)
	Dash Symbol = 3
)

// String returns the conventional "." / "-" notation.
func (s Symbol) String() string {
	switch s {
	case Dot:
		return "."
	case Dash:
		return "-"
	default:
		return ""
	}
}

const (
	// NoCharacter is returned by Decode when there is nothing to emit
	NoCharacter byte = 0
	// Unknown is emitted for symbol sequences with no table entry
	Unknown byte = '?'
	// Space is pushed on word boundaries and keyed as a pure wait
	Space byte = ' '

	// MaxCodeLength is the longest sequence covered by the decode table
	MaxCodeLength = 5
)

// Morse code timing ratios in units (ITU standard, as keyed by the encoder)
const (
	// DotUnits is the key-down length of a dot
	DotUnits = 1
	// DashUnits is the key-down length of a dash
	DashUnits = 3
	// ElementGapUnits follows every element, including the last one of a character
	ElementGapUnits = 3
	// SpaceUnits is the extra wait for a word space; with the trailing element
	// gap of the previous character this gives the 7 unit word gap
	SpaceUnits = 4
	// LoopGapUnits separates repetitions of a looped memory message
	LoopGapUnits = 21
)

// Patterns maps every supported character to its element pattern.
// Both the encode and the decode tables are derived from it.
var Patterns = map[byte]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".",
	'F': "..-.", 'G': "--.", 'H': "....", 'I': "..", 'J': ".---",
	'K': "-.-", 'L': ".-..", 'M': "--", 'N': "-.", 'O': "---",
	'P': ".--.", 'Q': "--.-", 'R': ".-.", 'S': "...", 'T': "-",
	'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-", 'Y': "-.--",
	'Z': "--..",

	'0': "-----", '1': ".----", '2': "..---", '3': "...--", '4': "....-",
	'5': ".....", '6': "-....", '7': "--...", '8': "---..", '9': "----.",
}

// decodeTable is indexed by sequence length and binary code.
// A zero entry has no character assigned.
var decodeTable [MaxCodeLength + 1][1 << MaxCodeLength]byte

// encodeTable holds the element sequence per character.
var encodeTable [256][]Symbol

func init() {
	for char, pattern := range Patterns {
		elements := make([]Symbol, 0, len(pattern))
		code := 0
		for i := 0; i < len(pattern); i++ {
			code <<= 1
			if pattern[i] == '-' {
				code |= 1
				elements = append(elements, Dash)
			} else {
				elements = append(elements, Dot)
			}
		}
		decodeTable[len(pattern)][code] = char
		encodeTable[char] = elements
	}
}

// Decode maps a symbol sequence to its character.
// An empty sequence yields NoCharacter; sequences longer than MaxCodeLength or
// without a table entry yield Unknown.
func Decode(seq *SymbolSequence) byte {
	n := seq.Len()
	if n == 0 {
		return NoCharacter
	}
	if n > MaxCodeLength {
		return Unknown
	}

	// Walk from the most recent element back; the i-th most recent element is bit i.
	code := 0
	for shift := 0; shift < n; shift++ {
		if seq.At(n-1-shift) == Dash {
			code |= 1 << shift
		}
	}

	if char := decodeTable[n][code]; char != 0 {
		return char
	}
	return Unknown
}

// Elements returns the element pattern for c, or nil when c cannot be keyed.
// Lower-case ASCII letters are treated as upper case.
func Elements(c byte) []Symbol {
	return encodeTable[normalize(c)]
}

// Supported reports whether c can be keyed (letters, digits and space).
func Supported(c byte) bool {
	c = normalize(c)
	return c == Space || encodeTable[c] != nil
}

func normalize(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}
