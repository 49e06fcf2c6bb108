package zodiac

import "fmt"

// Sign is one of the twelve zodiac signs. Stored and transmitted in its
// capitalized English form ("Aries", "Taurus", ...).
type Sign string

const (
	Aries       Sign = "Aries"
	Taurus      Sign = "Taurus"
	Gemini      Sign = "Gemini"
	Cancer      Sign = "Cancer"
	Leo         Sign = "Leo"
	Virgo       Sign = "Virgo"
	Libra       Sign = "Libra"
	Scorpio     Sign = "Scorpio"
	Sagittarius Sign = "Sagittarius"
	Capricorn   Sign = "Capricorn"
	Aquarius    Sign = "Aquarius"
	Pisces      Sign = "Pisces"
)

// Element is one of the four classical elements a sign belongs to.
type Element string

const (
	Fire  Element = "Fire"
	Earth Element = "Earth"
	Air   Element = "Air"
	Water Element = "Water"
)

// Elements lists all four elements in canonical order.
var Elements = []Element{Fire, Earth, Air, Water}

// Signs lists all twelve signs in calendar order.
var Signs = []Sign{
	Aries, Taurus, Gemini, Cancer, Leo, Virgo,
	Libra, Scorpio, Sagittarius, Capricorn, Aquarius, Pisces,
}

var signElements = map[Sign]Element{
	Aries:       Fire,
	Leo:         Fire,
	Sagittarius: Fire,
	Taurus:      Earth,
	Virgo:       Earth,
	Capricorn:   Earth,
	Gemini:      Air,
	Libra:       Air,
	Aquarius:    Air,
	Cancer:      Water,
	Scorpio:     Water,
	Pisces:      Water,
}

// Element returns the classical element the sign belongs to. The mapping is
// total and immutable; an unknown sign returns the empty element.
func (s Sign) Element() Element {
	return signElements[s]
}

// Valid reports whether s is one of the twelve signs.
func (s Sign) Valid() bool {
	_, ok := signElements[s]
	return ok
}

// ParseSign validates a raw string as a zodiac sign.
func ParseSign(raw string) (Sign, error) {
	s := Sign(raw)
	if !s.Valid() {
		return "", fmt.Errorf("invalid zodiac sign %q", raw)
	}
	return s, nil
}

// MatchTier is the qualitative compatibility bucket between a user's sign and
// a stock's sign. SameSign is never stored in the matrix; it is derived at
// lookup time and always outranks a stored tier.
type MatchTier string

const (
	MatchSameSign MatchTier = "same_sign"
	MatchPositive MatchTier = "positive"
	MatchNeutral  MatchTier = "neutral"
	MatchNegative MatchTier = "negative"
)

// AlignmentScore maps a tier to its fixed 0-100 alignment score.
func (t MatchTier) AlignmentScore() int {
	switch t {
	case MatchSameSign:
		return 100
	case MatchPositive:
		return 85
	case MatchNeutral:
		return 65
	case MatchNegative:
		return 40
	}
	return 0
}

// CompatibilityRank orders tiers for discovery feeds: same sign first, then
// positive, neutral, negative.
func (t MatchTier) CompatibilityRank() int {
	switch t {
	case MatchSameSign:
		return 4
	case MatchPositive:
		return 3
	case MatchNeutral:
		return 2
	case MatchNegative:
		return 1
	}
	return 0
}

// ValidStoredTier reports whether t may appear in stored matrix entries.
func ValidStoredTier(t MatchTier) bool {
	return t == MatchPositive || t == MatchNeutral || t == MatchNegative
}
