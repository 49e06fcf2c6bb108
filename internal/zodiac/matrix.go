package zodiac

// Entry is one stored compatibility rule. Entries are unique per
// (UserSign, StockSign) pair; the element recorded is the user sign's element,
// mirroring the reference data this table is loaded from.
type Entry struct {
	UserSign  Sign      `json:"user_sign" db:"user_sign"`
	StockSign Sign      `json:"stock_sign" db:"stock_sign"`
	Tier      MatchTier `json:"match_type" db:"match_type"`
	Element   Element   `json:"element" db:"element"`
}

type signPair struct {
	user, stock Sign
}

// Matrix is the compatibility lookup table. Lookups never fail: a pair with no
// stored entry defaults to neutral, since the table is loaded from external
// reference data and may be incomplete at start-up.
type Matrix struct {
	tiers map[signPair]MatchTier
}

// NewMatrix builds a matrix from stored entries. Entries with a non-storable
// tier (same_sign included) are ignored; later duplicates win.
func NewMatrix(entries []Entry) *Matrix {
	m := &Matrix{tiers: make(map[signPair]MatchTier, len(entries))}
	for _, e := range entries {
		if !ValidStoredTier(e.Tier) {
			continue
		}
		m.tiers[signPair{e.UserSign, e.StockSign}] = e.Tier
	}
	return m
}

// Lookup resolves the match tier for a (user sign, stock sign) pair.
// Equal signs always resolve to same_sign, even when a stored entry exists for
// the pair. A missing entry resolves to neutral.
func (m *Matrix) Lookup(userSign, stockSign Sign) MatchTier {
	if userSign == stockSign {
		return MatchSameSign
	}
	if tier, ok := m.tiers[signPair{userSign, stockSign}]; ok {
		return tier
	}
	return MatchNeutral
}

// Len reports how many entries the matrix holds.
func (m *Matrix) Len() int {
	return len(m.tiers)
}

// complements pairs each element with the element it harmonizes with.
var complements = map[Element]Element{
	Fire:  Air,
	Air:   Fire,
	Earth: Water,
	Water: Earth,
}

// opposites pairs each element with the element it clashes with.
var opposites = map[Element]Element{
	Fire:  Water,
	Water: Fire,
	Earth: Air,
	Air:   Earth,
}

// DefaultEntries generates the full 12x12 reference table from element rules:
// same element or complementary element is positive, the opposed element is
// negative, the remaining element is neutral. Same-sign pairs are omitted
// because that tier is derived, never stored.
func DefaultEntries() []Entry {
	entries := make([]Entry, 0, len(Signs)*(len(Signs)-1))
	for _, user := range Signs {
		ue := user.Element()
		for _, stock := range Signs {
			if user == stock {
				continue
			}
			se := stock.Element()
			tier := MatchNeutral
			switch {
			case se == ue || se == complements[ue]:
				tier = MatchPositive
			case se == opposites[ue]:
				tier = MatchNegative
			}
			entries = append(entries, Entry{
				UserSign:  user,
				StockSign: stock,
				Tier:      tier,
				Element:   ue,
			})
		}
	}
	return entries
}

// DefaultMatrix builds a matrix from the generated reference table.
func DefaultMatrix() *Matrix {
	return NewMatrix(DefaultEntries())
}
