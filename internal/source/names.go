package source

import (
	"fmt"

	"fortio.org/safecast"
	"golang.org/x/text/unicode/norm"
)

// NameID is an interned identifier.
type NameID uint32

// NoName is never returned by Intern.
const NoName NameID = 0

// Interner is the identifier pool shared by a compilation. Names are NFC
// normalized so that visually equal identifiers intern to the same id.
type Interner struct {
	byID   []string
	byName map[string]NameID
}

func NewInterner() *Interner {
	return &Interner{
		byID:   []string{""},
		byName: map[string]NameID{"": NoName},
	}
}

// Intern returns the id of s, adding it if needed.
func (in *Interner) Intern(s string) NameID {
	s = norm.NFC.String(s)
	if id, ok := in.byName[s]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(in.byID))
	if err != nil {
		panic(fmt.Errorf("source: name pool overflow: %w", err))
	}
	id := NameID(n)
	in.byID = append(in.byID, s)
	in.byName[s] = id
	return id
}

// Lookup returns the id of s without interning it.
func (in *Interner) Lookup(s string) (NameID, bool) {
	id, ok := in.byName[norm.NFC.String(s)]
	return id, ok
}

// MustLookup returns the string for id and panics on an unknown id.
func (in *Interner) MustLookup(id NameID) string {
	if int(id) >= len(in.byID) {
		panic(fmt.Sprintf("source: unknown name id %d", id))
	}
	return in.byID[id]
}

// Len returns the number of interned names, including the empty name.
func (in *Interner) Len() int { return len(in.byID) }
