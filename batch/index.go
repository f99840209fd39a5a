package batch

import (
	"sort"
	"sync"

	"github.com/derekparker/trie"
	"github.com/npillmayer/nametok"
)

// Location is the position of a read name within a block stream.
type Location struct {
	Block int
	Name  int
}

// NameIndex is a prefix index over decoded read names. Reads of a pair share
// their name, so a name may have several locations. A NameIndex may be used
// from several goroutines.
type NameIndex struct {
	mu    sync.RWMutex
	names *trie.Trie
	count int
}

// NewNameIndex creates an empty index.
func NewNameIndex() *NameIndex {
	return &NameIndex{names: trie.New()}
}

// Add indexes every name of a decoded block.
func (x *NameIndex) Add(b Block) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for i, name := range nametok.SplitNames(b.Names) {
		loc := Location{Block: b.Index, Name: i}
		if node, ok := x.names.Find(name); ok {
			locs := node.Meta().([]Location)
			x.names.Add(name, append(locs, loc))
		} else {
			x.names.Add(name, []Location{loc})
		}
		x.count++
	}
}

// Len returns the number of names added, duplicates included.
func (x *NameIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.count
}

// Lookup returns the locations of name.
func (x *NameIndex) Lookup(name string) ([]Location, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	node, ok := x.names.Find(name)
	if !ok {
		return nil, false
	}
	return append([]Location(nil), node.Meta().([]Location)...), true
}

// HasPrefix is true if at least one indexed name starts with prefix.
func (x *NameIndex) HasPrefix(prefix string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.names.HasKeysWithPrefix(prefix)
}

// WithPrefix returns the distinct indexed names starting with prefix, sorted.
func (x *NameIndex) WithPrefix(prefix string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	names := x.names.PrefixSearch(prefix)
	sort.Strings(names)
	return names
}
