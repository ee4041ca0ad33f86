package cond

// Cache interns conditions to dense ids in [0, Len()), in first-seen order.
//
// A Cache is filled during namespace compilation and read-only afterwards.
// It is not safe for concurrent Intern calls.
type Cache struct {
	conds []Condition
	ids   map[string]int
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{ids: make(map[string]int)}
}

// Intern returns the id of c, assigning the next id if c is new.
func (k *Cache) Intern(c Condition) int {
	key := c.Key()
	if id, ok := k.ids[key]; ok {
		return id
	}
	id := len(k.conds)
	k.conds = append(k.conds, c)
	k.ids[key] = id
	return id
}

// Lookup returns the id of c without interning it.
func (k *Cache) Lookup(c Condition) (int, bool) {
	id, ok := k.ids[c.Key()]
	return id, ok
}

// Get returns the condition with the given id. It panics if id is out of
// range.
func (k *Cache) Get(id int) Condition {
	return k.conds[id]
}

// Len returns the number of interned conditions.
func (k *Cache) Len() int { return len(k.conds) }

// Conditions returns all conditions indexed by id. The caller must not
// modify the returned slice.
func (k *Cache) Conditions() []Condition { return k.conds }
