// Package slots defines the bookable time slots of a day.
package slots

// Default is the fixed list of bookable times, hourly from midday to 21:00.
var Default = NewCatalog(
	"12:00", "13:00", "14:00", "15:00", "16:00",
	"17:00", "18:00", "19:00", "20:00", "21:00",
)

// Catalog is an ordered, immutable set of slot labels.
type Catalog struct {
	times []string
	index map[string]struct{}
}

// NewCatalog builds a catalog; duplicates are dropped, order is kept.
func NewCatalog(times ...string) *Catalog {
	c := &Catalog{index: make(map[string]struct{}, len(times))}
	for _, t := range times {
		if _, dup := c.index[t]; dup {
			continue
		}
		c.index[t] = struct{}{}
		c.times = append(c.times, t)
	}
	return c
}

// Slots returns a copy of all slots in order.
func (c *Catalog) Slots() []string {
	out := make([]string, len(c.times))
	copy(out, c.times)
	return out
}

// Contains reports whether t is a bookable slot.
func (c *Catalog) Contains(t string) bool {
	_, ok := c.index[t]
	return ok
}

// Free returns the slots not present in occupied, in catalog order. A slot is
// occupied as soon as any table is booked for it; tables are not considered.
func (c *Catalog) Free(occupied []string) []string {
	taken := make(map[string]struct{}, len(occupied))
	for _, t := range occupied {
		taken[t] = struct{}{}
	}

	free := make([]string, 0, len(c.times))
	for _, t := range c.times {
		if _, ok := taken[t]; !ok {
			free = append(free, t)
		}
	}
	return free
}
