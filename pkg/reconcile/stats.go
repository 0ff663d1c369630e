package reconcile

// Stats counts the host mutations a Patcher issued.
type Stats struct {
	Creates    int // elements and text nodes created
	Texts      int // in-place text updates
	Attributes int // attribute sets and removals
	Styles     int // style sub-property writes
	Listeners  int // host listener binds and unbinds
	Inserts    int
	Removes    int
	Replaces   int
}

// Total returns the number of mutations.
func (s Stats) Total() int {
	return s.Creates + s.Texts + s.Attributes + s.Styles + s.Listeners +
		s.Inserts + s.Removes + s.Replaces
}

// Add returns the sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Creates:    s.Creates + o.Creates,
		Texts:      s.Texts + o.Texts,
		Attributes: s.Attributes + o.Attributes,
		Styles:     s.Styles + o.Styles,
		Listeners:  s.Listeners + o.Listeners,
		Inserts:    s.Inserts + o.Inserts,
		Removes:    s.Removes + o.Removes,
		Replaces:   s.Replaces + o.Replaces,
	}
}

// TakeStats returns the mutations counted since the last call and resets
// the counters.
func (p *Patcher) TakeStats() Stats {
	s := p.stats
	p.stats = Stats{}
	return s
}
