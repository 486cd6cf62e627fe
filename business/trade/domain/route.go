package domain

// RouteEntry pairs a venue id with its quote.
type RouteEntry[Q any] struct {
	Venue string
	Quote Q
}

// Route is an ordered venue→quote association list plus the chosen venue.
// Entries keep insertion order, which follows DexData.
type Route[Q any] struct {
	entries []RouteEntry[Q]
	Dex     string
}

type (
	OpenRoute  = Route[*TradeQuote]
	CloseRoute = Route[*CloseQuote]
)

// Set stores q under venue, replacing an existing entry in place.
func (r *Route[Q]) Set(venue string, q Q) {
	for i := range r.entries {
		if r.entries[i].Venue == venue {
			r.entries[i].Quote = q
			return
		}
	}
	r.entries = append(r.entries, RouteEntry[Q]{Venue: venue, Quote: q})
}

// Get returns the quote of venue.
func (r *Route[Q]) Get(venue string) (Q, bool) {
	for _, e := range r.entries {
		if e.Venue == venue {
			return e.Quote, true
		}
	}
	var zero Q
	return zero, false
}

// Best returns the quote of the chosen venue.
func (r *Route[Q]) Best() (Q, bool) {
	return r.Get(r.Dex)
}

// Entries returns the entries in insertion order.
func (r *Route[Q]) Entries() []RouteEntry[Q] {
	out := make([]RouteEntry[Q], len(r.entries))
	copy(out, r.entries)
	return out
}

// Venues returns the venue ids in insertion order.
func (r *Route[Q]) Venues() []string {
	ids := make([]string, len(r.entries))
	for i, e := range r.entries {
		ids[i] = e.Venue
	}
	return ids
}

func (r *Route[Q]) Len() int {
	return len(r.entries)
}
