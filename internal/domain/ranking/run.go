package ranking

// Run is a set of rankings loaded from a run file, keyed by query id.
// Query ids keep the order in which they first appeared.
type Run struct {
	order     []string
	rankings  map[string]*Ranking
	questions map[string]string
}

// NewRun creates an empty run.
func NewRun() *Run {
	return &Run{
		rankings:  make(map[string]*Ranking),
		questions: make(map[string]string),
	}
}

// Get returns the ranking for queryID.
func (r *Run) Get(queryID string) (*Ranking, bool) {
	rk, ok := r.rankings[queryID]
	return rk, ok
}

// Question returns the query text stored alongside the ranking, when the format carries one.
func (r *Run) Question(queryID string) (string, bool) {
	q, ok := r.questions[queryID]
	return q, ok
}

// QueryIDs returns the query ids in first-appearance order.
func (r *Run) QueryIDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of queries in the run.
func (r *Run) Len() int { return len(r.order) }

// Rankings returns the query id to ranking mapping.
func (r *Run) Rankings() map[string]*Ranking {
	out := make(map[string]*Ranking, len(r.rankings))
	for k, v := range r.rankings {
		out[k] = v
	}
	return out
}

// Put stores a ranking under its query id, replacing any previous one.
func (r *Run) Put(rk *Ranking) {
	if _, ok := r.rankings[rk.QueryID()]; !ok {
		r.order = append(r.order, rk.QueryID())
	}
	r.rankings[rk.QueryID()] = rk
}

func (r *Run) ranking(queryID string) *Ranking {
	rk, ok := r.rankings[queryID]
	if !ok {
		rk = New(queryID)
		r.rankings[queryID] = rk
		r.order = append(r.order, queryID)
	}
	return rk
}
