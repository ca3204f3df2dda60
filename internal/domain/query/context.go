package query

// Exchange is one previous turn: the query as it was issued and the response passages shown for it.
type Exchange struct {
	Query     Query
	Documents []string
}

// Context is the ordered history of previous turns in one conversation.
// It only grows: Append never touches the receiver's backing array.
type Context []Exchange

// Append returns a new Context with ex at the end.
func (c Context) Append(ex Exchange) Context {
	out := make(Context, len(c), len(c)+1)
	copy(out, c)
	docs := make([]string, len(ex.Documents))
	copy(docs, ex.Documents)
	return append(out, Exchange{Query: ex.Query, Documents: docs})
}

// Questions returns the question text of every exchange in order.
func (c Context) Questions() []string {
	out := make([]string, len(c))
	for i, ex := range c {
		out[i] = ex.Query.Question()
	}
	return out
}

// Last returns the most recent exchange.
func (c Context) Last() (Exchange, bool) {
	if len(c) == 0 {
		return Exchange{}, false
	}
	return c[len(c)-1], true
}
