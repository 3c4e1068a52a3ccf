// Matcher implements the seek-and-match state machine spec.md §4.4.1
// describes: given a previous entry, an optional next entry, and whether
// more entries remain, it decides whether the target has been found,
// whether the driver must fetch the next entry and retry, or whether
// iteration should stop.
package sortedindex

// ResultKind discriminates the four matcher outcomes.
type ResultKind uint8

const (
	// Matched indicates the target entry was found.
	Matched ResultKind = iota
	// BehindStopped indicates the target key is ahead of previous and
	// iteration must stop without a further fetch.
	BehindStopped
	// BehindFetchNext indicates the target key is ahead of previous and
	// the driver must read the next entry and retry.
	BehindFetchNext
	// AheadOrNoneOrEnd indicates the target key is behind previous, or
	// there is no result; Higher may carry the first entry past target.
	AheadOrNoneOrEnd
)

// Result is the outcome of one matcher invocation.
type Result struct {
	Kind     ResultKind
	Previous *Entry
	Matched  *Entry
	Higher   *Entry
}

// Matcher compares a candidate (previous, optional next, hasMore) against
// a target key and ordering operation, returning one Result.
type Matcher interface {
	Match(previous *Entry, next *Entry, hasMore bool) Result
}

type comparator func(a, b []byte) int

// getMatcher implements Matcher for an exact-key lookup.
type getMatcher struct {
	key     []byte
	compare comparator
}

// NewGetMatcher returns a Matcher for Get(key) using compare as the key
// ordering (nil uses plain byte-lexicographic order).
func NewGetMatcher(key []byte, compare comparator) Matcher {
	if compare == nil {
		compare = bytesCompare
	}
	return &getMatcher{key: key, compare: compare}
}

func (m *getMatcher) Match(previous *Entry, next *Entry, hasMore bool) Result {
	c := m.compare(m.key, previous.Key)
	switch {
	case c == 0:
		return Result{Kind: Matched, Previous: previous, Matched: previous}
	case c > 0:
		if !hasMore {
			return Result{Kind: BehindStopped, Previous: previous}
		}
		return Result{Kind: BehindFetchNext, Previous: previous}
	default:
		return Result{Kind: AheadOrNoneOrEnd}
	}
}

// higherMatcher implements Matcher for the first key strictly greater
// than the target.
type higherMatcher struct {
	key     []byte
	compare comparator
}

// NewHigherMatcher returns a Matcher for Higher(key).
func NewHigherMatcher(key []byte, compare comparator) Matcher {
	if compare == nil {
		compare = bytesCompare
	}
	return &higherMatcher{key: key, compare: compare}
}

func (m *higherMatcher) Match(previous *Entry, next *Entry, hasMore bool) Result {
	c := m.compare(m.key, previous.Key)
	if c >= 0 {
		if !hasMore {
			return Result{Kind: BehindStopped, Previous: previous}
		}
		return Result{Kind: BehindFetchNext, Previous: previous}
	}
	return Result{Kind: Matched, Previous: previous, Matched: previous}
}

// lowerMatcher implements Matcher for the last key strictly less than the
// target.
type lowerMatcher struct {
	key     []byte
	compare comparator
}

// NewLowerMatcher returns a Matcher for Lower(key).
func NewLowerMatcher(key []byte, compare comparator) Matcher {
	if compare == nil {
		compare = bytesCompare
	}
	return &lowerMatcher{key: key, compare: compare}
}

func (m *lowerMatcher) Match(previous *Entry, next *Entry, hasMore bool) Result {
	c := m.compare(m.key, previous.Key)
	if c <= 0 {
		return Result{Kind: AheadOrNoneOrEnd}
	}
	if next == nil {
		if !hasMore {
			return Result{Kind: Matched, Previous: previous, Matched: previous}
		}
		return Result{Kind: BehindFetchNext, Previous: previous}
	}
	if m.compare(m.key, next.Key) > 0 {
		return Result{Kind: BehindFetchNext, Previous: previous}
	}
	return Result{Kind: Matched, Previous: previous, Matched: previous, Higher: next}
}

func bytesCompare(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// MatchOrSeek implements the seek-and-match driver spec.md §4.4.1
// describes: it reads the entry at startOffset, applies m, and on
// BehindFetchNext reads the next entry (using the previous entry's
// recovered NextOffset) and retries, until a terminal result.
func (r *Reader) MatchOrSeek(prevKey []byte, startOffset int, m Matcher) (Result, error) {
	previous, err := r.readKeyValue(prevKey, startOffset)
	if err != nil {
		return Result{}, err
	}

	for {
		var next *Entry
		hasMore := previous.HasNext
		if hasMore {
			n, err := r.readKeyValue(previous.Key, previous.NextOffset)
			if err != nil {
				return Result{}, err
			}
			next = &n
		}

		res := m.Match(&previous, next, hasMore)
		switch res.Kind {
		case BehindFetchNext:
			if next == nil {
				return Result{Kind: BehindStopped, Previous: &previous}, nil
			}
			previous = *next
			continue
		default:
			return res, nil
		}
	}
}
