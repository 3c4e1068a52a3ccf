package segment

import (
	"github.com/iamNilotpal/ignite/internal/block/binarysearch"
	"github.com/iamNilotpal/ignite/internal/block/bloom"
	"github.com/iamNilotpal/ignite/internal/block/footer"
	"github.com/iamNilotpal/ignite/internal/block/hashindex"
	"github.com/iamNilotpal/ignite/internal/block/sortedindex"
	"github.com/iamNilotpal/ignite/internal/block/values"
	"github.com/iamNilotpal/ignite/internal/kv"
)

// CompareFunc orders two keys; nil defaults to byte-lexicographic order.
type CompareFunc func(a, b []byte) int

// Segment is a parsed, read-only view over one segment file's bytes.
// Parsing only decodes the footer and block headers; entry bytes are
// decoded lazily as Get/Higher/Lower walk the sorted-index block.
type Segment struct {
	id uint16

	footer footer.Footer
	values *values.Reader
	sorted *sortedindex.Reader
	hash   *hashindex.Reader
	bin    *binarysearch.Reader
	bloom  *bloom.Reader
}

// Open parses a complete segment file's bytes, identified by segmentID
// for error context.
func Open(data []byte, segmentID uint16) (*Segment, error) {
	tailLen := footer.MaxSize
	if tailLen > len(data) {
		tailLen = len(data)
	}
	f, err := footer.Parse(data[len(data)-tailLen:], segmentID)
	if err != nil {
		return nil, err
	}

	s := &Segment{id: segmentID, footer: f}

	if f.ValuesSize > 0 {
		s.values, err = values.Parse(region(data, f.ValuesOffset, f.ValuesSize))
		if err != nil {
			return nil, err
		}
	}

	s.sorted, err = sortedindex.Parse(region(data, f.SortedIndexOffset, f.SortedIndexSize))
	if err != nil {
		return nil, err
	}

	if f.HashIndexSize > 0 {
		s.hash, err = hashindex.Parse(region(data, f.HashIndexOffset, f.HashIndexSize))
		if err != nil {
			return nil, err
		}
	}
	if f.BinarySearchSize > 0 {
		s.bin, err = binarysearch.Parse(region(data, f.BinarySearchOffset, f.BinarySearchSize))
		if err != nil {
			return nil, err
		}
	}
	if f.BloomFilterSize > 0 {
		s.bloom, err = bloom.Parse(region(data, f.BloomFilterOffset, f.BloomFilterSize))
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

func region(data []byte, offset, size int64) []byte {
	return data[offset : offset+size]
}

// ID returns the segment's numeric identifier.
func (s *Segment) ID() uint16 { return s.id }

// KeyValueCount returns the number of entries this segment holds.
func (s *Segment) KeyValueCount() uint64 { return s.footer.KeyValueCount }

// Level returns the compaction level this segment was created in.
func (s *Segment) Level() uint32 { return s.footer.CreatedInLevel }

// HasPut reports whether this segment contains at least one Put entry,
// matching footer.Footer.HasPut (used to decide whether a bloom filter
// would ever be safe to trust).
func (s *Segment) HasPut() bool { return s.footer.HasPut }

// Get resolves key to its resolved kv.Entry within this segment, if any.
// The Entry's Value (for Put/Update) is populated from the values block.
func (s *Segment) Get(key []byte, compare CompareFunc) (kv.Entry, bool, error) {
	cmp := orDefault(compare)

	if s.bloom != nil && !s.bloom.MayContain(key) {
		return kv.Entry{}, false, nil
	}

	if s.hash != nil {
		e, ok, err := s.getViaHash(key, cmp)
		if err != nil {
			return kv.Entry{}, false, err
		}
		if ok {
			return s.resolve(e), true, nil
		}
	}

	res, err := s.scanFrom(s.restartFloor(key, cmp), sortedindex.NewGetMatcher(key, cmp))
	if err != nil {
		return kv.Entry{}, false, err
	}
	if res.Kind == sortedindex.Matched {
		return s.resolve(*res.Matched), true, nil
	}
	return kv.Entry{}, false, nil
}

// Higher resolves the first key strictly greater than key.
func (s *Segment) Higher(key []byte, compare CompareFunc) (kv.Entry, bool, error) {
	cmp := orDefault(compare)
	res, err := s.scanFrom(s.restartFloor(key, cmp), sortedindex.NewHigherMatcher(key, cmp))
	if err != nil {
		return kv.Entry{}, false, err
	}
	if res.Kind == sortedindex.Matched {
		return s.resolve(*res.Matched), true, nil
	}
	return kv.Entry{}, false, nil
}

// Lower resolves the last key strictly less than key.
func (s *Segment) Lower(key []byte, compare CompareFunc) (kv.Entry, bool, error) {
	cmp := orDefault(compare)
	start := s.restartFloor(key, cmp)
	res, err := s.scanFrom(start, sortedindex.NewLowerMatcher(key, cmp))
	if err != nil {
		return kv.Entry{}, false, err
	}
	// When key is itself a restart point its predecessor lies before
	// start, so rescan from the beginning of the block.
	if res.Kind != sortedindex.Matched && start != 0 {
		res, err = s.scanFrom(0, sortedindex.NewLowerMatcher(key, cmp))
		if err != nil {
			return kv.Entry{}, false, err
		}
	}
	if res.Kind == sortedindex.Matched {
		return s.resolve(*res.Matched), true, nil
	}
	return kv.Entry{}, false, nil
}

// All decodes and resolves every entry in the segment, in ascending key
// order. Compaction uses this to fold a segment's full contents into a
// merge rather than relying on Get/Higher/Lower's indexed shortcuts.
func (s *Segment) All() ([]kv.Entry, error) {
	if s.footer.KeyValueCount == 0 {
		return nil, nil
	}

	out := make([]kv.Entry, 0, s.footer.KeyValueCount)
	var prevKey []byte
	offset := 0
	for {
		e, err := s.sorted.ReadAt(prevKey, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, s.resolve(e))
		if !e.HasNext {
			break
		}
		prevKey = e.Key
		offset = e.NextOffset
	}
	return out, nil
}

func (s *Segment) getViaHash(key []byte, cmp CompareFunc) (sortedindex.Entry, bool, error) {
	var matched sortedindex.Entry

	// A decode error here means the probed slot's offset didn't land on
	// a genuine entry boundary (a mis-probed/collision slot, or a stale
	// offset). spec.md §7 treats that as a probe miss, not a hard
	// error: the caller falls through to the binary-search/scan path
	// rather than failing the whole Get.
	assert := func(restartOffset int, _ []byte, _ uint32) bool {
		res, err := s.sorted.MatchOrSeek(nil, restartOffset, sortedindex.NewGetMatcher(key, cmp))
		if err != nil {
			return false
		}
		if res.Kind == sortedindex.Matched {
			matched = *res.Matched
			return true
		}
		return false
	}

	found, _, err := s.hash.Get(key, assert)
	if err != nil {
		return sortedindex.Entry{}, false, err
	}
	return matched, found, nil
}

// restartFloor returns the byte offset of the last restart point at or
// before key, using the binary-search index when present. It returns 0
// (the start of the sorted-index block) when there is no narrower bound.
func (s *Segment) restartFloor(key []byte, cmp CompareFunc) int {
	if s.bin == nil || s.bin.Count() == 0 {
		return 0
	}
	keyAt := func(i int) []byte {
		e, err := s.sorted.ReadAt(nil, int(s.bin.OffsetAt(i)))
		if err != nil {
			return nil
		}
		return e.Key
	}
	res := s.bin.Seek(binarysearch.Context{TargetKey: key, Compare: cmp}, keyAt)
	if res.Matched {
		return res.SortedIndexOffset
	}
	if res.HasLower {
		return res.LowerOffset
	}
	return 0
}

func (s *Segment) scanFrom(offset int, m sortedindex.Matcher) (sortedindex.Result, error) {
	return s.sorted.MatchOrSeek(nil, offset, m)
}

func (s *Segment) resolve(e sortedindex.Entry) kv.Entry {
	out := kv.Entry{Key: e.Key, Time: e.Time, Deadline: e.Deadline, Variant: e.Variant}
	switch e.Variant {
	case kv.VariantPut, kv.VariantUpdate:
		if s.values != nil {
			out.Value = s.values.Read(e.ValueOffset, e.ValueLength)
			out.HasValue = true
		}
	case kv.VariantFunction:
		out.FunctionID = e.FunctionID
	}
	return out
}

func orDefault(c CompareFunc) CompareFunc {
	if c != nil {
		return c
	}
	return bytesCompare
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
