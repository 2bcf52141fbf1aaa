package transcript

const keyPrefixRunes = 50

type keyKind uint8

const (
	keyByID keyKind = iota + 1
	keyByPosition
)

// Key identifies one logical utterance. Segments that carry an id are keyed by
// it; the rest by their time span plus the start of their text.
type Key struct {
	kind     keyKind
	id       string
	start    float64
	hasStart bool
	end      float64
	hasEnd   bool
	prefix   string
}

func ByID(id string) Key {
	return Key{kind: keyByID, id: id}
}

func ByPosition(start, end *float64, textPrefix string) Key {
	k := Key{kind: keyByPosition, prefix: textPrefix}
	if start != nil {
		k.start, k.hasStart = *start, true
	}
	if end != nil {
		k.end, k.hasEnd = *end, true
	}
	return k
}

// KeyOf resolves the identity key of a segment.
func KeyOf(s DiarizedSegment) Key {
	if s.ID != nil {
		return ByID(string(*s.ID))
	}
	prefix := []rune(s.Text)
	if len(prefix) > keyPrefixRunes {
		prefix = prefix[:keyPrefixRunes]
	}
	return ByPosition(s.Start, s.End, string(prefix))
}

// SegmentSet keeps diarized segments in first-seen order with at most one
// entry per identity key. It is not safe for concurrent use.
type SegmentSet struct {
	seen  map[Key]struct{}
	items []DiarizedSegment
}

func NewSegmentSet() *SegmentSet {
	return &SegmentSet{seen: make(map[Key]struct{})}
}

// Merge adds the segments whose key has not been seen yet and returns how
// many were added. Merging the same list twice is a no-op the second time.
func (s *SegmentSet) Merge(list []DiarizedSegment) int {
	if s.seen == nil {
		s.seen = make(map[Key]struct{})
	}
	added := 0
	for _, seg := range list {
		k := KeyOf(seg)
		if _, ok := s.seen[k]; ok {
			continue
		}
		s.seen[k] = struct{}{}
		s.items = append(s.items, seg)
		added++
	}
	return added
}

func (s *SegmentSet) Len() int {
	return len(s.items)
}

func (s *SegmentSet) Items() []DiarizedSegment {
	out := make([]DiarizedSegment, len(s.items))
	copy(out, s.items)
	return out
}
