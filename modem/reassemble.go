package modem

// concatKey is the reassembly bucket key: message direction, the
// counterpart address (origination for DELIVER, destination for SUBMIT),
// the CSMS reference, and the declared fragment total.
type concatKey struct {
	kind        MessageKind
	counterpart string
	reference   int
	total       int
}

// bucket accumulates fragments for one concatKey until every slot is
// filled or the enclosing list operation flushes it.
type bucket struct {
	template Message // first fragment seen, retained for its non-text fields
	texts    []string
	indexes  []int
	filled   []bool
	count    int
}

func newBucket(total int, template Message) *bucket {
	return &bucket{
		template: template,
		texts:    make([]string, total),
		indexes:  make([]int, total),
		filled:   make([]bool, total),
	}
}

func (b *bucket) set(seq, index int, text string) {
	i := seq - 1
	if i < 0 || i >= len(b.texts) {
		return
	}
	if !b.filled[i] {
		b.count++
	}
	b.filled[i] = true
	b.texts[i] = text
	b.indexes[i] = index
}

func (b *bucket) complete() bool {
	return b.count == len(b.texts)
}

// merge produces the final merged Message, substituting "[?]" for any
// fragment never seen.
func (b *bucket) merge() Message {
	msg := b.template
	var text string
	indexes := make([]int, len(b.texts))
	for i := range b.texts {
		if b.filled[i] {
			text += b.texts[i]
			indexes[i] = b.indexes[i]
		} else {
			text += "[?]"
			indexes[i] = b.indexes[i]
		}
	}
	msg.Text = text
	msg.Concat = &ConcatInfo{
		Reference: msg.Concat.Reference,
		Total:     len(b.texts),
		Indexes:   indexes,
	}
	return msg
}

// Reassembler groups concatenated SMS fragments into merged logical
// messages, in both bulk list mode (MergeList) and live receive mode
// (MergeLive, driven by +CMTI notifications).
type Reassembler struct {
	buckets map[concatKey]*bucket
}

// NewReassembler returns a ready-to-use Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{buckets: make(map[concatKey]*bucket)}
}

func counterpart(msg Message) string {
	if msg.Kind == KindDeliver {
		return msg.From
	}
	return msg.To
}

func keyOf(msg Message) concatKey {
	return concatKey{
		kind:        msg.Kind,
		counterpart: counterpart(msg),
		reference:   msg.Concat.Reference,
		total:       msg.Concat.Total,
	}
}

// MergeList reassembles a full AT+CMGL result set. Messages without a
// concatenation header pass through unchanged; concatenated fragments are
// merged as their bucket completes, in the position of their first-seen
// fragment. Any bucket left incomplete once the input is exhausted is
// flushed in place with "[?]" substituted for missing fragments.
func (r *Reassembler) MergeList(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	order := make([]concatKey, 0)
	placeholder := make(map[concatKey]int)
	buckets := make(map[concatKey]*bucket)

	for _, msg := range messages {
		if msg.Concat == nil || msg.Concat.Sequence == 0 {
			out = append(out, msg)
			continue
		}
		key := keyOf(msg)
		b, ok := buckets[key]
		if !ok {
			b = newBucket(msg.Concat.Total, msg)
			buckets[key] = b
			order = append(order, key)
			placeholder[key] = len(out)
			out = append(out, Message{}) // reserved slot, filled below
		}
		b.set(msg.Concat.Sequence, msg.Index, msg.Text)
	}

	for _, key := range order {
		b := buckets[key]
		out[placeholder[key]] = b.merge()
	}
	return out
}

// MergeLive folds one freshly-received fragment into the live bucket set.
// It returns the merged Message and true only once the fragment completes
// its group; otherwise it returns (Message{}, false) and the fragment is
// held pending its counterparts.
func (r *Reassembler) MergeLive(msg Message) (Message, bool) {
	if msg.Concat == nil || msg.Concat.Sequence == 0 {
		return msg, true
	}
	key := keyOf(msg)
	b, ok := r.buckets[key]
	if !ok {
		b = newBucket(msg.Concat.Total, msg)
		r.buckets[key] = b
	}
	b.set(msg.Concat.Sequence, msg.Index, msg.Text)
	if !b.complete() {
		return Message{}, false
	}
	delete(r.buckets, key)
	return b.merge(), true
}
