package imu

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Entry is one channel's corrected sample inside a Record.
type Entry struct {
	Channel int
	Sample  MotionSample
}

// Record is the per-cycle aggregate of corrected samples, kept in
// ascending channel order.
//
// Wire form: {"2":[ax,ay,az,gx,gy,gz],"3":[...]}
type Record struct {
	entries []Entry
}

// NewRecord returns an empty record sized for n channels.
func NewRecord(n int) *Record {
	return &Record{entries: make([]Entry, 0, n)}
}

// Set stores s under ch, replacing any previous value.
func (r *Record) Set(ch int, s MotionSample) {
	i := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].Channel >= ch })
	if i < len(r.entries) && r.entries[i].Channel == ch {
		r.entries[i].Sample = s
		return
	}
	r.entries = append(r.entries, Entry{})
	copy(r.entries[i+1:], r.entries[i:])
	r.entries[i] = Entry{Channel: ch, Sample: s}
}

// Get returns the sample stored for ch.
func (r *Record) Get(ch int) (MotionSample, bool) {
	for _, e := range r.entries {
		if e.Channel == ch {
			return e.Sample, true
		}
	}
	return MotionSample{}, false
}

// Channels returns the channel ids present, ascending.
func (r *Record) Channels() []int {
	out := make([]int, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Channel
	}
	return out
}

// Entries returns the entries in ascending channel order.
func (r *Record) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

func (r *Record) Len() int { return len(r.entries) }

// MarshalJSON writes the compact wire payload.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(2 + len(r.entries)*48)
	buf.WriteByte('{')
	for i, e := range r.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strconv.Itoa(e.Channel))
		buf.WriteString(`":[`)
		for j, v := range e.Sample.Array() {
			if j > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Itoa(int(v)))
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON parses a wire payload produced by MarshalJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string][6]int16
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	r.entries = make([]Entry, 0, len(raw))
	for k, v := range raw {
		ch, err := strconv.Atoi(k)
		if err != nil || ch < 0 || ch > 7 {
			return fmt.Errorf("decode record: invalid channel key %q", k)
		}
		r.Set(ch, FromArray(v))
	}
	return nil
}

// Encode is MarshalJSON without the error return.
func (r *Record) Encode() []byte {
	b, _ := r.MarshalJSON()
	return b
}

// Decode parses a wire payload into a new Record.
func Decode(payload []byte) (*Record, error) {
	r := &Record{}
	if err := r.UnmarshalJSON(payload); err != nil {
		return nil, err
	}
	return r, nil
}
