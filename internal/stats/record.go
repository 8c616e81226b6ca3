package stats

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	// CurrentVersion is the schema version written by this build.
	CurrentVersion = 1

	DefaultKeyword = "other"
	DateLayout     = "2006-01-02"
)

// ErrFormat marks stored content that is not a valid record.
var ErrFormat = errors.New("invalid stats record")

type Record struct {
	Version  int            `json:"version"`
	Count    int            `json:"count"`
	Keywords map[string]int `json:"keywords"`
	Daily    map[string]int `json:"daily"`
}

func NewRecord() *Record {
	return &Record{
		Version:  CurrentVersion,
		Keywords: map[string]int{},
		Daily:    map[string]int{},
	}
}

// apply bumps all three tallies together.
func (r *Record) apply(keyword string, now time.Time) {
	r.Count++
	r.Keywords[keyword]++
	r.Daily[now.Format(DateLayout)]++
}

// Decode parses and validates a stored record. Files written before the
// version field existed are read as version 1.
func Decode(data []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var raw struct {
		Version  int            `json:"version"`
		Count    *int           `json:"count"`
		Keywords map[string]int `json:"keywords"`
		Daily    map[string]int `json:"daily"`
	}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after record", ErrFormat)
	}
	// Also catches a bare null document.
	if raw.Count == nil {
		return nil, fmt.Errorf("%w: missing count", ErrFormat)
	}

	r := Record{
		Version:  raw.Version,
		Count:    *raw.Count,
		Keywords: raw.Keywords,
		Daily:    raw.Daily,
	}
	if r.Version == 0 {
		r.Version = 1
	}
	if r.Keywords == nil {
		r.Keywords = map[string]int{}
	}
	if r.Daily == nil {
		r.Daily = map[string]int{}
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Record) validate() error {
	if r.Version < 0 || r.Version > CurrentVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrFormat, r.Version)
	}
	if r.Count < 0 {
		return fmt.Errorf("%w: negative count %d", ErrFormat, r.Count)
	}
	for k, v := range r.Keywords {
		if v < 0 {
			return fmt.Errorf("%w: negative count for keyword %q", ErrFormat, k)
		}
	}
	for d, v := range r.Daily {
		if v < 0 {
			return fmt.Errorf("%w: negative count for day %q", ErrFormat, d)
		}
	}
	return nil
}

func (r *Record) Encode() ([]byte, error) {
	return json.Marshal(r)
}
