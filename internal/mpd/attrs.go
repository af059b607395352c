package mpd

import (
	"fmt"
	"iter"
	"strconv"
)

// Attr is a single key/value pair from an MPD response.
type Attr struct {
	Key   string
	Value string
}

// Attrs is the decoded data section of one response frame: an ordered
// sequence of key/value pairs. Keys may repeat, and the order is significant
// (repeated record-delimiter keys such as "file" mark playlist entry
// boundaries). An Attrs is never mutated after the frame is read.
type Attrs []Attr

// Lookup returns the first value for key, if present.
func (a Attrs) Lookup(key string) (string, bool) {
	for _, attr := range a {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// Get returns the first value for key, or an error naming the missing key.
func (a Attrs) Get(key string) (string, error) {
	value, ok := a.Lookup(key)
	if !ok {
		return "", fmt.Errorf("missing %s attribute", key)
	}
	return value, nil
}

// Int parses the first value for key as a decimal integer.
func (a Attrs) Int(key string) (int, error) {
	value, err := a.Get(key)
	if err != nil {
		return 0, err
	}
	return parseInt(key, value)
}

// OptInt is like Int but reports ok=false instead of failing when key is
// absent. Parse errors still propagate.
func (a Attrs) OptInt(key string) (n int, ok bool, err error) {
	value, ok := a.Lookup(key)
	if !ok {
		return 0, false, nil
	}
	n, err = parseInt(key, value)
	return n, err == nil, err
}

// Float parses the first value for key as a float.
func (a Attrs) Float(key string) (float64, error) {
	value, err := a.Get(key)
	if err != nil {
		return 0, err
	}
	return parseFloat(key, value)
}

// OptFloat is like Float but reports ok=false when key is absent.
func (a Attrs) OptFloat(key string) (f float64, ok bool, err error) {
	value, ok := a.Lookup(key)
	if !ok {
		return 0, false, nil
	}
	f, err = parseFloat(key, value)
	return f, err == nil, err
}

// Bool parses the first value for key as an MPD boolean ("0" or "1").
func (a Attrs) Bool(key string) (bool, error) {
	value, err := a.Get(key)
	if err != nil {
		return false, err
	}
	switch value {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, fmt.Errorf("malformed %s attribute: %q is not a boolean", key, value)
}

// All yields every value for key in original order. The sequence is finite
// and may be iterated again by calling All again.
func (a Attrs) All(key string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, attr := range a {
			if attr.Key == key {
				if !yield(attr.Value) {
					return
				}
			}
		}
	}
}

// SplitAt partitions the pair sequence into one Attrs per occurrence of key.
// Each group starts with an occurrence of key and runs up to the next one.
// Pairs before the first occurrence are discarded. Used to carve a
// record-per-entry response (e.g. playlistinfo) into per-entry groups.
func (a Attrs) SplitAt(key string) []Attrs {
	var splits []Attrs
	for _, attr := range a {
		if attr.Key == key {
			splits = append(splits, nil)
		}
		if len(splits) > 0 {
			splits[len(splits)-1] = append(splits[len(splits)-1], attr)
		}
	}
	return splits
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("malformed %s attribute: %w", key, err)
	}
	return n, nil
}

func parseFloat(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed %s attribute: %w", key, err)
	}
	return f, nil
}
