package extract

import (
	"encoding/json"
	"math"
	"strconv"
)

// Node is a lookup cursor over a decoded JSON tree. Every lookup is
// fallible: a missing key, an out-of-range index or a value of the wrong
// kind yields an empty Node rather than an error, so traversal code never
// checks for nil at each level.
type Node struct {
	v       any
	present bool
}

// Wrap returns a Node for a value decoded by encoding/json (maps, slices,
// json.Number, float64, string).
func Wrap(v any) Node {
	return Node{v: v, present: v != nil}
}

// Present reports whether the node refers to an actual non-null value.
func (n Node) Present() bool { return n.present }

// Get looks up key in an object node.
func (n Node) Get(key string) Node {
	obj, ok := n.v.(map[string]any)
	if !ok {
		return Node{}
	}
	return Wrap(obj[key])
}

// Items returns the elements of a list node. Anything else, including a
// missing node, is an empty sequence.
func (n Node) Items() []Node {
	list, ok := n.v.([]any)
	if !ok {
		return nil
	}
	out := make([]Node, len(list))
	for i, item := range list {
		out[i] = Wrap(item)
	}
	return out
}

// First returns the first element of a list node.
func (n Node) First() Node {
	list, ok := n.v.([]any)
	if !ok || len(list) == 0 {
		return Node{}
	}
	return Wrap(list[0])
}

// Int64 reads an integer from a JSON number or a decimal string.
// Fractional numbers are truncated toward zero.
func (n Node) Int64() (int64, bool) {
	switch v := n.v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case float64:
		return floatToInt(v)
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || f >= 0x1p63 || f < -0x1p63 {
		return 0, false
	}
	return int64(f), true
}
