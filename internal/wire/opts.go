package wire

import "encoding/json"

// Opts is the decoded form of a request/reply/heartbeat options frame.
// Per the protocol, malformed or absent opts are never a protocol
// error: ParseOpts always returns a usable (possibly empty) map.
type Opts map[string]interface{}

// ParseOpts decodes a JSON options frame. A nil, empty, or malformed
// frame yields an empty Opts rather than an error, matching the
// broker's "never fail a request over bad opts" error policy.
func ParseOpts(raw []byte) Opts {
	if len(raw) == 0 {
		return Opts{}
	}
	var o Opts
	if err := json.Unmarshal(raw, &o); err != nil {
		return Opts{}
	}
	if o == nil {
		o = Opts{}
	}
	return o
}

// Int64 reads a numeric option, returning def if absent or the wrong
// type. JSON numbers decode as float64, so integer opts are read back
// through that representation.
func (o Opts) Int64(key string, def int64) int64 {
	v, ok := o[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	default:
		return def
	}
}

// Int reads an integer option.
func (o Opts) Int(key string, def int) int {
	return int(o.Int64(key, int64(def)))
}

// Bool reads a boolean option.
func (o Opts) Bool(key string, def bool) bool {
	v, ok := o[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// Has reports whether key is present in the options map, used where
// presence itself (not the value) changes behavior — e.g. a reply's
// "cache" TTL option implies caching should happen at all.
func (o Opts) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Encode re-serializes opts back to JSON; empty opts, or opts that
// fail to marshal, encode as "{}". The broker itself forwards a
// client's original opts frame to workers as received, not through
// Encode.
func Encode(o Opts) []byte {
	if len(o) == 0 {
		return []byte("{}")
	}
	b, err := json.Marshal(o)
	if err != nil {
		return []byte("{}")
	}
	return b
}
