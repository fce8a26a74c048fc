package values

// Dict is a string-keyed map that remembers insertion order.
type Dict struct {
	keys []string
	m    map[string]Value
}

func NewDict() *Dict {
	return &Dict{m: make(map[string]Value)}
}

// Set inserts or replaces. A replaced key keeps its original position.
func (d *Dict) Set(key string, v Value) {
	if _, exists := d.m[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.m[key] = v
}

func (d *Dict) Get(key string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	v, ok := d.m[key]
	return v, ok
}

func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Keys returns the keys in insertion order. The slice must not be modified.
func (d *Dict) Keys() []string {
	if d == nil {
		return nil
	}
	return d.keys
}

func (d *Dict) Clone() *Dict {
	c := &Dict{
		keys: append([]string(nil), d.Keys()...),
		m:    make(map[string]Value, d.Len()),
	}
	for _, k := range c.keys {
		c.m[k] = d.m[k]
	}
	return c
}
