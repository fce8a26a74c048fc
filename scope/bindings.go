package scope

import "github.com/zeptools/gw-typst/values"

type jsonEntry struct {
	key string
	raw string
}

type nativeEntry struct {
	key string
	val values.Value
}

// Bindings collects the two binding namespaces of one compilation request:
// raw JSON blobs and natively typed values. Setting a key twice within one
// namespace replaces the earlier entry.
type Bindings struct {
	json   []jsonEntry
	native []nativeEntry
}

func (b *Bindings) JSON(key, raw string) {
	for i := range b.json {
		if b.json[i].key == key {
			b.json[i].raw = raw
			return
		}
	}
	b.json = append(b.json, jsonEntry{key: key, raw: raw})
}

func (b *Bindings) Var(key string, v values.Value) {
	for i := range b.native {
		if b.native[i].key == key {
			b.native[i].val = v
			return
		}
	}
	b.native = append(b.native, nativeEntry{key: key, val: v})
}

func (b *Bindings) Len() int {
	return len(b.json) + len(b.native)
}

// Apply binds every JSON entry, then every native entry, into dst. Native
// values therefore win on key collisions.
//
// A JSON entry whose text does not parse is not bound and no error is
// raised; its key is reported in skipped so the caller can log it.
func (b *Bindings) Apply(dst *Scope) (skipped []string) {
	for _, e := range b.json {
		v, err := values.ParseJSON(e.raw)
		if err != nil {
			skipped = append(skipped, e.key)
			continue
		}
		dst.Bind(e.key, v)
	}
	for _, e := range b.native {
		dst.Bind(e.key, e.val)
	}
	return skipped
}
