package settings

// Args is an insertion ordered option mapping. Formatting order is visible
// to the launched command so the order of first insertion is kept.
type Args struct {
	keys   []string
	values map[string]Value
}

func NewArgs() *Args {
	return &Args{values: make(map[string]Value)}
}

// Set stores v under key. Overwriting keeps the original position.
func (a *Args) Set(key string, v Value) {
	if a.values == nil {
		a.values = make(map[string]Value)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = v
}

func (a *Args) Get(key string) (Value, bool) {
	if a == nil {
		return Value{}, false
	}
	v, ok := a.values[key]
	return v, ok
}

func (a *Args) Has(key string) bool {
	_, ok := a.Get(key)
	return ok
}

// Delete removes key; a later Set appends it at the end again.
func (a *Args) Delete(key string) {
	if _, ok := a.values[key]; !ok {
		return
	}
	delete(a.values, key)
	for i, k := range a.keys {
		if k == key {
			a.keys = append(a.keys[:i:i], a.keys[i+1:]...)
			break
		}
	}
}

func (a *Args) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Keys returns a copy of the keys in order.
func (a *Args) Keys() []string {
	if a == nil {
		return nil
	}
	return append([]string(nil), a.keys...)
}

// Each calls fn for every entry in order.
func (a *Args) Each(fn func(key string, v Value)) {
	if a == nil {
		return
	}
	for _, k := range a.keys {
		fn(k, a.values[k])
	}
}

// Map returns the entries as strings, for logging and JSON dumps.
func (a *Args) Map() map[string]string {
	m := make(map[string]string, a.Len())
	a.Each(func(k string, v Value) {
		m[k] = v.String()
	})
	return m
}
