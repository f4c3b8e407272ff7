package vm

// Table is an ordered collection of key/value entries. Insertion order is
// preserved. Set keeps at most one entry per key; Insert is the raw
// append primitive used by the constructor instruction and may leave
// duplicates, in which case lookups see the most recent entry.
type Table struct {
	entries []tableEntry
	index   map[tableKey]int // key -> position of the latest entry
}

type tableEntry struct {
	key   Value
	value Value
}

// tableKey is the comparable projection of a Value used for hashing.
// Reference kinds compare by identity through the Obj pointer.
type tableKey struct {
	typ  ValueType
	data uint64
	str  string
	ref  interface{}
}

func keyOf(v Value) tableKey {
	switch v.Type {
	case ValString:
		return tableKey{typ: ValString, str: v.AsString()}
	case ValTable, ValClosure, ValPointer:
		return tableKey{typ: v.Type, ref: v.Obj}
	default:
		return tableKey{typ: v.Type, data: v.Data}
	}
}

func NewTable() *Table {
	return &Table{index: make(map[tableKey]int)}
}

// Insert appends an entry without deduplication.
func (t *Table) Insert(key, value Value) {
	t.entries = append(t.entries, tableEntry{key: key, value: value})
	t.index[keyOf(key)] = len(t.entries) - 1
}

// Set replaces the entry for key, or appends one if absent.
func (t *Table) Set(key, value Value) {
	k := keyOf(key)
	if i, ok := t.index[k]; ok {
		t.entries[i].value = value
		return
	}
	t.entries = append(t.entries, tableEntry{key: key, value: value})
	t.index[k] = len(t.entries) - 1
}

// Get returns the value for key. With duplicate entries the most recent
// one wins.
func (t *Table) Get(key Value) (Value, bool) {
	if i, ok := t.index[keyOf(key)]; ok {
		return t.entries[i].value, true
	}
	return NilVal(), false
}

// Has reports whether key is present.
func (t *Table) Has(key Value) bool {
	_, ok := t.index[keyOf(key)]
	return ok
}

// Len returns the number of stored entries, duplicates included.
func (t *Table) Len() int {
	return len(t.entries)
}

// Entry returns the i-th entry in insertion order.
func (t *Table) Entry(i int) (Value, Value) {
	e := t.entries[i]
	return e.key, e.value
}
