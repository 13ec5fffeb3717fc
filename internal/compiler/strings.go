package compiler

// StringEntry is one interned string literal, waiting to be appended to the
// tail of the data segment once every other data-segment record has been
// laid out (spec.md §3: "string literals are pooled; identical text shares
// one offset").
type StringEntry struct {
	Text   string
	Offset int32 // resolved once PlaceAll runs
	placed bool
}

// StringTable pools string literals by exact text and records every site
// that needs the final offset patched in once placement happens.
type StringTable struct {
	byText  map[string]*StringEntry
	order   []*StringEntry
	pending map[*StringEntry][]Fixup
}

func NewStringTable() *StringTable {
	return &StringTable{
		byText:  make(map[string]*StringEntry),
		pending: make(map[*StringEntry][]Fixup),
	}
}

// Intern returns the pooled entry for s, creating it on first use.
func (t *StringTable) Intern(s string) *StringEntry {
	if e, ok := t.byText[s]; ok {
		return e
	}
	e := &StringEntry{Text: s}
	t.byText[s] = e
	t.order = append(t.order, e)
	return e
}

// Ref records f to run with e's final offset once PlaceAll resolves it. If
// e is already placed (PlaceAll already ran, which in practice never
// happens before link time, but keeps the method safe to call generally),
// f runs immediately.
func (t *StringTable) Ref(e *StringEntry, f Fixup) {
	if e.placed {
		f.Patch(e.Offset)
		return
	}
	t.pending[e] = append(t.pending[e], f)
}

// PlaceAll appends every pooled string, NUL-terminated, to seg in first-use
// order and resolves every pending fixup against its final offset.
func (t *StringTable) PlaceAll(seg *Segment) {
	for _, e := range t.order {
		e.Offset = seg.Offset()
		seg.PutBytes([]byte(e.Text))
		seg.PutByte(0)
		e.placed = true
		for _, f := range t.pending[e] {
			f.Patch(e.Offset)
		}
		delete(t.pending, e)
	}
}
