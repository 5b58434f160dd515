package gpu

// resourceTable maps handles onto backend objects. Handles are never reused, so a released handle stays invalid.
type resourceTable struct {
	objects map[Handle]any
	next    Handle
}

func newResourceTable() *resourceTable {
	return &resourceTable{objects: make(map[Handle]any)}
}

func (t *resourceTable) insert(obj any) Handle {
	t.next++
	t.objects[t.next] = obj
	return t.next
}

func (t *resourceTable) get(h Handle) (any, bool) {
	obj, ok := t.objects[h]
	return obj, ok
}

func (t *resourceTable) remove(h Handle) (any, bool) {
	obj, ok := t.objects[h]
	if ok {
		delete(t.objects, h)
	}
	return obj, ok
}

func (t *resourceTable) len() int {
	return len(t.objects)
}

// lookup fetches h and asserts its type.
func lookup[T any](t *resourceTable, h Handle) (T, bool) {
	var zero T
	obj, ok := t.get(h)
	if !ok {
		return zero, false
	}
	typed, ok := obj.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
