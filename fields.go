package encrypt

import (
	"reflect"
	"sync"

	"github.com/zoobzio/sentinel"
)

// TagEncrypted marks a struct field for encryption: `encrypted:"true"`.
const TagEncrypted = "encrypted"

func init() {
	// Register the tag with sentinel so scanned metadata carries it
	sentinel.Tag(TagEncrypted)
}

// FieldDescriptor identifies one field marked for encryption. Within a
// selection, names are unique: a field redeclared by an outer type replaces
// the one inherited from an embedded struct.
type FieldDescriptor struct {
	Name     string // field name
	Declared string // name of the type declaring the field

	index      []int // reflect.Value.FieldByIndex access path
	ptrIndices []int // positions in index where a pointer deref is needed
	isPointer  bool  // field is *string
}

// Selector computes and memoizes the ordered encrypted-field selection per
// record type. The cache is written at most once per type and is never
// invalidated; types are assumed static for the process lifetime.
//
// Selectors are safe for concurrent use. Racing first accesses for the same
// type compute identical selections, and either result may win the cache
// fill.
type Selector struct {
	mu    sync.RWMutex
	cache map[string][]FieldDescriptor
}

// NewSelector creates an empty Selector.
func NewSelector() *Selector {
	return &Selector{cache: make(map[string][]FieldDescriptor)}
}

// Select returns the ordered selection of encrypted fields for rt,
// computing and caching it on first encounter. Pointer types are resolved
// to their element type. Fields declared on embedded structs come first,
// in declaration order, with outer redeclarations overriding by name at
// the inherited position.
//
// Fails with ErrTypeResolution when rt does not resolve to a struct.
// The returned slice is shared; callers must not mutate it.
func (s *Selector) Select(rt reflect.Type) ([]FieldDescriptor, error) {
	if rt == nil {
		return nil, newTypeError("<nil>")
	}
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return nil, newTypeError(rt.String())
	}
	key := rt.String()

	// Fast path: read-lock cache check
	s.mu.RLock()
	if cached, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	// Slow path: build and cache with write-lock
	s.mu.Lock()

	// Double-check pattern
	if cached, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return cached, nil
	}

	fields := collectFields(rt, nil, nil)
	s.cache[key] = fields
	s.mu.Unlock()

	// Emit outside the lock so hooks can call back into Select
	emitSelectionCached(key, len(fields))
	return fields, nil
}

// Reset clears the selection cache.
// This is primarily useful for test isolation.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string][]FieldDescriptor)
}

// collectFields walks rt's fields in declaration order, recursing into
// embedded structs first so inherited fields precede the outer type's own.
func collectFields(rt reflect.Type, parentIndex, ptrIndices []int) []FieldDescriptor {
	meta := metadataFor(rt)

	out := make([]FieldDescriptor, 0, len(meta.Fields))
	byName := make(map[string]int, len(meta.Fields))
	add := func(fd FieldDescriptor) {
		if at, ok := byName[fd.Name]; ok {
			// Override by name keeps the first-seen position. The shorter
			// access path is the outer type's own declaration; it wins
			// regardless of where the embedded struct sits in declaration
			// order, mirroring Go's promotion shadowing.
			if len(fd.index) < len(out[at].index) {
				out[at] = fd
			}
			return
		}
		byName[fd.Name] = len(out)
		out = append(out, fd)
	}

	for _, fm := range meta.Fields {
		sf := rt.Field(fm.Index[len(fm.Index)-1])
		fullIndex := append(append([]int{}, parentIndex...), fm.Index...)

		// Embedded structs are the ancestor chain
		if sf.Anonymous {
			elem := fm.ReflectType
			ptrs := ptrIndices
			switch {
			case fm.Kind == sentinel.KindStruct:
			case fm.Kind == sentinel.KindPointer && elem.Elem().Kind() == reflect.Struct:
				elem = elem.Elem()
				ptrs = append(append([]int{}, ptrIndices...), len(fullIndex)-1)
			default:
				continue
			}
			for _, fd := range collectFields(elem, fullIndex, ptrs) {
				add(fd)
			}
			continue
		}

		if fm.Tags[TagEncrypted] != "true" {
			continue
		}

		isString := fm.ReflectType.Kind() == reflect.String
		isPtrString := fm.ReflectType.Kind() == reflect.Pointer &&
			fm.ReflectType.Elem().Kind() == reflect.String
		if !isString && !isPtrString {
			continue
		}

		add(FieldDescriptor{
			Name:       fm.Name,
			Declared:   rt.Name(),
			index:      fullIndex,
			ptrIndices: ptrIndices,
			isPointer:  isPtrString,
		})
	}

	return out
}

// metadataFor returns sentinel metadata for rt, scanning manually when the
// type has not been registered with sentinel.
func metadataFor(rt reflect.Type) sentinel.Metadata {
	if spec, ok := sentinel.Lookup(rt.String()); ok {
		return spec
	}

	spec := sentinel.Metadata{
		TypeName:    rt.Name(),
		PackageName: rt.PkgPath(),
		Fields:      make([]sentinel.FieldMetadata, 0, rt.NumField()),
	}

	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		// Unexported embedded structs stay: their promoted exported
		// fields remain settable through reflection.
		if !sf.IsExported() && !sf.Anonymous {
			continue
		}

		fm := sentinel.FieldMetadata{
			Name:        sf.Name,
			Type:        sf.Type.String(),
			ReflectType: sf.Type,
			Index:       sf.Index,
			Tags:        parseFieldTags(sf.Tag),
		}

		switch sf.Type.Kind() {
		case reflect.Struct:
			fm.Kind = sentinel.KindStruct
		case reflect.Ptr:
			fm.Kind = sentinel.KindPointer
		case reflect.Slice, reflect.Array:
			fm.Kind = sentinel.KindSlice
		case reflect.Map:
			fm.Kind = sentinel.KindMap
		case reflect.Interface:
			fm.Kind = sentinel.KindInterface
		default:
			fm.Kind = sentinel.KindScalar
		}

		spec.Fields = append(spec.Fields, fm)
	}

	return spec
}

// parseFieldTags extracts the encryption tag from a struct tag.
func parseFieldTags(tag reflect.StructTag) map[string]string {
	tags := make(map[string]string)
	if val, ok := tag.Lookup(TagEncrypted); ok {
		tags[TagEncrypted] = val
	}
	return tags
}
