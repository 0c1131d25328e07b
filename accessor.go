package encrypt

import "reflect"

// fieldByDescriptor navigates fd's access path, dereferencing embedded
// pointers as needed. ok is false when a nil pointer interrupts the path;
// such fields have nothing to transform.
func fieldByDescriptor(rv reflect.Value, fd *FieldDescriptor) (reflect.Value, bool) {
	if len(fd.ptrIndices) == 0 {
		return rv.FieldByIndex(fd.index), true
	}

	ptrSet := make(map[int]bool, len(fd.ptrIndices))
	for _, idx := range fd.ptrIndices {
		ptrSet[idx] = true
	}

	current := rv
	for i, idx := range fd.index {
		current = current.Field(idx)

		if ptrSet[i] {
			if current.IsNil() {
				return reflect.Value{}, false
			}
			current = current.Elem()
		}
	}

	return current, true
}

// readField reads fd's current value from a record. skip reports a nil
// *string field, which is never passed to the encryptor.
func readField(rv reflect.Value, fd *FieldDescriptor, typeName string) (value string, skip bool, err error) {
	field, ok := fieldByDescriptor(rv, fd)
	if !ok {
		return "", true, nil
	}
	if fd.isPointer {
		if field.IsNil() {
			return "", true, nil
		}
		field = field.Elem()
	}
	if field.Kind() != reflect.String || !field.CanSet() {
		return "", false, newPropertyError(fd.Name, typeName)
	}
	return field.String(), false, nil
}

// writeField writes value back through the same path readField used.
func writeField(rv reflect.Value, fd *FieldDescriptor, typeName, value string) error {
	field, ok := fieldByDescriptor(rv, fd)
	if !ok {
		return newPropertyError(fd.Name, typeName)
	}
	if fd.isPointer {
		if field.IsNil() {
			return newPropertyError(fd.Name, typeName)
		}
		field = field.Elem()
	}
	if field.Kind() != reflect.String || !field.CanSet() {
		return newPropertyError(fd.Name, typeName)
	}
	field.SetString(value)
	return nil
}
