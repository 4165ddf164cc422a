// Package copyobject implements the deep-copy protocol used to move an
// object graph from one allocator into another without either side sharing
// ownership of the result: a message sent between processes goes through
// it into the receiver's mailbox heap, and again from there into the
// receiver's local heap on receive.
package copyobject

import "github.com/netinmax/inko/internal/vm/object"

// Destination is whatever CopyObject deep-copies into: an allocator capable
// of placing a fresh value (with a prototype already resolved in the
// destination's address space) and returning its pointer.
type Destination interface {
	AllocateCopy(value object.Value, prototype object.Pointer) object.Pointer
}

// Copy walks src's object graph and deep-copies it into dst. Primitives are
// copied by value; composite values (arrays) have their element pointers
// replaced by recursively-copied destination pointers. A visitation map
// keyed by source pointer identity guarantees termination on cycles and
// preserves DAG sharing in the copy.
func Copy(dst Destination, src object.Pointer) object.Pointer {
	visited := make(map[object.Pointer]object.Pointer)
	return copyOne(dst, src, visited)
}

func copyOne(dst Destination, src object.Pointer, visited map[object.Pointer]object.Pointer) object.Pointer {
	if src.IsNil() {
		return object.Nil
	}
	if src.IsImmediateInteger() {
		return src
	}
	if existing, ok := visited[src]; ok {
		return existing
	}

	v := src.Get()
	proto := copyPrototype(dst, src.Prototype(), visited)

	// Reserve the destination slot before recursing into elements so a
	// cycle back to src resolves to this same pointer, not an infinite
	// recursion. Arrays are copied in two passes: placeholder first, then
	// elements are recursively copied and the value rewritten.
	placeholder := dst.AllocateCopy(object.NewNone(), proto)
	visited[src] = placeholder

	switch v.Kind {
	case object.KindArray:
		elems := make([]object.Pointer, len(v.Elements))
		for i, e := range v.Elements {
			elems[i] = copyOne(dst, e, visited)
		}
		placeholder.Set(object.NewArray(elems))
	default:
		placeholder.Set(v)
	}

	return placeholder
}

func copyPrototype(dst Destination, proto object.Pointer, visited map[object.Pointer]object.Pointer) object.Pointer {
	if proto.IsNil() {
		return object.Nil
	}
	return copyOne(dst, proto, visited)
}
