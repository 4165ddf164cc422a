package block

import "unsafe"

// unsafeSliceAddr returns the address of a byte slice's backing array. Used
// only to compute alignment padding for a freshly mmap'd region; the slice
// itself is never read through this pointer.
func unsafeSliceAddr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(b))
}
