package cbor

import "golang.org/x/exp/constraints"

// readNarrowSigned reads a CBOR integer via ReadInt64 and narrows it to T,
// reporting ErrOverflow instead of silently truncating. It backs
// ReadInt8/ReadInt16/ReadInt32 so each of those stays a one-line wrapper.
func readNarrowSigned[T constraints.Signed](r *CborReader) (T, error) {
	val, err := r.ReadInt64()
	if err != nil {
		return 0, err
	}
	narrowed := T(val)
	if int64(narrowed) != val {
		return 0, ErrOverflow
	}
	return narrowed, nil
}

// readNarrowUnsigned is the unsigned counterpart of readNarrowSigned,
// backing ReadUint8/ReadUint16/ReadUint32.
func readNarrowUnsigned[T constraints.Unsigned](r *CborReader) (T, error) {
	val, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	narrowed := T(val)
	if uint64(narrowed) != val {
		return 0, ErrOverflow
	}
	return narrowed, nil
}
