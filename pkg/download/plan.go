package download

import (
	"fmt"
	"iter"
)

// ByteRange is the half-open byte interval [Start, End) of one range request.
// End may run past the object; servers clamp it.
type ByteRange struct {
	Start int64
	End   int64
}

// Len returns the number of bytes the range asks for.
func (r ByteRange) Len() int64 {
	return r.End - r.Start
}

// Clamp limits the range to an object of the given size.
func (r ByteRange) Clamp(size int64) ByteRange {
	if r.End > size {
		r.End = size
	}
	if r.Start > r.End {
		r.Start = r.End
	}
	return r
}

func (r ByteRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// NumParts returns how many ranges Plan yields for an object.
func NumParts(objectSize, partSize int64) int64 {
	if objectSize <= 0 || partSize <= 0 {
		return 0
	}
	return (objectSize + partSize - 1) / partSize
}

// Plan yields the ranges [i*partSize, (i+1)*partSize) covering an object of
// objectSize bytes. The last range is not clamped. Calling Plan again with the
// same arguments yields the same sequence.
func Plan(objectSize, partSize int64) iter.Seq[ByteRange] {
	n := NumParts(objectSize, partSize)
	return func(yield func(ByteRange) bool) {
		for i := int64(0); i < n; i++ {
			start := i * partSize
			if !yield(ByteRange{Start: start, End: start + partSize}) {
				return
			}
		}
	}
}
