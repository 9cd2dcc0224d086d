// Package chunk computes the chunk plan for an upload: the ordered sequence
// of byte ranges a file is split into, and how that sequence is recomputed
// when the dynamic chunk-size controller changes its mind partway through.
//
// A Descriptor never mutates once a Task has started work on it. Plan is a
// pure function of (size, chunkSize); Replan only ever touches the suffix
// that hasn't started yet, so indices and boundaries already committed to
// the resume store stay stable across a resize.
package chunk

import "fmt"

// Descriptor identifies one chunk of a file: a dense, 0-based index and the
// half-open byte range [Start, End). Hash is empty until the chunk's content
// digest has been computed.
type Descriptor struct {
	Index int
	Start uint64
	End   uint64
	Size  uint64
	Hash  string
}

// Plan splits a file of the given size into ordered, abutting descriptors of
// chunkSize bytes, with the last descriptor possibly short. It panics on
// size==0 or chunkSize==0 since both are caller bugs, not runtime conditions.
func Plan(size, chunkSize uint64) []Descriptor {
	if size == 0 {
		panic("chunk: size must be > 0")
	}
	if chunkSize == 0 {
		panic("chunk: chunkSize must be > 0")
	}

	count := (size + chunkSize - 1) / chunkSize
	descriptors := make([]Descriptor, 0, count)

	var start uint64
	for idx := 0; start < size; idx++ {
		end := start + chunkSize
		if end > size {
			end = size
		}
		descriptors = append(descriptors, Descriptor{
			Index: idx,
			Start: start,
			End:   end,
			Size:  end - start,
		})
		start = end
	}
	return descriptors
}

// Replan recomputes the plan's uncommitted suffix using newChunkSize, keeping
// every descriptor in committed unchanged. committed must be a prefix of a
// previously returned plan (contiguous from index 0, abutting, covering
// [0, committed boundary)); the new descriptors continue from there to size.
func Replan(committed []Descriptor, size, newChunkSize uint64) ([]Descriptor, error) {
	if newChunkSize == 0 {
		return nil, fmt.Errorf("chunk: newChunkSize must be > 0")
	}

	var resumeFrom uint64
	nextIndex := 0
	for i, d := range committed {
		if d.Index != i {
			return nil, fmt.Errorf("chunk: committed descriptor %d has non-dense index %d", i, d.Index)
		}
		if d.Start != resumeFrom {
			return nil, fmt.Errorf("chunk: committed descriptor %d does not abut at %d", i, resumeFrom)
		}
		resumeFrom = d.End
		nextIndex = i + 1
	}
	if resumeFrom > size {
		return nil, fmt.Errorf("chunk: committed suffix %d exceeds file size %d", resumeFrom, size)
	}

	out := make([]Descriptor, 0, len(committed)+int((size-resumeFrom+newChunkSize-1)/max64(newChunkSize, 1)))
	out = append(out, committed...)

	start := resumeFrom
	for idx := nextIndex; start < size; idx++ {
		end := start + newChunkSize
		if end > size {
			end = size
		}
		out = append(out, Descriptor{
			Index: idx,
			Start: start,
			End:   end,
			Size:  end - start,
		})
		start = end
	}
	return out, nil
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
