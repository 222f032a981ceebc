package flat

import (
	"errors"
	"math"
)

// ErrTooManyPages is returned when allocating more pages would cause the
// page count to reach the PageIndex limit (math.MaxUint32).
var ErrTooManyPages = errors.New("flat: too many pages")

// ErrDataWontFit is returned by Pages.Append when the data is larger
// than PageSize and could never fit in any single page.
var ErrDataWontFit = errors.New("flat: data exceeds page size")

// PageIndex is a 32-bit index into a Pages' page vector.
type PageIndex uint32

// BufferOffset is the physical address of a row: which page it lives in
// and its offset within that page. It must stay small and comparable so
// it can be used as a map value and compared with ==.
type BufferOffset struct {
	PageIndex    PageIndex
	OffsetInPage PageOffset
}

// Pages is the page manager: an ordered sequence of fixed-size pages
// plus a cursor into the one currently open for appends. Pages before
// curr are full or hold valid data; curr is the only page open for
// appends; pages after curr are empty or absent - SwapRemove moves curr
// back past a page it empties, and a later Append reuses that page
// (spec.md section 3.2).
type Pages struct {
	pages []*Page
	curr  int
}

// NewPages returns an empty page manager.
func NewPages() *Pages {
	return &Pages{}
}

// Len returns the number of pages currently allocated.
func (p *Pages) Len() int { return len(p.pages) }

// Allocate grows the page vector by n freshly zeroed pages.
func (p *Pages) Allocate(n int) error {
	newLen := len(p.pages) + n
	if uint64(newLen) >= uint64(math.MaxUint32) {
		return ErrTooManyPages
	}
	for i := 0; i < n; i++ {
		p.pages = append(p.pages, NewPage())
	}
	return nil
}

// Append writes bytes to the current working page, rolling to the next
// page (allocating one if needed) when it does not fit. Pages fill
// left to right; curr never moves backwards during Append.
func (p *Pages) Append(bytes []byte) (BufferOffset, error) {
	if len(bytes) > PageSize {
		return BufferOffset{}, ErrDataWontFit
	}

	if len(p.pages) == 0 {
		if err := p.Allocate(1); err != nil {
			return BufferOffset{}, err
		}
	}

	off, err := p.pages[p.curr].Append(bytes)
	if err != nil {
		if p.curr+1 >= len(p.pages) {
			if err := p.Allocate(1); err != nil {
				return BufferOffset{}, err
			}
		}
		p.curr++
		off, err = p.pages[p.curr].Append(bytes)
		if err != nil {
			// The freshly rolled-to page is empty and bytes already
			// passed the PageSize check above, so this cannot fail.
			panic("flat: next page should have accepted the append: " + err.Error())
		}
	}
	return BufferOffset{PageIndex: PageIndex(p.curr), OffsetInPage: off}, nil
}

// Slice returns a bounds-checked view into the page at offset.PageIndex
// starting at offset.OffsetInPage.
func (p *Pages) Slice(offset BufferOffset, count int) []byte {
	return p.pages[offset.PageIndex].Slice(offset.OffsetInPage, count)
}

// SwapRemove removes dataLen bytes at offset by copying the last
// dataLen bytes of the current working page into their place and
// shortening the working page. It returns the BufferOffset the moved
// bytes used to occupy and true, or an unspecified BufferOffset and
// false if offset is out of bounds or nothing was moved. This is the
// O(1) compaction primitive (spec.md section 4.1).
func (p *Pages) SwapRemove(offset BufferOffset, dataLen int) (BufferOffset, bool) {
	if int(offset.PageIndex) >= len(p.pages) {
		return BufferOffset{}, false
	}
	dstPage := p.pages[offset.PageIndex]
	dstOff := int(offset.OffsetInPage)
	if dstOff+dataLen > dstPage.UsedBytes() {
		return BufferOffset{}, false
	}

	srcPage := p.pages[p.curr]
	srcLen := srcPage.UsedBytes()
	if dataLen > srcLen {
		return BufferOffset{}, false
	}
	srcOff := srcLen - dataLen

	copy(dstPage.buf[dstOff:dstOff+dataLen], srcPage.buf[srcOff:srcOff+dataLen])
	srcPage.setLen(srcOff)

	moved := BufferOffset{PageIndex: PageIndex(p.curr), OffsetInPage: PageOffset(srcOff)}

	if srcPage.IsEmpty() && p.curr > 0 {
		p.curr--
	}

	return moved, true
}

// ShrinkToFit truncates any trailing empty pages.
func (p *Pages) ShrinkToFit() {
	end := p.curr + 1
	if len(p.pages) > 0 && p.pages[p.curr].IsEmpty() {
		end = p.curr
	}
	p.pages = p.pages[:end]
}
