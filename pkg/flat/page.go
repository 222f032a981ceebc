package flat

import "errors"

// PageSize is the capacity of a single Page in bytes: 64 KiB minus room
// for the page's own length header (spec.md section 3.2). The exact
// number is an implementation constant, not part of the wire format.
const PageSize = 64*1024 - 8

// ErrPageFull is returned by Page.Append when bytes does not fit in the
// page's remaining free space. It never escapes package flat: Pages
// handles it by rolling to the next page.
var ErrPageFull = errors.New("flat: page is full")

// PageOffset is a 16-bit offset within a Page.
type PageOffset uint16

// Page is a fixed-size buffer of raw bytes with a length counter. Bytes
// [0, len) are initialized; bytes [len, PageSize) are unspecified.
type Page struct {
	buf [PageSize]byte
	len int
}

// NewPage returns a freshly zeroed, empty page.
func NewPage() *Page {
	return &Page{}
}

// UsedBytes returns the number of bytes written to the page so far.
func (p *Page) UsedBytes() int { return p.len }

// FreeBytes returns the number of bytes still available in the page.
func (p *Page) FreeBytes() int { return PageSize - p.len }

// IsEmpty reports whether the page holds no data.
func (p *Page) IsEmpty() bool { return p.len == 0 }

// Append writes bytes to the page and returns the offset bytes begins
// at. It returns ErrPageFull if bytes does not fit in the remaining
// space; the caller is expected to retry against a different page.
func (p *Page) Append(bytes []byte) (PageOffset, error) {
	if len(bytes) > p.FreeBytes() {
		return 0, ErrPageFull
	}
	off := p.len
	copy(p.buf[off:], bytes)
	p.len += len(bytes)
	return PageOffset(off), nil
}

// Slice returns a view of count bytes starting at offset. The caller
// must ensure offset+count is within the initialized region; Table and
// Pages enforce this via the fixed row size.
func (p *Page) Slice(offset PageOffset, count int) []byte {
	o := int(offset)
	return p.buf[o : o+count]
}

// setLen truncates (or, in principle, extends over already-written
// bytes) the page's length counter. Used by swap-remove to shrink the
// working page after moving its tail bytes elsewhere.
func (p *Page) setLen(n int) { p.len = n }
