package pack

import (
	"hash"
	"hash/crc32"
	"io"
)

// crcWriter tees writes through a CRC-32 accumulator, used while
// finalising the TOC so the checksum covers exactly the TOC bytes and
// nothing else.
type crcWriter struct {
	w   io.Writer
	crc hash.Hash32
}

func newCRCWriter(w io.Writer) *crcWriter {
	return &crcWriter{w: w, crc: crc32.NewIEEE()}
}

func (c *crcWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if n > 0 {
		c.crc.Write(p[:n])
	}
	return n, err
}

func (c *crcWriter) Sum32() uint32 { return c.crc.Sum32() }

// crcReader tees reads through a CRC-32 accumulator while the TOC is
// being parsed back, so the stored checksum can be verified against
// exactly the bytes that were consumed.
type crcReader struct {
	r   io.Reader
	crc hash.Hash32
}

func newCRCReader(r io.Reader) *crcReader {
	return &crcReader{r: r, crc: crc32.NewIEEE()}
}

func (c *crcReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.crc.Write(p[:n])
	}
	return n, err
}

func (c *crcReader) Sum32() uint32 { return c.crc.Sum32() }
