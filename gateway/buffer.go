package gateway

// recvBuffer accumulates inbound bytes and exposes an explicit read cursor,
// so consuming a frame is a cursor bump instead of a reallocation. Consumed
// space is reclaimed in bulk the next time data is appended.
type recvBuffer struct {
	data []byte
	off  int
}

func (b *recvBuffer) append(p []byte) {
	if b.off > 0 && len(b.data)+len(p) > cap(b.data) {
		remaining := copy(b.data, b.data[b.off:])
		b.data = b.data[:remaining]
		b.off = 0
	}
	b.data = append(b.data, p...)
}

// bytes returns the unconsumed part of the buffer.
func (b *recvBuffer) bytes() []byte {
	return b.data[b.off:]
}

func (b *recvBuffer) consume(n int) {
	b.off += n
	if b.off == len(b.data) {
		b.data = b.data[:0]
		b.off = 0
	}
}
