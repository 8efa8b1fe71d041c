package shm

// InMemoryProvider keeps shared memory in a buffer of this process. The host
// and the simulated cores share it directly.
type InMemoryProvider struct {
	mem span
}

// NewInMemoryProvider creates a zeroed buffer of size bytes.
func NewInMemoryProvider(size uint32) *InMemoryProvider {
	return &InMemoryProvider{mem: make(span, size)}
}

func (m *InMemoryProvider) Size() uint32 {
	return m.mem.size()
}

func (m *InMemoryProvider) ReadAt(offset uint32, dest []byte) error {
	return m.mem.readAt(offset, dest)
}

func (m *InMemoryProvider) WriteAt(offset uint32, src []byte) error {
	return m.mem.writeAt(offset, src)
}

func (m *InMemoryProvider) AtomicLoad32(offset uint32) (uint32, error) {
	return m.mem.load32(offset)
}

func (m *InMemoryProvider) AtomicStore32(offset uint32, val uint32) error {
	return m.mem.store32(offset, val)
}

// Close drops the buffer. Later accesses fail with ErrClosed.
func (m *InMemoryProvider) Close() error {
	m.mem = nil
	return nil
}
