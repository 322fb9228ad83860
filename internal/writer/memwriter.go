package writer

// MemWriter captures arena bytes in memory.
type MemWriter struct {
	Buf []byte
}

// WriteArena replaces Buf with a copy of buf.
func (w *MemWriter) WriteArena(buf []byte) error {
	w.Buf = append(w.Buf[:0], buf...)
	return nil
}
