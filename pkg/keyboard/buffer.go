package keyboard

// Buffer is the typed output. It only grows at the end or loses its last rune.
type Buffer struct {
	runes []rune
}

// Append adds text at the end.
func (b *Buffer) Append(text string) {
	b.runes = append(b.runes, []rune(text)...)
}

// DeleteLast removes the last rune. It reports false on an empty buffer.
func (b *Buffer) DeleteLast() bool {
	if len(b.runes) == 0 {
		return false
	}
	b.runes = b.runes[:len(b.runes)-1]
	return true
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.runes = b.runes[:0]
}

// Len returns the number of runes.
func (b *Buffer) Len() int {
	return len(b.runes)
}

func (b *Buffer) String() string {
	return string(b.runes)
}
