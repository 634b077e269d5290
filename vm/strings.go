package vm

// Strings live in the data segment in one of two layouts:
//   - unpacked: one character per cell, zero terminated
//   - packed: four characters per cell, first character in the high byte,
//     zero terminated
//
// A string is packed when its first cell does not fit an unpacked character.
const unpackedMax = 1<<24 - 1

// IsPacked reports whether the string starting at phys uses the packed layout.
func IsPacked(phys []Cell) bool {
	return len(phys) > 0 && uint32(phys[0]) > unpackedMax
}

// StrLen returns the length in characters of the string at phys.
func StrLen(phys []Cell) int {
	if IsPacked(phys) {
		n := 0
		for _, c := range phys {
			u := uint32(c)
			for shift := 24; shift >= 0; shift -= 8 {
				if byte(u>>shift) == 0 {
					return n
				}
				n++
			}
		}
		return n
	}
	for i, c := range phys {
		if c == 0 {
			return i
		}
	}
	return len(phys)
}

// GetString reads at most size characters from phys, stopping at the first
// zero. The bytes are returned as-is (in the machine's code page).
func GetString(phys []Cell, size int) string {
	if size > 0 && !IsPacked(phys) && size < len(phys) {
		phys = phys[:size]
	}
	var buf []byte
	if IsPacked(phys) {
		buf = make([]byte, 0, len(phys)*CellWidth)
	outer:
		for _, c := range phys {
			u := uint32(c)
			for shift := 24; shift >= 0; shift -= 8 {
				b := byte(u >> shift)
				if b == 0 || (size > 0 && len(buf) >= size) {
					break outer
				}
				buf = append(buf, b)
			}
		}
		return string(buf)
	}
	buf = make([]byte, 0, len(phys))
	for _, c := range phys {
		if c == 0 {
			break
		}
		buf = append(buf, byte(c))
	}
	return string(buf)
}

// PutString writes s into dst with a zero terminator, truncating to fit. It
// returns the number of characters written.
func PutString(dst []Cell, s string, packed bool) int {
	if len(dst) == 0 {
		return 0
	}
	if !packed {
		n := min(len(s), len(dst)-1)
		for i := 0; i < n; i++ {
			dst[i] = Cell(s[i])
		}
		dst[n] = 0
		return n
	}

	n := min(len(s), len(dst)*CellWidth-1)
	clear(dst[:Cells(n+1)])
	for i := 0; i < n; i++ {
		shift := 24 - 8*(i%CellWidth)
		dst[i/CellWidth] |= Cell(uint32(s[i]) << shift)
	}
	return n
}
