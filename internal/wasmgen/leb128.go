package wasmgen

// LEB128 varint encoding for the wasm binary format. No importable
// LEB128 encoder turned up anywhere in the retrieval pack — wazero
// vendors its own under an internal/ package the Go toolchain won't let
// another module import — so this one piece of the back end is
// hand-rolled bit twiddling rather than a wired dependency. It is
// grounded directly on the lhaig-intent wasmbe reference encoder's
// encodeLEB128U/encodeLEB128S shape.

func uleb128(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb128(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

// vecLen prefixes count as a ULEB128 vector length.
func vecLen(count int) []byte {
	return uleb128(uint64(count))
}

// strBytes encodes s as a wasm "name": ULEB128 length then UTF-8 bytes.
func strBytes(s string) []byte {
	out := vecLen(len(s))
	return append(out, []byte(s)...)
}
