package wasmgen

import (
	"bytes"
	"testing"

	"wabbitc/internal/diag"
	"wabbitc/internal/irgen"
	"wabbitc/internal/parser"
	"wabbitc/internal/sema"
)

func encodeSrc(t *testing.T, src string) []byte {
	t.Helper()
	f, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	sink := diag.NewSink("test.wb")
	res := sema.Check(f, sink)
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Errors())
	}
	mod := irgen.Generate(f, res)
	return Encode(mod)
}

func TestEncodeHeaderMagicAndVersion(t *testing.T) {
	out := encodeSrc(t, `func main() { print 1; }`)
	want := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if len(out) < len(want) || !bytes.Equal(out[:len(want)], want) {
		t.Fatalf("unexpected header: %x", out[:min(len(out), len(want))])
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// sectionIDs walks the section headers after the 8-byte preamble and
// returns every section id, in order, without needing a full decoder.
func sectionIDs(t *testing.T, out []byte) []byte {
	t.Helper()
	var ids []byte
	i := 8
	for i < len(out) {
		id := out[i]
		ids = append(ids, id)
		i++
		size, n := readULEB128(out[i:])
		i += n + int(size)
	}
	return ids
}

// readULEB128 is a minimal decoder used only by tests, independent of
// the encoder's own uleb128 so the test doesn't just check the encoder
// against itself.
func readULEB128(b []byte) (uint64, int) {
	var result uint64
	var shift uint
	var n int
	for {
		byt := b[n]
		result |= uint64(byt&0x7F) << shift
		n++
		if byt&0x80 == 0 {
			break
		}
		shift += 7
	}
	return result, n
}

func TestEncodeSectionOrder(t *testing.T) {
	out := encodeSrc(t, `func main() { print 1; }`)
	ids := sectionIDs(t, out)
	want := []byte{secType, secImport, secFunction, secMemory, secGlobal, secExport, secCode}
	if len(ids) != len(want) {
		t.Fatalf("got %d sections %v, want %d %v", len(ids), ids, len(want), want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("section %d: got id %d, want %d", i, ids[i], want[i])
		}
	}
}

func TestEncodeExportsMainAndMemory(t *testing.T) {
	out := encodeSrc(t, `func main() { print 1; }`)
	if !bytes.Contains(out, []byte("main")) {
		t.Error("expected the export section to contain the name \"main\"")
	}
	if !bytes.Contains(out, []byte("memory")) {
		t.Error("expected the export section to contain the name \"memory\"")
	}
}

func TestEncodeImportsPrintHostFunctions(t *testing.T) {
	out := encodeSrc(t, `func main() { print 1; print 2.0; }`)
	if !bytes.Contains(out, []byte("print_i32")) {
		t.Error("expected the import section to reference print_i32")
	}
	if !bytes.Contains(out, []byte("print_f64")) {
		t.Error("expected the import section to reference print_f64")
	}
	if !bytes.Contains(out, []byte("env")) {
		t.Error(`expected imports under module name "env"`)
	}
}

func TestEncodeUserImportFuncAppearsInImportSection(t *testing.T) {
	out := encodeSrc(t, `
		import func sin(x float) float;
		func main() { print sin(1.0); }
	`)
	if !bytes.Contains(out, []byte("sin")) {
		t.Error("expected the import section to reference the user-declared import sin")
	}
}

func TestEncodeWhileLoopUsesStructuredBlocks(t *testing.T) {
	// No assertion deep enough to need a decoder here: just make sure
	// encoding a while loop doesn't panic on malformed nesting, that a
	// code section is present, and that it opens a block/loop pair.
	out := encodeSrc(t, `
		func main() {
			var i int = 0;
			while i < 3 {
				print i;
				i = i + 1;
			}
		}
	`)
	ids := sectionIDs(t, out)
	found := false
	for _, id := range ids {
		if id == secCode {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a code section")
	}
	// block (void) immediately followed by loop (void).
	if !bytes.Contains(out, []byte{0x02, 0x40, 0x03, 0x40}) {
		t.Error("expected the loop to be encoded as block/loop structured control")
	}
}
