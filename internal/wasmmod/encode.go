package wasmmod

import (
	"bytes"

	"github.com/stylusmove/movewasm/internal/leb128"
)

// section IDs, per the WebAssembly binary format.
const (
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionGlobal   = 6
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11
)

var binaryMagic = []byte{0x00, 0x61, 0x73, 0x6d}
var binaryVersion = []byte{0x01, 0x00, 0x00, 0x00}

// Encode serializes m to the WebAssembly binary format. Callers should run
// Validate first; Encode does not re-check structural invariants.
func (m *Module) Encode() []byte {
	var out bytes.Buffer
	out.Write(binaryMagic)
	out.Write(binaryVersion)

	if len(m.Types) > 0 {
		writeSection(&out, sectionType, encodeTypeSection(m.Types))
	}
	if len(m.Imports) > 0 {
		writeSection(&out, sectionImport, encodeImportSection(m.Imports))
	}
	if len(m.Functions) > 0 {
		writeSection(&out, sectionFunction, encodeFunctionSection(m.Functions))
	}
	if m.Memory != nil {
		writeSection(&out, sectionMemory, encodeMemorySection(*m.Memory))
	}
	if len(m.Globals) > 0 {
		writeSection(&out, sectionGlobal, encodeGlobalSection(m.Globals))
	}
	if len(m.Exports) > 0 {
		writeSection(&out, sectionExport, encodeExportSection(m.Exports))
	}
	if len(m.Functions) > 0 {
		writeSection(&out, sectionCode, encodeCodeSection(m.Functions))
	}
	if len(m.Data) > 0 {
		writeSection(&out, sectionData, encodeDataSection(m.Data))
	}
	return out.Bytes()
}

func writeSection(out *bytes.Buffer, id byte, body []byte) {
	out.WriteByte(id)
	out.Write(leb128.EncodeUint32(uint32(len(body))))
	out.Write(body)
}

func encodeVector(count int, each func(i int) []byte) []byte {
	var buf bytes.Buffer
	buf.Write(leb128.EncodeUint32(uint32(count)))
	for i := 0; i < count; i++ {
		buf.Write(each(i))
	}
	return buf.Bytes()
}

func encodeTypeSection(types []FunctionType) []byte {
	return encodeVector(len(types), func(i int) []byte {
		ft := types[i]
		var buf bytes.Buffer
		buf.WriteByte(0x60) // func type tag
		buf.Write(leb128.EncodeUint32(uint32(len(ft.Params))))
		buf.Write(ft.Params)
		buf.Write(leb128.EncodeUint32(uint32(len(ft.Results))))
		buf.Write(ft.Results)
		return buf.Bytes()
	})
}

func encodeImportSection(imports []Import) []byte {
	return encodeVector(len(imports), func(i int) []byte {
		imp := imports[i]
		var buf bytes.Buffer
		writeName(&buf, imp.Module)
		writeName(&buf, imp.Name)
		buf.WriteByte(0x00) // import kind: func
		buf.Write(leb128.EncodeUint32(imp.TypeIndex))
		return buf.Bytes()
	})
}

func encodeFunctionSection(fns []Function) []byte {
	return encodeVector(len(fns), func(i int) []byte {
		return leb128.EncodeUint32(fns[i].TypeIndex)
	})
}

func encodeMemorySection(limits MemoryLimits) []byte {
	return encodeVector(1, func(int) []byte {
		var buf bytes.Buffer
		if limits.HasMax {
			buf.WriteByte(0x01)
			buf.Write(leb128.EncodeUint32(limits.InitialPages))
			buf.Write(leb128.EncodeUint32(limits.MaxPages))
		} else {
			buf.WriteByte(0x00)
			buf.Write(leb128.EncodeUint32(limits.InitialPages))
		}
		return buf.Bytes()
	})
}

func encodeGlobalSection(globals []Global) []byte {
	return encodeVector(len(globals), func(i int) []byte {
		g := globals[i]
		var buf bytes.Buffer
		buf.WriteByte(g.Type)
		if g.Mutable {
			buf.WriteByte(0x01)
		} else {
			buf.WriteByte(0x00)
		}
		buf.WriteByte(0x41) // i32.const
		buf.Write(leb128.EncodeInt32(g.Init))
		buf.WriteByte(0x0b) // end
		return buf.Bytes()
	})
}

func encodeExportSection(exports []Export) []byte {
	return encodeVector(len(exports), func(i int) []byte {
		e := exports[i]
		var buf bytes.Buffer
		writeName(&buf, e.Name)
		buf.WriteByte(byte(e.Kind))
		buf.Write(leb128.EncodeUint32(e.Index))
		return buf.Bytes()
	})
}

func encodeCodeSection(fns []Function) []byte {
	return encodeVector(len(fns), func(i int) []byte {
		fn := fns[i]
		var body bytes.Buffer
		body.Write(leb128.EncodeUint32(uint32(len(fn.Locals))))
		for _, lg := range fn.Locals {
			body.Write(leb128.EncodeUint32(lg.Count))
			body.WriteByte(lg.Type)
		}
		body.Write(fn.Body)

		var buf bytes.Buffer
		buf.Write(leb128.EncodeUint32(uint32(body.Len())))
		buf.Write(body.Bytes())
		return buf.Bytes()
	})
}

func encodeDataSection(segs []Data) []byte {
	return encodeVector(len(segs), func(i int) []byte {
		d := segs[i]
		var buf bytes.Buffer
		buf.WriteByte(0x00) // active segment, memory index 0 implied
		buf.WriteByte(0x41) // i32.const
		buf.Write(leb128.EncodeInt32(int32(d.Offset)))
		buf.WriteByte(0x0b) // end
		buf.Write(leb128.EncodeUint32(uint32(len(d.Bytes))))
		buf.Write(d.Bytes)
		return buf.Bytes()
	})
}

func writeName(buf *bytes.Buffer, s string) {
	buf.Write(leb128.EncodeUint32(uint32(len(s))))
	buf.WriteString(s)
}
