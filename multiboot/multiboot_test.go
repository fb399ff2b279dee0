package multiboot

import (
	"encoding/binary"
	"kzero/kernel/mm"
	"math"
	"runtime"
	"testing"
	"unsafe"
)

func TestFindTagByType(t *testing.T) {
	var b infoBuilder
	b.addTag(tagBootCmdLine, []byte{0})
	b.addTag(tagBasicMemoryInfo, make([]byte, 8))
	b.addMemoryMap([]MemoryMapEntry{{0, 0x9fc00, MemAvailable}})
	data := b.finish()

	specs := []struct {
		tagType tagType
		expSize uint32
	}{
		{tagBootCmdLine, 1},
		{tagBasicMemoryInfo, 8},
		{tagMemoryMap, 8 + 24},
		{tagModules, 0},
		{tagElfSymbols, 0},
	}

	SetInfoPtr(uintptr(unsafe.Pointer(&data[0])))

	for specIndex, spec := range specs {
		offset, size := findTagByType(spec.tagType)
		if size != spec.expSize {
			t.Errorf("[spec %d] expected tag size for tag type %d to be %d; got %d", specIndex, spec.tagType, spec.expSize, size)
		}

		if size == 0 && offset != 0 {
			t.Errorf("[spec %d] expected findTagByType to return (0,0) for missing tag; got (%d, %d)", specIndex, offset, size)
		}
	}

	runtime.KeepAlive(data)
}

func TestVisitMemRegions(t *testing.T) {
	entries := []MemoryMapEntry{
		{0, 654336, MemAvailable},
		{654336, 1024, MemReserved},
		{983040, 65536, 0},
		{1048576, 133038080, MemAvailable},
		{134086656, 131072, MemAcpiReclaimable},
		{4294705152, 262144, 0xff},
	}

	expTypes := []MemoryEntryType{
		MemAvailable, MemReserved, MemReserved, MemAvailable, MemAcpiReclaimable, MemReserved,
	}

	t.Run("no memory map", func(t *testing.T) {
		var b infoBuilder
		data := b.finish()
		SetInfoPtr(uintptr(unsafe.Pointer(&data[0])))

		var visitCount int
		VisitMemRegions(func(_ *MemoryMapEntry) bool {
			visitCount++
			return true
		})

		if visitCount != 0 {
			t.Fatal("expected visitor not to be invoked when no memory map tag is present")
		}
		runtime.KeepAlive(data)
	})

	t.Run("visit all", func(t *testing.T) {
		var b infoBuilder
		b.addMemoryMap(entries)
		data := b.finish()
		SetInfoPtr(uintptr(unsafe.Pointer(&data[0])))

		var visitCount int
		VisitMemRegions(func(entry *MemoryMapEntry) bool {
			exp := entries[visitCount]
			if entry.PhysAddress != exp.PhysAddress {
				t.Errorf("[visit %d] expected physical address to be %x; got %x", visitCount, exp.PhysAddress, entry.PhysAddress)
			}
			if entry.Length != exp.Length {
				t.Errorf("[visit %d] expected region len to be %x; got %x", visitCount, exp.Length, entry.Length)
			}
			if entry.Type != expTypes[visitCount] {
				t.Errorf("[visit %d] expected region type to be %s; got %s", visitCount, expTypes[visitCount], entry.Type)
			}

			r := entry.Range()
			if r.Start() != mm.PhysAddr(exp.PhysAddress) || r.Size() != mm.Size(exp.Length) {
				t.Errorf("[visit %d] unexpected region range %v", visitCount, r)
			}

			visitCount++
			return true
		})

		if visitCount != len(entries) {
			t.Fatalf("expected visitor to be invoked %d times; got %d", len(entries), visitCount)
		}
		runtime.KeepAlive(data)
	})

	t.Run("abort", func(t *testing.T) {
		var b infoBuilder
		b.addMemoryMap(entries)
		data := b.finish()
		SetInfoPtr(uintptr(unsafe.Pointer(&data[0])))

		var visitCount int
		VisitMemRegions(func(_ *MemoryMapEntry) bool {
			visitCount++
			return false
		})

		if visitCount != 1 {
			t.Fatalf("expected visitor to be invoked once; got %d", visitCount)
		}
		runtime.KeepAlive(data)
	})
}

func TestMemoryMapEntryRange(t *testing.T) {
	specs := []struct {
		entry      MemoryMapEntry
		start, end mm.PhysAddr
	}{
		{MemoryMapEntry{PhysAddress: 0x100000, Length: 0x7ee0000}, 0x100000, 0x7fe0000},
		{MemoryMapEntry{PhysAddress: 0x1000, Length: 0}, 0x1000, 0x1000},
		{MemoryMapEntry{PhysAddress: math.MaxUint64 - 0xfff, Length: 0x1000}, math.MaxUint64 - 0xfff, math.MaxUint64},
		// regions running past the top of the address space are clamped
		{MemoryMapEntry{PhysAddress: 0xffffffffffff0000, Length: 0x20000}, 0xffffffffffff0000, math.MaxUint64},
		{MemoryMapEntry{PhysAddress: math.MaxUint64, Length: math.MaxUint64}, math.MaxUint64, math.MaxUint64},
	}

	for specIndex, spec := range specs {
		r := spec.entry.Range()
		if r.Start() != spec.start || r.End() != spec.end {
			t.Errorf("[spec %d] expected range %v..%v; got %v", specIndex, spec.start, spec.end, r)
		}
	}
}

func TestMemoryEntryTypeString(t *testing.T) {
	specs := []struct {
		input MemoryEntryType
		exp   string
	}{
		{MemAvailable, "available"},
		{MemReserved, "reserved"},
		{MemAcpiReclaimable, "ACPI (reclaimable)"},
		{MemNvs, "NVS"},
		{memUnknown, "unknown"},
	}

	for specIndex, spec := range specs {
		if got := spec.input.String(); got != spec.exp {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.exp, got)
		}
	}
}

func TestVisitElfSections(t *testing.T) {
	strTab := []byte("\x00.text\x00.rodata\x00.data\x00.bss\x00.shstrtab\x00.comment\x00")
	strTabAddr := uint64(uintptr(unsafe.Pointer(&strTab[0])))

	sections := []elfSection64{
		{},
		{nameIndex: 1, flags: uint64(ElfSectionAllocated | ElfSectionExecutable), address: 0xffff800000100000, size: 0x4000},
		{nameIndex: 7, flags: uint64(ElfSectionAllocated), address: 0xffff800000104000, size: 0x1000},
		{nameIndex: 15, flags: uint64(ElfSectionAllocated | ElfSectionWritable), address: 0xffff800000105000, size: 0x800},
		{nameIndex: 21, flags: uint64(ElfSectionAllocated | ElfSectionWritable), address: 0xffff800000106000, size: 0x2000},
		{nameIndex: 26, address: strTabAddr, size: uint64(len(strTab))},
		{nameIndex: 36, size: 0},
	}

	type visit struct {
		name  string
		flags ElfSectionFlag
		addr  uintptr
		size  uint64
	}

	expVisits := []visit{
		{".text", ElfSectionAllocated | ElfSectionExecutable, 0xffff800000100000, 0x4000},
		{".rodata", ElfSectionAllocated, 0xffff800000104000, 0x1000},
		{".data", ElfSectionAllocated | ElfSectionWritable, 0xffff800000105000, 0x800},
		{".bss", ElfSectionAllocated | ElfSectionWritable, 0xffff800000106000, 0x2000},
		{".shstrtab", 0, uintptr(strTabAddr), uint64(len(strTab))},
	}

	var b infoBuilder
	b.addElfSections(sections, 5)
	data := b.finish()
	SetInfoPtr(uintptr(unsafe.Pointer(&data[0])))

	var got []visit
	VisitElfSections(func(name string, flags ElfSectionFlag, address uintptr, size uint64) {
		got = append(got, visit{name, flags, address, size})
	})

	if len(got) != len(expVisits) {
		t.Fatalf("expected %d visits; got %d: %v", len(expVisits), len(got), got)
	}

	for i, exp := range expVisits {
		if got[i] != exp {
			t.Errorf("[visit %d] expected %+v; got %+v", i, exp, got[i])
		}
	}

	runtime.KeepAlive(strTab)
	runtime.KeepAlive(data)
}

func TestVisitElfSectionsWithoutTag(t *testing.T) {
	var b infoBuilder
	data := b.finish()
	SetInfoPtr(uintptr(unsafe.Pointer(&data[0])))

	VisitElfSections(func(_ string, _ ElfSectionFlag, _ uintptr, _ uint64) {
		t.Fatal("expected visitor not to be invoked when no ELF symbols tag is present")
	})
	runtime.KeepAlive(data)
}

// infoBuilder assembles a multiboot2 info structure in memory.
type infoBuilder struct {
	buf []byte
}

func (b *infoBuilder) addTag(tt tagType, payload []byte) {
	if b.buf == nil {
		b.buf = make([]byte, 8)
	}

	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(tt))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(8+len(payload)))
	b.buf = append(b.buf, hdr[:]...)
	b.buf = append(b.buf, payload...)

	for len(b.buf)%8 != 0 {
		b.buf = append(b.buf, 0)
	}
}

func (b *infoBuilder) addMemoryMap(entries []MemoryMapEntry) {
	payload := make([]byte, 8+24*len(entries))
	binary.LittleEndian.PutUint32(payload[0:], 24)
	for i, e := range entries {
		off := 8 + 24*i
		binary.LittleEndian.PutUint64(payload[off:], e.PhysAddress)
		binary.LittleEndian.PutUint64(payload[off+8:], e.Length)
		binary.LittleEndian.PutUint32(payload[off+16:], uint32(e.Type))
	}
	b.addTag(tagMemoryMap, payload)
}

func (b *infoBuilder) addElfSections(sections []elfSection64, strtabIndex uint32) {
	const entSize = 64

	payload := make([]byte, 12+entSize*len(sections))
	binary.LittleEndian.PutUint32(payload[0:], uint32(len(sections)))
	binary.LittleEndian.PutUint32(payload[4:], entSize)
	binary.LittleEndian.PutUint32(payload[8:], strtabIndex)
	for i, s := range sections {
		off := 12 + entSize*i
		binary.LittleEndian.PutUint32(payload[off:], s.nameIndex)
		binary.LittleEndian.PutUint32(payload[off+4:], s.sectionType)
		binary.LittleEndian.PutUint64(payload[off+8:], s.flags)
		binary.LittleEndian.PutUint64(payload[off+16:], s.address)
		binary.LittleEndian.PutUint64(payload[off+24:], s.offset)
		binary.LittleEndian.PutUint64(payload[off+32:], s.size)
	}
	b.addTag(tagElfSymbols, payload)
}

// finish appends the end tag and returns a copy whose backing array is
// 8-byte aligned.
func (b *infoBuilder) finish() []byte {
	b.addTag(tagMbSectionEnd, nil)
	binary.LittleEndian.PutUint32(b.buf[0:], uint32(len(b.buf)))

	words := make([]uint64, len(b.buf)/8)
	out := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(b.buf))
	copy(out, b.buf)
	return out
}
