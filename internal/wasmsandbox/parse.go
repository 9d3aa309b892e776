package wasmsandbox

import (
	"encoding/binary"
	"fmt"
)

const (
	wasmMagic        = "\x00asm"
	memorySectionID  = 5
)

// memoryLimits is one module-declared memory's min/max page counts.
type memoryLimits struct {
	MinPages uint32
	MaxPages uint32
	HasMax   bool
}

// validateModuleMemoryLimits walks the module's binary sections far enough
// to find the memory section, then rejects any declared minimum or maximum
// page count whose byte size exceeds memoryLimitBytes. This is a narrow,
// hand-rolled binary walk (not a general WASM parser) because no pure-Go
// WASM section introspection library is wired elsewhere in this module.
func validateModuleMemoryLimits(moduleBytes []byte, memoryLimitBytes uint64) *Error {
	if len(moduleBytes) < 8 || string(moduleBytes[:4]) != wasmMagic {
		return newError(ReasonModuleParseFailed, "wasm module is missing the \\0asm magic header")
	}

	offset := 8
	var diagnostics []string
	for offset < len(moduleBytes) {
		sectionID := moduleBytes[offset]
		offset++
		size, n, err := readVarUint32(moduleBytes, offset)
		if err != nil {
			return newError(ReasonModuleParseFailed, fmt.Sprintf("failed to read section size: %v", err))
		}
		offset += n
		sectionEnd := offset + int(size)
		if sectionEnd > len(moduleBytes) {
			return newError(ReasonModuleParseFailed, "section length exceeds module bytes")
		}

		if sectionID == memorySectionID {
			mems, err := parseMemorySection(moduleBytes[offset:sectionEnd])
			if err != nil {
				return newError(ReasonModuleParseFailed, fmt.Sprintf("failed to parse memory section: %v", err))
			}
			for _, mem := range mems {
				minBytes := uint64(mem.MinPages) * wasmPageSizeBytes
				diagnostics = append(diagnostics, fmt.Sprintf("memory.initial_pages=%d memory.initial_bytes=%d", mem.MinPages, minBytes))
				if minBytes > memoryLimitBytes {
					return newErrorWithDiagnostics(ReasonModuleMemoryExceedsLimit,
						fmt.Sprintf("wasm module declares minimum memory %d bytes above limit %d bytes", minBytes, memoryLimitBytes),
						diagnostics)
				}
				if mem.HasMax {
					maxBytes := uint64(mem.MaxPages) * wasmPageSizeBytes
					diagnostics = append(diagnostics, fmt.Sprintf("memory.maximum_pages=%d memory.maximum_bytes=%d", mem.MaxPages, maxBytes))
					if maxBytes > memoryLimitBytes {
						return newErrorWithDiagnostics(ReasonModuleMemoryExceedsLimit,
							fmt.Sprintf("wasm module declares maximum memory %d bytes above limit %d bytes", maxBytes, memoryLimitBytes),
							diagnostics)
					}
				}
			}
		}
		offset = sectionEnd
	}
	return nil
}

func parseMemorySection(data []byte) ([]memoryLimits, error) {
	offset := 0
	count, n, err := readVarUint32(data, offset)
	if err != nil {
		return nil, err
	}
	offset += n

	out := make([]memoryLimits, 0, count)
	for i := uint32(0); i < count; i++ {
		if offset >= len(data) {
			return nil, fmt.Errorf("truncated memory entry")
		}
		flags := data[offset]
		offset++
		min, n, err := readVarUint32(data, offset)
		if err != nil {
			return nil, err
		}
		offset += n
		m := memoryLimits{MinPages: min}
		if flags&0x1 != 0 {
			max, n, err := readVarUint32(data, offset)
			if err != nil {
				return nil, err
			}
			offset += n
			m.MaxPages = max
			m.HasMax = true
		}
		out = append(out, m)
	}
	return out, nil
}

// readVarUint32 decodes an unsigned LEB128 value, returning the value, the
// number of bytes consumed, and an error on truncation or overflow.
func readVarUint32(data []byte, offset int) (uint32, int, error) {
	if offset >= len(data) {
		return 0, 0, fmt.Errorf("truncated varuint")
	}
	v, n := binary.Uvarint(data[offset:])
	if n <= 0 {
		return 0, 0, fmt.Errorf("malformed varuint")
	}
	if v > 0xFFFFFFFF {
		return 0, 0, fmt.Errorf("varuint overflows uint32")
	}
	return uint32(v), n, nil
}
