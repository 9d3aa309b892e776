package wasmsandbox

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bytecodealliance/wasmtime-go/v25"
)

// Run executes a module inside a fuel- and memory-bounded wasmtime sandbox,
// enforcing the wall-clock timeout on a worker goroutine.
func Run(req Request) (*Report, *Error) {
	if err := validateCapabilityProfile(req.Capabilities); err != nil {
		return nil, err
	}
	if err := validateLimits(req.Limits); err != nil {
		return nil, err
	}

	type outcome struct {
		report *Report
		err    *Error
	}
	done := make(chan outcome, 1)
	spawned := make(chan struct{})
	go func() {
		close(spawned)
		report, err := runBlocking(req)
		done <- outcome{report, err}
	}()

	select {
	case <-spawned:
	default:
		return nil, newError(ReasonExecutionSpawnFailed, "failed to spawn wasm sandbox worker")
	}

	timeout := time.Duration(req.Limits.TimeoutMs) * time.Millisecond
	select {
	case o := <-done:
		return o.report, o.err
	case <-time.After(timeout):
		return nil, newError(ReasonExecutionTimeout, fmt.Sprintf("wasm sandbox execution timed out after %d ms", req.Limits.TimeoutMs))
	}
}

func runBlocking(req Request) (*Report, *Error) {
	info, statErr := os.Stat(req.ModulePath)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, newError(ReasonModuleMissing, fmt.Sprintf("wasm module does not exist: %s", req.ModulePath))
		}
		return nil, newError(ReasonModuleReadFailed, fmt.Sprintf("failed to stat wasm module '%s': %v", req.ModulePath, statErr))
	}
	if info.IsDir() {
		return nil, newError(ReasonModuleNotFile, fmt.Sprintf("wasm module path is not a file: %s", req.ModulePath))
	}

	moduleBytes, readErr := os.ReadFile(req.ModulePath)
	if readErr != nil {
		return nil, newError(ReasonModuleReadFailed, fmt.Sprintf("failed to read wasm module '%s': %v", req.ModulePath, readErr))
	}

	if memErr := validateModuleMemoryLimits(moduleBytes, req.Limits.MemoryLimitBytes); memErr != nil {
		return nil, memErr
	}

	cfg := wasmtime.NewConfig()
	cfg.SetConsumeFuel(true)
	engine := wasmtime.NewEngineWithConfig(cfg)

	module, compileErr := wasmtime.NewModule(engine, moduleBytes)
	if compileErr != nil {
		return nil, newError(ReasonModuleCompileFailed, fmt.Sprintf("failed to compile wasm module '%s': %v", req.ModulePath, compileErr))
	}

	store := wasmtime.NewStore(engine)
	limiter := wasmtime.NewStoreLimitsBuilder().MemorySize(int64(req.Limits.MemoryLimitBytes)).Build()
	store.Limiter(limiter)
	if err := store.AddFuel(req.Limits.FuelLimit); err != nil {
		return nil, newError(ReasonFuelConfigFailed, fmt.Sprintf("failed to configure wasm fuel limit: %v", err))
	}

	linker := wasmtime.NewLinker(engine)
	instance, instErr := linker.Instantiate(store, module)
	if instErr != nil {
		return nil, newError(ReasonInstanceInitFailed, fmt.Sprintf("failed to instantiate wasm module: %v", instErr))
	}

	memory := instance.GetExport(store, memoryExportName)
	if memory == nil || memory.Memory() == nil {
		return nil, newError(ReasonExportMissingMemory, fmt.Sprintf("wasm module missing required memory export '%s'", memoryExportName))
	}
	mem := memory.Memory()

	allocFn := instance.GetFunc(store, allocExportName)
	if allocFn == nil {
		return nil, newError(ReasonExportMissingAlloc, fmt.Sprintf("wasm module missing required alloc export '%s'", allocExportName))
	}
	invokeFn := instance.GetFunc(store, invokeExportName)
	if invokeFn == nil {
		return nil, newError(ReasonExportMissingInvoke, fmt.Sprintf("wasm module missing required invoke export '%s'", invokeExportName))
	}

	requestBytes := []byte(req.RequestJSON)
	if len(requestBytes) > int(^uint32(0)>>1) {
		return nil, newError(ReasonRequestTooLarge, "request payload exceeds wasm i32 length boundary")
	}
	requestLen := int32(len(requestBytes))

	allocResult, allocErr := allocFn.Call(store, requestLen)
	if allocErr != nil {
		return nil, newError(ReasonAllocFailed, fmt.Sprintf("wasm alloc export failed while reserving request buffer: %v", allocErr))
	}
	requestPtr, ok := allocResult.(int32)
	if !ok || requestPtr < 0 {
		return nil, newError(ReasonAllocInvalidPointer, "wasm alloc export returned a negative or non-i32 pointer")
	}

	if err := validateMemoryRange(mem, store, int(requestPtr), len(requestBytes)); err != nil {
		return nil, newError(ReasonRequestRangeInvalid, fmt.Sprintf("request buffer outside wasm memory bounds: %v", err))
	}
	data := mem.UnsafeData(store)
	copy(data[requestPtr:], requestBytes)

	packedResult, invokeErr := invokeFn.Call(store, requestPtr, requestLen)
	fuelConsumed, _ := store.FuelConsumed()
	if invokeErr != nil {
		return nil, newErrorWithDiagnostics(ReasonExecutionTrap,
			fmt.Sprintf("wasm invoke export trapped: %v", invokeErr),
			[]string{fmt.Sprintf("fuel_consumed=%d", fuelConsumed)})
	}
	packed, ok := packedResult.(int64)
	if !ok {
		return nil, newError(ReasonExecutionTrap, "wasm invoke export returned a non-i64 result")
	}

	responsePtr := int(uint64(packed) >> 32)
	responseLen := int(uint64(packed) & 0xFFFFFFFF)
	if responseLen > req.Limits.MaxResponseBytes {
		return nil, newError(ReasonResponseTooLarge, fmt.Sprintf("wasm response length %d exceeds limit %d", responseLen, req.Limits.MaxResponseBytes))
	}
	if err := validateMemoryRange(mem, store, responsePtr, responseLen); err != nil {
		return nil, newError(ReasonResponseRangeInvalid, fmt.Sprintf("response buffer outside wasm memory bounds: %v", err))
	}

	data = mem.UnsafeData(store)
	responseBytes := make([]byte, responseLen)
	copy(responseBytes, data[responsePtr:responsePtr+responseLen])

	if !utf8.Valid(responseBytes) {
		return nil, newError(ReasonResponseNotUTF8, "wasm response is not valid UTF-8")
	}
	responseJSON := string(responseBytes)
	if strings.TrimSpace(responseJSON) == "" {
		return nil, newError(ReasonResponseEmpty, "wasm response payload is empty")
	}

	return &Report{
		ResponseJSON: responseJSON,
		FuelConsumed: fuelConsumed,
		ReasonCodes:  []ReasonCode{ReasonExecutionSucceeded},
		Diagnostics: []string{
			fmt.Sprintf("module=%s fuel_consumed=%d memory_limit_bytes=%d", req.ModulePath, fuelConsumed, req.Limits.MemoryLimitBytes),
			"capabilities=deny-filesystem,deny-network,deny-env",
		},
		Limits:       req.Limits,
		Capabilities: req.Capabilities,
	}, nil
}

func validateMemoryRange(mem *wasmtime.Memory, store wasmtime.Storelike, offset, length int) error {
	size := int(mem.DataSize(store))
	end := offset + length
	if offset < 0 || length < 0 || end > size {
		return fmt.Errorf("offset=%d len=%d end=%d exceeds memory_size=%d", offset, length, end, size)
	}
	return nil
}
