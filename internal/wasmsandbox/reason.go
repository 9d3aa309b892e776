package wasmsandbox

// ReasonCode is one of the closed set of WASM sandbox outcome codes.
type ReasonCode string

const (
	ReasonExecutionSucceeded ReasonCode = "wasm_execution_succeeded"
	ReasonExecutionTrap      ReasonCode = "wasm_execution_trap"
	ReasonExecutionTimeout   ReasonCode = "wasm_execution_timeout"
	ReasonExecutionJoinError ReasonCode = "wasm_execution_join_error"
	ReasonExecutionSpawnFailed ReasonCode = "wasm_execution_spawn_failed"

	ReasonCapabilityFilesystemUnsupported ReasonCode = "wasm_capability_filesystem_unsupported"
	ReasonCapabilityNetworkUnsupported    ReasonCode = "wasm_capability_network_unsupported"
	ReasonCapabilityEnvUnsupported        ReasonCode = "wasm_capability_env_unsupported"

	ReasonLimitInvalidFuel     ReasonCode = "wasm_limit_invalid_fuel"
	ReasonLimitInvalidMemory   ReasonCode = "wasm_limit_invalid_memory"
	ReasonLimitInvalidTimeout  ReasonCode = "wasm_limit_invalid_timeout"
	ReasonLimitInvalidRespSize ReasonCode = "wasm_limit_invalid_response_size"

	ReasonModuleMissing                ReasonCode = "wasm_module_missing"
	ReasonModuleNotFile                ReasonCode = "wasm_module_not_file"
	ReasonModuleReadFailed             ReasonCode = "wasm_module_read_failed"
	ReasonModuleParseFailed            ReasonCode = "wasm_module_parse_failed"
	ReasonModuleCompileFailed          ReasonCode = "wasm_module_compile_failed"
	ReasonModuleMemoryExceedsLimit     ReasonCode = "wasm_module_memory_declared_exceeds_limit"

	ReasonInstanceInitFailed ReasonCode = "wasm_instance_init_failed"

	ReasonExportMissingMemory ReasonCode = "wasm_export_missing_memory"
	ReasonExportMissingAlloc  ReasonCode = "wasm_export_missing_alloc"
	ReasonExportMissingInvoke ReasonCode = "wasm_export_missing_invoke"

	ReasonRequestTooLarge    ReasonCode = "wasm_request_too_large"
	ReasonRequestRangeInvalid ReasonCode = "wasm_request_range_invalid"
	ReasonRequestWriteFailed ReasonCode = "wasm_request_write_failed"

	ReasonResponseTooLarge    ReasonCode = "wasm_response_too_large"
	ReasonResponseRangeInvalid ReasonCode = "wasm_response_range_invalid"
	ReasonResponseReadFailed  ReasonCode = "wasm_response_read_failed"
	ReasonResponseNotUTF8     ReasonCode = "wasm_response_not_utf8"
	ReasonResponseEmpty       ReasonCode = "wasm_response_empty"

	ReasonAllocFailed         ReasonCode = "wasm_alloc_failed"
	ReasonAllocInvalidPointer ReasonCode = "wasm_alloc_invalid_pointer"

	ReasonEngineInitFailed ReasonCode = "wasm_engine_init_failed"
	ReasonFuelConfigFailed ReasonCode = "wasm_fuel_config_failed"
)
