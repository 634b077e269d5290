// Package vm implements the machine side of the native call bridge.
//
// This package contains:
//   - the Cell value unit and its float reinterpretation
//   - Machine state: data segment, heap/stack pointers, address translation
//   - string layout helpers (packed and unpacked)
//   - public function push/exec for host-defined publics
//   - the native table and program set used to resolve calls by name
//   - Sandbox and SandboxPool, the reusable scratch machines for native calls
//
// The package does not interpret bytecode.
package vm
