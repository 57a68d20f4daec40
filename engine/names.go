package engine

import "strings"

// Guest ABI export and import names.
const (
	hostModuleName = "bridge"
	hostEmitName   = "emit"

	exportMemory = "memory"
	exportAlloc  = "bridge_alloc"

	suffixNew     = "_new"
	suffixSet     = "_set"
	suffixRefresh = "_refresh"
	suffixDestroy = "_destroy"
	suffixOutputs = "_outputs"
)

// componentNames returns the component exports declared by a module's
// function exports: every X for which X_new exists.
func componentNames(funcs map[string]bool) []string {
	var names []string
	for name := range funcs {
		if base, ok := strings.CutSuffix(name, suffixNew); ok && base != "" {
			names = append(names, base)
		}
	}
	return names
}

func packPtrLen(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

func unpackPtrLen(v uint64) (ptr, length uint32) {
	return uint32(v >> 32), uint32(v)
}
