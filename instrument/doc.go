// Package instrument manages the lifecycle of framework instrumentors.
//
// Integration packages register themselves at init time, the same way
// database drivers do. Importing an integration package is what makes
// its framework instrumentable:
//
//	import (
//		"github.com/llmtrace/llmtrace/instrument"
//		_ "github.com/llmtrace/llmtrace/instrument/openai"
//	)
//
//	results := instrument.AutoInstrument()
//
// AutoInstrument walks the registered catalog, probes each target, and
// installs the interception patches for everything that is present.
// Results report per-framework success; a framework whose probe fails
// or whose patches cannot be applied reports false and leaves no state
// behind. Everything is reversible through Uninstrument.
package instrument
