package build

import (
	"strings"
)

// DefaultModuleGlobal is the library handle injected into wrapped output.
const DefaultModuleGlobal = "riot"

// Encapsulate wraps text in a universal module definition shim when modular
// is set, and returns it unchanged otherwise.
//
// The shim probes, in order, for an AMD loader (define.amd), a CommonJS
// module system (module.exports) and finally falls back to the browser
// global window.<global>. Exactly one branch runs at load time; the wrapped
// function body is text verbatim.
func Encapsulate(text string, modular bool, global string) string {
	if !modular {
		return text
	}
	if global == "" {
		global = DefaultModuleGlobal
	}

	var b strings.Builder
	b.Grow(len(text) + 512)
	b.WriteString("(function(tagger) {\n")
	b.WriteString("  if (typeof define === 'function' && define.amd) {\n")
	b.WriteString("    define(function(require, exports, module) { tagger(require('" + global + "'), require, exports, module)})\n")
	b.WriteString("  } else if (typeof module !== 'undefined' && typeof module.exports !== 'undefined') {\n")
	b.WriteString("    tagger(require('" + global + "'), require, exports, module)\n")
	b.WriteString("  } else {\n")
	b.WriteString("    tagger(window." + global + ")\n")
	b.WriteString("  }\n")
	b.WriteString("})(function(" + global + ", require, exports, module) {\n")
	b.WriteString(text)
	b.WriteString("\n});")
	return b.String()
}
