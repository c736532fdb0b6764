//go:build property

package build

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEncapsulateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1337)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("non-modular output is the input", prop.ForAll(
		func(text string) bool {
			return Encapsulate(text, false, DefaultModuleGlobal) == text
		},
		gen.AnyString(),
	))

	properties.Property("modular output embeds the input once, after the prologue", prop.ForAll(
		func(text, global string) bool {
			out := Encapsulate(text, true, global)
			prologue := "(function(" + global + ", require, exports, module) {\n"
			i := strings.Index(out, prologue)
			if i < 0 {
				return false
			}
			body := out[i+len(prologue):]
			return body == text+"\n});"
		},
		gen.AnyString(),
		gen.Identifier(),
	))

	properties.Property("wrapping is a pure function of its inputs", prop.ForAll(
		func(text string) bool {
			return Encapsulate(text, true, "") == Encapsulate(text, true, DefaultModuleGlobal)
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
