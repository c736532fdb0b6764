package cmd

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// compilerFlagKeys maps root command flags to configuration keys.
var compilerFlagKeys = map[string]string{
	"compact":    "options.compact",
	"type":       "options.type",
	"template":   "options.template",
	"brackets":   "options.brackets",
	"expr":       "options.expr",
	"whitespace": "options.whitespace",
	"modular":    "options.modular",
	"silent":     "build.silent",
	"ext":        "build.source_ext",
	"output-ext": "build.output_ext",
	"format":     "build.format",
	"compiler":   "compiler.command",
	"debounce":   "watch.debounce",
	"livereload": "watch.livereload",
}

var persistentFlagKeys = map[string]string{
	"log-level": "log.level",
}

// addCompilerFlags registers the flags forwarded to the compiler and the
// build settings. Defaults live in the configuration layer, so flags only
// take effect when given.
func addCompilerFlags(f *pflag.FlagSet) {
	f.BoolP("compact", "c", false, "minify the compiled output")
	f.StringP("type", "t", "", "JavaScript preprocessor for script blocks")
	f.String("template", "", "HTML template preprocessor")
	f.String("brackets", "", "custom expression brackets, e.g. \"{{ }}\"")
	f.Bool("expr", false, "run expressions through the script preprocessor")
	f.Bool("whitespace", false, "preserve whitespace in templates")
	f.BoolP("modular", "m", false, "wrap output in an AMD/CommonJS module shim")
	f.BoolP("silent", "s", false, "do not print produced files")
	f.String("ext", "", "source file extension (default .tag)")
	f.String("output-ext", "", "output file extension (default .js)")
	f.String("format", "", "report format: text, json or yaml")
	f.String("compiler", "", "tag compiler executable")
	f.Duration("debounce", 0, "watch mode: collect changes for this long before rebuilding")
	f.String("livereload", "", "watch mode: serve a live reload WebSocket on this address")
}

// bindFlags binds every flag in keys to its configuration key on v.
func bindFlags(v *viper.Viper, f *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if flag := f.Lookup(name); flag != nil {
			_ = v.BindPFlag(key, flag)
		}
	}
}
