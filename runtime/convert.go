package runtime

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/wippyai/wasm-runtime/wat"
	"go.uber.org/zap"
)

// Legacy mnemonics from the pre-1.0 text format. A delimiter must precede
// the name, so identifiers such as $get_local are kept. String literals and
// comments are matched first (group 1) and passed through unchanged.
var legacyMnemonic = regexp.MustCompile(
	`("(?:[^"\\]|\\.)*"|;;[^\n]*|\(;(?s:.)*?;\))` +
		`|(^|[\s(])(get_local|set_local|tee_local|get_global|set_global)\b`)

var legacyRename = map[string]string{
	"get_local":  "local.get",
	"set_local":  "local.set",
	"tee_local":  "local.tee",
	"get_global": "global.get",
	"set_global": "global.set",
}

var lineHint = regexp.MustCompile(`line (\d+)`)

// Convert compiles WebAssembly text into binary module bytes.
//
// The result is deterministic for a given source. Syntax errors are
// reported as *Error with Stage "convert" and Kind "syntax"; Line is set
// when the parser reports a position.
func Convert(source string) ([]byte, error) {
	if strings.TrimSpace(source) == "" {
		return nil, newError(StageConvert, KindSyntax, "", "empty source", nil)
	}

	bin, err := wat.Compile(normalizeMnemonics(source))
	if err != nil {
		cerr := newError(StageConvert, KindSyntax, "", "invalid module text", err)
		if m := lineHint.FindStringSubmatch(err.Error()); m != nil {
			cerr.Line, _ = strconv.Atoi(m[1])
		}
		return nil, cerr
	}

	Logger().Debug("module text converted", zap.Int("bytes", len(bin)))
	return bin, nil
}

// normalizeMnemonics rewrites legacy instruction names to current ones.
func normalizeMnemonics(source string) string {
	return legacyMnemonic.ReplaceAllStringFunc(source, func(match string) string {
		sub := legacyMnemonic.FindStringSubmatch(match)
		if sub[1] != "" {
			return match
		}
		return sub[2] + legacyRename[sub[3]]
	})
}
