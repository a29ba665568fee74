// Package header renders encoded models and baked clips as C headers for
// the PSYQ and PSYQo PlayStation SDKs.
package header

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Dialect selects the SDK a header is written for.
type Dialect string

const (
	// DialectPSYQ uses the SDK's own SVECTOR and CVECTOR from libgte.h.
	DialectPSYQ Dialect = "psyq"
	// DialectPSYQo declares the vector types itself on top of stdint.h.
	DialectPSYQo Dialect = "psyqo"
)

// ParseDialect parses a dialect name, ignoring case.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case DialectPSYQ, DialectPSYQo:
		return d, nil
	case "":
		return DialectPSYQ, nil
	default:
		return "", fmt.Errorf("unknown header type %q (want psyq or psyqo)", s)
	}
}

// Options control header rendering.
type Options struct {
	Dialect Dialect
	ZUp     bool // Recorded in the banner
}

func (o Options) includes() string {
	if o.Dialect == DialectPSYQo {
		return psyqoIncludes
	}
	return psyqIncludes
}

const psyqIncludes = `#include <sys/types.h>
#include <libgte.h>`

const psyqoIncludes = `#include <stdint.h>

#ifndef SVECTOR_DEFINED
#define SVECTOR_DEFINED
typedef struct {
    int16_t vx, vy, vz;
} SVECTOR;
#endif

#ifndef CVECTOR_DEFINED
#define CVECTOR_DEFINED
typedef struct {
    uint8_t r, g, b, cd;
} CVECTOR;
#endif`

var identReplacer = strings.NewReplacer(" ", "_", "-", "_")

// Sanitize turns a name into a C identifier fragment.
func Sanitize(name string) string {
	return identReplacer.Replace(name)
}

var textureReplacer = strings.NewReplacer(" ", "_", "-", "_", ".", "_")

// TextureDefine returns the define suffix for a texture: the file name
// without extension, upper-cased.
func TextureDefine(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return textureReplacer.Replace(strings.ToUpper(stem))
}

// ModelFileName returns the header file name of a model.
func ModelFileName(base string) string {
	return base + ".h"
}

// AnimationFileName returns the header file name of a clip.
func AnimationFileName(base, clip string) string {
	return base + "-" + Sanitize(clip) + ".h"
}

// writer accumulates output and keeps the first write error.
type writer struct {
	w   *bufio.Writer
	err error
}

func newWriter(w io.Writer) *writer {
	return &writer{w: bufio.NewWriter(w)}
}

func (w *writer) printf(format string, args ...any) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.w, format, args...)
}

func (w *writer) line(s string) {
	w.printf("%s\n", s)
}

func (w *writer) flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}
