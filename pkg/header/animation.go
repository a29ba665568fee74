package header

import (
	"fmt"
	"io"
	"strings"

	"github.com/taigrr/ps1export/pkg/anim"
)

// WriteAnimation renders a baked clip of the model called model. Frames are
// written in ascending order with the static model's vertex order.
func WriteAnimation(out io.Writer, model string, s anim.FrameSeries, opts Options) error {
	w := newWriter(out)
	clip := Sanitize(s.Clip.Name)
	up, low := strings.ToUpper(clip), strings.ToLower(clip)
	guard := strings.ToUpper(Sanitize(model) + "_" + clip)
	frames, verts := len(s.Frames), s.VertexCount()

	w.printf("// PlayStation 1 Animation Export\n")
	w.printf("// Model: %s\n", model)
	w.printf("// Animation: %s\n", s.Clip.Name)
	w.printf("// Frames: %d\n\n", frames)
	w.printf("#ifndef %s_H\n#define %s_H\n\n", guard, guard)
	w.printf("%s\n\n", opts.includes())

	w.printf("#define %s_FRAMES_COUNT %d\n", up, frames)
	w.printf("#define %s_VERTICES_COUNT %d\n\n", up, verts)

	w.printf("SVECTOR %s_anim[%s][%s] = {\n", low,
		dim(up+"_FRAMES_COUNT", frames), dim(up+"_VERTICES_COUNT", verts))
	for i, frame := range s.Frames {
		w.printf("    { // Frame %d\n", s.Clip.Start+i)
		for _, v := range frame {
			w.printf("        { %d, %d, %d },\n", v.X, v.Y, v.Z)
		}
		if len(frame) == 0 {
			w.line("        { 0, 0, 0 },")
		}
		w.line("    },")
	}
	if frames == 0 {
		w.line("    { { 0, 0, 0 } },")
	}
	w.line("};\n")

	w.line("#endif")
	if err := w.flush(); err != nil {
		return fmt.Errorf("write %q: %w", s.Clip.Name, err)
	}
	return nil
}
