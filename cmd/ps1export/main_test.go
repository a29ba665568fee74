package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// writeScene saves a one-quad GLB scene and returns its path.
func writeScene(t *testing.T) string {
	t.Helper()
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2, 0, 2, 3})
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: "Quad", Primitives: []*gltf.Primitive{{
		Attributes: map[string]int{gltf.POSITION: pos},
		Indices:    gltf.Index(idx),
	}}})
	doc.Nodes = append(doc.Nodes, &gltf.Node{Name: "Quad", Mesh: gltf.Index(0)})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	path := filepath.Join(t.TempDir(), "crate.glb")
	if err := gltf.SaveBinary(doc, path); err != nil {
		t.Fatalf("save scene: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExportCommand(t *testing.T) {
	scene := writeScene(t)
	outDir := filepath.Join(t.TempDir(), "include")

	out, err := execute(t, "export", scene, "-o", outDir, "-n", "box", "--header-type", "psyqo", "--log-level", "error")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	want := filepath.Join(outDir, "box.h")
	if strings.TrimSpace(out) != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "#include <stdint.h>") {
		t.Error("--header-type not applied")
	}
}

func TestRootDefaultsToExport(t *testing.T) {
	scene := writeScene(t)
	if _, err := execute(t, scene, "--log-level", "error"); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(scene), "crate.h")); err != nil {
		t.Errorf("header not written next to the scene: %v", err)
	}
}

func TestInspectCommand(t *testing.T) {
	scene := writeScene(t)
	out, err := execute(t, "inspect", scene, "--log-level", "error")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"Scene:", "crate", "Quad", "Clips:", "crate.h"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(scene), "crate.h")); err == nil {
		t.Error("inspect wrote a header")
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ps1export.yaml")

	if _, err := execute(t, "config", "init", path, "--specular"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "specular: true") {
		t.Errorf("flag not saved:\n%s", data)
	}

	if _, err := execute(t, "config", "init", path); err == nil {
		t.Error("expected an error overwriting without --force")
	}
	if _, err := execute(t, "config", "init", path, "--force"); err != nil {
		t.Errorf("config init --force: %v", err)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	scene := writeScene(t)
	if _, err := execute(t, "export", scene, "--header-type", "gcc"); err == nil {
		t.Error("expected an error for an unknown header type")
	}
}
