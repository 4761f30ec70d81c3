package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/wildland-go/wildland/backend/local"
	"github.com/wildland-go/wildland/manifest"
	"github.com/wildland-go/wildland/sig"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	old := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	w.Close()
	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

// writeTestConfig builds a config YAML rooted entirely under a temp
// directory, the way a real ~/.config/wildland/config.yaml would name its
// directories, and returns its path plus the directories it names.
func writeTestConfig(t *testing.T) (cfgPath, containerDir string) {
	t.Helper()
	base := t.TempDir()
	for _, d := range []string{"users", "containers", "bridges", "storages"} {
		if err := os.MkdirAll(filepath.Join(base, d), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
	}

	cfgPath = filepath.Join(base, "config.yaml")
	body := "base-dir: " + base + "\n" +
		"user-dir: " + filepath.Join(base, "users") + "\n" +
		"container-dir: " + filepath.Join(base, "containers") + "\n" +
		"bridge-dir: " + filepath.Join(base, "bridges") + "\n" +
		"storage-dir: " + filepath.Join(base, "storages") + "\n" +
		"default-user: 0xaa11aa\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return cfgPath, filepath.Join(base, "containers")
}

func writeTestContainer(t *testing.T, containerDir, storageRoot string) {
	t.Helper()
	ctx := sig.NewContext(true)
	m, err := manifest.FromUnsigned([]byte(
		"object: container\n" +
			"owner: 0xaa11aa\n" +
			"version: \"1\"\n" +
			"paths:\n  - /videos\n" +
			"storages:\n" +
			"  - type: local\n" +
			"    local-path: " + storageRoot + "\n" +
			"    backend-id: b1\n"))
	if err != nil {
		t.Fatalf("FromUnsigned: %v", err)
	}
	raw, err := manifest.ToBytes(m, ctx, false)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if err := os.WriteFile(filepath.Join(containerDir, "videos.yaml"), raw, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestResolveCmdPrintsMatchingContainer(t *testing.T) {
	cfgPath, containerDir := writeTestConfig(t)
	writeTestContainer(t, containerDir, t.TempDir())
	configPath = cfgPath
	defer func() { configPath = "" }()

	cmd := resolveCmd()
	out := captureStdout(t, func() {
		if err := cmd.RunE(cmd, []string{"0xaa11aa:/videos:"}); err != nil {
			t.Fatalf("RunE: %v", err)
		}
	})

	if !bytes.Contains([]byte(out), []byte("0xaa11aa")) {
		t.Errorf("resolve output = %q, want it to mention the owner 0xaa11aa", out)
	}
}

func TestResolveCmdFailsForUnknownPath(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)
	configPath = cfgPath
	defer func() { configPath = "" }()

	cmd := resolveCmd()
	if err := cmd.RunE(cmd, []string{"0xaa11aa:/nonexistent:"}); err == nil {
		t.Error("expected resolve of an unknown path to fail")
	}
}

func TestCatCmdPrintsFileContent(t *testing.T) {
	storageRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(storageRoot, "cat.mp4"), []byte("meow"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfgPath, containerDir := writeTestConfig(t)
	writeTestContainer(t, containerDir, storageRoot)
	configPath = cfgPath
	defer func() { configPath = "" }()

	cmd := catCmd()
	out := captureStdout(t, func() {
		if err := cmd.RunE(cmd, []string{"0xaa11aa:/videos:/cat.mp4"}); err != nil {
			t.Fatalf("RunE: %v", err)
		}
	})
	if out != "meow" {
		t.Errorf("cat output = %q, want meow", out)
	}
}

func TestMountCmdMountsContainerAndPrintsPaths(t *testing.T) {
	storageRoot := t.TempDir()
	cfgPath, containerDir := writeTestConfig(t)
	writeTestContainer(t, containerDir, storageRoot)
	configPath = cfgPath
	defer func() { configPath = "" }()

	cmd := mountCmd()
	out := captureStdout(t, func() {
		if err := cmd.RunE(cmd, nil); err != nil {
			t.Fatalf("RunE: %v", err)
		}
	})
	if !bytes.Contains([]byte(out), []byte("/videos")) {
		t.Errorf("mount output = %q, want it to list a path containing /videos", out)
	}
}
