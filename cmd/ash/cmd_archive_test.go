package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flynn33/ash-model/internal/archive"
)

func archiveRuns(t *testing.T, root string, n int) []archive.Info {
	t.Helper()
	dir := filepath.Join(root, ".ash", "archives")
	for i := 0; i < n; i++ {
		if _, err := execute(t, newRunCmd(), smallRunArgs(root, "--archive")...); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	infos, err := archive.List(dir)
	if err != nil {
		t.Fatal(err)
	}
	return infos
}

func TestArchiveCmd_ListVerify(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	infos := archiveRuns(t, tmpDir, 1)
	if len(infos) != 1 {
		t.Fatalf("got %d archives, want 1", len(infos))
	}

	out, err := execute(t, newArchiveCmd(), "archive", "list", "--root", tmpDir)
	if err != nil {
		t.Fatalf("archive list: %v", err)
	}
	if !strings.Contains(out, filepath.Base(infos[0].Path)) {
		t.Errorf("archive list output:\n%s", out)
	}

	out, err = execute(t, newArchiveCmd(), "archive", "verify", infos[0].Path)
	if err != nil {
		t.Fatalf("archive verify: %v", err)
	}
	if !strings.Contains(out, "OK: checksum verified") {
		t.Errorf("archive verify output:\n%s", out)
	}
}

func TestArchiveCmd_VerifyCorrupted(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	infos := archiveRuns(t, tmpDir, 1)

	data, err := os.ReadFile(infos[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(infos[0].Path, data, 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, newArchiveCmd(), "archive", "verify", infos[0].Path); err == nil {
		t.Error("verify of corrupted archive succeeded")
	}
}

func TestArchiveCmd_Prune(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	dir := filepath.Join(tmpDir, ".ash", "archives")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		"ash-run-20260101-000000-aaaaaaaa.ash.gz",
		"ash-run-20260102-000000-bbbbbbbb.ash.gz",
		"ash-run-20260103-000000-cccccccc.ash.gz",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := execute(t, newArchiveCmd(), "archive", "prune", "--root", tmpDir); err == nil {
		t.Error("prune without limits succeeded")
	}

	out, err := execute(t, newArchiveCmd(), "archive", "prune", "--root", tmpDir, "--keep", "1")
	if err != nil {
		t.Fatalf("archive prune: %v", err)
	}
	if !strings.Contains(out, "Pruned 2 archives") {
		t.Errorf("prune output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "ash-run-20260103-000000-cccccccc.ash.gz")); err != nil {
		t.Errorf("newest archive removed: %v", err)
	}
}

func TestArchiveCmd_Import(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	infos := archiveRuns(t, tmpDir, 1)

	if _, err := execute(t, newArchiveCmd(), "archive", "import", infos[0].Path, "--root", tmpDir); err != nil {
		t.Fatalf("archive import: %v", err)
	}
	out, err := execute(t, newRunsCmd(), "runs", "show", infos[0].RunID, "--root", tmpDir)
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	if !strings.Contains(out, infos[0].RunID) {
		t.Errorf("imported run not shown:\n%s", out)
	}
}
