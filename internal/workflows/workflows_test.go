package workflows

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PolarWolf314/locker/internal/audit"
	"github.com/PolarWolf314/locker/internal/configs"
	kerrors "github.com/PolarWolf314/locker/internal/errors"
)

const testPassword = "correct-horse-battery"

type testEnv struct {
	env     Env
	dataDir string
	srcDir  string
	token   string
}

// newTestEnv writes a config pointing at a temp data dir and initializes a
// vault there.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	t.Setenv(configs.DataDirEnv, "")

	config := configs.DefaultConfig()
	config.Vault.DataDir = filepath.Join(root, "data")
	configPath := filepath.Join(root, "config.toml")
	if err := configs.SaveConfig(configPath, config); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	te := &testEnv{
		env:     Env{ConfigPath: configPath},
		dataDir: config.Vault.DataDir,
		srcDir:  filepath.Join(root, "src"),
	}
	if err := os.MkdirAll(te.srcDir, 0700); err != nil {
		t.Fatalf("Failed to create source dir: %v", err)
	}

	result, err := Init(context.Background(), InitOptions{Env: te.env, Password: testPassword})
	if err != nil {
		t.Fatalf("Failed to init vault: %v", err)
	}
	te.token = result.Token

	return te
}

func (te *testEnv) writeSource(t *testing.T, name string, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("Failed to generate content: %v", err)
	}
	path := filepath.Join(te.srcDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("Failed to write source file: %v", err)
	}
	return path, data
}

func (te *testEnv) add(t *testing.T, paths ...string) *AddResult {
	t.Helper()
	result, err := Add(context.Background(), AddOptions{Env: te.env, Password: testPassword, Paths: paths})
	if err != nil {
		t.Fatalf("Failed to add files: %v", err)
	}
	return result
}

func TestInit_AlreadyInitialized(t *testing.T) {
	te := newTestEnv(t)

	_, err := Init(context.Background(), InitOptions{Env: te.env, Password: testPassword})
	if !errors.Is(err, kerrors.ErrVaultAlreadyInitialized) {
		t.Errorf("Expected ErrVaultAlreadyInitialized, got: %v", err)
	}
}

func TestInit_CreatesLayout(t *testing.T) {
	te := newTestEnv(t)

	for _, name := range []string{"locker.db", "vault_storage", "audit.jsonl"} {
		if _, err := os.Stat(filepath.Join(te.dataDir, name)); err != nil {
			t.Errorf("Expected %s in data dir: %v", name, err)
		}
	}
	if len(te.token) != 19 {
		t.Errorf("Expected formatted token, got %q", te.token)
	}
}

func TestAddExtract_RoundTrip(t *testing.T) {
	te := newTestEnv(t)
	path, data := te.writeSource(t, "report.pdf", 200*1024)

	added := te.add(t, path)
	if len(added.Added) != 1 || added.Added[0].Name != "report.pdf" {
		t.Fatalf("Unexpected add result: %+v", added)
	}

	outDir := t.TempDir()
	result, err := Extract(context.Background(), ExtractOptions{
		Env:       te.env,
		Password:  testPassword,
		Query:     "report",
		OutputDir: outDir,
	})
	if err != nil {
		t.Fatalf("Failed to extract: %v", err)
	}

	got, err := os.ReadFile(result.OutputPath)
	if err != nil {
		t.Fatalf("Failed to read extracted file: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("Extracted content differs from original")
	}
	if filepath.Base(result.OutputPath) != "report.pdf" {
		t.Errorf("Expected report.pdf, got %s", result.OutputPath)
	}
}

func TestExtract_DoesNotOverwrite(t *testing.T) {
	te := newTestEnv(t)
	path, _ := te.writeSource(t, "notes.txt", 10)
	te.add(t, path)

	outDir := t.TempDir()
	existing := filepath.Join(outDir, "notes.txt")
	if err := os.WriteFile(existing, []byte("keep me"), 0600); err != nil {
		t.Fatalf("Failed to write existing file: %v", err)
	}

	result, err := Extract(context.Background(), ExtractOptions{
		Env: te.env, Password: testPassword, Query: "notes.txt", OutputDir: outDir,
	})
	if err != nil {
		t.Fatalf("Failed to extract: %v", err)
	}

	if filepath.Base(result.OutputPath) != "notes (2).txt" {
		t.Errorf("Expected numbered output name, got %s", result.OutputPath)
	}
	if kept, _ := os.ReadFile(existing); string(kept) != "keep me" {
		t.Error("Existing file was overwritten")
	}
}

func TestExtract_RepeatedExtractionsNeverCollide(t *testing.T) {
	te := newTestEnv(t)
	path, data := te.writeSource(t, "notes.txt", 2000)
	te.add(t, path)

	outDir := t.TempDir()
	want := []string{"notes.txt", "notes (2).txt", "notes (3).txt"}
	for _, name := range want {
		result, err := Extract(context.Background(), ExtractOptions{
			Env: te.env, Password: testPassword, Query: "notes.txt", OutputDir: outDir,
		})
		if err != nil {
			t.Fatalf("Failed to extract: %v", err)
		}
		if filepath.Base(result.OutputPath) != name {
			t.Errorf("Expected %s, got %s", name, filepath.Base(result.OutputPath))
		}
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("Failed to read output directory: %v", err)
	}
	if len(entries) != len(want) {
		t.Errorf("Expected only the %d extracted files, got %d entries", len(want), len(entries))
	}
	for _, name := range want {
		got, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			t.Fatalf("Failed to read %s: %v", name, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("%s does not hold the full decrypted content", name)
		}
	}
}

func TestExtract_ToWriter(t *testing.T) {
	te := newTestEnv(t)
	path, data := te.writeSource(t, "a.bin", 1000)
	added := te.add(t, path)

	var buf bytes.Buffer
	result, err := Extract(context.Background(), ExtractOptions{
		Env: te.env, Password: testPassword, Query: added.Added[0].ID, Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Failed to extract: %v", err)
	}
	if result.OutputPath != "" {
		t.Errorf("Expected no output path, got %s", result.OutputPath)
	}
	if !bytes.Equal(buf.Bytes(), data) {
		t.Error("Extracted content differs from original")
	}
}

func TestExtract_WrongPassword(t *testing.T) {
	te := newTestEnv(t)
	path, _ := te.writeSource(t, "a.bin", 10)
	te.add(t, path)

	_, err := Extract(context.Background(), ExtractOptions{
		Env: te.env, Password: "wrong-password-here", Query: "a.bin", Writer: &bytes.Buffer{},
	})
	if !errors.Is(err, kerrors.ErrAuthentication) {
		t.Errorf("Expected ErrAuthentication, got: %v", err)
	}
}

func TestAdd_Recursive(t *testing.T) {
	te := newTestEnv(t)
	te.writeSource(t, filepath.Join("dir", "one.txt"), 10)
	te.writeSource(t, filepath.Join("dir", "nested", "two.txt"), 20)
	te.writeSource(t, filepath.Join("dir", "nested", "three.txt"), 0)

	result, err := Add(context.Background(), AddOptions{
		Env:       te.env,
		Password:  testPassword,
		Paths:     []string{filepath.Join(te.srcDir, "dir")},
		Recursive: true,
	})
	if err != nil {
		t.Fatalf("Failed to add directory: %v", err)
	}
	if len(result.Added) != 3 || len(result.Failed) != 0 {
		t.Errorf("Expected 3 added files, got %d added and %d failed", len(result.Added), len(result.Failed))
	}

	list, err := List(context.Background(), ListOptions{Env: te.env})
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(list.Files) != 3 || list.TotalSize != 30 {
		t.Errorf("Expected 3 files totalling 30 bytes, got %d files and %d bytes", len(list.Files), list.TotalSize)
	}
}

func TestAdd_RemoveSource(t *testing.T) {
	te := newTestEnv(t)
	path, _ := te.writeSource(t, "secret.txt", 10)

	_, err := Add(context.Background(), AddOptions{
		Env: te.env, Password: testPassword, Paths: []string{path}, RemoveSource: true,
	})
	if err != nil {
		t.Fatalf("Failed to add: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected source file to be removed")
	}
}

func TestExtract_AmbiguousPrefix(t *testing.T) {
	te := newTestEnv(t)
	a, _ := te.writeSource(t, "tax-2023.pdf", 10)
	b, _ := te.writeSource(t, "tax-2024.pdf", 10)
	te.add(t, a, b)

	_, err := Extract(context.Background(), ExtractOptions{
		Env: te.env, Password: testPassword, Query: "tax", Writer: &bytes.Buffer{},
	})
	if !errors.Is(err, kerrors.ErrAmbiguousFile) {
		t.Errorf("Expected ErrAmbiguousFile, got: %v", err)
	}

	_, err = Extract(context.Background(), ExtractOptions{
		Env: te.env, Password: testPassword, Query: "missing", Writer: &bytes.Buffer{},
	})
	if !errors.Is(err, kerrors.ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got: %v", err)
	}
}

func TestRemove(t *testing.T) {
	te := newTestEnv(t)
	a, _ := te.writeSource(t, "a.txt", 10)
	b, _ := te.writeSource(t, "b.txt", 10)
	te.add(t, a, b)

	_, err := Remove(context.Background(), RemoveOptions{
		Env: te.env, Password: testPassword, Queries: []string{"a.txt", "nope"},
	})
	if !errors.Is(err, kerrors.ErrFileNotFound) {
		t.Fatalf("Expected ErrFileNotFound, got: %v", err)
	}

	list, _ := List(context.Background(), ListOptions{Env: te.env})
	if len(list.Files) != 2 {
		t.Fatalf("Expected nothing removed after a failed lookup, got %d files", len(list.Files))
	}

	result, err := Remove(context.Background(), RemoveOptions{
		Env: te.env, Password: testPassword, Queries: []string{"a.txt"},
	})
	if err != nil {
		t.Fatalf("Failed to remove: %v", err)
	}
	if len(result.Removed) != 1 || result.Removed[0].Name != "a.txt" {
		t.Errorf("Unexpected remove result: %+v", result)
	}

	list, _ = List(context.Background(), ListOptions{Env: te.env})
	if len(list.Files) != 1 || list.Files[0].Name != "b.txt" {
		t.Errorf("Expected only b.txt left, got %+v", list.Files)
	}
}

func TestRotate_ThenExtract(t *testing.T) {
	te := newTestEnv(t)
	path, data := te.writeSource(t, "a.bin", 70*1024)
	te.add(t, path)

	result, err := Rotate(context.Background(), RotateOptions{
		Env: te.env, Password: testPassword, Token: strings.ToLower(te.token),
	})
	if err != nil {
		t.Fatalf("Failed to rotate: %v", err)
	}
	if result.Generation != 2 || result.Files != 1 {
		t.Errorf("Unexpected rotate result: %+v", result)
	}
	if result.Token != "" {
		t.Error("Expected no new token")
	}

	var buf bytes.Buffer
	if _, err := Extract(context.Background(), ExtractOptions{
		Env: te.env, Password: testPassword, Query: "a.bin", Writer: &buf,
	}); err != nil {
		t.Fatalf("Failed to extract after rotation: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), data) {
		t.Error("Content changed across rotation")
	}
}

func TestRecoverAndPasswd(t *testing.T) {
	te := newTestEnv(t)
	newPassword := "a-brand-new-password"

	err := Recover(context.Background(), RecoverOptions{Env: te.env, Token: "bad", NewPassword: newPassword})
	if !errors.Is(err, kerrors.ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got: %v", err)
	}

	if err := Recover(context.Background(), RecoverOptions{Env: te.env, Token: te.token, NewPassword: newPassword}); err != nil {
		t.Fatalf("Failed to recover: %v", err)
	}

	err = Passwd(context.Background(), PasswdOptions{Env: te.env, OldPassword: testPassword, NewPassword: "another-password-1"})
	if !errors.Is(err, kerrors.ErrAuthentication) {
		t.Errorf("Expected old password to be rejected, got: %v", err)
	}

	if err := Passwd(context.Background(), PasswdOptions{Env: te.env, OldPassword: newPassword, NewPassword: testPassword}); err != nil {
		t.Fatalf("Failed to change password: %v", err)
	}
}

func TestVerify(t *testing.T) {
	te := newTestEnv(t)
	a, _ := te.writeSource(t, "a.bin", 5000)
	b, _ := te.writeSource(t, "b.bin", 5000)
	added := te.add(t, a, b)

	stored := filepath.Join(te.dataDir, "vault_storage", added.Added[1].StoredName)
	blob, err := os.ReadFile(stored)
	if err != nil {
		t.Fatalf("Failed to read ciphertext: %v", err)
	}
	blob[20] ^= 0x01
	if err := os.WriteFile(stored, blob, 0600); err != nil {
		t.Fatalf("Failed to write ciphertext: %v", err)
	}

	result, err := Verify(context.Background(), VerifyOptions{Env: te.env, Password: testPassword})
	if err != nil {
		t.Fatalf("Failed to verify: %v", err)
	}
	if result.Checked != 2 {
		t.Errorf("Expected 2 files checked, got %d", result.Checked)
	}
	if len(result.Failed) != 1 || result.Failed[0].File.Name != "b.bin" {
		t.Fatalf("Expected b.bin to fail, got %+v", result.Failed)
	}
	if !errors.Is(result.Failed[0].Err, kerrors.ErrIntegrity) {
		t.Errorf("Expected ErrIntegrity, got: %v", result.Failed[0].Err)
	}
}

func TestInfo(t *testing.T) {
	te := newTestEnv(t)

	result, err := Info(context.Background(), InfoOptions{Env: te.env})
	if err != nil {
		t.Fatalf("Failed to get info: %v", err)
	}
	if result.Details.Generation != 1 {
		t.Errorf("Expected generation 1, got %d", result.Details.Generation)
	}
	if result.Settings.DataDir != te.dataDir {
		t.Errorf("Expected data dir %s, got %s", te.dataDir, result.Settings.DataDir)
	}
}

func TestList_NotInitialized(t *testing.T) {
	root := t.TempDir()
	t.Setenv(configs.DataDirEnv, filepath.Join(root, "data"))

	_, err := List(context.Background(), ListOptions{Env: Env{ConfigPath: filepath.Join(root, "missing.toml")}})
	if !errors.Is(err, kerrors.ErrVaultNotInitialized) {
		t.Errorf("Expected ErrVaultNotInitialized, got: %v", err)
	}
}

func TestLog_RecordsOperations(t *testing.T) {
	te := newTestEnv(t)
	path, _ := te.writeSource(t, "a.txt", 10)
	te.add(t, path)
	_, _ = Extract(context.Background(), ExtractOptions{
		Env: te.env, Password: "wrong-password-here", Query: "a.txt", Writer: &bytes.Buffer{},
	})

	result, err := Log(context.Background(), LogOptions{Env: te.env})
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}

	var ops []string
	for _, e := range result.Entries {
		ops = append(ops, e.Operation)
	}
	if strings.Join(ops, ",") != "init,add" {
		t.Errorf("Expected init,add, got %v", ops)
	}

	filtered, err := Log(context.Background(), LogOptions{Env: te.env, Operations: "add"})
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}
	if len(filtered.Entries) != 1 || filtered.Entries[0].Files[0] != "a.txt" {
		t.Errorf("Unexpected filtered entries: %+v", filtered.Entries)
	}

	if _, err := Log(context.Background(), LogOptions{Env: te.env, Since: "yesterday"}); !errors.Is(err, kerrors.ErrInvalidDateFormat) {
		t.Errorf("Expected ErrInvalidDateFormat, got: %v", err)
	}
}

func TestFormatDetails(t *testing.T) {
	tests := []struct {
		entry audit.Entry
		want  string
	}{
		{audit.Entry{Operation: "add", Files: []string{"a", "b"}}, "a, b"},
		{audit.Entry{Operation: "add", Files: []string{"a", "b", "c", "d"}}, "4 files"},
		{audit.Entry{Operation: "rotate", Generation: 3, FilesCount: 2}, "generation 3, 2 files"},
		{audit.Entry{Operation: "rotate", Generation: 3, FilesCount: 2, NewToken: true}, "generation 3, 2 files, new token"},
		{audit.Entry{Operation: "verify", FilesCount: 5, Failed: []string{"x"}}, "5 files, 1 failed"},
		{audit.Entry{Operation: "passwd", Error: "boom"}, "error: boom"},
	}

	for _, tc := range tests {
		if got := FormatDetails(tc.entry); got != tc.want {
			t.Errorf("FormatDetails(%+v) = %q, want %q", tc.entry, got, tc.want)
		}
	}
}
