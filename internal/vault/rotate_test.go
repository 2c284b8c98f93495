package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	kerrors "github.com/PolarWolf314/locker/internal/errors"
	logger "github.com/PolarWolf314/locker/internal/logging"
	"github.com/PolarWolf314/locker/internal/secrets"
	"github.com/PolarWolf314/locker/internal/store"
)

// snapshot captures everything a failed rotation must leave untouched.
type snapshot struct {
	record      *store.VaultRecord
	files       []store.FileRecord
	ciphertexts map[string][]byte
}

func takeSnapshot(t *testing.T, env *testEnv) snapshot {
	t.Helper()
	files, err := env.store.ListFiles(env.ctx)
	if err != nil {
		t.Fatalf("Failed to list files: %v", err)
	}
	s := snapshot{record: env.record(t), files: files, ciphertexts: make(map[string][]byte)}
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(env.opts.StorageDir, f.StoredName))
		if err != nil {
			t.Fatalf("Failed to read ciphertext: %v", err)
		}
		s.ciphertexts[f.StoredName] = data
	}
	return s
}

func assertUnchanged(t *testing.T, env *testEnv, before snapshot) {
	t.Helper()
	after := takeSnapshot(t, env)

	b, a := before.record, after.record
	if a.Generation != b.Generation ||
		!bytes.Equal(a.PasswordSalt, b.PasswordSalt) ||
		!bytes.Equal(a.PasswordEnvelope, b.PasswordEnvelope) ||
		!bytes.Equal(a.PasswordVerifier, b.PasswordVerifier) ||
		!bytes.Equal(a.TokenSalt, b.TokenSalt) ||
		!bytes.Equal(a.TokenEnvelope, b.TokenEnvelope) {
		t.Error("Vault record changed")
	}

	if len(after.files) != len(before.files) {
		t.Fatalf("File count changed from %d to %d", len(before.files), len(after.files))
	}
	for i := range before.files {
		if after.files[i].StreamID != before.files[i].StreamID || after.files[i].Generation != before.files[i].Generation {
			t.Errorf("File record %s changed", before.files[i].Name)
		}
	}
	for name, data := range before.ciphertexts {
		if !bytes.Equal(after.ciphertexts[name], data) {
			t.Errorf("Ciphertext %s changed", name)
		}
	}

	entries, _ := os.ReadDir(env.opts.StorageDir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), rotatingSuffix) {
			t.Errorf("Staged file left behind: %s", e.Name())
		}
	}
	if journal, _ := env.store.LoadJournal(env.ctx); journal != nil {
		t.Error("Rotation journal left behind")
	}
}

func TestRotate_ReencryptsEverything(t *testing.T) {
	env := newSetupEnv(t)
	contents := map[string][]byte{
		"small.txt": []byte("tiny"),
		"exact.bin": randomContent(t, secrets.DefaultChunkSize),
		"large.bin": randomContent(t, 3*secrets.DefaultChunkSize+17),
		"empty.txt": nil,
	}
	ids := make(map[string]string)
	for name, content := range contents {
		ids[name] = env.add(t, name, content).ID
	}

	before := takeSnapshot(t, env)
	oldKey, err := unlockPassword(before.record, testPassword)
	if err != nil {
		t.Fatalf("Failed to unwrap old key: %v", err)
	}

	result, err := env.vault.Rotate(env.ctx, RotateOptions{Password: testPassword, Token: env.token})
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if result.Files != len(contents) || result.Generation != 2 || result.Token != "" {
		t.Errorf("Unexpected result: %+v", result)
	}

	after := takeSnapshot(t, env)
	if after.record.Generation != before.record.Generation+1 {
		t.Errorf("Expected generation %d, got %d", before.record.Generation+1, after.record.Generation)
	}
	if bytes.Equal(after.record.PasswordEnvelope, before.record.PasswordEnvelope) {
		t.Error("Password envelope should be replaced")
	}
	if bytes.Equal(after.record.TokenEnvelope, before.record.TokenEnvelope) {
		t.Error("Token envelope should be replaced")
	}
	if !bytes.Equal(after.record.TokenSalt, before.record.TokenSalt) {
		t.Error("Token salt should be kept when the token is kept")
	}

	newKey, err := unlockPassword(after.record, testPassword)
	if err != nil {
		t.Fatalf("Failed to unwrap new key: %v", err)
	}
	if bytes.Equal(oldKey, newKey) {
		t.Fatal("Master key did not change")
	}
	tokenKey, err := unlockToken(after.record, env.token)
	if err != nil {
		t.Fatalf("Old token should open the new token envelope: %v", err)
	}
	if !bytes.Equal(tokenKey, newKey) {
		t.Error("Envelopes disagree after rotation")
	}

	for _, f := range after.files {
		if f.Generation != 2 {
			t.Errorf("%s: expected generation 2, got %d", f.Name, f.Generation)
		}
		if got := env.extract(t, ids[f.Name]); !bytes.Equal(got, contents[f.Name]) {
			t.Errorf("%s: plaintext changed by rotation", f.Name)
		}
		if len(contents[f.Name]) == 0 {
			continue
		}

		// The old key must no longer open the file.
		oldStream, _ := secrets.NewStream(oldKey, secrets.DefaultChunkSize)
		_, err := oldStream.Decrypt(io.Discard, bytes.NewReader(after.ciphertexts[f.StoredName]), f.StreamID)
		if !errors.Is(err, kerrors.ErrIntegrity) {
			t.Errorf("%s: old key should fail, got %v", f.Name, err)
		}
	}

	env.vault.Lock()
	if err := env.vault.UnlockWithPassword(env.ctx, testPassword); err != nil {
		t.Errorf("Password should still unlock after rotation: %v", err)
	}
}

func TestRotate_NewToken(t *testing.T) {
	env := newSetupEnv(t)
	env.add(t, "a.txt", []byte("content"))
	before := env.record(t)

	result, err := env.vault.Rotate(env.ctx, RotateOptions{Password: testPassword, NewToken: true})
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if result.Token == "" || result.Token == env.token {
		t.Fatalf("Expected a fresh token, got %q", result.Token)
	}

	after := env.record(t)
	if bytes.Equal(after.TokenSalt, before.TokenSalt) {
		t.Error("New token should get a new salt")
	}
	if _, err := unlockToken(after, env.token); !errors.Is(err, kerrors.ErrAuthentication) {
		t.Errorf("Old token should be rejected, got %v", err)
	}
	if _, err := unlockToken(after, result.Token); err != nil {
		t.Errorf("New token should open the vault: %v", err)
	}
}

func TestRotate_RequiresCredentials(t *testing.T) {
	env := newSetupEnv(t)
	env.add(t, "a.txt", []byte("content"))
	before := takeSnapshot(t, env)

	if _, err := env.vault.Rotate(env.ctx, RotateOptions{Password: "wrong-password-x", Token: env.token}); !errors.Is(err, kerrors.ErrAuthentication) {
		t.Errorf("Wrong password: expected ErrAuthentication, got %v", err)
	}
	if _, err := env.vault.Rotate(env.ctx, RotateOptions{Password: testPassword, Token: "AAAA-AAAA-AAAA-AAAA"}); !errors.Is(err, kerrors.ErrAuthentication) {
		t.Errorf("Wrong token: expected ErrAuthentication, got %v", err)
	}
	if _, err := env.vault.Rotate(env.ctx, RotateOptions{Password: testPassword}); !errors.Is(err, kerrors.ErrInvalidToken) {
		t.Errorf("Missing token: expected ErrInvalidToken, got %v", err)
	}

	env.vault.Lock()
	if _, err := env.vault.Rotate(env.ctx, RotateOptions{Password: testPassword, Token: env.token}); !errors.Is(err, kerrors.ErrVaultLocked) {
		t.Errorf("Locked vault: expected ErrVaultLocked, got %v", err)
	}

	assertUnchanged(t, env, before)
}

func TestRotate_CorruptedFileAbortsCleanly(t *testing.T) {
	env := newSetupEnv(t)
	env.add(t, "first.bin", randomContent(t, 100*1024))
	bad := env.add(t, "second.bin", randomContent(t, 100*1024))
	env.add(t, "third.bin", randomContent(t, 10))

	corruptByte(t, filepath.Join(env.opts.StorageDir, bad.StoredName), int64(secrets.RecordSize(secrets.DefaultChunkSize)+50))
	before := takeSnapshot(t, env)
	attempts := countStaging(env)

	_, err := env.vault.Rotate(env.ctx, RotateOptions{Password: testPassword, Token: env.token})
	if !errors.Is(err, kerrors.ErrIntegrity) {
		t.Fatalf("Expected ErrIntegrity, got %v", err)
	}
	if attempts[bad.ID] != 1 {
		t.Errorf("Integrity failures must not be retried, got %d attempts", attempts[bad.ID])
	}
	if !errors.Is(err, kerrors.ErrRotationAborted) {
		t.Errorf("Expected ErrRotationAborted, got %v", err)
	}
	if !strings.Contains(err.Error(), "second.bin") {
		t.Errorf("Error should name the corrupted file: %v", err)
	}

	assertUnchanged(t, env, before)

	// The session key is still the old one.
	var out bytes.Buffer
	if _, err := env.vault.ExtractFile(env.ctx, before.files[0].ID, &out); err != nil {
		t.Errorf("Old key should still work after aborted rotation: %v", err)
	}
}

// countStaging records how often each file is staged. Staging is sequential.
func countStaging(env *testEnv) map[string]int {
	attempts := make(map[string]int)
	v := env.vault
	v.stage = func(oldStream, newStream *secrets.Stream, file *store.FileRecord, staged store.JournalFile) error {
		attempts[file.ID]++
		return v.stageFile(oldStream, newStream, file, staged)
	}
	return attempts
}

// failStaging makes staging of id fail with an I/O error on the first
// failures attempts, leaving a partial staged copy behind each time.
func failStaging(env *testEnv, id string, failures int) map[string]int {
	attempts := make(map[string]int)
	v := env.vault
	v.stage = func(oldStream, newStream *secrets.Stream, file *store.FileRecord, staged store.JournalFile) error {
		attempts[file.ID]++
		if file.ID == id && attempts[file.ID] <= failures {
			partial := filepath.Join(env.opts.StorageDir, staged.StagedName)
			if err := os.WriteFile(partial, []byte("partial"), 0600); err != nil {
				return err
			}
			return fmt.Errorf("%w: device busy", kerrors.ErrResource)
		}
		return v.stageFile(oldStream, newStream, file, staged)
	}
	return attempts
}

func TestRotate_RetriesResourceFailure(t *testing.T) {
	env := newSetupEnv(t)
	first := env.add(t, "first.bin", randomContent(t, 100*1024))
	content := randomContent(t, 3*secrets.DefaultChunkSize+5)
	flaky := env.add(t, "flaky.bin", content)

	attempts := failStaging(env, flaky.ID, 1)

	result, err := env.vault.Rotate(env.ctx, RotateOptions{Password: testPassword, Token: env.token})
	if err != nil {
		t.Fatalf("Rotate should succeed after a retry: %v", err)
	}
	if result.Generation != 2 || result.Files != 2 {
		t.Errorf("Unexpected result: %+v", result)
	}
	if attempts[flaky.ID] != 2 {
		t.Errorf("Expected 2 attempts for the flaky file, got %d", attempts[flaky.ID])
	}
	if attempts[first.ID] != 1 {
		t.Errorf("Expected 1 attempt for the healthy file, got %d", attempts[first.ID])
	}

	if record := env.record(t); record.Generation != 2 {
		t.Errorf("Expected generation 2 to be committed, got %d", record.Generation)
	}
	if got := env.extract(t, flaky.ID); !bytes.Equal(got, content) {
		t.Error("Retried file did not survive rotation intact")
	}

	entries, err := os.ReadDir(env.opts.StorageDir)
	if err != nil {
		t.Fatalf("Failed to read storage directory: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), rotatingSuffix) {
			t.Errorf("Staged file left behind: %s", e.Name())
		}
	}
}

func TestRotate_ResourceFailureExhaustsRetries(t *testing.T) {
	env := newSetupEnv(t)
	env.add(t, "first.bin", randomContent(t, 10))
	stuck := env.add(t, "stuck.bin", randomContent(t, 100*1024))
	env.add(t, "third.bin", randomContent(t, 10))
	before := takeSnapshot(t, env)

	attempts := failStaging(env, stuck.ID, env.opts.RotationRetries+10)

	_, err := env.vault.Rotate(env.ctx, RotateOptions{Password: testPassword, Token: env.token})
	if !errors.Is(err, kerrors.ErrRotationAborted) {
		t.Fatalf("Expected ErrRotationAborted, got %v", err)
	}
	if !errors.Is(err, kerrors.ErrResource) {
		t.Errorf("Expected the I/O failure to be reported, got %v", err)
	}
	if want := env.opts.RotationRetries + 1; attempts[stuck.ID] != want {
		t.Errorf("Expected %d attempts, got %d", want, attempts[stuck.ID])
	}

	assertUnchanged(t, env, before)
}

func TestRotate_CancelledContext(t *testing.T) {
	env := newSetupEnv(t)
	env.add(t, "a.txt", []byte("content"))
	before := takeSnapshot(t, env)

	ctx, cancel := context.WithCancel(env.ctx)
	cancel()

	if _, err := env.vault.Rotate(ctx, RotateOptions{Password: testPassword, Token: env.token}); err == nil {
		t.Fatal("Expected rotation to fail with a cancelled context")
	}
	assertUnchanged(t, env, before)
}

func TestRecoverRotation_StagingRollsBack(t *testing.T) {
	env := newSetupEnv(t)
	file := env.add(t, "a.txt", []byte("content"))
	before := takeSnapshot(t, env)

	// A crash during staging leaves the journal and a partial staged copy.
	staged := file.StoredName + rotatingSuffix
	if err := os.WriteFile(filepath.Join(env.opts.StorageDir, staged), []byte("partial"), 0600); err != nil {
		t.Fatalf("Failed to write staged file: %v", err)
	}
	next := before.record.Clone()
	next.Generation = 2
	journal := &store.RotationJournal{
		ID:        "crashed",
		Phase:     store.PhaseStaging,
		StartedAt: time.Now().UTC(),
		NewRecord: next,
		Files:     []store.JournalFile{{FileID: file.ID, StagedName: staged, StreamID: 99}},
	}
	if err := env.store.SaveJournal(env.ctx, journal); err != nil {
		t.Fatalf("Failed to save journal: %v", err)
	}

	env.reopen(t)

	assertUnchanged(t, env, before)
	if err := env.vault.UnlockWithPassword(env.ctx, testPassword); err != nil {
		t.Fatalf("Failed to unlock: %v", err)
	}
	if got := env.extract(t, file.ID); string(got) != "content" {
		t.Errorf("Unexpected content: %q", got)
	}
}

// commitFailStore fails the final commit transaction once, like a crash
// between renaming the staged files and storing the new record.
type commitFailStore struct {
	*store.Bolt
	failed bool
}

func (s *commitFailStore) CommitRotation(ctx context.Context, record *store.VaultRecord, files []store.FileRecord) error {
	if !s.failed {
		s.failed = true
		return errors.New("simulated crash")
	}
	return s.Bolt.CommitRotation(ctx, record, files)
}

func TestRecoverRotation_CommittingRollsForward(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "locker.db")
	opts := testOptions(dir)
	ctx := context.Background()

	bolt, err := store.Open(dbPath, time.Second)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	failing := &commitFailStore{Bolt: bolt}
	v, err := New(ctx, failing, opts, logger.Logger{})
	if err != nil {
		t.Fatalf("Failed to open vault: %v", err)
	}

	token, err := v.Setup(ctx, testPassword)
	if err != nil {
		t.Fatalf("Failed to set up: %v", err)
	}
	contents := map[string][]byte{
		"a.txt": []byte("alpha"),
		"b.bin": randomContent(t, 2*secrets.DefaultChunkSize+3),
	}
	for name, content := range contents {
		if _, err := v.AddFile(ctx, name, bytes.NewReader(content)); err != nil {
			t.Fatalf("Failed to add %s: %v", name, err)
		}
	}

	_, err = v.Rotate(ctx, RotateOptions{Password: testPassword, Token: token})
	if !errors.Is(err, kerrors.ErrInvariantViolation) {
		t.Fatalf("Expected ErrInvariantViolation from interrupted commit, got %v", err)
	}
	if journal, _ := bolt.LoadJournal(ctx); journal == nil || journal.Phase != store.PhaseCommitting {
		t.Fatalf("Expected committing journal, got %+v", journal)
	}
	if err := v.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	// Reopen: the journal is rolled forward without any key material.
	env := &testEnv{dir: dir, dbPath: dbPath, opts: opts, ctx: ctx}
	env.open(t)
	defer env.vault.Close()

	if journal, _ := env.store.LoadJournal(ctx); journal != nil {
		t.Fatal("Journal should be gone after roll-forward")
	}
	if env.vault.Broken() != nil {
		t.Fatalf("Vault should be consistent after roll-forward: %v", env.vault.Broken())
	}
	if env.record(t).Generation != 2 {
		t.Errorf("Expected generation 2, got %d", env.record(t).Generation)
	}

	if err := env.vault.UnlockWithPassword(ctx, testPassword); err != nil {
		t.Fatalf("Failed to unlock after roll-forward: %v", err)
	}
	files, _ := env.vault.ListFiles(ctx)
	for _, f := range files {
		if f.Generation != 2 {
			t.Errorf("%s: expected generation 2, got %d", f.Name, f.Generation)
		}
		if got := env.extract(t, f.ID); !bytes.Equal(got, contents[f.Name]) {
			t.Errorf("%s: content mismatch after roll-forward", f.Name)
		}
	}

	entries, _ := os.ReadDir(opts.StorageDir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), rotatingSuffix) {
			t.Errorf("Staged file left behind: %s", e.Name())
		}
	}
}

func TestRotate_RefusesWhileJournalPending(t *testing.T) {
	env := newSetupEnv(t)
	if err := env.store.SaveJournal(env.ctx, &store.RotationJournal{ID: "pending", Phase: store.PhaseStaging, NewRecord: env.record(t)}); err != nil {
		t.Fatalf("Failed to save journal: %v", err)
	}

	if _, err := env.vault.Rotate(env.ctx, RotateOptions{Password: testPassword, Token: env.token}); !errors.Is(err, kerrors.ErrRotationAborted) {
		t.Errorf("Expected ErrRotationAborted, got %v", err)
	}
}
