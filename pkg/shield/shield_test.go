package shield

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/asymmetric-research/scramjet/internal/slog"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	slog.Init()
	m.Run()
}

func writeBlocklist(t *testing.T, dir string, ids ...solana.PublicKey) string {
	t.Helper()
	path := filepath.Join(dir, "blocklist.txt")
	content := "# comment\n\n"
	for _, id := range ids {
		content += id.String() + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestShield_Refresh_LoadsLocalFile(t *testing.T) {
	blocked := solana.NewWallet().PublicKey()
	allowed := solana.NewWallet().PublicKey()
	path := writeBlocklist(t, t.TempDir(), blocked)

	s := New(path, "", time.Minute)
	require.NoError(t, s.Refresh(context.Background()))

	assert.True(t, s.IsBlocked(blocked))
	assert.False(t, s.IsBlocked(allowed))
}

func TestShield_Refresh_SkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blocklist.txt")
	good := solana.NewWallet().PublicKey()
	require.NoError(t, os.WriteFile(path, []byte("not-a-valid-pubkey\n"+good.String()+"\n"), 0o644))

	s := New(path, "", time.Minute)
	require.NoError(t, s.Refresh(context.Background()))
	assert.True(t, s.IsBlocked(good))
}

func TestShield_Refresh_FailedFetchKeepsPriorSnapshot(t *testing.T) {
	dir := t.TempDir()
	blocked := solana.NewWallet().PublicKey()
	path := writeBlocklist(t, dir, blocked)

	s := New(path, "", time.Minute)
	require.NoError(t, s.Refresh(context.Background()))
	assert.True(t, s.IsBlocked(blocked))

	require.NoError(t, os.Remove(path))
	require.NoError(t, s.Refresh(context.Background()))
	assert.True(t, s.IsBlocked(blocked), "a failed reload must keep serving the prior snapshot")
}

func TestShield_Run_ReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := writeBlocklist(t, dir)

	s := New(path, "", time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	newlyBlocked := solana.NewWallet().PublicKey()
	require.Eventually(t, func() bool { return true }, 50*time.Millisecond, 10*time.Millisecond) // let Run install the watch
	writeBlocklist(t, dir, newlyBlocked)

	require.Eventually(t, func() bool {
		return s.IsBlocked(newlyBlocked)
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
