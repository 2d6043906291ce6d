package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilscan/veilscan/pkg/models"
)

const testPassphrase = "orchard-velvet-92"

func newTestVault(t *testing.T) (*Vault, string) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	dir := t.TempDir()
	v, err := New(dir, logger)
	require.NoError(t, err)
	require.NoError(t, v.Init(testPassphrase))
	return v, dir
}

func sampleProfile() *models.Profile {
	return &models.Profile{
		ID:          "prof-1",
		DisplayName: "Personal",
		FullName:    "Jordan Reyes",
		Emails:      []string{"jordan@mail.com"},
		Usernames:   []string{"jreyes42"},
		SSN:         "123-45-6789",
	}
}

func TestInitAndReopen(t *testing.T) {
	v, dir := newTestVault(t)
	require.NoError(t, v.SaveProfile(sampleProfile()))
	v.Lock()
	assert.False(t, v.Unlocked())

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	reopened, err := New(dir, logger)
	require.NoError(t, err)
	require.NoError(t, reopened.Unlock(testPassphrase))

	p, err := reopened.GetProfile("prof-1")
	require.NoError(t, err)
	assert.Equal(t, "Jordan Reyes", p.FullName)
	assert.Equal(t, "123-45-6789", p.SSN)
}

func TestUnlockWrongPassphrase(t *testing.T) {
	_, dir := newTestVault(t)

	v2, err := New(dir, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, v2.Unlock("not-the-passphrase"), ErrWrongPassphrase)
}

func TestInitTwiceFails(t *testing.T) {
	v, _ := newTestVault(t)
	assert.ErrorIs(t, v.Init(testPassphrase), ErrVaultExists)
}

func TestInitRejectsShortPassphrase(t *testing.T) {
	v, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	assert.Error(t, v.Init("short"))
}

func TestProfilesOnDiskAreEncrypted(t *testing.T) {
	v, dir := newTestVault(t)
	require.NoError(t, v.SaveProfile(sampleProfile()))

	raw, err := os.ReadFile(filepath.Join(dir, vaultFileName))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Jordan Reyes")
	assert.NotContains(t, string(raw), "123-45-6789")
	assert.NotContains(t, string(raw), "jordan@mail.com")
}

func TestLockedVaultRefusesOperations(t *testing.T) {
	v, _ := newTestVault(t)
	v.Lock()

	assert.ErrorIs(t, v.SaveProfile(sampleProfile()), ErrLocked)
	_, err := v.GetProfile("prof-1")
	assert.ErrorIs(t, err, ErrLocked)
	_, err = v.ListProfiles()
	assert.ErrorIs(t, err, ErrLocked)
	assert.ErrorIs(t, v.DeleteProfile("prof-1"), ErrLocked)
}

func TestSaveProfilePreservesCreatedAt(t *testing.T) {
	v, _ := newTestVault(t)

	p := sampleProfile()
	require.NoError(t, v.SaveProfile(p))
	first, err := v.GetProfile("prof-1")
	require.NoError(t, err)

	update := sampleProfile()
	update.FullName = "Jordan A. Reyes"
	require.NoError(t, v.SaveProfile(update))

	second, err := v.GetProfile("prof-1")
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, "Jordan A. Reyes", second.FullName)
}

func TestDeleteProfile(t *testing.T) {
	v, _ := newTestVault(t)
	require.NoError(t, v.SaveProfile(sampleProfile()))
	require.NoError(t, v.DeleteProfile("prof-1"))

	_, err := v.GetProfile("prof-1")
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.ErrorIs(t, v.DeleteProfile("prof-1"), ErrProfileNotFound)
}

func TestListProfilesSorted(t *testing.T) {
	v, _ := newTestVault(t)
	for _, name := range []string{"Work", "Personal", "Family"} {
		p := sampleProfile()
		p.ID = "prof-" + name
		p.DisplayName = name
		require.NoError(t, v.SaveProfile(p))
	}

	list, err := v.ListProfiles()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Family", list[0].DisplayName)
	assert.Equal(t, "Personal", list[1].DisplayName)
	assert.Equal(t, "Work", list[2].DisplayName)
}

func TestChangePassphrase(t *testing.T) {
	v, dir := newTestVault(t)
	require.NoError(t, v.SaveProfile(sampleProfile()))

	assert.ErrorIs(t, v.ChangePassphrase("wrong", "new-passphrase-1"), ErrWrongPassphrase)
	require.NoError(t, v.ChangePassphrase(testPassphrase, "new-passphrase-1"))

	v2, err := New(dir, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, v2.Unlock(testPassphrase), ErrWrongPassphrase)
	require.NoError(t, v2.Unlock("new-passphrase-1"))

	p, err := v2.GetProfile("prof-1")
	require.NoError(t, err)
	assert.Equal(t, "Jordan Reyes", p.FullName)
}

func TestUnlockMissingVault(t *testing.T) {
	v, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, v.Unlock(testPassphrase), ErrVaultNotInitated)
}
