package vault

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veilscan/veilscan/pkg/models"
	"github.com/veilscan/veilscan/pkg/utils"
)

const (
	vaultFileName = "vault.json"
	saltLength    = 16
	keyLength     = 32
)

// Vault holds the scanned identities encrypted at rest. The whole profile set
// is sealed as one AES-GCM blob under a key derived from the passphrase; a
// bcrypt verifier lets us distinguish a wrong passphrase from a corrupt file.
type Vault struct {
	path   string
	logger *logrus.Logger

	mu       sync.RWMutex
	key      []byte
	profiles map[string]*models.Profile
	header   vaultHeader
	unlocked bool
}

type vaultHeader struct {
	Version   int       `json:"version"`
	Salt      string    `json:"salt"`
	Verifier  string    `json:"verifier"`
	UpdatedAt time.Time `json:"updated_at"`
}

type vaultFile struct {
	vaultHeader
	Payload string `json:"payload"`
}

var (
	ErrLocked           = fmt.Errorf("vault is locked")
	ErrWrongPassphrase  = fmt.Errorf("wrong vault passphrase")
	ErrProfileNotFound  = fmt.Errorf("profile not found")
	ErrVaultExists      = fmt.Errorf("vault already initialized")
	ErrVaultNotInitated = fmt.Errorf("vault not initialized")
)

func New(baseDir string, logger *logrus.Logger) (*Vault, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := utils.EnsureDir(baseDir); err != nil {
		return nil, fmt.Errorf("create vault directory: %w", err)
	}
	return &Vault{
		path:     filepath.Join(baseDir, vaultFileName),
		logger:   logger,
		profiles: make(map[string]*models.Profile),
	}, nil
}

func (v *Vault) Exists() bool {
	_, err := os.Stat(v.path)
	return err == nil
}

// Init creates a fresh empty vault sealed under the passphrase.
func (v *Vault) Init(passphrase string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.Exists() {
		return ErrVaultExists
	}
	if len(strings.TrimSpace(passphrase)) < 8 {
		return fmt.Errorf("vault passphrase must be at least 8 characters")
	}

	salt, err := utils.GenerateRandomBytes(saltLength)
	if err != nil {
		return err
	}
	verifier, err := utils.HashPassword(passphrase)
	if err != nil {
		return err
	}

	v.header = vaultHeader{
		Version:  1,
		Salt:     base64.StdEncoding.EncodeToString(salt),
		Verifier: verifier,
	}
	v.key = utils.DeriveKey(passphrase, salt, keyLength)
	v.profiles = make(map[string]*models.Profile)
	v.unlocked = true

	v.logger.Info("Initialized new identity vault")
	return v.persistLocked()
}

// Unlock verifies the passphrase, derives the key, and decrypts the profile
// set into memory.
func (v *Vault) Unlock(passphrase string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := os.ReadFile(v.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrVaultNotInitated
		}
		return fmt.Errorf("read vault: %w", err)
	}

	var file vaultFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse vault: %w", err)
	}

	if !utils.CheckPasswordHash(passphrase, file.Verifier) {
		return ErrWrongPassphrase
	}

	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil {
		return fmt.Errorf("decode vault salt: %w", err)
	}
	key := utils.DeriveKey(passphrase, salt, keyLength)

	ciphertext, err := base64.StdEncoding.DecodeString(file.Payload)
	if err != nil {
		return fmt.Errorf("decode vault payload: %w", err)
	}
	plaintext, err := utils.DecryptAES(key, ciphertext)
	if err != nil {
		return fmt.Errorf("decrypt vault: %w", err)
	}

	profiles := make(map[string]*models.Profile)
	if err := json.Unmarshal(plaintext, &profiles); err != nil {
		return fmt.Errorf("parse vault contents: %w", err)
	}

	v.header = file.vaultHeader
	v.key = key
	v.profiles = profiles
	v.unlocked = true
	return nil
}

// Lock drops the key and the decrypted profiles from memory.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.key {
		v.key[i] = 0
	}
	v.key = nil
	v.profiles = make(map[string]*models.Profile)
	v.unlocked = false
}

func (v *Vault) Unlocked() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.unlocked
}

// SaveProfile inserts or replaces a profile and reseals the vault.
func (v *Vault) SaveProfile(p *models.Profile) error {
	if p == nil {
		return fmt.Errorf("nil profile")
	}
	if err := p.Validate(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.unlocked {
		return ErrLocked
	}

	now := time.Now().UTC()
	if existing, ok := v.profiles[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	copied := *p
	v.profiles[p.ID] = &copied
	return v.persistLocked()
}

func (v *Vault) GetProfile(id string) (*models.Profile, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.unlocked {
		return nil, ErrLocked
	}

	p, ok := v.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	copied := *p
	return &copied, nil
}

func (v *Vault) DeleteProfile(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.unlocked {
		return ErrLocked
	}
	if _, ok := v.profiles[id]; !ok {
		return ErrProfileNotFound
	}
	delete(v.profiles, id)
	return v.persistLocked()
}

// ListProfiles returns the stored profiles sorted by display name.
func (v *Vault) ListProfiles() ([]*models.Profile, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.unlocked {
		return nil, ErrLocked
	}

	out := make([]*models.Profile, 0, len(v.profiles))
	for _, p := range v.profiles {
		copied := *p
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ChangePassphrase reseals the vault under a new key.
func (v *Vault) ChangePassphrase(oldPass, newPass string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.unlocked {
		return ErrLocked
	}
	if !utils.CheckPasswordHash(oldPass, v.header.Verifier) {
		return ErrWrongPassphrase
	}
	if len(strings.TrimSpace(newPass)) < 8 {
		return fmt.Errorf("vault passphrase must be at least 8 characters")
	}

	salt, err := utils.GenerateRandomBytes(saltLength)
	if err != nil {
		return err
	}
	verifier, err := utils.HashPassword(newPass)
	if err != nil {
		return err
	}

	v.header.Salt = base64.StdEncoding.EncodeToString(salt)
	v.header.Verifier = verifier
	v.key = utils.DeriveKey(newPass, salt, keyLength)

	v.logger.Info("Vault passphrase changed")
	return v.persistLocked()
}

func (v *Vault) persistLocked() error {
	plaintext, err := json.Marshal(v.profiles)
	if err != nil {
		return fmt.Errorf("encode vault contents: %w", err)
	}
	ciphertext, err := utils.EncryptAES(v.key, plaintext)
	if err != nil {
		return fmt.Errorf("encrypt vault: %w", err)
	}

	v.header.UpdatedAt = time.Now().UTC()
	file := vaultFile{
		vaultHeader: v.header,
		Payload:     base64.StdEncoding.EncodeToString(ciphertext),
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode vault file: %w", err)
	}

	tmp := v.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write vault: %w", err)
	}
	if err := os.Rename(tmp, v.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace vault: %w", err)
	}
	return nil
}
