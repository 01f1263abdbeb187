package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrNoSigner = errors.New("keys: no signer provided")

// KeyStore keeps hex-encoded seeds on the local filesystem.
type KeyStore struct {
	Directory string
}

// KeyEntry describes one identity and the roles derived from it.
type KeyEntry struct {
	Name      string   `json:"name"`
	IssuerKey string   `json:"issuer_key"`
	Roles     []string `json:"roles,omitempty"`
}

func DefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".pfb", "keys"), nil
}

// Open returns a KeyStore rooted at directory, or at DefaultDirectory when
// directory is empty. Nothing is created until a key is written.
func Open(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) rootPath(name string) string {
	return filepath.Join(ks.Directory, name, "root.key")
}

func (ks *KeyStore) rolePath(name, role string) string {
	return filepath.Join(ks.Directory, name, "roles", role+".key")
}

func checkToken(kind, s string) error {
	if s == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	for _, c := range s {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in %s", c, kind)
	}
	return nil
}

func CheckKeyName(name string) error { return checkToken("key name", name) }

func CheckRole(role string) error { return checkToken("role", role) }

func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimPrefix(strings.TrimSpace(seedHex), "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

// NewSeed returns a fresh random seed.
func NewSeed() ([]byte, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	return seed, nil
}

func writeSeed(path string, seed []byte, overwrite bool) error {
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", ed25519.SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return f.Close()
}

func readSeed(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(data))
}

// InitRoot stores seed as the root key of name. A nil seed generates one.
func (ks *KeyStore) InitRoot(name string, seed []byte, overwrite bool) (issuerKey, path string, err error) {
	if err := CheckKeyName(name); err != nil {
		return "", "", err
	}
	if seed == nil {
		if seed, err = NewSeed(); err != nil {
			return "", "", err
		}
	}
	path = ks.rootPath(name)
	if err := writeSeed(path, seed, overwrite); err != nil {
		return "", "", err
	}
	return GenerateIssuerKeyFromSeed(seed), path, nil
}

// DeriveRole derives and stores the role seed of name.
func (ks *KeyStore) DeriveRole(name, role string, overwrite bool) (issuerKey, path string, err error) {
	if err := CheckKeyName(name); err != nil {
		return "", "", err
	}
	if err := CheckRole(role); err != nil {
		return "", "", err
	}
	root, err := readSeed(ks.rootPath(name))
	if err != nil {
		return "", "", err
	}
	seed, err := DeriveRoleSeed(root, role)
	if err != nil {
		return "", "", err
	}
	path = ks.rolePath(name, role)
	if err := writeSeed(path, seed, overwrite); err != nil {
		return "", "", err
	}
	return GenerateIssuerKeyFromSeed(seed), path, nil
}

// Seed loads the root seed of name, or the role seed when role is set.
func (ks *KeyStore) Seed(name, role string) ([]byte, error) {
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}
	if role == "" {
		return readSeed(ks.rootPath(name))
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}
	return readSeed(ks.rolePath(name, role))
}

func (ks *KeyStore) Export(name, role string) (string, error) {
	seed, err := ks.Seed(name, role)
	if err != nil {
		return "", err
	}
	return GenerateIssuerKeyFromSeed(seed), nil
}

// LoadSeed resolves a seed from, in order, a hex string, a key file, or a
// named identity in the store.
func (ks *KeyStore) LoadSeed(seedHex, name, role, keyFile string) ([]byte, error) {
	switch {
	case seedHex != "":
		return ParseSeedHex(seedHex)
	case keyFile != "":
		return readSeed(keyFile)
	case name != "":
		return ks.Seed(name, role)
	}
	return nil, ErrNoSigner
}

func (ks *KeyStore) List() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []KeyEntry
	for _, name := range names {
		root, err := readSeed(ks.rootPath(name))
		if err != nil {
			continue
		}
		entry := KeyEntry{Name: name, IssuerKey: GenerateIssuerKeyFromSeed(root)}
		roleEntries, rerr := os.ReadDir(filepath.Join(ks.Directory, name, "roles"))
		if rerr == nil {
			for _, re := range roleEntries {
				if !re.IsDir() && strings.HasSuffix(re.Name(), ".key") {
					entry.Roles = append(entry.Roles, strings.TrimSuffix(re.Name(), ".key"))
				}
			}
			sort.Strings(entry.Roles)
		}
		out = append(out, entry)
	}
	return out, nil
}
