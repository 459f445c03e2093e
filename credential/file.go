package credential

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrEthical07/keynotify/password"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrSealedTokenInvalid is returned when a sealed token file cannot be opened
// with the configured passphrase.
var ErrSealedTokenInvalid = errors.New("sealed token invalid")

var sealedMagic = []byte("kn2")

const headerLenSize = 2

// FileBackend stores each key in its own file under dir with 0600
// permissions. When a passphrase is set, values are sealed with a key derived
// by argon2id and encrypted with XChaCha20-Poly1305.
type FileBackend struct {
	dir        string
	passphrase []byte
	kdfConfig  password.Config
	kdf        *password.KDF
}

// FileOption configures a [FileBackend].
type FileOption func(*FileBackend)

// WithPassphrase enables sealing of stored values.
func WithPassphrase(passphrase string) FileOption {
	return func(f *FileBackend) {
		if passphrase != "" {
			f.passphrase = []byte(passphrase)
		}
	}
}

// WithKDFConfig overrides the argon2id parameters new values are sealed with.
// KeyLength must be 32. Values sealed with weaker parameters stay as they are
// until the next Set or an explicit [FileBackend.Reseal].
func WithKDFConfig(cfg password.Config) FileOption {
	return func(f *FileBackend) {
		f.kdfConfig = cfg
	}
}

// NewFileBackend returns a backend rooted at dir. The directory is created on
// first write.
func NewFileBackend(dir string, opts ...FileOption) (*FileBackend, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("file backend directory required")
	}
	f := &FileBackend{dir: filepath.Clean(dir), kdfConfig: password.DefaultConfig()}
	for _, opt := range opts {
		opt(f)
	}
	if f.kdfConfig.KeyLength != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("file backend: kdf key length must be %d", chacha20poly1305.KeySize)
	}
	kdf, err := password.NewKDF(f.kdfConfig)
	if err != nil {
		return nil, fmt.Errorf("file backend: %w", err)
	}
	f.kdf = kdf
	return f, nil
}

// DefaultDir returns the per-user configuration directory for keynotify.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, "keynotify"), nil
}

// Dir returns the directory holding token files.
func (f *FileBackend) Dir() string {
	return f.dir
}

func (f *FileBackend) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid credential key %q", key)
	}
	return filepath.Join(f.dir, "."+key), nil
}

func (f *FileBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	p, err := f.path(key)
	if err != nil {
		return "", false, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if bytes.HasPrefix(data, sealedMagic) {
		plain, _, err := f.open(data)
		if err != nil {
			return "", false, err
		}
		return string(plain), true, nil
	}
	return strings.TrimSpace(string(data)), true, nil
}

// Reseal seals the value under key again when it was written with weaker KDF
// parameters than the backend's, or unsealed while a passphrase is set. It
// reports whether the file was rewritten.
func (f *FileBackend) Reseal(ctx context.Context, key string) (bool, error) {
	if len(f.passphrase) == 0 {
		return false, nil
	}
	p, err := f.path(key)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	plain := []byte(strings.TrimSpace(string(data)))
	if bytes.HasPrefix(data, sealedMagic) {
		var header string
		plain, header, err = f.open(data)
		if err != nil {
			return false, err
		}
		stale, err := f.kdf.NeedsUpgrade(header)
		if err != nil || !stale {
			return false, err
		}
	}
	if err := f.Set(ctx, key, string(plain)); err != nil {
		return false, err
	}
	return true, nil
}

func (f *FileBackend) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	data := []byte(value)
	if len(f.passphrase) > 0 {
		data, err = f.seal(data)
		if err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-"+key+"-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (f *FileBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// seal layout: magic | header length (uint16) | kdf header | nonce | ciphertext.
// The magic and header are bound as associated data.
func (f *FileBackend) seal(plain []byte) ([]byte, error) {
	key, header, err := f.kdf.Derive(f.passphrase)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	prefix := make([]byte, 0, len(sealedMagic)+headerLenSize+len(header))
	prefix = append(prefix, sealedMagic...)
	prefix = binary.BigEndian.AppendUint16(prefix, uint16(len(header)))
	prefix = append(prefix, header...)

	out := make([]byte, 0, len(prefix)+len(nonce)+len(plain)+aead.Overhead())
	out = append(out, prefix...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plain, prefix), nil
}

func (f *FileBackend) open(data []byte) ([]byte, string, error) {
	if len(f.passphrase) == 0 {
		return nil, "", fmt.Errorf("%w: passphrase required", ErrSealedTokenInvalid)
	}
	rest := data[len(sealedMagic):]
	if len(rest) < headerLenSize {
		return nil, "", ErrSealedTokenInvalid
	}
	n := int(binary.BigEndian.Uint16(rest))
	rest = rest[headerLenSize:]
	if len(rest) < n+chacha20poly1305.NonceSizeX {
		return nil, "", ErrSealedTokenInvalid
	}
	header := string(rest[:n])
	prefix := data[:len(sealedMagic)+headerLenSize+n]
	nonce := rest[n : n+chacha20poly1305.NonceSizeX]
	ciphertext := rest[n+chacha20poly1305.NonceSizeX:]

	key, err := f.kdf.Rederive(f.passphrase, header)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrSealedTokenInvalid, err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrSealedTokenInvalid, err)
	}
	plain, err := aead.Open(nil, nonce, ciphertext, prefix)
	if err != nil {
		return nil, "", ErrSealedTokenInvalid
	}
	return plain, header, nil
}
