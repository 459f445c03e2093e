package password

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"

	// Upper bounds apply to headers read back from disk before any
	// authentication, so a damaged file cannot demand an unbounded derivation.
	maxMemoryKB    uint32 = 4 * 64 * 1024
	maxTimeCost    uint32 = 16
	maxParallelism uint8  = 16
	maxKeyLength   uint32 = 64
)

// ErrEmptyPassphrase is returned when a key is requested for an empty passphrase.
var ErrEmptyPassphrase = errors.New("passphrase required")

// Config defines a public type used by keynotify APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the parameters new sealed files are written with.
// KeyLength matches an XChaCha20-Poly1305 key.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        1,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// KDF derives sealing keys from a passphrase with argon2id.
type KDF struct {
	config Config
}

// Params are the argon2id inputs recorded next to a sealed value.
type Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	Salt        []byte
	KeyLength   uint32
}

// NewKDF validates cfg and returns a deriver.
func NewKDF(cfg Config) (*KDF, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &KDF{config: cfg}, nil
}

// Derive draws a fresh salt and returns the key together with the encoded
// parameters needed to derive it again:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>,l=<keylen>$<salt>
//
// The passphrase is used exactly as given, without Unicode normalization.
func (k *KDF) Derive(passphrase []byte) (key []byte, encoded string, err error) {
	if len(passphrase) == 0 {
		return nil, "", ErrEmptyPassphrase
	}

	salt := make([]byte, k.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, "", err
	}

	p := Params{
		Memory:      k.config.Memory,
		Time:        k.config.Time,
		Parallelism: k.config.Parallelism,
		Salt:        salt,
		KeyLength:   k.config.KeyLength,
	}
	return p.key(passphrase), p.Encode(), nil
}

// Rederive parses encoded and derives the same key Derive produced for it.
func (k *KDF) Rederive(passphrase []byte, encoded string) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}
	p, err := ParseParams(encoded)
	if err != nil {
		return nil, err
	}
	return p.key(passphrase), nil
}

// NeedsUpgrade reports whether encoded was produced with weaker parameters
// than the deriver's, so the value should be sealed again.
func (k *KDF) NeedsUpgrade(encoded string) (bool, error) {
	p, err := ParseParams(encoded)
	if err != nil {
		return false, err
	}

	if k.config.Memory > p.Memory {
		return true, nil
	}
	if k.config.Time > p.Time {
		return true, nil
	}
	if k.config.Parallelism > p.Parallelism {
		return true, nil
	}
	if k.config.KeyLength != p.KeyLength {
		return true, nil
	}
	return false, nil
}

func (p Params) key(passphrase []byte) []byte {
	return argon2.IDKey(passphrase, p.Salt, p.Time, p.Memory, p.Parallelism, p.KeyLength)
}

// Encode renders p in the PHC-style form Derive returns.
func (p Params) Encode() string {
	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d,l=%d$%s",
		algorithmID,
		argon2.Version,
		p.Memory,
		p.Time,
		p.Parallelism,
		p.KeyLength,
		base64.RawStdEncoding.EncodeToString(p.Salt),
	)
}

// ParseParams decodes the output of Params.Encode.
func ParseParams(encoded string) (Params, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "" {
		return Params{}, errors.New("invalid parameter format")
	}
	if parts[1] != algorithmID {
		return Params{}, errors.New("unsupported algorithm")
	}

	versionPart := parts[2]
	if !strings.HasPrefix(versionPart, "v=") {
		return Params{}, errors.New("missing argon2 version")
	}
	version, err := strconv.Atoi(strings.TrimPrefix(versionPart, "v="))
	if err != nil {
		return Params{}, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return Params{}, errors.New("unsupported argon2 version")
	}

	p, err := parseCosts(parts[3])
	if err != nil {
		return Params{}, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Params{}, errors.New("invalid salt encoding")
	}
	if len(salt) < int(minSaltLength) {
		return Params{}, errors.New("invalid salt length")
	}
	p.Salt = salt
	return p, nil
}

func parseCosts(part string) (Params, error) {
	pairs := strings.Split(part, ",")
	if len(pairs) != 4 {
		return Params{}, errors.New("invalid parameter format")
	}

	var (
		seen = map[string]bool{}
		p    Params
	)
	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return Params{}, errors.New("invalid parameter entry")
		}
		if seen[kv[0]] {
			return Params{}, errors.New("duplicate parameter")
		}
		seen[kv[0]] = true

		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < uint64(minMemoryKB) || v > uint64(maxMemoryKB) {
				return Params{}, errors.New("invalid memory parameter")
			}
			p.Memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < uint64(minTimeCost) || v > uint64(maxTimeCost) {
				return Params{}, errors.New("invalid time parameter")
			}
			p.Time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil || v < uint64(minParallelism) || v > uint64(maxParallelism) {
				return Params{}, errors.New("invalid parallelism parameter")
			}
			p.Parallelism = uint8(v)
		case "l":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < uint64(minKeyLength) || v > uint64(maxKeyLength) {
				return Params{}, errors.New("invalid key length parameter")
			}
			p.KeyLength = uint32(v)
		default:
			return Params{}, errors.New("unsupported parameter")
		}
	}
	return p, nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB || cfg.Memory > maxMemoryKB {
		return fmt.Errorf("kdf memory must be within %d..%d KB", minMemoryKB, maxMemoryKB)
	}
	if cfg.Time < minTimeCost || cfg.Time > maxTimeCost {
		return fmt.Errorf("kdf time must be within %d..%d", minTimeCost, maxTimeCost)
	}
	if cfg.Parallelism < minParallelism || cfg.Parallelism > maxParallelism {
		return fmt.Errorf("kdf parallelism must be within %d..%d", minParallelism, maxParallelism)
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("kdf salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength || cfg.KeyLength > maxKeyLength {
		return fmt.Errorf("kdf key length must be within %d..%d", minKeyLength, maxKeyLength)
	}
	return nil
}
