package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const pbkdf2Iterations = 600_000

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

func SHA256Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func EncryptAES(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func DecryptAES(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ct := ciphertext[:nonceSize], ciphertext[nonceSize:]
	pt, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return pt, nil
}

// DeriveKey stretches a vault passphrase into an AES key.
func DeriveKey(password string, salt []byte, keyLength int) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keyLength, sha256.New)
}

func HMACSum(key, data []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(data)
	return m.Sum(nil)
}

func VerifyHMAC(key, data, expectedMAC []byte) bool {
	actual := HMACSum(key, data)
	return subtle.ConstantTimeCompare(actual, expectedMAC) == 1
}

// SignJWT mints a short-lived HS256 token for webhook payload signing.
func SignJWT(secret string, claims map[string]interface{}, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("signing secret must not be empty")
	}
	now := time.Now()
	mapClaims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	for k, v := range claims {
		mapClaims[k] = v
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func ValidateJWT(token, secret string) (bool, error) {
	if token == "" || secret == "" {
		return false, errors.New("token/secret must not be empty")
	}

	keyFn := func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}

	parsed, err := jwt.Parse(token, keyFn,
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return false, err
	}
	return parsed.Valid, nil
}

// MaskSensitiveData renders an identifier safe for logs and terminal output.
func MaskSensitiveData(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}

// RedactSecrets deep-copies a value with sensitive keys replaced, for safe
// structured logging of findings and configs.
func RedactSecrets(v interface{}) interface{} {
	suspicious := map[string]struct{}{
		"password": {}, "secret": {}, "token": {}, "api_key": {}, "apikey": {},
		"authorization": {}, "ssn": {}, "date_of_birth": {}, "dob": {},
		"signing_secret": {}, "matched_values": {},
	}
	return redactRecursive(v, suspicious)
}

func redactRecursive(v interface{}, keys map[string]struct{}) interface{} {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			if _, found := keys[strings.ToLower(k)]; found {
				out[k] = "[REDACTED]"
				continue
			}
			out[k] = redactRecursive(iter.Value().Interface(), keys)
		}
		return out

	case reflect.Struct:
		out := make(map[string]interface{}, rv.NumField())
		rt := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			f := rt.Field(i)
			if f.PkgPath != "" {
				continue
			}
			name := f.Name
			if jsonTag := f.Tag.Get("json"); jsonTag != "" && jsonTag != "-" {
				if tagName := strings.Split(jsonTag, ",")[0]; tagName != "" {
					name = tagName
				}
			}
			if _, found := keys[strings.ToLower(name)]; found {
				out[name] = "[REDACTED]"
				continue
			}
			out[name] = redactRecursive(rv.Field(i).Interface(), keys)
		}
		return out

	case reflect.Slice, reflect.Array:
		n := rv.Len()
		out := make([]interface{}, n)
		for i := 0; i < n; i++ {
			out[i] = redactRecursive(rv.Index(i).Interface(), keys)
		}
		return out

	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return redactRecursive(rv.Elem().Interface(), keys)

	default:
		return v
	}
}
