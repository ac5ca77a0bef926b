package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/fsmtask/pkg/definition"
	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/aretw0/fsmtask/pkg/ports"
)

// EnvelopeField holds the ciphertext inside a stored object.
const EnvelopeField = "__encrypted__"

// ErrMissingEnvelope is returned when a stored object carries no ciphertext.
var ErrMissingEnvelope = errors.New("object is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte

	// Visible lists the fields copied in clear next to the envelope.
	// Only these fields can be searched. Defaults to IDField and StateField.
	Visible []string

	// IDField names the object identity. Defaults to "id".
	IDField string

	// StateField names the field holding the machine state. Defaults to "status"; set it to the
	// definition's ObjectStateFieldName when the schema uses another field.
	StateField string
}

type encryptionMiddleware struct {
	next   ports.TaskStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts objects with AES-GCM.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	if config.IDField == "" {
		config.IDField = domain.DefaultIDField
	}
	if config.StateField == "" {
		config.StateField = definition.DefaultObjectStateFieldName
	}
	if len(config.Visible) == 0 {
		config.Visible = []string{config.IDField, config.StateField}
	}
	return func(next ports.TaskStore) ports.TaskStore {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) Update(ctx context.Context, obj domain.Object) (domain.UpdateResult, error) {
	plainText, err := json.Marshal(obj)
	if err != nil {
		return domain.UpdateResult{}, fmt.Errorf("failed to marshal object: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return domain.UpdateResult{}, fmt.Errorf("failed to encrypt object: %w", err)
	}

	envelope := domain.Object{EnvelopeField: base64.StdEncoding.EncodeToString(ciphertext)}
	for _, f := range m.config.Visible {
		if v, ok := obj[f]; ok {
			envelope[f] = v
		}
	}

	res, err := m.next.Update(ctx, envelope)
	if err != nil {
		return res, err
	}
	opened, err := m.open(res.Object)
	if err != nil {
		return domain.UpdateResult{}, err
	}
	return domain.UpdateResult{Object: opened}, nil
}

func (m *encryptionMiddleware) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Object, error) {
	found, err := m.next.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Object, 0, len(found))
	for _, envelope := range found {
		obj, err := m.open(envelope)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// open fails on plain objects instead of passing them through.
func (m *encryptionMiddleware) open(envelope domain.Object) (domain.Object, error) {
	encoded, ok := envelope[EnvelopeField].(string)
	if !ok {
		return nil, ErrMissingEnvelope
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt object: %w", err)
	}

	var obj domain.Object
	if err := json.Unmarshal(plainText, &obj); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted object: %w", err)
	}
	return obj, nil
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
