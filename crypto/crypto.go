package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/goccy/go-json"
	"github.com/spf13/viper"

	"github.com/streamhouse/tap-shopify/constants"
)

var (
	kmsClient *kms.Client
	localKey  []byte
	useKMS    bool
	once      sync.Once
)

type cryptoObj struct {
	EncryptedData string `json:"encrypted_data"`
}

// InitEncryption configures the decryption backend from the encryption key:
// a KMS key ARN selects AWS KMS, anything else derives a local AES-GCM key
func InitEncryption() error {
	key := viper.GetString(constants.EncryptionKey)
	var initErr error

	once.Do(func() {
		if strings.HasPrefix(key, "arn:aws:kms:") {
			cfg, err := config.LoadDefaultConfig(context.Background())
			if err != nil {
				initErr = fmt.Errorf("failed to load AWS config: %s", err)
				return
			}
			kmsClient = kms.NewFromConfig(cfg)
			useKMS = true
		} else {
			hash := sha256.Sum256([]byte(key))
			localKey = hash[:]
			useKMS = false
		}
	})

	return initErr
}

func Decrypt(cipherData []byte) (string, error) {
	if err := InitEncryption(); err != nil {
		return "", err
	}

	if useKMS {
		out, err := kmsClient.Decrypt(context.Background(), &kms.DecryptInput{
			CiphertextBlob: cipherData,
		})
		if err != nil {
			return "", fmt.Errorf("kms decryption failed: %s", err)
		}
		return string(out.Plaintext), nil
	}

	block, err := aes.NewCipher(localKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(cipherData) < nonceSize {
		return "", fmt.Errorf("cipher text shorter than nonce")
	}

	plain, err := gcm.Open(nil, cipherData[:nonceSize], cipherData[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("aes-gcm decryption failed: %s", err)
	}

	return string(plain), nil
}

// DecryptJSON resolves encrypted_data wrappers inside a config document.
// Without an encryption key the document passes through unchanged.
func DecryptJSON(data []byte) ([]byte, error) {
	if viper.GetString(constants.EncryptionKey) == "" {
		return data, nil
	}

	var obj cryptoObj
	if err := json.Unmarshal(data, &obj); err != nil || obj.EncryptedData == "" {
		// not an encrypted envelope
		return data, nil
	}

	raw, err := base64.StdEncoding.DecodeString(obj.EncryptedData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encrypted config: %s", err)
	}

	plain, err := Decrypt(raw)
	if err != nil {
		return nil, err
	}

	return []byte(plain), nil
}
