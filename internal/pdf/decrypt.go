package pdf

import (
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// IsEncrypted reports whether a PDF requires a password to open.
func IsEncrypted(filename string) (bool, error) {
	if _, err := api.PageCountFile(filename); err != nil {
		if isPasswordError(err) {
			return true, nil
		}
		return false, fmt.Errorf("check encryption of %s: %w", filename, err)
	}
	return false, nil
}

// Decrypt writes a decrypted copy of a password-protected PDF to a
// temporary file and returns its path. The caller removes the file
// when done. An unencrypted input is returned unchanged.
func Decrypt(filename, userPW, ownerPW string) (string, error) {
	encrypted, err := IsEncrypted(filename)
	if err != nil {
		return "", err
	}
	if !encrypted {
		return filename, nil
	}

	conf := model.NewDefaultConfiguration()
	conf.UserPW = userPW
	conf.OwnerPW = ownerPW

	tmp, err := os.CreateTemp("", "quill-decrypted-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	_ = tmp.Close()

	if err := api.DecryptFile(filename, tmp.Name(), conf); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("decrypt %s: %w", filename, err)
	}
	return tmp.Name(), nil
}

// isPasswordError matches pdfcpu errors caused by missing or wrong
// credentials.
func isPasswordError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, keyword := range []string{"password", "encrypted", "decrypt"} {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}
