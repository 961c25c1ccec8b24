// Package transcoder encrypts and decrypts single files with an age-compatible tool.
package transcoder

import "context"

// Transcoder converts one file and returns the path of the result. The source
// is removed only after the output is in place; on error it is untouched.
type Transcoder interface {
	// Encrypt turns a plaintext file into <vault>/<name>.age.
	Encrypt(ctx context.Context, path string) (string, error)
	// Decrypt turns <name>.age into <local>/<name>.
	Decrypt(ctx context.Context, path string) (string, error)
}

// KeySource provides the key material an age invocation needs.
type KeySource interface {
	Recipient() (string, error)
	IdentityPath() string
}

// Suffix is appended to encrypted file names.
const Suffix = ".age"
