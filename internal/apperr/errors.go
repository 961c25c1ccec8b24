package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrKeyGeneration = errors.New("key generation failed")
	ErrTranscode     = errors.New("transcode failed")
	ErrFilesystem    = errors.New("filesystem error")
)

// KeyGenerationError reports a failed key-pair generation. It is fatal to
// key setup only; the pipeline keeps running without a key.
type KeyGenerationError struct {
	Path string
	Err  error
}

func (e *KeyGenerationError) Error() string {
	return fmt.Sprintf("generate key %s: %v", e.Path, e.Err)
}

func (e *KeyGenerationError) Unwrap() []error { return []error{ErrKeyGeneration, e.Err} }

// TranscodeError reports a failed encrypt or decrypt of a single file. The
// source file is left in place and retried on the next tick.
type TranscodeError struct {
	Op   string
	Path string
	Err  error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TranscodeError) Unwrap() []error { return []error{ErrTranscode, e.Err} }

// FilesystemError reports a failed move, removal or listing.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() []error { return []error{ErrFilesystem, e.Err} }
