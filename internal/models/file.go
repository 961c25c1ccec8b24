// Package models defines the domain types for agevault.
package models

import (
	"path/filepath"
	"time"
)

// Stage is the lifecycle stage of a file. The directory a file lives in is
// its stage; there is no other record.
type Stage string

const (
	StageLocal        Stage = "local"
	StageEncryptQueue Stage = "encrypt"
	StageVault        Stage = "vault"
	StageDecryptQueue Stage = "decrypt"
)

// Stages lists all stages in pipeline order.
var Stages = []Stage{StageLocal, StageEncryptQueue, StageVault, StageDecryptQueue}

// Layout holds the absolute paths of the four pipeline folders and the key file.
type Layout struct {
	Local   string `json:"local"`
	Encrypt string `json:"encrypt"`
	Vault   string `json:"vault"`
	Decrypt string `json:"decrypt"`
	KeyFile string `json:"key_file"`
}

// Dirs returns the four folder paths in pipeline order.
func (l Layout) Dirs() []string {
	return []string{l.Local, l.Encrypt, l.Vault, l.Decrypt}
}

// Dir returns the folder backing stage s, or "" for an unknown stage.
func (l Layout) Dir(s Stage) string {
	switch s {
	case StageLocal:
		return l.Local
	case StageEncryptQueue:
		return l.Encrypt
	case StageVault:
		return l.Vault
	case StageDecryptQueue:
		return l.Decrypt
	}
	return ""
}

// StageOf returns the stage whose folder directly contains path.
func (l Layout) StageOf(path string) (Stage, bool) {
	dir := filepath.Clean(filepath.Dir(path))
	for _, s := range Stages {
		if filepath.Clean(l.Dir(s)) == dir {
			return s, true
		}
	}
	return "", false
}

// StagedFile is a regular file found in one of the pipeline folders.
type StagedFile struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Op names a transcode operation.
type Op string

const (
	OpEncrypt Op = "encrypt"
	OpDecrypt Op = "decrypt"
)

// Outcome statuses.
const (
	StatusOK        = "ok"
	StatusRelocated = "relocated"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Outcome is the result of processing one file during a sweep.
type Outcome struct {
	TickID   string    `json:"tick_id"`
	Op       Op        `json:"op"`
	Source   string    `json:"source"`
	Output   string    `json:"output,omitempty"`
	Status   string    `json:"status"`
	Err      error     `json:"-"`
	Size     int64     `json:"size"`
	Checksum string    `json:"checksum,omitempty"`
	At       time.Time `json:"at"`
}

// Error returns the outcome's error text, or "" on success.
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
