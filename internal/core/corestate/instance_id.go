package corestate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// GetInstanceID reads the identifier stored under metaDir (the "instance" directory,
// not the data file inside it).
func GetInstanceID(metaDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(metaDir, "data"))
	if err != nil {
		return "", err
	}
	id, err := uuid.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return "", errors.New("stored instance id is not a uuid")
	}
	return id.String(), nil
}

// SetInstanceID replaces the identifier directory at metaDir with a freshly generated id.
func SetInstanceID(metaDir string) error {
	if filepath.Base(metaDir) != "instance" {
		return errors.New("invalid meta/instance path")
	}
	if err := os.RemoveAll(metaDir); err != nil {
		return err
	}
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return err
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(metaDir, "data"), []byte(id.String()+"\n"), 0644); err != nil {
		return err
	}
	readme := `This directory holds the identifier of this cortexlink installation.
It labels metrics, recordings and the status endpoint. Deleting it makes the next run
generate a new one.`
	return os.WriteFile(filepath.Join(metaDir, "README.txt"), []byte(readme), 0644)
}

// LoadOrCreateInstanceID returns the stored identifier, generating it on first use.
func LoadOrCreateInstanceID(metaDir string) (string, error) {
	id, err := GetInstanceID(metaDir)
	if err == nil {
		return id, nil
	}
	if err := SetInstanceID(metaDir); err != nil {
		return "", err
	}
	return GetInstanceID(metaDir)
}
