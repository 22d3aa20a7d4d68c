package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/ini.v1"
)

// LoadCredentials reads the application keys from the INI file at path and applies the
// CL_CLIENT_ID, CL_CLIENT_SECRET, CL_LICENSE and CL_DEBIT overrides on top. LoadEnv must
// run first. A missing file is accepted when the environment supplies the keys.
func (c *Compositor) LoadCredentials(path string) error {
	creds := &Credentials{}

	f, err := ini.Load(path)
	switch {
	case err == nil:
		if err := f.Section(CredentialsSection).MapTo(creds); err != nil {
			return fmt.Errorf("error mapping credentials: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("error reading credentials: %w", err)
	}

	if c.Env != nil {
		if v := c.Env.ClientID; v != nil && *v != "" {
			creds.ClientID = *v
		}
		if v := c.Env.ClientSecret; v != nil && *v != "" {
			creds.ClientSecret = *v
		}
		if v := c.Env.License; v != nil && *v != "" {
			creds.License = *v
		}
		if v := c.Env.Debit; v != nil && *v >= 0 {
			creds.Debit = *v
		}
	}

	c.Credentials = creds
	return nil
}

// SaveCredentials writes creds to path in the format LoadCredentials reads, readable by
// the owner only.
func SaveCredentials(path string, creds *Credentials) error {
	f := ini.Empty()
	sec, err := f.NewSection(CredentialsSection)
	if err != nil {
		return err
	}
	if err := sec.ReflectFrom(creds); err != nil {
		return fmt.Errorf("error encoding credentials: %w", err)
	}
	if err := f.SaveTo(path); err != nil {
		return err
	}
	return os.Chmod(path, 0600)
}
