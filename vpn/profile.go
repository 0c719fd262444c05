// Package vpn provides VPN connection management functionality.
// This file contains the Profile and ProfileManager types that remember
// the dial settings of phonebook entries.
package vpn

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BojanKomazec/IpSec/common"
)

// ErrProfileNotFound is returned when no profile is stored for an entry.
var ErrProfileNotFound = errors.New("profile not found")

// ProfilesFileName is the file the profiles are persisted in.
const ProfilesFileName = "profiles.yaml"

// Profile holds what a phonebook entry does not: the entry is written
// with a placeholder server, so the real address and the username are
// remembered here.
type Profile struct {
	// EntryName is the phonebook entry the profile belongs to.
	EntryName string `yaml:"entry_name"`
	// Server is the VPN server host name or IP address.
	Server string `yaml:"server"`
	// Username is the dial user name.
	Username string `yaml:"username,omitempty"`
	// SavePassword indicates whether the password is kept in the keyring.
	SavePassword bool `yaml:"save_password"`
	// AutoConnect indicates whether to connect automatically on startup.
	AutoConnect bool `yaml:"auto_connect"`
	// Created is the timestamp when the profile was created.
	Created time.Time `yaml:"created"`
	// LastUsed is the timestamp when the profile was last used.
	LastUsed time.Time `yaml:"last_used,omitempty"`
}

// Validate checks if the profile has all required fields.
func (p *Profile) Validate() error {
	if p.EntryName == "" {
		return fmt.Errorf("%w: profile entry name is required", common.ErrInvalidArgument)
	}
	if p.Server == "" {
		return fmt.Errorf("%w: profile server is required", common.ErrInvalidArgument)
	}
	if host, _, err := net.SplitHostPort(p.Server); err == nil && host != "" {
		return fmt.Errorf("%w: server must not carry a port", common.ErrInvalidArgument)
	}
	return nil
}

// Endpoint returns the dial endpoint of the profile.
func (p *Profile) Endpoint() (StaticEndpoint, error) {
	return NewEndpoint(p.Server)
}

// ProfileManager persists profiles as YAML.
type ProfileManager struct {
	mu         sync.RWMutex
	profiles   []*Profile
	configFile string
}

// NewProfileManager loads the profiles stored in dir, creating the
// directory if needed.
func NewProfileManager(dir string) (*ProfileManager, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	pm := &ProfileManager{
		profiles:   make([]*Profile, 0),
		configFile: filepath.Join(dir, ProfilesFileName),
	}
	if err := pm.Load(); err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	return pm, nil
}

// Load loads profiles from the configuration file.
// Returns nil if the file doesn't exist (no profiles yet).
func (pm *ProfileManager) Load() error {
	data, err := os.ReadFile(pm.configFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read profiles file: %w", err)
	}

	var profiles []*Profile
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return fmt.Errorf("failed to parse profiles file: %w", err)
	}

	pm.mu.Lock()
	pm.profiles = profiles
	pm.mu.Unlock()
	return nil
}

func (pm *ProfileManager) saveLocked() error {
	data, err := yaml.Marshal(&pm.profiles)
	if err != nil {
		return fmt.Errorf("failed to serialize profiles: %w", err)
	}
	if err := os.WriteFile(pm.configFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write profiles file: %w", err)
	}
	return nil
}

// Put stores p, replacing the profile of the same entry.
func (pm *ProfileManager) Put(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	cp := *p
	for i, existing := range pm.profiles {
		if existing.EntryName == p.EntryName {
			if cp.Created.IsZero() {
				cp.Created = existing.Created
			}
			pm.profiles[i] = &cp
			return pm.saveLocked()
		}
	}
	if cp.Created.IsZero() {
		cp.Created = time.Now()
	}
	pm.profiles = append(pm.profiles, &cp)
	return pm.saveLocked()
}

// Remove deletes the profile of entryName.
func (pm *ProfileManager) Remove(entryName string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for i, p := range pm.profiles {
		if p.EntryName == entryName {
			pm.profiles = append(pm.profiles[:i], pm.profiles[i+1:]...)
			return pm.saveLocked()
		}
	}
	return ErrProfileNotFound
}

// Get returns a copy of the profile of entryName.
func (pm *ProfileManager) Get(entryName string) (*Profile, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for _, p := range pm.profiles {
		if p.EntryName == entryName {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrProfileNotFound
}

// List returns copies of all profiles, most recently used first.
func (pm *ProfileManager) List() []*Profile {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	out := make([]*Profile, 0, len(pm.profiles))
	for _, p := range pm.profiles {
		cp := *p
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastUsed.After(out[j].LastUsed)
	})
	return out
}

// MarkUsed updates the LastUsed timestamp for a profile.
func (pm *ProfileManager) MarkUsed(entryName string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for _, p := range pm.profiles {
		if p.EntryName == entryName {
			p.LastUsed = time.Now()
			return pm.saveLocked()
		}
	}
	return ErrProfileNotFound
}
