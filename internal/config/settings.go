package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"

	"github.com/veranemoloko/clip-downloader/internal/domain"
	"github.com/veranemoloko/clip-downloader/internal/naming"
	"github.com/veranemoloko/clip-downloader/internal/storage"
)

// Owner is the default account used when a favorite download names none.
type Owner struct {
	URL    string `yaml:"url" json:"url"`
	SecUID string `yaml:"sec_uid" json:"sec_uid"`
}

type PlatformSettings struct {
	Cookie string `yaml:"cookie" json:"cookie"`
	Proxy  string `yaml:"proxy" json:"proxy"`
	Owner  Owner  `yaml:"owner_url" json:"owner_url"`
}

// Settings are the user-editable options persisted in the settings file.
type Settings struct {
	Douyin     PlatformSettings `yaml:"douyin" json:"douyin"`
	TikTok     PlatformSettings `yaml:"tiktok" json:"tiktok"`
	NameFormat string           `yaml:"name_format" json:"name_format"`
	Split      string           `yaml:"split" json:"split"`
	NameLength int              `yaml:"name_length" json:"name_length"`
	DateFormat string           `yaml:"date_format" json:"date_format"`
	FolderMode string           `yaml:"folder_mode" json:"folder_mode"`
}

func DefaultSettings() Settings {
	return Settings{
		NameFormat: naming.DefaultFormat,
		Split:      naming.DefaultSeparator,
		NameLength: naming.DefaultMaxLength,
		DateFormat: naming.DefaultDateLayout,
		FolderMode: string(storage.FolderShared),
	}
}

// For returns the settings of one platform.
func (s Settings) For(p domain.Platform) PlatformSettings {
	if p == domain.PlatformTikTok {
		return s.TikTok
	}
	return s.Douyin
}

func (s Settings) Validate() error {
	if _, err := storage.ParseFolderMode(s.FolderMode); err != nil {
		return err
	}
	if s.NameLength < 0 {
		return fmt.Errorf("name_length cannot be negative: %d", s.NameLength)
	}
	return nil
}

// Resolver builds the name resolver described by the settings.
func (s Settings) Resolver() *naming.Resolver {
	return naming.New(s.NameFormat, s.Split, s.NameLength, s.DateFormat)
}

func (s Settings) Folder() storage.FolderMode {
	mode, err := storage.ParseFolderMode(s.FolderMode)
	if err != nil {
		return storage.FolderShared
	}
	return mode
}

// withDefaults fills unset fields.
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.NameFormat == "" {
		s.NameFormat = d.NameFormat
	}
	if s.Split == "" {
		s.Split = d.Split
	}
	if s.NameLength == 0 {
		s.NameLength = d.NameLength
	}
	if s.DateFormat == "" {
		s.DateFormat = d.DateFormat
	}
	if s.FolderMode == "" {
		s.FolderMode = d.FolderMode
	}
	return s
}

// LoadSettings reads the settings file. A missing file yields the defaults.
func LoadSettings(fsys afero.Fs, path string) (Settings, error) {
	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", filepath.Base(path), err)
	}
	s = s.withDefaults()
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// SaveSettings writes the settings file through a temp file and rename.
func SaveSettings(fsys afero.Fs, path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return storage.NewFileStorage(fsys, storage.PolicyExists).WriteFile(path, data)
}
