package storage

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/veranemoloko/clip-downloader/internal/domain"
	errpkg "github.com/veranemoloko/clip-downloader/internal/errors"
	"github.com/veranemoloko/clip-downloader/internal/naming"
)

// FolderMode selects whether each item gets its own directory.
type FolderMode string

const (
	FolderShared  FolderMode = "shared"
	FolderPerItem FolderMode = "per_item"
)

func ParseFolderMode(s string) (FolderMode, error) {
	switch FolderMode(s) {
	case "":
		return FolderShared, nil
	case FolderShared, FolderPerItem:
		return FolderMode(s), nil
	}
	return "", fmt.Errorf("unknown folder mode %q", s)
}

// FolderPlanner maps items to paths under a single storage root.
type FolderPlanner struct {
	fs       afero.Fs
	root     string
	tempRoot string
	mount    string
}

// NewFolderPlanner creates a planner. tempRoot defaults to a hidden directory under root.
func NewFolderPlanner(fs afero.Fs, root, tempRoot, mount string) (*FolderPlanner, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root cannot be empty")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if tempRoot == "" {
		tempRoot = filepath.Join(absRoot, ".temp")
	}
	absTemp, err := filepath.Abs(tempRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve temp root: %w", err)
	}
	if err := fs.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	mount = "/" + strings.Trim(mount, "/")
	if mount == "/" {
		mount = "/files"
	}
	return &FolderPlanner{fs: fs, root: absRoot, tempRoot: absTemp, mount: mount}, nil
}

func (p *FolderPlanner) Root() string  { return p.root }
func (p *FolderPlanner) Mount() string { return p.mount }

// StorageFolder returns (and creates) the scope folder for a download.
// Detail downloads share a single folder; every other mode gets one folder per scope.
func (p *FolderPlanner) StorageFolder(mode domain.Mode, scopeID, label string) (string, error) {
	dir := filepath.Join(p.root, string(mode))
	if mode != domain.ModeDetail {
		if seg := scopeLabel(scopeID, label); seg != "" {
			dir = filepath.Join(dir, seg)
		}
	}
	if !p.Contains(dir) {
		return "", fmt.Errorf("storage folder %q: %w", dir, errpkg.ErrPathOutsideRoot)
	}
	if err := p.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create storage folder: %w", err)
	}
	return dir, nil
}

func scopeLabel(scopeID, label string) string {
	id := naming.Sanitize(scopeID)
	label = naming.Sanitize(label)
	switch {
	case id != "" && label != "":
		return id + "_" + label
	case id != "":
		return id
	default:
		return label
	}
}

// Plan returns the per-item temp directory and the extension-less final base path of one item.
// The temp directory is keyed by item id so concurrent items never share it.
func (p *FolderPlanner) Plan(folder, name, itemID string, mode FolderMode) (tempDir, finalPath string, err error) {
	if name == "" {
		return "", "", fmt.Errorf("empty item name: %w", errpkg.ErrPathOutsideRoot)
	}

	finalPath = filepath.Join(folder, name)
	if mode == FolderPerItem {
		finalPath = filepath.Join(folder, name, name)
	}
	tempDir = filepath.Join(p.tempRoot, naming.Sanitize(itemID))

	if !p.Contains(finalPath) {
		return tempDir, finalPath, fmt.Errorf("item %s: %w", itemID, errpkg.ErrPathOutsideRoot)
	}
	return tempDir, finalPath, nil
}

// PlanItem predicts every file of item. Files that would land outside the root keep
// their predicted path but carry no URL and are never written. Temp files are named
// by index so their length never depends on the item's title.
func (p *FolderPlanner) PlanItem(folder string, item domain.Item, name string, mode FolderMode, baseURL string) domain.FilePlan {
	plan := domain.FilePlan{ItemID: item.ID, Name: name}

	tempDir, finalBase, err := p.Plan(folder, name, item.ID, mode)
	for i, fname := range item.FileNames(name) {
		f := domain.PlannedFile{
			Asset:     item.Downloads[i],
			TempPath:  filepath.Join(tempDir, strconv.Itoa(i)),
			FinalPath: filepath.Join(filepath.Dir(finalBase), fname),
		}
		if err == nil {
			f.URL = p.URLFor(baseURL, f.FinalPath)
		}
		plan.Files = append(plan.Files, f)
	}
	return plan
}

// Contains reports whether path lies strictly below the storage root.
func (p *FolderPlanner) Contains(path string) bool { return Below(p.root, path) }

// Below reports whether path lies strictly below dir. Both are compared lexically.
func Below(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil || rel == "." || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// URLFor maps a path under the root to its URL under the mount, or nil.
func (p *FolderPlanner) URLFor(baseURL, path string) *string {
	if !p.Contains(path) {
		return nil
	}
	rel, _ := filepath.Rel(p.root, filepath.Clean(path))

	segs := strings.Split(filepath.ToSlash(rel), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	u := strings.TrimRight(baseURL, "/") + p.mount + "/" + strings.Join(segs, "/")
	return &u
}
