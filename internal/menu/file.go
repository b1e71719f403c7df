package menu

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/orderline-io/orderline/pkg/protocol"
)

// FileProvider loads the menu from a YAML file and reloads it when the
// file's modification time changes. Reload failures keep serving the last
// good menu so an administrator editing the file mid-call cannot break
// in-flight conversations.
type FileProvider struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	menu    *protocol.Menu
	modTime time.Time
}

type menuFile struct {
	Items []struct {
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		Price       float64  `yaml:"price"`
		Category    string   `yaml:"category"`
		Options     []string `yaml:"options"`
	} `yaml:"items"`
	Categories []string `yaml:"categories"`
}

// NewFileProvider loads the menu file once, failing fast on a bad file.
func NewFileProvider(path string, logger *slog.Logger) (*FileProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &FileProvider{path: path, logger: logger}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Snapshot returns the current menu, reloading first if the file changed.
func (p *FileProvider) Snapshot(_ context.Context) (*protocol.Menu, error) {
	info, err := os.Stat(p.path)
	if err == nil {
		p.mu.RLock()
		stale := info.ModTime().After(p.modTime)
		p.mu.RUnlock()
		if stale {
			if rerr := p.Reload(); rerr != nil {
				p.logger.Warn("menu reload failed, serving previous menu", "path", p.path, "error", rerr)
			}
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.menu, nil
}

// Reload re-reads the menu file.
func (p *FileProvider) Reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("menu: read %s: %w", p.path, err)
	}

	var mf menuFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return fmt.Errorf("menu: parse %s: %w", p.path, err)
	}
	if len(mf.Items) == 0 {
		return fmt.Errorf("menu: %s contains no items", p.path)
	}

	m := &protocol.Menu{Categories: mf.Categories}
	for _, item := range mf.Items {
		m.Items = append(m.Items, protocol.MenuItem{
			Name:        item.Name,
			Description: item.Description,
			Price:       item.Price,
			Category:    item.Category,
			Options:     item.Options,
		})
	}

	info, _ := os.Stat(p.path)

	p.mu.Lock()
	p.menu = m
	if info != nil {
		p.modTime = info.ModTime()
	}
	p.mu.Unlock()

	p.logger.Info("menu loaded", "path", p.path, "items", len(m.Items))
	return nil
}
