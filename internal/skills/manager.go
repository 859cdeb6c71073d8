package skills

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/haasonsaas/relay/internal/observability"
)

const watchDebounce = 250 * time.Millisecond

// Manager discovers skills under <root>/skills/*/SKILL.md and keeps the
// set fresh via filesystem watching. Safe for concurrent use.
type Manager struct {
	root string
	log  *observability.Logger

	mu     sync.RWMutex
	skills map[string]*Skill

	watchMu     sync.Mutex
	watcher     *fsnotify.Watcher
	watchCancel context.CancelFunc
	watchWg     sync.WaitGroup
}

// NewManager creates a manager for the skills directory under root.
func NewManager(root string, log *observability.Logger) *Manager {
	return &Manager{
		root:   root,
		log:    log,
		skills: make(map[string]*Skill),
	}
}

func (m *Manager) skillsDir() string {
	return filepath.Join(m.root, "skills")
}

// Discover scans the skills directory and replaces the current skill set.
// Unparseable skills are logged and skipped.
func (m *Manager) Discover(ctx context.Context) error {
	entries, err := os.ReadDir(m.skillsDir())
	if err != nil {
		if os.IsNotExist(err) {
			m.mu.Lock()
			m.skills = make(map[string]*Skill)
			m.mu.Unlock()
			return nil
		}
		return err
	}

	found := make(map[string]*Skill)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(m.skillsDir(), entry.Name(), SkillFilename)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		skill, err := ParseFile(path)
		if err != nil {
			if m.log != nil {
				m.log.Warn(ctx, "skipping invalid skill", "path", path, "error", err)
			}
			continue
		}
		found[skill.Name] = skill
	}

	m.mu.Lock()
	m.skills = found
	m.mu.Unlock()
	return nil
}

// List returns all discovered skills sorted by name.
func (m *Manager) List() []*Skill {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*Skill, 0, len(m.skills))
	for _, skill := range m.skills {
		result = append(result, skill)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Get returns the named skill.
func (m *Manager) Get(name string) (*Skill, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	skill, ok := m.skills[name]
	return skill, ok
}

// StartWatching begins filesystem watching so edits to skill files are
// picked up without a restart. Events are debounced into a rediscovery.
func (m *Manager) StartWatching(ctx context.Context) error {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if m.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(m.skillsDir(), 0o755); err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(m.skillsDir()); err != nil {
		watcher.Close()
		return err
	}
	// watch existing skill directories so SKILL.md edits are seen
	if entries, err := os.ReadDir(m.skillsDir()); err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				_ = watcher.Add(filepath.Join(m.skillsDir(), entry.Name()))
			}
		}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	m.watcher = watcher
	m.watchCancel = cancel

	m.watchWg.Add(1)
	go m.watchLoop(watchCtx, watcher)
	return nil
}

// Close stops the watcher, if running.
func (m *Manager) Close() error {
	m.watchMu.Lock()
	watcher := m.watcher
	cancel := m.watchCancel
	m.watcher = nil
	m.watchCancel = nil
	m.watchMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if watcher != nil {
		_ = watcher.Close()
	}
	m.watchWg.Wait()
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer m.watchWg.Done()

	var timerMu sync.Mutex
	var timer *time.Timer
	scheduleRefresh := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(watchDebounce, func() {
			if err := m.Discover(context.Background()); err != nil && m.log != nil {
				m.log.Warn(context.Background(), "skill rediscovery failed", "error", err)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				if event.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						_ = watcher.Add(event.Name)
					}
				}
				scheduleRefresh()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if m.log != nil {
				m.log.Warn(ctx, "skill watch error", "error", err)
			}
		}
	}
}
