package registry

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/username/pitfolio/src/reporters"
)

// Factory builds a reporter from its saved parameters.
type Factory func(params map[string]string, deps reporters.Deps) (reporters.Reporter, error)

// Registry persists reporter configurations so a tax run can be repeated
// without re-entering every parameter. Each saved reporter lives in its own
// file under dir, named by a short numeric id.
type Registry struct {
	dir       string
	deps      reporters.Deps
	factories map[string]Factory
}

type payload struct {
	Kind string            `json:"kind"`
	Data map[string]string `json:"data"`
}

func New(dir string, deps reporters.Deps, factories map[string]Factory) (*Registry, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating registry directory %s: %w", dir, err)
	}
	return &Registry{dir: dir, deps: deps, factories: factories}, nil
}

// Save validates the parameters against the reporter's own validators before
// writing, so the registry never holds a configuration that cannot load.
func (r *Registry) Save(kind string, params map[string]string) (string, error) {
	factory, ok := r.factories[kind]
	if !ok {
		return "", fmt.Errorf("unknown reporter kind %q", kind)
	}
	reporter, err := factory(params, r.deps)
	if err != nil {
		return "", err
	}
	for key, validate := range reporter.Validators() {
		if err := validate(params[key]); err != nil {
			return "", fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	raw, err := json.Marshal(payload{Kind: kind, Data: params})
	if err != nil {
		return "", fmt.Errorf("encoding reporter %q: %w", kind, err)
	}
	id := newID()
	path := filepath.Join(r.dir, id+".json")
	encoded := base64.StdEncoding.EncodeToString(raw)
	if err := os.WriteFile(path, []byte(encoded), 0600); err != nil {
		return "", fmt.Errorf("writing reporter file %s: %w", path, err)
	}
	return id, nil
}

func (r *Registry) Load(id string) (reporters.Reporter, error) {
	p, err := r.readPayload(id)
	if err != nil {
		return nil, err
	}
	factory, ok := r.factories[p.Kind]
	if !ok {
		return nil, fmt.Errorf("reporter %s has unknown kind %q", id, p.Kind)
	}
	return factory(p.Data, r.deps)
}

func (r *Registry) readPayload(id string) (payload, error) {
	path := filepath.Join(r.dir, id+".json")
	encoded, err := os.ReadFile(path)
	if err != nil {
		return payload{}, fmt.Errorf("reading reporter file %s: %w", path, err)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil {
		return payload{}, fmt.Errorf("decoding reporter file %s: %w", path, err)
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return payload{}, fmt.Errorf("parsing reporter file %s: %w", path, err)
	}
	return p, nil
}

// Saved is a stored reporter configuration together with its id.
type Saved struct {
	ID       string
	Kind     string
	Reporter reporters.Reporter
}

// LoadAll returns every saved reporter oldest-first, so repeated runs
// process sources in the order they were registered.
func (r *Registry) LoadAll() ([]Saved, error) {
	files, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("listing registry directory %s: %w", r.dir, err)
	}
	type candidate struct {
		id      string
		modTime int64
	}
	var candidates []candidate
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := file.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		candidates = append(candidates, candidate{
			id:      strings.TrimSuffix(name, ".json"),
			modTime: info.ModTime().UnixNano(),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].modTime != candidates[j].modTime {
			return candidates[i].modTime < candidates[j].modTime
		}
		return candidates[i].id < candidates[j].id
	})

	saved := make([]Saved, 0, len(candidates))
	for _, c := range candidates {
		p, err := r.readPayload(c.id)
		if err != nil {
			return nil, err
		}
		factory, ok := r.factories[p.Kind]
		if !ok {
			return nil, fmt.Errorf("reporter %s has unknown kind %q", c.id, p.Kind)
		}
		reporter, err := factory(p.Data, r.deps)
		if err != nil {
			return nil, fmt.Errorf("loading reporter %s: %w", c.id, err)
		}
		saved = append(saved, Saved{ID: c.id, Kind: p.Kind, Reporter: reporter})
	}
	return saved, nil
}

func (r *Registry) Remove(id string) error {
	path := filepath.Join(r.dir, id+".json")
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing reporter file %s: %w", path, err)
	}
	return nil
}

func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// newID derives a short numeric id from a fresh UUID. Nine digits keep the
// ids easy to type while collisions stay unlikely at this scale.
func newID() string {
	id := uuid.New()
	n := binary.BigEndian.Uint32(id[0:4])
	return fmt.Sprintf("%09d", uint64(n)%1_000_000_000)
}
