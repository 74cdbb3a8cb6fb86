package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ResourceKind names the category of a tracked GPU object.
type ResourceKind string

const (
	ResourceBuffer              ResourceKind = "buffer"
	ResourceMemory              ResourceKind = "memory"
	ResourceImage               ResourceKind = "image"
	ResourceImageView           ResourceKind = "image-view"
	ResourceSampler             ResourceKind = "sampler"
	ResourceDescriptorPool      ResourceKind = "descriptor-pool"
	ResourceDescriptorSetLayout ResourceKind = "descriptor-set-layout"
	ResourcePipeline            ResourceKind = "pipeline"
	ResourcePipelineLayout      ResourceKind = "pipeline-layout"
	ResourceShaderModule        ResourceKind = "shader-module"
	ResourceCommandPool         ResourceKind = "command-pool"
	ResourceFence               ResourceKind = "fence"
	ResourceSemaphore           ResourceKind = "semaphore"
)

// TrackedResource is one live allocation.
type TrackedResource struct {
	ID   uuid.UUID
	Kind ResourceKind
	Name string
}

func (r TrackedResource) String() string {
	return fmt.Sprintf("%s %q (%s)", r.Kind, r.Name, r.ID)
}

// Tracker tags every resource created through the renderer so leaks can be
// reported at teardown.
type Tracker struct {
	mu    sync.Mutex
	live  map[uuid.UUID]TrackedResource
	total int
}

func NewTracker() *Tracker {
	return &Tracker{live: make(map[uuid.UUID]TrackedResource)}
}

// Track records a new resource and returns its tag.
func (t *Tracker) Track(kind ResourceKind, name string) uuid.UUID {
	id := uuid.New()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live[id] = TrackedResource{ID: id, Kind: kind, Name: name}
	t.total++
	LogDebug("created %s %q", kind, name)
	return id
}

// Release forgets a resource. Releasing an unknown tag is an error.
func (t *Tracker) Release(id uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.live[id]
	if !ok {
		return fmt.Errorf("release of unknown resource %s", id)
	}
	delete(t.live, id)
	LogDebug("destroyed %s %q", r.Kind, r.Name)
	return nil
}

// Live returns the resources still alive, sorted by kind then name.
func (t *Tracker) Live() []TrackedResource {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TrackedResource, 0, len(t.live))
	for _, r := range t.live {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Total is the number of resources ever tracked.
func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// ReportLeaks logs every live resource and returns how many there were.
func (t *Tracker) ReportLeaks() int {
	live := t.Live()
	for _, r := range live {
		LogError("leaked %s", r)
	}
	return len(live)
}
