package capture

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/eventlog/internal/config"
	"github.com/persistorai/eventlog/internal/metrics"
	"github.com/persistorai/eventlog/internal/models"
	"github.com/persistorai/eventlog/internal/sanitize"
)

// Auditable is implemented by domain objects whose lifecycle is recorded.
type Auditable interface {
	// AuditType names the object's type, stored as subject_type.
	AuditType() string
	// AuditKey is the object's primary key, stored as subject_id.
	AuditKey() string
	// HiddenFields lists attributes never written to the event payload.
	HiddenFields() []string
}

// Transition is one lifecycle firing.
type Transition struct {
	Event      models.LifecycleEvent
	Object     Auditable
	Attributes map[string]any
	Changes    map[string]any
	Original   map[string]any
}

// LifecycleHook handles a transition.
type LifecycleHook func(ctx context.Context, t Transition) error

// HookRegistry is the host's lifecycle-hook mechanism.
type HookRegistry interface {
	On(event models.LifecycleEvent, hook LifecycleHook)
}

// LifecycleRecorder records model events for Auditable objects.
type LifecycleRecorder struct {
	settings   *config.Holder
	writer     EventWriter
	principals PrincipalResolver
	log        *logrus.Logger
}

// NewLifecycleRecorder creates a LifecycleRecorder. A nil resolver records
// every transition as anonymous.
func NewLifecycleRecorder(settings *config.Holder, writer EventWriter, principals PrincipalResolver, log *logrus.Logger) *LifecycleRecorder {
	if principals == nil {
		principals = NoPrincipal
	}

	return &LifecycleRecorder{
		settings:   settings,
		writer:     writer,
		principals: principals,
		log:        log,
	}
}

// Register subscribes the recorder to hooks. Nothing is registered while
// capture is inactive. restored is only registered for soft-deletable types.
func (r *LifecycleRecorder) Register(hooks HookRegistry, softDeletes bool) bool {
	if !r.settings.Get().Active() {
		return false
	}

	hooks.On(models.EventCreated, r.Record)
	hooks.On(models.EventUpdated, r.Record)
	hooks.On(models.EventDeleted, r.Record)

	if softDeletes {
		hooks.On(models.EventRestored, r.Record)
	}

	return true
}

// OnCreated records obj's creation with its full attribute set.
func (r *LifecycleRecorder) OnCreated(ctx context.Context, obj Auditable, attributes map[string]any) error {
	return r.Record(ctx, Transition{Event: models.EventCreated, Object: obj, Attributes: attributes})
}

// OnUpdated records the changed fields of obj. original may hold every prior
// attribute; only the changed keys are kept.
func (r *LifecycleRecorder) OnUpdated(ctx context.Context, obj Auditable, changes, original map[string]any) error {
	return r.Record(ctx, Transition{Event: models.EventUpdated, Object: obj, Changes: changes, Original: original})
}

// OnDeleted records obj's deletion.
func (r *LifecycleRecorder) OnDeleted(ctx context.Context, obj Auditable) error {
	return r.Record(ctx, Transition{Event: models.EventDeleted, Object: obj})
}

// OnRestored records obj's restoration from a soft delete.
func (r *LifecycleRecorder) OnRestored(ctx context.Context, obj Auditable) error {
	return r.Record(ctx, Transition{Event: models.EventRestored, Object: obj})
}

// Record persists t. It is a no-op while capture is inactive, which is
// checked on every call.
func (r *LifecycleRecorder) Record(ctx context.Context, t Transition) error {
	if !r.settings.Get().Active() {
		return nil
	}

	if t.Object == nil || !t.Event.Valid() {
		return models.ErrInvalidEvent
	}

	ev := r.build(ctx, t)

	if _, err := r.writer.Create(ctx, ev); err != nil {
		metrics.CaptureFailures.WithLabelValues(string(models.KindModel)).Inc()
		return fmt.Errorf("storing %s event for %s %s: %w", t.Event, t.Object.AuditType(), t.Object.AuditKey(), err)
	}

	metrics.EventsCaptured.WithLabelValues(string(models.KindModel)).Inc()
	r.log.WithFields(logrus.Fields{
		"uuid":       ev.UUID,
		"event":      t.Event,
		"model_type": t.Object.AuditType(),
		"model_id":   t.Object.AuditKey(),
	}).Debug("model event captured")

	return nil
}

func (r *LifecycleRecorder) build(ctx context.Context, t Transition) *models.Event {
	hidden := t.Object.HiddenFields()
	subjectType := t.Object.AuditType()
	subjectID := t.Object.AuditKey()
	event := t.Event

	attributes := map[string]any{}
	changes := map[string]any{}
	original := map[string]any{}
	dirty := []string{}

	switch t.Event {
	case models.EventCreated:
		attributes = maps.Clone(t.Attributes)
	case models.EventUpdated:
		changes = maps.Clone(t.Changes)
		dirty = slices.Sorted(maps.Keys(t.Changes))
		for _, k := range dirty {
			if v, ok := t.Original[k]; ok {
				original[k] = v
			}
		}
	}

	ev := &models.Event{
		Kind:        models.KindModel,
		SubjectType: &subjectType,
		SubjectID:   &subjectID,
		Event:       &event,
		EventData: &models.EventData{
			Event:      t.Event,
			ModelType:  subjectType,
			ModelID:    subjectID,
			Attributes: sanitize.RemoveKeys(attributes, hidden),
			Changes:    sanitize.RemoveKeys(changes, hidden),
			Original:   sanitize.RemoveKeys(original, hidden),
			DirtyKeys:  dirty,
		},
		Context: AmbientFrom(ctx),
	}
	ev.SetActor(r.principals.CurrentPrincipal(ctx))

	return ev
}

// Hooks is an in-process HookRegistry for hosts without an ORM hook
// mechanism of their own.
type Hooks struct {
	mu    sync.RWMutex
	hooks map[models.LifecycleEvent][]LifecycleHook
}

// NewHooks returns an empty registry.
func NewHooks() *Hooks {
	return &Hooks{hooks: make(map[models.LifecycleEvent][]LifecycleHook)}
}

// On implements HookRegistry.
func (h *Hooks) On(event models.LifecycleEvent, hook LifecycleHook) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.hooks[event] = append(h.hooks[event], hook)
}

// Fire runs every hook registered for t.Event and stops at the first error.
func (h *Hooks) Fire(ctx context.Context, t Transition) error {
	h.mu.RLock()
	hooks := slices.Clone(h.hooks[t.Event])
	h.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, t); err != nil {
			return err
		}
	}

	return nil
}
