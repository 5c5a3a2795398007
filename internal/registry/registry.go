// Package registry owns the process-wide id->table map and the bookkeeping
// around it: one table per identity, save/restore against the store, and
// listing. The registry's own lock is short-lived and never held across a
// table's critical section.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/James-Trimble/PlayPalace11/internal/game"
	"github.com/James-Trimble/PlayPalace11/internal/i18n"
	"github.com/James-Trimble/PlayPalace11/internal/protocol"
	"github.com/James-Trimble/PlayPalace11/internal/store"
	"github.com/James-Trimble/PlayPalace11/internal/table"
)

// SinkResolver looks up the live delivery sink for an online identity.
// Returns nil when the identity has no live connection.
type SinkResolver func(identity string) table.EventSink

// Registry is the shared table index.
type Registry struct {
	mu         sync.Mutex
	tables     map[string]*table.Table
	byIdentity map[string]string

	games     *game.Registry
	store     store.Store
	render    i18n.Renderer
	historian table.Recorder
	log       *logrus.Logger
}

// New builds an empty Registry.
func New(games *game.Registry, st store.Store, render i18n.Renderer, historian table.Recorder, log *logrus.Logger) *Registry {
	return &Registry{
		tables:     make(map[string]*table.Table),
		byIdentity: make(map[string]string),
		games:      games,
		store:      st,
		render:     render,
		historian:  historian,
		log:        log,
	}
}

// Create opens a Waiting table with host as sole player.
func (r *Registry) Create(gameType, host string, opts map[string]int, sink table.EventSink) (*table.Table, error) {
	desc, ok := r.games.Lookup(gameType)
	if !ok {
		return nil, protocol.E(protocol.CodeUnknownGameType, "error-unknown-game-type", "game", gameType)
	}
	resolved, err := game.ResolveOptions(desc.Options, opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, seated := r.byIdentity[host]; seated {
		r.mu.Unlock()
		return nil, protocol.E(protocol.CodeAlreadySeated, "error-already-seated")
	}
	// Reserve the identity before building the table so a racing create
	// cannot seat the same host twice.
	r.byIdentity[host] = ""
	r.mu.Unlock()

	t := table.New(desc, resolved, host, sink, r.render, r.historian, r.log)

	r.mu.Lock()
	r.tables[t.ID] = t
	r.byIdentity[host] = t.ID
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{"table": t.ID, "game": gameType, "host": host}).Info("table created")
	return t, nil
}

// Join seats identity at the table, as player or spectator.
func (r *Registry) Join(tableID, identity string, sink table.EventSink, asSpectator bool) error {
	r.mu.Lock()
	if _, seated := r.byIdentity[identity]; seated {
		r.mu.Unlock()
		return protocol.E(protocol.CodeAlreadySeated, "error-already-seated")
	}
	t, ok := r.tables[tableID]
	if !ok {
		r.mu.Unlock()
		return protocol.E(protocol.CodeTableNotFound, "error-table-not-found")
	}
	r.byIdentity[identity] = tableID
	r.mu.Unlock()

	if err := t.Join(identity, sink, asSpectator); err != nil {
		r.mu.Lock()
		delete(r.byIdentity, identity)
		r.mu.Unlock()
		return err
	}
	return nil
}

// Leave removes identity from its table, if any.
func (r *Registry) Leave(identity string) {
	t, ok := r.Find(identity)
	if !ok {
		return
	}
	members := t.Identities()
	destroyed := t.Leave(identity)
	r.unseat(t, identity, members, destroyed)
}

// HandleDisconnect hands an unflagged socket loss to the table. When the
// table keeps the seat bot-held for a reconnect, the identity stays bound to
// the table so the next login lands back in it.
func (r *Registry) HandleDisconnect(identity string) {
	t, ok := r.Find(identity)
	if !ok {
		return
	}
	members := t.Identities()
	destroyed, held := t.HandleDisconnect(identity)
	if held && !destroyed {
		return
	}
	r.unseat(t, identity, members, destroyed)
}

func (r *Registry) unseat(t *table.Table, identity string, members []string, destroyed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byIdentity, identity)
	if destroyed {
		delete(r.tables, t.ID)
		for _, id := range members {
			if r.byIdentity[id] == t.ID {
				delete(r.byIdentity, id)
			}
		}
		r.log.WithField("table", t.ID).Info("table destroyed")
	}
}

// Find returns the table identity currently sits at.
func (r *Registry) Find(identity string) (*table.Table, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byIdentity[identity]
	if !ok || id == "" {
		return nil, false
	}
	t, ok := r.tables[id]
	return t, ok
}

// Get returns the table by id.
func (r *Registry) Get(tableID string) (*table.Table, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tables[tableID]
	return t, ok
}

// List snapshots every live table for the browser, stable by id.
func (r *Registry) List() []protocol.TableInfo {
	r.mu.Lock()
	tables := make([]*table.Table, 0, len(r.tables))
	for _, t := range r.tables {
		tables = append(tables, t)
	}
	r.mu.Unlock()

	out := make([]protocol.TableInfo, 0, len(tables))
	for _, t := range tables {
		out = append(out, t.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Save snapshots requester's table to the store, then closes the live table.
// Host-only, enforced by the table.
func (r *Registry) Save(ctx context.Context, requester string) (protocol.SaveInfo, error) {
	t, ok := r.Find(requester)
	if !ok {
		return protocol.SaveInfo{}, protocol.E(protocol.CodeTableNotFound, "error-not-at-table")
	}

	desc, _ := r.games.Lookup(t.GameType)
	now := time.Now()
	name := fmt.Sprintf("%s - %s", r.render.Render(desc.NameKey, "en", nil), now.Format("2006-01-02 15:04"))

	// Snapshot and shutdown happen in one table critical section, so the
	// persisted state is exactly what the members last saw.
	members := t.Identities()
	snap, err := t.SnapshotAndClose(requester, name)
	if err != nil {
		return protocol.SaveInfo{}, err
	}
	r.unseat(t, requester, members, true)

	payload, err := json.Marshal(snap)
	if err != nil {
		return protocol.SaveInfo{}, fmt.Errorf("registry: marshal snapshot: %w", err)
	}
	saved := store.SavedTable{
		ID:       uuid.NewString(),
		Owner:    requester,
		Name:     name,
		GameType: snap.GameType,
		Snapshot: payload,
		SavedAt:  now,
	}
	if err := r.store.PutSave(ctx, saved); err != nil {
		return protocol.SaveInfo{}, fmt.Errorf("registry: persist save: %w", err)
	}

	r.log.WithFields(logrus.Fields{"save": saved.ID, "owner": requester}).Info("table saved")
	return saveInfo(saved), nil
}

// ListSaves lists owner's saved tables, newest first.
func (r *Registry) ListSaves(ctx context.Context, owner string) ([]protocol.SaveInfo, error) {
	saves, err := r.store.ListSaves(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("registry: list saves: %w", err)
	}
	out := make([]protocol.SaveInfo, 0, len(saves))
	for _, s := range saves {
		out = append(out, saveInfo(s))
	}
	return out, nil
}

// DeleteSave removes one of owner's saves.
func (r *Registry) DeleteSave(ctx context.Context, owner, saveID string) error {
	s, err := r.store.GetSave(ctx, saveID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && s.Owner != owner) {
		return protocol.E(protocol.CodeSaveNotFound, "error-save-not-found")
	}
	if err != nil {
		return fmt.Errorf("registry: load save: %w", err)
	}
	if err := r.store.DeleteSave(ctx, saveID); err != nil {
		return fmt.Errorf("registry: delete save: %w", err)
	}
	return nil
}

// Restore materializes a saved table. Every saved human player must be
// online and not already seated; otherwise MissingPlayers names the
// unavailable identities and the save entry is left untouched. The save is
// deleted only after the table is live again.
func (r *Registry) Restore(ctx context.Context, requester, saveID string, resolve SinkResolver) (*table.Table, error) {
	s, err := r.store.GetSave(ctx, saveID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && s.Owner != requester) {
		return nil, protocol.E(protocol.CodeSaveNotFound, "error-save-not-found")
	}
	if err != nil {
		return nil, fmt.Errorf("registry: load save: %w", err)
	}

	var snap table.Snapshot
	if err := json.Unmarshal(s.Snapshot, &snap); err != nil {
		return nil, fmt.Errorf("registry: corrupt snapshot %s: %w", saveID, err)
	}
	desc, ok := r.games.Lookup(snap.GameType)
	if !ok {
		return nil, protocol.E(protocol.CodeUnknownGameType, "error-unknown-game-type", "game", snap.GameType)
	}

	humans := make([]string, 0, len(snap.Seats))
	for _, seat := range snap.Seats {
		if !seat.Bot {
			humans = append(humans, seat.Identity)
		}
	}

	// Reserve every human seat atomically so a racing join cannot steal one
	// mid-restore.
	r.mu.Lock()
	var missing []string
	sinks := make(map[string]table.EventSink, len(humans))
	for _, id := range humans {
		sink := resolve(id)
		_, seated := r.byIdentity[id]
		if sink == nil || seated {
			missing = append(missing, id)
			continue
		}
		sinks[id] = sink
	}
	if len(missing) > 0 {
		r.mu.Unlock()
		return nil, protocol.E(protocol.CodeMissingPlayers, "error-missing-players",
			"players", strings.Join(missing, ", "))
	}
	for _, id := range humans {
		r.byIdentity[id] = ""
	}
	r.mu.Unlock()

	t, err := table.Restore(desc, snap, sinks, r.render, r.historian, r.log)
	if err != nil {
		r.mu.Lock()
		for _, id := range humans {
			delete(r.byIdentity, id)
		}
		r.mu.Unlock()
		return nil, fmt.Errorf("registry: restore %s: %w", saveID, err)
	}

	r.mu.Lock()
	r.tables[t.ID] = t
	for _, id := range humans {
		r.byIdentity[id] = t.ID
	}
	r.mu.Unlock()

	if err := r.store.DeleteSave(ctx, saveID); err != nil {
		r.log.WithError(err).WithField("save", saveID).Warn("restored save not deleted")
	}
	r.log.WithFields(logrus.Fields{"table": t.ID, "save": saveID}).Info("table restored")
	return t, nil
}

func saveInfo(s store.SavedTable) protocol.SaveInfo {
	return protocol.SaveInfo{
		ID:       s.ID,
		Name:     s.Name,
		GameType: s.GameType,
		SavedAt:  s.SavedAt.UTC().Format(time.RFC3339),
	}
}
