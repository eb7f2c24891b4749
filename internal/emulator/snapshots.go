package emulator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/playgames-bridge/internal/domain"
)

// Metadata values the platform reports when a save never set them
const (
	unknownPlayedTime = -1
	unknownProgress   = -1
)

// divergentSave is a version of a save written elsewhere that has not been
// reconciled with the stored one.
type divergentSave struct {
	id       string
	snapshot domain.Snapshot
}

// conflict is the conflict last reported to the caller
type conflict struct {
	id          string
	saveName    string
	divergentID string
	server      domain.Snapshot
	local       domain.Snapshot
}

// InjectConflict records a divergent version of an existing save, as if
// another device had written it. The next open of that save reports a
// conflict, or resolves it under the caller's resolution policy. Missing
// metadata is filled in; the divergent version is stamped as the newest.
func (e *Emulator) InjectConflict(ctx context.Context, snapshot domain.Snapshot) (string, error) {
	if snapshot.Name == "" {
		return "", fmt.Errorf("injecting conflict: %w: save name required", domain.ErrInvalidInput)
	}
	if _, err := e.saves.LoadSnapshot(ctx, e.playerID(), snapshot.Name); err != nil {
		return "", fmt.Errorf("injecting conflict: %w", err)
	}

	meta := snapshot.Metadata
	if meta.Title == "" {
		meta.Title = snapshot.Name
	}
	if meta.DeviceName == "" {
		meta.DeviceName = "remote-device"
	}
	e.fillPlayer(&meta)
	meta.SaveTime = e.saveTime()
	snapshot.Metadata = meta

	id := uuid.NewString()
	e.mu.Lock()
	e.divergent[snapshot.Name] = divergentSave{id: id, snapshot: snapshot}
	e.mu.Unlock()

	e.logger.Info("conflict injected", "save_name", snapshot.Name, "divergent_id", id)
	return id, nil
}

// open reads a save the way the platform opens a snapshot. A missing save is
// created empty when create is set. A divergent version is either resolved
// under policy or reported as a conflict.
func (e *Emulator) open(ctx context.Context, action, name string, create bool, policy domain.ResolutionPolicy) (*domain.Snapshot, *Reply) {
	server, err := e.saves.LoadSnapshot(ctx, e.playerID(), name)
	switch {
	case errors.Is(err, domain.ErrSaveNotFound) && create:
		server = &domain.Snapshot{Name: name, Metadata: e.newMetadata(name)}
	case errors.Is(err, domain.ErrSaveNotFound):
		reply := e.send(domain.NewResponse(domain.StatusLoadGameErrorNotExist, action+": saved game not found"))
		return nil, &reply
	case err != nil:
		reply := exception(err)
		return nil, &reply
	}

	e.mu.Lock()
	d, diverged := e.divergent[name]
	e.mu.Unlock()
	if !diverged {
		return server, nil
	}

	if policy == domain.ResolutionPolicyManual {
		c := e.remember(name, d, *server)
		reply := e.conflictReply(action+": conflict on open", c)
		return nil, &reply
	}

	winner := pickSnapshot(policy, *server, d.snapshot)
	if err := e.saves.SaveSnapshot(ctx, e.playerID(), winner); err != nil {
		reply := exception(err)
		return nil, &reply
	}
	e.dropDivergent(name, d.id)

	e.logger.Info("conflict resolved by policy",
		"save_name", name,
		"policy", int(policy),
		"kept_local", winner.Metadata.SaveTime == d.snapshot.Metadata.SaveTime,
	)
	return &winner, nil
}

// pickSnapshot settles a conflict without asking. Ties keep the server version.
func pickSnapshot(policy domain.ResolutionPolicy, server, local domain.Snapshot) domain.Snapshot {
	switch policy {
	case domain.ResolutionPolicyLongestPlaytime:
		if local.Metadata.PlayedTime > server.Metadata.PlayedTime {
			return local
		}
	case domain.ResolutionPolicyMostRecentlyModified:
		if local.Metadata.SaveTime > server.Metadata.SaveTime {
			return local
		}
	case domain.ResolutionPolicyHighestProgress:
		if local.Metadata.ProgressValue > server.Metadata.ProgressValue {
			return local
		}
	}
	return server
}

func (e *Emulator) remember(name string, d divergentSave, server domain.Snapshot) *conflict {
	c := &conflict{
		id:          uuid.NewString(),
		saveName:    name,
		divergentID: d.id,
		server:      server,
		local:       d.snapshot,
	}
	e.mu.Lock()
	e.pending = c
	e.mu.Unlock()
	return c
}

func (e *Emulator) dropDivergent(name, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d, ok := e.divergent[name]; ok && d.id == id {
		delete(e.divergent, name)
	}
}

func (e *Emulator) conflictReply(msg string, c *conflict) Reply {
	return e.send(domain.SnapshotConflictResponse{
		Response:       domain.NewResponse(domain.StatusErrorSnapshotConflict, msg),
		ConflictID:     c.id,
		ServerData:     c.server.Data,
		ServerMetadata: c.server.Metadata,
		LocalData:      c.local.Data,
		LocalMetadata:  c.local.Metadata,
	})
}

func (e *Emulator) newMetadata(name string) domain.SnapshotMetadata {
	meta := domain.SnapshotMetadata{
		Title:         name,
		PlayedTime:    unknownPlayedTime,
		ProgressValue: unknownProgress,
		DeviceName:    e.cfg.DeviceName,
	}
	e.fillPlayer(&meta)
	return meta
}

func (e *Emulator) fillPlayer(meta *domain.SnapshotMetadata) {
	p := e.cfg.Player
	meta.PlayerID = p.ID
	meta.PlayerDisplayName = p.DisplayName
	meta.PlayerName = p.DisplayName
	meta.PlayerTitle = p.Title
	meta.PlayerIconImage = p.IconImageURI
	meta.PlayerHiResImage = p.HiResIconImageURI
}

// saveGame writes a save. The write is refused when previousSaveTime is given,
// the stored save is not empty, and its modification time differs.
func (e *Emulator) saveGame(ctx context.Context, opts options) Reply {
	name, err := opts.getString("saveName")
	if err != nil {
		return exception(err)
	}
	data, err := opts.getString("saveData")
	if err != nil {
		return exception(err)
	}
	previous := opts.optLong("previousSaveTime", -1)
	policy := domain.ResolutionPolicy(opts.optLong("resolutionPolicy", int64(domain.ResolutionPolicyManual)))
	if !policy.Valid() {
		policy = domain.ResolutionPolicyManual
	}

	current, reply := e.open(ctx, domain.ActionSaveGame, name, true, policy)
	if reply != nil {
		return *reply
	}

	if previous != -1 && current.Data != "" && previous != current.Metadata.SaveTime {
		e.logger.Warn("wrong previous save",
			"save_name", name,
			"previous_save_time", previous,
			"save_time", current.Metadata.SaveTime,
		)
		return e.send(domain.LoadGameResult{
			Response: domain.NewResponse(domain.StatusSaveGameErrorWrongPrevious, "saveGame: wrong previous save"),
			SaveData: current.Data,
			Metadata: current.Metadata,
		})
	}

	meta := current.Metadata
	meta.DeviceName = e.cfg.DeviceName
	e.fillPlayer(&meta)
	meta.SaveTime = e.saveTime()

	snapshot := domain.Snapshot{Name: name, Data: data, Metadata: meta}
	if err := e.saves.SaveSnapshot(ctx, e.playerID(), snapshot); err != nil {
		return exception(err)
	}

	return e.send(domain.SaveGameResult{
		Response: domain.NewResponse(domain.StatusOK, ""),
		Metadata: meta,
	})
}

func (e *Emulator) loadGame(ctx context.Context, opts options) Reply {
	name, err := opts.getString("saveName")
	if err != nil {
		return exception(err)
	}

	current, reply := e.open(ctx, domain.ActionLoadGame, name, false, domain.ResolutionPolicyManual)
	if reply != nil {
		return *reply
	}

	return e.send(domain.LoadGameResult{
		Response: domain.NewResponse(domain.StatusOK, ""),
		SaveData: current.Data,
		Metadata: current.Metadata,
	})
}

// resolveSnapshotConflict commits the chosen side of the pending conflict.
// The pending conflict is cleared even when resolving reveals a newer
// divergent version, which is then reported and remembered in its place.
func (e *Emulator) resolveSnapshotConflict(ctx context.Context, opts options) Reply {
	e.mu.Lock()
	c := e.pending
	e.pending = nil
	e.mu.Unlock()

	if c == nil {
		return e.send(domain.NewResponse(domain.StatusErrorHaveNotSnapshotConflict, "resolveSnapshotConflict: no snapshot conflict to resolve"))
	}

	chosen := c.server
	if opts.optBool("useLocal") {
		chosen = c.local
	}
	chosen.Metadata.SaveTime = e.saveTime()

	if err := e.saves.SaveSnapshot(ctx, e.playerID(), chosen); err != nil {
		return exception(err)
	}
	e.dropDivergent(c.saveName, c.divergentID)

	e.mu.Lock()
	d, newer := e.divergent[c.saveName]
	e.mu.Unlock()
	if newer {
		next := e.remember(c.saveName, d, chosen)
		return e.conflictReply("resolveSnapshotConflict: conflict on resolve", next)
	}

	e.logger.Info("conflict resolved", "save_name", c.saveName, "conflict_id", c.id)
	return e.send(domain.NewResponse(domain.StatusOK, ""))
}

// deleteSaveGame removes a save. A divergent version is settled first by
// keeping the most recently modified one, so the delete always wins.
func (e *Emulator) deleteSaveGame(ctx context.Context, opts options) Reply {
	name, err := opts.getString("saveName")
	if err != nil {
		return exception(err)
	}

	if _, reply := e.open(ctx, domain.ActionDeleteSaveGame, name, false, domain.ResolutionPolicyMostRecentlyModified); reply != nil {
		return *reply
	}

	if err := e.saves.DeleteSnapshot(ctx, e.playerID(), name); err != nil {
		if errors.Is(err, domain.ErrSaveNotFound) {
			return e.send(domain.NewResponse(domain.StatusLoadGameErrorNotExist, "deleteSaveGame: saved game not found"))
		}
		return exception(err)
	}

	e.mu.Lock()
	if e.pending != nil && e.pending.saveName == name {
		e.pending = nil
	}
	e.mu.Unlock()

	return e.send(domain.NewResponse(domain.StatusOK, ""))
}

// Snapshot returns the stored version of a save, ignoring any divergent one
func (e *Emulator) Snapshot(ctx context.Context, name string) (*domain.Snapshot, error) {
	return e.saves.LoadSnapshot(ctx, e.playerID(), name)
}
