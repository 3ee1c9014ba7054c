package reconcile

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nvollmer/fabula/helper"
	"github.com/nvollmer/fabula/model"
)

// EntityStore is the persistence boundary the reconciler writes through.
// Each collection is saved wholesale after its batch of changes.
type EntityStore interface {
	LoadCharacters() ([]*model.Character, error)
	SaveCharacters([]*model.Character) error
	LoadItems() ([]*model.Item, error)
	SaveItems([]*model.Item) error
	LoadLocations() ([]*model.Location, error)
	SaveLocations([]*model.Location) error
}

// EntryFailure records one changeset entry that could not be applied.
// A failed entry never aborts the rest of the pass.
type EntryFailure struct {
	Section string `json:"section"`
	Index   int    `json:"index"`
	Reason  string `json:"reason"`
}

// Result is the outcome of one reconciliation pass: an ordered changelog with
// one line per effective mutation, plus the entry-local failures
type Result struct {
	PassID    uuid.UUID      `json:"pass_id"`
	Changelog []string       `json:"changelog"`
	Failures  []EntryFailure `json:"failures"`
}

// Reconciler merges an accepted changeset into the persisted entity
// collections. It enforces dedup by name, relation upsert at the source only,
// and symmetric location adjacency; it performs no accept/reject policy of
// its own, the caller has already filtered the changeset.
type Reconciler struct {
	store EntityStore
	log   *slog.Logger
}

// NewReconciler creates a reconciler writing through the given store
func NewReconciler(store EntityStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store: store,
		log:   logger,
	}
}

func (r *Result) fail(section string, index int, reason string) {
	r.Failures = append(r.Failures, EntryFailure{Section: section, Index: index, Reason: reason})
}

func (r *Result) logf(format string, args ...interface{}) {
	r.Changelog = append(r.Changelog, fmt.Sprintf(format, args...))
}

// Apply runs one reconciliation pass. Processing order is load-bearing:
// character updates, new characters, relations, items, then new locations
// before connections, so a changeset introducing a location and a connection
// to it succeeds in a single pass. Apply returns the partial result together
// with the error when a collection write fails, so the caller can tell the
// user what had already been committed.
func (r *Reconciler) Apply(changeset *model.Changeset) (*Result, error) {
	result := &Result{
		PassID:    uuid.New(),
		Changelog: []string{},
		Failures:  []EntryFailure{},
	}

	characters, err := r.store.LoadCharacters()
	if err != nil {
		return nil, helper.NewError("load characters", err)
	}

	characters = r.applyCharacterUpdates(changeset, characters, result)
	characters = r.applyNewCharacters(changeset, characters, result)
	r.applyRelationUpdates(changeset, characters, result)

	if err := r.store.SaveCharacters(characters); err != nil {
		return result, helper.NewError("save characters", err)
	}

	items, err := r.store.LoadItems()
	if err != nil {
		return result, helper.NewError("load items", err)
	}

	items = r.applyItemChanges(changeset, items, result)

	if err := r.store.SaveItems(items); err != nil {
		return result, helper.NewError("save items", err)
	}

	locations, err := r.store.LoadLocations()
	if err != nil {
		return result, helper.NewError("load locations", err)
	}

	locations = r.applyNewLocations(changeset, locations, result)
	r.applyLocationConnections(changeset, locations, result)

	if err := r.store.SaveLocations(locations); err != nil {
		return result, helper.NewError("save locations", err)
	}

	r.log.Info("Applied changeset",
		slog.String("pass_id", result.PassID.String()),
		slog.Int("mutations", len(result.Changelog)),
		slog.Int("failures", len(result.Failures)))

	return result, nil
}

// applyCharacterUpdates overwrites single fields on existing characters.
// An update naming a character that does not exist is dropped without a
// failure: unmatched updates are specified as silent skips, not errors.
func (r *Reconciler) applyCharacterUpdates(changeset *model.Changeset, characters []*model.Character, result *Result) []*model.Character {
	for i, update := range changeset.CharUpdates {
		if update.Name == "" {
			result.fail("char_updates", i, "missing name")
			continue
		}
		if update.Field == "" {
			result.fail("char_updates", i, "missing field")
			continue
		}

		character := findCharacter(characters, update.Name)
		if character == nil {
			continue
		}

		changed, err := setCharacterField(character, update.Field, update.NewValue)
		if err != nil {
			result.fail("char_updates", i, err.Error())
			continue
		}
		if changed {
			result.logf("Updated character [%s]: %s -> %s", update.Name, update.Field, update.NewValue)
		}
	}

	return characters
}

func (r *Reconciler) applyNewCharacters(changeset *model.Changeset, characters []*model.Character, result *Result) []*model.Character {
	for i, newChar := range changeset.NewChars {
		if newChar.Name == "" {
			result.fail("new_chars", i, "missing name")
			continue
		}
		if findCharacter(characters, newChar.Name) != nil {
			continue
		}

		inserted := newChar
		if inserted.Relations == nil {
			inserted.Relations = []model.Relation{}
		}
		characters = append(characters, &inserted)
		result.logf("Added character: %s", inserted.Name)
	}

	return characters
}

// applyRelationUpdates upserts directed relations on the source character.
// An existing edge to the same target is overwritten (last write wins); the
// target character is never touched.
func (r *Reconciler) applyRelationUpdates(changeset *model.Changeset, characters []*model.Character, result *Result) {
	for i, update := range changeset.RelationUpdates {
		if update.Source == "" || update.Target == "" {
			result.fail("relation_updates", i, "missing source or target")
			continue
		}
		if update.Type == "" {
			result.fail("relation_updates", i, "missing type")
			continue
		}

		source := findCharacter(characters, update.Source)
		if source == nil {
			continue
		}

		if existing := source.RelationTo(update.Target); existing != nil {
			if existing.Type != update.Type {
				existing.Type = update.Type
				result.logf("Updated relation: %s -> %s (%s)", update.Source, update.Target, update.Type)
			}
			continue
		}

		source.Relations = append(source.Relations, model.Relation{Target: update.Target, Type: update.Type})
		result.logf("Added relation: %s -> %s (%s)", update.Source, update.Target, update.Type)
	}
}

func (r *Reconciler) applyItemChanges(changeset *model.Changeset, items []*model.Item, result *Result) []*model.Item {
	for i, update := range changeset.ItemUpdates {
		if update.Name == "" {
			result.fail("item_updates", i, "missing name")
			continue
		}
		if update.Field == "" {
			result.fail("item_updates", i, "missing field")
			continue
		}

		item := findItem(items, update.Name)
		if item == nil {
			continue
		}

		changed, err := setItemField(item, update.Field, update.NewValue)
		if err != nil {
			result.fail("item_updates", i, err.Error())
			continue
		}
		if changed {
			result.logf("Updated item [%s]: %s -> %s", update.Name, update.Field, update.NewValue)
		}
	}

	for i, newItem := range changeset.NewItems {
		if newItem.Name == "" {
			result.fail("new_items", i, "missing name")
			continue
		}
		if findItem(items, newItem.Name) != nil {
			continue
		}

		inserted := newItem
		items = append(items, &inserted)
		result.logf("Added item: %s", inserted.Name)
	}

	return items
}

// applyNewLocations runs before connection processing so a changeset that
// introduces a location and a connection to it succeeds in one pass
func (r *Reconciler) applyNewLocations(changeset *model.Changeset, locations []*model.Location, result *Result) []*model.Location {
	for i, newLoc := range changeset.NewLocs {
		if newLoc.Name == "" {
			result.fail("new_locs", i, "missing name")
			continue
		}
		if findLocation(locations, newLoc.Name) != nil {
			continue
		}

		inserted := newLoc
		if inserted.Neighbors == nil {
			inserted.Neighbors = []string{}
		}
		locations = append(locations, &inserted)
		result.logf("Added location: %s", inserted.Name)
	}

	return locations
}

// applyLocationConnections commits adjacency symmetrically regardless of the
// one-directional shape of the proposal. Re-applying an already committed
// connection changes neither list and emits no changelog line.
func (r *Reconciler) applyLocationConnections(changeset *model.Changeset, locations []*model.Location, result *Result) {
	for i, connection := range changeset.LocConnections {
		if connection.Source == "" || connection.Target == "" {
			result.fail("loc_connections", i, "missing source or target")
			continue
		}
		if connection.Source == connection.Target {
			result.fail("loc_connections", i, "self connection")
			continue
		}

		source := findLocation(locations, connection.Source)
		target := findLocation(locations, connection.Target)
		if source == nil || target == nil {
			continue
		}

		added := false
		if !source.HasNeighbor(target.Name) {
			source.Neighbors = append(source.Neighbors, target.Name)
			added = true
		}
		if !target.HasNeighbor(source.Name) {
			target.Neighbors = append(target.Neighbors, source.Name)
			added = true
		}

		if added {
			result.logf("Connected locations: %s <-> %s", source.Name, target.Name)
		}
	}
}

func findCharacter(characters []*model.Character, name string) *model.Character {
	for _, character := range characters {
		if character.Name == name {
			return character
		}
	}
	return nil
}

func findItem(items []*model.Item, name string) *model.Item {
	for _, item := range items {
		if item.Name == name {
			return item
		}
	}
	return nil
}

func findLocation(locations []*model.Location, name string) *model.Location {
	for _, location := range locations {
		if location.Name == name {
			return location
		}
	}
	return nil
}

// setCharacterField overwrites one mutable character field. The name is the
// identity key and cannot be rewritten through a field update.
func setCharacterField(character *model.Character, field string, value string) (bool, error) {
	var target *string
	switch field {
	case "gender":
		target = &character.Gender
	case "role":
		target = &character.Role
	case "status":
		target = &character.Status
	case "bio":
		target = &character.Bio
	default:
		return false, fmt.Errorf("unsupported character field %q", field)
	}

	if *target == value {
		return false, nil
	}
	*target = value
	return true, nil
}

func setItemField(item *model.Item, field string, value string) (bool, error) {
	var target *string
	switch field {
	case "type":
		target = &item.Type
	case "owner":
		target = &item.Owner
	case "desc":
		target = &item.Desc
	default:
		return false, fmt.Errorf("unsupported item field %q", field)
	}

	if *target == value {
		return false, nil
	}
	*target = value
	return true, nil
}
