// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package interpreter turns UI description documents into live element
// trees. It resolves type names through a renderer registry, substitutes
// state bindings and event descriptors into props, assigns stable rendering
// keys, and patches the retained tree when incremental updates arrive.
//
// Failures stay local: an unknown type or a failing renderer becomes a
// labeled placeholder at that node, never a failed build.
package interpreter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/internal/protocol"
	"github.com/MKhiriev/go-schema-sync/models"
)

// SupportedSchemaMajor is the description format major version this
// interpreter understands. Documents with a different major render a
// version-mismatch placeholder instead of failing.
const SupportedSchemaMajor = 1

// implicitRootID keys the synthetic column wrapping multi-root documents.
const implicitRootID = "__root__"

// Settings bound the interpreter's latency/size behaviour. Zero values take
// the defaults.
type Settings struct {
	// CoalesceWindow batches deltas arriving in quick succession into one
	// application. Zero or negative applies deltas immediately.
	CoalesceWindow time.Duration

	// LazyChildThreshold is the child count above which a node's list is
	// marked for lazy rendering.
	LazyChildThreshold int

	// LargePayloadBytes is the payload size above which update decoding
	// moves off the interactive goroutine.
	LargePayloadBytes int

	// BuildLatencyWarn is the parse+build duration above which a warning
	// is logged.
	BuildLatencyWarn time.Duration
}

func (s *Settings) applyDefaults() {
	if s.CoalesceWindow == 0 {
		s.CoalesceWindow = 300 * time.Millisecond
	}
	if s.LazyChildThreshold <= 0 {
		s.LazyChildThreshold = 20
	}
	if s.LargePayloadBytes <= 0 {
		s.LargePayloadBytes = 100 << 10
	}
	if s.BuildLatencyWarn <= 0 {
		s.BuildLatencyWarn = 2 * time.Second
	}
}

// Interpreter consumes description documents and updates, maintaining the
// retained element tree. All methods are safe for concurrent use, though
// the intended caller is a single runtime loop plus the coalescing timer.
type Interpreter struct {
	settings Settings
	registry *Registry
	keys     *KeyGenerator
	state    *StateStore
	events   *EventBridge
	resolver *propResolver
	logger   *logger.Logger

	mu           sync.Mutex
	schema       *models.UIDescription
	root         *Element
	lastSeq      uint64
	pending      []*models.SchemaDelta
	pendingReset bool
	debounce     *time.Timer
	onRebuild    func(*Element)
}

// NewInterpreter builds an interpreter over the given registry (nil gets a
// fresh built-in registry).
func NewInterpreter(registry *Registry, settings Settings, log *logger.Logger) *Interpreter {
	settings.applyDefaults()
	if registry == nil {
		registry = NewRegistry()
	}

	state := NewStateStore()
	events := NewEventBridge(log)

	return &Interpreter{
		settings: settings,
		registry: registry,
		keys:     NewKeyGenerator(),
		state:    state,
		events:   events,
		resolver: &propResolver{state: state, events: events},
		logger:   log,
	}
}

func (it *Interpreter) Registry() *Registry  { return it.registry }
func (it *Interpreter) State() *StateStore   { return it.state }
func (it *Interpreter) Events() *EventBridge { return it.events }
func (it *Interpreter) Keys() *KeyGenerator  { return it.keys }

// OnRebuild registers the callback invoked with the new root after an
// update-driven rebuild. Set it before traffic flows.
func (it *Interpreter) OnRebuild(fn func(*Element)) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.onRebuild = fn
}

// Root returns the retained element tree, nil before the first build.
func (it *Interpreter) Root() *Element {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.root
}

// LastSequence returns the highest applied update sequence number.
func (it *Interpreter) LastSequence() uint64 {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.lastSeq
}

// Interpret builds the element tree for a description document and retains
// it as the base for subsequent deltas. Keys issued by earlier builds are
// preserved for ids that survive.
func (it *Interpreter) Interpret(schema *models.UIDescription) *Element {
	it.mu.Lock()
	defer it.mu.Unlock()
	root, _ := it.interpretLocked(schema, true)
	return root
}

// Rebuild re-resolves the retained document against the current state store
// and replaces the tree. Used after state changes that affect bound props.
func (it *Interpreter) Rebuild() *Element {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.schema == nil {
		return it.root
	}
	it.root = it.buildRootsLocked(it.schema)
	return it.root
}

// HandleUpdate applies one update payload. Stale sequence numbers (at or
// below the last applied one) are ignored, reported via applied=false. Full
// updates verify the embedded checksum first and fail without touching the
// retained tree on mismatch; incremental updates enter the coalescing
// window. An update with preserveState=false resets declared state back to
// its initial values — for incremental updates this happens when the batch
// is applied. applyTime is the synchronous parse+build duration.
func (it *Interpreter) HandleUpdate(payload models.UpdatePayload) (applied bool, applyTime time.Duration, err error) {
	it.mu.Lock()

	if payload.SequenceNumber != 0 && payload.SequenceNumber <= it.lastSeq {
		it.logger.Debug().
			Uint64("sequence", payload.SequenceNumber).
			Uint64("lastApplied", it.lastSeq).
			Msg("stale update ignored")
		it.mu.Unlock()
		return false, 0, nil
	}

	switch payload.Type {
	case models.UpdateFull:
		if payload.Schema == nil {
			it.mu.Unlock()
			return false, 0, fmt.Errorf("%w: full update without schema", protocol.ErrInvalidMessage)
		}
		if payload.Checksum != "" {
			if err := protocol.VerifyChecksum(payload.Schema, payload.Checksum); err != nil {
				it.mu.Unlock()
				return false, 0, err
			}
		}

		if payload.PreserveState {
			if it.schema != nil {
				it.state.Migrate(collectStateDecls(it.schema.Nodes), collectStateDecls(payload.Schema.Nodes))
			}
		} else {
			it.state.Reset()
			it.keys.Reset()
		}

		root, elapsed := it.interpretLocked(payload.Schema, payload.PreserveState)
		it.lastSeq = payload.SequenceNumber
		it.mu.Unlock()

		it.notifyRebuild(root)
		return true, elapsed, nil

	case models.UpdateIncremental:
		if payload.Delta == nil {
			it.mu.Unlock()
			return false, 0, fmt.Errorf("%w: incremental update without delta", protocol.ErrInvalidMessage)
		}
		if it.schema == nil {
			it.mu.Unlock()
			return false, 0, ErrNoBaseSchema
		}
		if !payload.PreserveState {
			it.pendingReset = true
		}
		it.lastSeq = payload.SequenceNumber
		root := it.enqueueLocked(payload.Delta)
		it.mu.Unlock()

		if root != nil {
			it.notifyRebuild(root)
		}
		return true, 0, nil

	default:
		it.mu.Unlock()
		return false, 0, fmt.Errorf("%w: unknown update type %q", protocol.ErrInvalidMessage, payload.Type)
	}
}

// ApplyDelta queues one delta for application. Deltas arriving within the
// coalescing window batch into a single rebuild; a newer delta supersedes
// the pending batch's timer rather than scheduling a second application.
func (it *Interpreter) ApplyDelta(delta *models.SchemaDelta) error {
	it.mu.Lock()
	if it.schema == nil {
		it.mu.Unlock()
		return ErrNoBaseSchema
	}
	root := it.enqueueLocked(delta)
	it.mu.Unlock()

	if root != nil {
		it.notifyRebuild(root)
	}
	return nil
}

// ApplyPatch accepts a delta in either the native shape or a generic
// structural-patch op list and queues it like ApplyDelta.
func (it *Interpreter) ApplyPatch(raw json.RawMessage) error {
	delta, err := DecodeDelta(raw)
	if err != nil {
		return err
	}
	return it.ApplyDelta(delta)
}

// Flush forces immediate application of any pending coalesced deltas.
func (it *Interpreter) Flush() *Element {
	it.mu.Lock()
	root := it.flushLocked()
	it.mu.Unlock()

	if root != nil {
		it.notifyRebuild(root)
	}
	return root
}

// DecodedUpdate is the result of an off-path payload parse.
type DecodedUpdate struct {
	Payload models.UpdatePayload
	Err     error
}

// Oversized reports whether an envelope's payload crosses the off-path
// parse threshold.
func (it *Interpreter) Oversized(env models.Envelope) bool {
	return len(env.Payload) > it.settings.LargePayloadBytes
}

// DecodeUpdate decodes an update envelope's payload. Oversized payloads are
// parsed on a separate goroutine and communicated back over the returned
// channel only, so the interactive loop stays responsive (and can show a
// busy indicator) meanwhile; small payloads are decoded inline and the
// channel is ready immediately.
func (it *Interpreter) DecodeUpdate(env models.Envelope) <-chan DecodedUpdate {
	ch := make(chan DecodedUpdate, 1)
	decode := func() {
		var payload models.UpdatePayload
		err := protocol.DecodePayload(env, &payload)
		ch <- DecodedUpdate{Payload: payload, Err: err}
	}

	if it.Oversized(env) {
		go decode()
	} else {
		decode()
	}
	return ch
}

// DecodeDelta parses a delta from its native shape or from a generic op
// list ([{op:add|replace|remove, node|id}]).
func DecodeDelta(raw json.RawMessage) (*models.SchemaDelta, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty delta", protocol.ErrInvalidMessage)
	}

	if !strings.HasPrefix(trimmed, "[") {
		var delta models.SchemaDelta
		if err := json.Unmarshal(raw, &delta); err != nil {
			return nil, fmt.Errorf("%w: %v", protocol.ErrInvalidMessage, err)
		}
		return &delta, nil
	}

	var ops []struct {
		Op   string                  `json:"op"`
		ID   string                  `json:"id,omitempty"`
		Path string                  `json:"path,omitempty"`
		Node *models.DescriptionNode `json:"node,omitempty"`
	}
	if err := json.Unmarshal(raw, &ops); err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrInvalidMessage, err)
	}

	delta := &models.SchemaDelta{}
	for _, op := range ops {
		switch op.Op {
		case "add":
			if op.Node == nil {
				return nil, fmt.Errorf("%w: add op without node", protocol.ErrInvalidMessage)
			}
			delta.Added = append(delta.Added, *op.Node)
		case "replace", "modify":
			if op.Node == nil {
				return nil, fmt.Errorf("%w: %s op without node", protocol.ErrInvalidMessage, op.Op)
			}
			delta.Modified = append(delta.Modified, *op.Node)
		case "remove":
			id := op.ID
			if id == "" {
				id = strings.TrimPrefix(op.Path, "/")
			}
			if id == "" {
				return nil, fmt.Errorf("%w: remove op without id", protocol.ErrInvalidMessage)
			}
			delta.Removed = append(delta.Removed, id)
		default:
			return nil, fmt.Errorf("%w: unknown patch op %q", protocol.ErrInvalidMessage, op.Op)
		}
	}
	return delta, nil
}

// enqueueLocked adds a delta to the pending batch and arms (or re-arms) the
// coalescing timer. With no window configured it flushes inline and returns
// the new root.
func (it *Interpreter) enqueueLocked(delta *models.SchemaDelta) *Element {
	it.pending = append(it.pending, delta)

	if it.settings.CoalesceWindow <= 0 {
		return it.flushLocked()
	}
	if it.debounce == nil {
		it.debounce = time.AfterFunc(it.settings.CoalesceWindow, it.flushPending)
	} else {
		it.debounce.Reset(it.settings.CoalesceWindow)
	}
	return nil
}

func (it *Interpreter) flushPending() {
	it.mu.Lock()
	root := it.flushLocked()
	it.mu.Unlock()

	if root != nil {
		it.notifyRebuild(root)
	}
}

// flushLocked applies the pending batch to the retained document and
// rebuilds only the root-sequence subtrees the batch touched, reusing
// untouched elements.
func (it *Interpreter) flushLocked() *Element {
	if len(it.pending) == 0 {
		return nil
	}
	batch := it.pending
	it.pending = nil
	if it.debounce != nil {
		it.debounce.Stop()
		it.debounce = nil
	}

	next := it.schema
	changed := make(map[string]struct{})
	versionChanged := false
	for _, delta := range batch {
		for i := range delta.Added {
			changed[delta.Added[i].ID] = struct{}{}
		}
		for i := range delta.Modified {
			changed[delta.Modified[i].ID] = struct{}{}
		}
		for _, id := range delta.Removed {
			changed[id] = struct{}{}
		}
		if delta.MetadataChanges != nil && delta.MetadataChanges.Version != nil {
			versionChanged = true
		}
		next = protocol.ApplyDelta(next, delta)
	}

	if it.pendingReset {
		// State going back to initials invalidates bound props everywhere,
		// not just in the touched subtrees.
		it.pendingReset = false
		it.state.Reset()
		root, _ := it.interpretLocked(next, true)
		return root
	}
	if versionChanged || it.root == nil {
		root, _ := it.interpretLocked(next, true)
		return root
	}
	return it.rebuildChangedLocked(next, changed)
}

// interpretLocked is the full build path. preserveKeys keeps rendering keys
// for surviving ids; callers that want a clean identity slate reset the key
// generator beforehand.
func (it *Interpreter) interpretLocked(schema *models.UIDescription, preserveKeys bool) (*Element, time.Duration) {
	start := time.Now()

	if schema == nil {
		root := it.placeholderFor("__empty__", "__empty__", "empty view", nil)
		it.schema = nil
		it.root = root
		return root, time.Since(start)
	}

	if preserveKeys {
		it.keys.PrepareForUpdate()
		it.keys.ClearCache()
	}
	it.state.Declare(collectStateDecls(schema.Nodes))

	root := it.buildRootsLocked(schema)

	it.keys.CleanupAfterUpdate(liveIDs(schema.Nodes))
	it.schema = schema
	it.root = root

	elapsed := time.Since(start)
	if elapsed > it.settings.BuildLatencyWarn {
		it.logger.Warn().
			Dur("elapsed", elapsed).
			Int("roots", len(schema.Nodes)).
			Msg("interpretation exceeded target latency")
	}
	return root, elapsed
}

func (it *Interpreter) buildRootsLocked(schema *models.UIDescription) *Element {
	if !supportedVersion(schema.Version) {
		it.logger.Warn().
			Str("version", schema.Version).
			Msg("unsupported description version")
		label := fmt.Sprintf("unsupported description version %s", schema.Version)
		return it.placeholderFor("__version__", "__version__", label, nil)
	}

	seen := make(map[string]bool)
	built := make([]*Element, 0, len(schema.Nodes))
	for i := range schema.Nodes {
		built = append(built, it.buildNode(&schema.Nodes[i], seen))
	}
	return it.wrapRoots(built)
}

// wrapRoots handles the three root arities: zero roots render an empty
// placeholder, a single root builds directly, multiple roots get an
// implicit vertical grouping.
func (it *Interpreter) wrapRoots(built []*Element) *Element {
	switch len(built) {
	case 0:
		return it.placeholderFor("__empty__", "__empty__", "empty view", nil)
	case 1:
		return built[0]
	}

	reg, _, _ := it.registry.Resolve(TypeColumn)
	rn := &ResolvedNode{
		ID:       implicitRootID,
		Type:     TypeColumn,
		Key:      implicitRootID,
		Props:    map[string]any{},
		Children: built,
	}
	el, err := safeRender(reg.Render, rn)
	if err != nil {
		return it.placeholderFor(implicitRootID, implicitRootID, "render error", built)
	}
	return el
}

// buildNode builds one node bottom-up: children first, then prop
// resolution, then the renderer. Unknown types and renderer failures become
// labeled placeholders carrying the already-built children.
func (it *Interpreter) buildNode(node *models.DescriptionNode, seen map[string]bool) *Element {
	if seen[node.ID] {
		it.keys.RegisterConflict(node.ID)
		it.logger.Warn().Str("node", node.ID).Msg("duplicate node id in tree")
	} else {
		seen[node.ID] = true
	}

	children := make([]*Element, 0, len(node.Children))
	for i := range node.Children {
		children = append(children, it.buildNode(&node.Children[i], seen))
	}
	lazy := len(node.Children) > it.settings.LazyChildThreshold

	key := it.keys.GenerateKey(node.ID)

	reg, canonical, ok := it.registry.Resolve(node.Type)
	if !ok {
		it.logger.Warn().
			Str("node", node.ID).
			Str("type", node.Type).
			Msg("no renderer registered for node type")
		return it.placeholderFor(node.ID, key, "unknown type: "+node.Type, children)
	}

	rn := &ResolvedNode{
		ID:           node.ID,
		Type:         canonical,
		Key:          key,
		Props:        it.resolver.resolveProps(node.Props, reg.PropKinds),
		Children:     children,
		LazyChildren: lazy,
		Callbacks:    it.bindDeclaredEvents(node.Events),
		Meta:         node.Metadata,
	}

	el, err := safeRender(reg.Render, rn)
	if err != nil {
		it.logger.Warn().
			Err(err).
			Str("node", node.ID).
			Str("type", canonical).
			Msg("renderer failed, node replaced with placeholder")
		return it.placeholderFor(node.ID, key, "render error: "+node.ID, children)
	}
	return el
}

// rebuildChangedLocked rebuilds only the root-sequence nodes a delta batch
// touched, keeping every untouched element of the previous tree.
func (it *Interpreter) rebuildChangedLocked(next *models.UIDescription, changed map[string]struct{}) *Element {
	prev := make(map[string]*Element)
	if it.root != nil {
		if it.root.ID == implicitRootID {
			for _, child := range it.root.Children {
				prev[child.ID] = child
			}
		} else {
			prev[it.root.ID] = it.root
		}
	}

	start := time.Now()
	it.keys.PrepareForUpdate()
	it.keys.ClearCache()
	it.state.Declare(collectStateDecls(next.Nodes))

	seen := make(map[string]bool)
	built := make([]*Element, 0, len(next.Nodes))
	for i := range next.Nodes {
		node := &next.Nodes[i]
		if _, touched := changed[node.ID]; !touched {
			if el, ok := prev[node.ID]; ok {
				built = append(built, el)
				continue
			}
		}
		built = append(built, it.buildNode(node, seen))
	}
	root := it.wrapRoots(built)

	it.keys.CleanupAfterUpdate(liveIDs(next.Nodes))
	it.schema = next
	it.root = root

	if elapsed := time.Since(start); elapsed > it.settings.BuildLatencyWarn {
		it.logger.Warn().
			Dur("elapsed", elapsed).
			Int("changed", len(changed)).
			Msg("delta application exceeded target latency")
	}
	return root
}

func (it *Interpreter) placeholderFor(id, key, label string, children []*Element) *Element {
	rn := &ResolvedNode{
		ID:       id,
		Type:     TypePlaceholder,
		Key:      key,
		Props:    map[string]any{"label": label},
		Children: children,
	}

	reg, _, ok := it.registry.Resolve(TypePlaceholder)
	if ok {
		if el, err := safeRender(reg.Render, rn); err == nil {
			return el
		}
	}
	return rn.Element()
}

func (it *Interpreter) bindDeclaredEvents(decls []models.EventDecl) map[string]EventCallback {
	if len(decls) == 0 {
		return nil
	}
	bridge := it.events
	callbacks := make(map[string]EventCallback, len(decls))
	for _, d := range decls {
		action := d.Action
		if action == "" {
			action = d.Name
		}
		callbacks[d.Name] = func(data map[string]any) {
			bridge.TriggerEvent(action, data)
		}
	}
	return callbacks
}

func (it *Interpreter) notifyRebuild(root *Element) {
	it.mu.Lock()
	fn := it.onRebuild
	it.mu.Unlock()
	if fn != nil {
		fn(root)
	}
}

func safeRender(render RenderFunc, node *ResolvedNode) (el *Element, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panic: %v", r)
		}
	}()
	return render(node)
}

func supportedVersion(version string) bool {
	major, _, _ := strings.Cut(strings.TrimPrefix(version, "v"), ".")
	n, err := strconv.Atoi(major)
	return err == nil && n == SupportedSchemaMajor
}

func collectStateDecls(nodes []models.DescriptionNode) []models.StateDecl {
	var decls []models.StateDecl
	var walk func(nodes []models.DescriptionNode)
	walk = func(nodes []models.DescriptionNode) {
		for i := range nodes {
			decls = append(decls, nodes[i].State...)
			walk(nodes[i].Children)
		}
	}
	walk(nodes)
	return decls
}

func liveIDs(nodes []models.DescriptionNode) map[string]struct{} {
	ids := make(map[string]struct{})
	var walk func(nodes []models.DescriptionNode)
	walk = func(nodes []models.DescriptionNode) {
		for i := range nodes {
			ids[nodes[i].ID] = struct{}{}
			walk(nodes[i].Children)
		}
	}
	walk(nodes)
	return ids
}
