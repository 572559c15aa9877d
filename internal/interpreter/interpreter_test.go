package interpreter

import (
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/internal/protocol"
	"github.com/MKhiriev/go-schema-sync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// immediate turns off delta coalescing so tests observe synchronous flushes.
func immediate() Settings {
	return Settings{CoalesceWindow: -1}
}

func newTestInterpreter(t *testing.T, settings Settings) *Interpreter {
	t.Helper()
	return NewInterpreter(NewRegistry(), settings, logger.Nop())
}

func docWithNodes(nodes ...models.DescriptionNode) *models.UIDescription {
	return &models.UIDescription{Version: "1.0.0", Nodes: nodes}
}

func textNode(id, value string) models.DescriptionNode {
	return models.DescriptionNode{ID: id, Type: "text", Props: map[string]any{"value": value}}
}

func TestInterpretSingleRoot(t *testing.T) {
	it := newTestInterpreter(t, immediate())

	root := it.Interpret(docWithNodes(models.DescriptionNode{
		ID:   "screen",
		Type: "container",
		Children: []models.DescriptionNode{
			textNode("greeting", "hello"),
		},
	}))

	require.NotNil(t, root)
	assert.Equal(t, TypeContainer, root.Type)
	assert.Equal(t, "screen", root.Key)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "hello", root.Children[0].Render(80))
}

func TestInterpretMultipleRootsWrapImplicitColumn(t *testing.T) {
	it := newTestInterpreter(t, immediate())

	root := it.Interpret(docWithNodes(textNode("a", "one"), textNode("b", "two")))

	assert.Equal(t, TypeColumn, root.Type)
	assert.Equal(t, implicitRootID, root.ID)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "one\ntwo", root.Render(80))
}

func TestInterpretEmptyDocument(t *testing.T) {
	it := newTestInterpreter(t, immediate())

	root := it.Interpret(docWithNodes())

	assert.Equal(t, TypePlaceholder, root.Type)
	assert.Equal(t, "empty view", root.StringProp("label"))
}

func TestUnsupportedVersionShowsPlaceholder(t *testing.T) {
	it := newTestInterpreter(t, immediate())

	doc := docWithNodes(textNode("a", "one"))
	doc.Version = "2.0.0"

	root := it.Interpret(doc)

	assert.Equal(t, TypePlaceholder, root.Type)
	assert.Contains(t, root.StringProp("label"), "2.0.0")
}

func TestUnknownTypeRendersLabeledPlaceholder(t *testing.T) {
	it := newTestInterpreter(t, immediate())

	root := it.Interpret(docWithNodes(models.DescriptionNode{
		ID:   "viz",
		Type: "chart",
		Children: []models.DescriptionNode{
			textNode("caption", "still visible"),
		},
	}))

	assert.Equal(t, TypePlaceholder, root.Type)
	assert.Equal(t, "unknown type: chart", root.StringProp("label"))
	// the unknown node's children still render beneath the marker
	require.Len(t, root.Children, 1)
	assert.Contains(t, root.Render(80), "still visible")
}

func TestRendererFailureContainedToNode(t *testing.T) {
	it := newTestInterpreter(t, immediate())
	require.NoError(t, it.Registry().RegisterRenderer("crashy", Registration{
		Render: func(*ResolvedNode) (*Element, error) {
			panic("renderer bug")
		},
	}))

	root := it.Interpret(docWithNodes(
		models.DescriptionNode{
			ID:   "bad",
			Type: "crashy",
			Children: []models.DescriptionNode{
				textNode("inner", "child survives"),
			},
		},
		textNode("good", "sibling survives"),
	))

	require.Len(t, root.Children, 2)
	failed := root.Children[0]
	assert.Equal(t, TypePlaceholder, failed.Type)
	assert.Contains(t, failed.StringProp("label"), "render error")
	assert.Contains(t, failed.Render(80), "child survives")
	assert.Equal(t, "sibling survives", root.Children[1].Render(80))
}

func TestAliasResolution(t *testing.T) {
	it := newTestInterpreter(t, immediate())

	root := it.Interpret(docWithNodes(models.DescriptionNode{
		ID:    "cta",
		Type:  "Button",
		Props: map[string]any{"label": "Save"},
	}))

	assert.Equal(t, TypePressable, root.Type)
	assert.Equal(t, "[ Save ]", root.Render(80))
}

func TestCustomRendererShadowsBuiltin(t *testing.T) {
	it := newTestInterpreter(t, immediate())
	require.NoError(t, it.Registry().RegisterRenderer("text", Registration{
		Render: func(node *ResolvedNode) (*Element, error) {
			el := node.Element()
			el.View = func(int) string { return ">> " + el.StringProp("value") }
			return el, nil
		},
	}))

	root := it.Interpret(docWithNodes(textNode("a", "hello")))

	assert.Equal(t, ">> hello", root.Render(80))
}

func TestDollarBindingTakesStateValue(t *testing.T) {
	it := newTestInterpreter(t, immediate())

	root := it.Interpret(docWithNodes(models.DescriptionNode{
		ID:    "counter",
		Type:  "text",
		Props: map[string]any{"value": "$count"},
		State: []models.StateDecl{
			{Name: "count", Type: TypeNumber, Scope: ScopeLocal, Initial: float64(5), Mutable: true},
		},
	}))

	assert.Equal(t, float64(5), root.Props["value"])

	it.State().SetValue("count", float64(6))
	rebuilt := it.Rebuild()
	assert.Equal(t, float64(6), rebuilt.Props["value"])
	assert.Equal(t, root.Key, rebuilt.Key, "identity survives state-driven rebuilds")
}

func TestDollarBindingUnresolvedIsEmpty(t *testing.T) {
	it := newTestInterpreter(t, immediate())

	root := it.Interpret(docWithNodes(models.DescriptionNode{
		ID:    "a",
		Type:  "text",
		Props: map[string]any{"value": "$missing"},
	}))

	assert.Equal(t, "", root.Props["value"])
}

func TestBraceBindingSubstitutesSegments(t *testing.T) {
	it := newTestInterpreter(t, immediate())

	root := it.Interpret(docWithNodes(models.DescriptionNode{
		ID:    "a",
		Type:  "text",
		Props: map[string]any{"value": "Hi {{user}}, {{count}} new, {{missing}} gone"},
		State: []models.StateDecl{
			{Name: "user", Type: TypeString, Scope: ScopeGlobal, Initial: "sam"},
			{Name: "count", Type: TypeNumber, Scope: ScopeLocal, Initial: float64(3)},
		},
	}))

	assert.Equal(t, "Hi sam, 3 new,  gone", root.Props["value"])
}

func TestEventBindingBecomesCallback(t *testing.T) {
	it := newTestInterpreter(t, immediate())

	var got models.EventPayload
	it.Events().Connect(func(p models.EventPayload) error {
		got = p
		return nil
	})

	root := it.Interpret(docWithNodes(models.DescriptionNode{
		ID:   "cta",
		Type: "pressable",
		Props: map[string]any{
			"label":   "Save",
			"onPress": map[string]any{"action": "save", "payload": map[string]any{"id": float64(1)}, "withData": true},
		},
	}))

	cb := root.Callback("onPress")
	require.NotNil(t, cb)
	cb(map[string]any{"source": "test"})

	assert.Equal(t, "save", got.Action)
	assert.Equal(t, float64(1), got.Payload["id"])
	assert.Equal(t, "test", got.Payload["source"])
}

func TestPlainObjectPropIsNotABinding(t *testing.T) {
	it := newTestInterpreter(t, immediate())

	props := map[string]any{
		"style": map[string]any{"action": "none", "color": "red"},
	}
	root := it.Interpret(docWithNodes(models.DescriptionNode{ID: "a", Type: "container", Props: props}))

	// the extra "color" key disqualifies the descriptor shape
	style, ok := root.Props["style"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "red", style["color"])
}

func TestStringCoercionForDeclaredKinds(t *testing.T) {
	it := newTestInterpreter(t, immediate())

	root := it.Interpret(docWithNodes(models.DescriptionNode{
		ID:    "opt",
		Type:  "toggle",
		Props: map[string]any{"value": "true", "label": "opt in"},
	}))

	assert.Equal(t, true, root.Props["value"])
	assert.Equal(t, "[x] opt in", root.Render(80))
}

func TestLazyHintBeyondChildThreshold(t *testing.T) {
	it := newTestInterpreter(t, Settings{CoalesceWindow: -1, LazyChildThreshold: 3})

	children := make([]models.DescriptionNode, 4)
	for i := range children {
		children[i] = textNode(string(rune('a'+i)), "row")
	}
	root := it.Interpret(docWithNodes(models.DescriptionNode{ID: "l", Type: "list", Children: children}))

	assert.True(t, root.Lazy)
	assert.Contains(t, root.Render(80), "(4 items)")
}

func TestHandleUpdateFullVerifiesChecksum(t *testing.T) {
	it := newTestInterpreter(t, immediate())

	doc := docWithNodes(textNode("a", "one"))
	sum, err := protocol.CalculateChecksum(doc)
	require.NoError(t, err)

	applied, _, err := it.HandleUpdate(models.UpdatePayload{
		Type: models.UpdateFull, Schema: doc, SequenceNumber: 1, Checksum: sum,
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, uint64(1), it.LastSequence())

	// a corrupted checksum is rejected without touching the tree
	tampered := docWithNodes(textNode("a", "two"))
	_, _, err = it.HandleUpdate(models.UpdatePayload{
		Type: models.UpdateFull, Schema: tampered, SequenceNumber: 2, Checksum: sum,
	})
	assert.ErrorIs(t, err, protocol.ErrChecksumMismatch)
	assert.Equal(t, "one", it.Root().Render(80))
	assert.Equal(t, uint64(1), it.LastSequence())
}

func TestHandleUpdateIgnoresStaleSequence(t *testing.T) {
	it := newTestInterpreter(t, immediate())

	_, _, err := it.HandleUpdate(models.UpdatePayload{
		Type: models.UpdateFull, Schema: docWithNodes(textNode("a", "new")), SequenceNumber: 5,
	})
	require.NoError(t, err)

	applied, _, err := it.HandleUpdate(models.UpdatePayload{
		Type: models.UpdateFull, Schema: docWithNodes(textNode("a", "old")), SequenceNumber: 5,
	})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, "new", it.Root().Render(80))
}

func TestIncrementalWithoutBaseFails(t *testing.T) {
	it := newTestInterpreter(t, immediate())

	_, _, err := it.HandleUpdate(models.UpdatePayload{
		Type: models.UpdateIncremental, Delta: &models.SchemaDelta{}, SequenceNumber: 1,
	})
	assert.ErrorIs(t, err, ErrNoBaseSchema)
}

func TestDeltaPatchesRetainedTree(t *testing.T) {
	it := newTestInterpreter(t, immediate())

	it.Interpret(docWithNodes(textNode("a", "one"), textNode("b", "two")))

	keep := it.Root().Children[0]

	require.NoError(t, it.ApplyDelta(&models.SchemaDelta{
		Modified: []models.DescriptionNode{textNode("b", "two!")},
		Added:    []models.DescriptionNode{textNode("c", "three")},
	}))

	root := it.Root()
	require.Len(t, root.Children, 3)
	assert.Same(t, keep, root.Children[0], "untouched subtree is reused")
	assert.Equal(t, "two!", root.Children[1].Render(80))
	assert.Equal(t, "three", root.Children[2].Render(80))

	require.NoError(t, it.ApplyDelta(&models.SchemaDelta{Removed: []string{"a"}}))
	assert.Len(t, it.Root().Children, 2)
}

func TestDeltasCoalesceWithinWindow(t *testing.T) {
	it := newTestInterpreter(t, Settings{CoalesceWindow: 40 * time.Millisecond})

	it.Interpret(docWithNodes(textNode("a", "one")))

	var rebuilds atomic.Int32
	it.OnRebuild(func(*Element) { rebuilds.Add(1) })

	require.NoError(t, it.ApplyDelta(&models.SchemaDelta{
		Modified: []models.DescriptionNode{textNode("a", "two")},
	}))
	require.NoError(t, it.ApplyDelta(&models.SchemaDelta{
		Added: []models.DescriptionNode{textNode("b", "three")},
	}))

	assert.Eventually(t, func() bool { return rebuilds.Load() == 1 }, time.Second, 5*time.Millisecond)
	// both deltas landed in the single batched application
	root := it.Root()
	require.Len(t, root.Children, 2)
	assert.Equal(t, "two\nthree", root.Render(80))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), rebuilds.Load(), "one batch, one rebuild")
}

func TestApplyPatchAcceptsOpList(t *testing.T) {
	it := newTestInterpreter(t, immediate())
	it.Interpret(docWithNodes(textNode("a", "one"), textNode("b", "two")))

	patch := json.RawMessage(`[
		{"op": "replace", "node": {"id": "a", "type": "text", "props": {"value": "ONE"}, "metadata": {"line": 1}}},
		{"op": "remove", "id": "b"}
	]`)
	require.NoError(t, it.ApplyPatch(patch))

	root := it.Root()
	assert.Equal(t, "ONE", root.Render(80))
}

func TestDecodeDeltaRejectsUnknownOp(t *testing.T) {
	_, err := DecodeDelta(json.RawMessage(`[{"op": "teleport", "id": "a"}]`))
	assert.ErrorIs(t, err, protocol.ErrInvalidMessage)
}

func TestStatePreservedAcrossFullUpdate(t *testing.T) {
	it := newTestInterpreter(t, immediate())

	withCounter := func(value string) *models.UIDescription {
		return docWithNodes(models.DescriptionNode{
			ID:    "counter",
			Type:  "text",
			Props: map[string]any{"value": value},
			State: []models.StateDecl{
				{Name: "count", Type: TypeNumber, Scope: ScopeLocal, Initial: float64(0), Mutable: true},
			},
		})
	}

	_, _, err := it.HandleUpdate(models.UpdatePayload{
		Type: models.UpdateFull, Schema: withCounter("$count"), SequenceNumber: 1, PreserveState: true,
	})
	require.NoError(t, err)
	it.State().SetValue("count", float64(9))

	_, _, err = it.HandleUpdate(models.UpdatePayload{
		Type: models.UpdateFull, Schema: withCounter("$count"), SequenceNumber: 2, PreserveState: true,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(9), it.Root().Props["value"])

	_, _, err = it.HandleUpdate(models.UpdatePayload{
		Type: models.UpdateFull, Schema: withCounter("$count"), SequenceNumber: 3, PreserveState: false,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(0), it.Root().Props["value"], "without preservation the initial value applies")
}

func TestIncrementalUpdateWithoutPreserveResetsState(t *testing.T) {
	it := newTestInterpreter(t, immediate())

	counter := models.DescriptionNode{
		ID:    "counter",
		Type:  "text",
		Props: map[string]any{"value": "$count"},
		State: []models.StateDecl{
			{Name: "count", Type: TypeNumber, Scope: ScopeLocal, Initial: float64(0), Mutable: true},
		},
	}

	_, _, err := it.HandleUpdate(models.UpdatePayload{
		Type: models.UpdateFull, Schema: docWithNodes(counter, textNode("b", "two")), SequenceNumber: 1, PreserveState: true,
	})
	require.NoError(t, err)
	it.State().SetValue("count", float64(9))
	it.Rebuild()
	assert.Equal(t, float64(9), it.Root().Children[0].Props["value"])

	applied, _, err := it.HandleUpdate(models.UpdatePayload{
		Type:           models.UpdateIncremental,
		Delta:          &models.SchemaDelta{Modified: []models.DescriptionNode{textNode("b", "two!")}},
		SequenceNumber: 2,
		PreserveState:  false,
	})
	require.NoError(t, err)
	assert.True(t, applied)

	root := it.Root()
	assert.Equal(t, "two!", root.Children[1].Render(80))
	count, ok := it.State().Get("count")
	require.True(t, ok)
	assert.Equal(t, float64(0), count, "declared state returns to its initial value")
	assert.Equal(t, float64(0), root.Children[0].Props["value"],
		"bound props outside the patched subtree pick up the reset")
}

// A full update without state preservation must reproduce exactly what a
// fresh interpreter would build, regardless of key-cache leftovers from the
// earlier connection.
func TestFullUpdateMatchesFreshInterpret(t *testing.T) {
	doc := docWithNodes(textNode("a", "one"), textNode("b", "two"))

	stale := newTestInterpreter(t, immediate())
	stale.Interpret(docWithNodes(textNode("a", "old"), textNode("gone", "x")))
	stale.Keys().RegisterConflict("a") // leftover conflict from the prior tree

	_, _, err := stale.HandleUpdate(models.UpdatePayload{
		Type: models.UpdateFull, Schema: doc, SequenceNumber: 1, PreserveState: false,
	})
	require.NoError(t, err)

	fresh := newTestInterpreter(t, immediate())
	assertSameTree(t, fresh.Interpret(doc), stale.Root())
}

func assertSameTree(t *testing.T, want, got *Element) {
	t.Helper()
	require.Equal(t, want.Type, got.Type)
	require.Equal(t, want.Key, got.Key)
	require.Equal(t, want.Render(80), got.Render(80))
	require.Len(t, got.Children, len(want.Children))
	for i := range want.Children {
		assertSameTree(t, want.Children[i], got.Children[i])
	}
}

func TestOversizedPayloadDecodesOffPath(t *testing.T) {
	it := newTestInterpreter(t, Settings{CoalesceWindow: -1, LargePayloadBytes: 64})

	payload := models.UpdatePayload{
		Type:           models.UpdateFull,
		Schema:         docWithNodes(textNode("a", "a rather long value to cross the size threshold")),
		SequenceNumber: 1,
	}
	env, err := protocol.NewEnvelope(models.MessageUpdate, "session-1", payload)
	require.NoError(t, err)

	require.True(t, it.Oversized(env))

	select {
	case decoded := <-it.DecodeUpdate(env):
		require.NoError(t, decoded.Err)
		assert.Equal(t, models.UpdateFull, decoded.Payload.Type)
		assert.Equal(t, uint64(1), decoded.Payload.SequenceNumber)
	case <-time.After(time.Second):
		t.Fatal("off-path decode never completed")
	}
}
