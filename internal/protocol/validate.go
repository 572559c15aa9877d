package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/MKhiriev/go-schema-sync/models"
)

// Validate checks an envelope's base fields first, then its type-specific
// payload shape. A nil error means the message is safe to route.
func Validate(env models.Envelope) error {
	if env.Type == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidMessage)
	}
	if env.SessionID == "" {
		return fmt.Errorf("%w: missing sessionId", ErrInvalidMessage)
	}
	if env.Timestamp <= 0 {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidMessage)
	}
	if env.Version == "" {
		return fmt.Errorf("%w: missing version", ErrInvalidMessage)
	}
	if _, err := parseSemver(env.Version); err != nil {
		return fmt.Errorf("%w: bad version %q", ErrInvalidMessage, env.Version)
	}

	switch env.Type {
	case models.MessageConnect:
		return validateConnect(env)
	case models.MessageConnected:
		return validateConnected(env)
	case models.MessageUpdate:
		return validateUpdate(env)
	case models.MessageReload:
		return validateReload(env)
	case models.MessageError:
		return validateError(env)
	case models.MessagePing:
		return validatePing(env)
	case models.MessagePong:
		return decodeOnly[models.PongPayload](env)
	case models.MessageAck:
		return validateAck(env)
	case models.MessageEvent:
		return validateEvent(env)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, env.Type)
	}
}

func validateConnect(env models.Envelope) error {
	var p models.ConnectPayload
	if err := DecodePayload(env, &p); err != nil {
		return err
	}
	if p.DeviceID == "" {
		return fmt.Errorf("%w: connect missing deviceId", ErrInvalidMessage)
	}
	if p.Platform == "" {
		return fmt.Errorf("%w: connect missing platform", ErrInvalidMessage)
	}
	if p.ClientVersion == "" {
		return fmt.Errorf("%w: connect missing clientVersion", ErrInvalidMessage)
	}
	if p.Role != "" && p.Role != models.RoleDevice && p.Role != models.RoleEditor {
		return fmt.Errorf("%w: connect has unknown role %q", ErrInvalidMessage, p.Role)
	}
	return nil
}

func validateConnected(env models.Envelope) error {
	var p models.ConnectedPayload
	if err := DecodePayload(env, &p); err != nil {
		return err
	}
	if p.ConnectionID == "" {
		return fmt.Errorf("%w: connected missing connectionId", ErrInvalidMessage)
	}
	return nil
}

func validateUpdate(env models.Envelope) error {
	var p models.UpdatePayload
	if err := DecodePayload(env, &p); err != nil {
		return err
	}
	if p.SequenceNumber == 0 {
		return fmt.Errorf("%w: update missing sequenceNumber", ErrInvalidMessage)
	}

	switch p.Type {
	case models.UpdateFull:
		if p.Schema == nil {
			return fmt.Errorf("%w: full update missing schema", ErrInvalidMessage)
		}
		if p.Delta != nil {
			return fmt.Errorf("%w: full update carries a delta", ErrInvalidMessage)
		}
		if p.Checksum == "" {
			return fmt.Errorf("%w: full update missing checksum", ErrInvalidMessage)
		}
	case models.UpdateIncremental:
		if p.Delta == nil {
			return fmt.Errorf("%w: incremental update missing delta", ErrInvalidMessage)
		}
		if p.Schema != nil {
			return fmt.Errorf("%w: incremental update carries a schema", ErrInvalidMessage)
		}
	default:
		return fmt.Errorf("%w: update has unknown kind %q", ErrInvalidMessage, p.Type)
	}
	return nil
}

func validateReload(env models.Envelope) error {
	var p models.ReloadPayload
	if err := DecodePayload(env, &p); err != nil {
		return err
	}
	switch p.Reason {
	case models.ReloadError, models.ReloadManual, models.ReloadIncompatible:
		return nil
	default:
		return fmt.Errorf("%w: reload has unknown reason %q", ErrInvalidMessage, p.Reason)
	}
}

func validateError(env models.Envelope) error {
	var p models.ErrorPayload
	if err := DecodePayload(env, &p); err != nil {
		return err
	}
	if p.Code == "" {
		return fmt.Errorf("%w: error missing code", ErrInvalidMessage)
	}
	if p.Message == "" {
		return fmt.Errorf("%w: error missing message", ErrInvalidMessage)
	}
	switch p.Severity {
	case models.SeverityWarning, models.SeverityError, models.SeverityFatal:
		return nil
	default:
		return fmt.Errorf("%w: error has unknown severity %q", ErrInvalidMessage, p.Severity)
	}
}

func validatePing(env models.Envelope) error {
	// Bare pings are valid; the status payload is optional.
	if len(env.Payload) == 0 {
		return nil
	}
	var p models.PingPayload
	if err := DecodePayload(env, &p); err != nil {
		return err
	}
	switch p.Status {
	case "", "idle", "rendering", "updating":
		return nil
	default:
		return fmt.Errorf("%w: ping has unknown status %q", ErrInvalidMessage, p.Status)
	}
}

func validateAck(env models.Envelope) error {
	var p models.AckPayload
	if err := DecodePayload(env, &p); err != nil {
		return err
	}
	if p.SequenceNumber == 0 {
		return fmt.Errorf("%w: ack missing sequenceNumber", ErrInvalidMessage)
	}
	return nil
}

func validateEvent(env models.Envelope) error {
	var p models.EventPayload
	if err := DecodePayload(env, &p); err != nil {
		return err
	}
	if p.Action == "" {
		return fmt.Errorf("%w: event missing action", ErrInvalidMessage)
	}
	return nil
}

func decodeOnly[T any](env models.Envelope) error {
	var p T
	return DecodePayload(env, &p)
}

// ValidateDescription checks the structural invariants of a UI description:
// a non-empty format version and, for every node in the tree, a non-empty id
// unique within the tree and a non-empty type name.
func ValidateDescription(schema *models.UIDescription) error {
	if schema == nil {
		return fmt.Errorf("%w: nil description", ErrSchemaValidation)
	}
	if schema.Version == "" {
		return fmt.Errorf("%w: missing version", ErrSchemaValidation)
	}

	seen := make(map[string]struct{})
	var walk func(nodes []models.DescriptionNode) error
	walk = func(nodes []models.DescriptionNode) error {
		for i := range nodes {
			n := &nodes[i]
			if n.ID == "" {
				return fmt.Errorf("%w: node without id (type %q)", ErrSchemaValidation, n.Type)
			}
			if n.Type == "" {
				return fmt.Errorf("%w: node %q without type", ErrSchemaValidation, n.ID)
			}
			if _, dup := seen[n.ID]; dup {
				return fmt.Errorf("%w: duplicate node id %q", ErrSchemaValidation, n.ID)
			}
			seen[n.ID] = struct{}{}
			if err := walk(n.Children); err != nil {
				return err
			}
		}
		return nil
	}

	return walk(schema.Nodes)
}

// canonicalJSON round-trips v through generic JSON values so that map keys
// come out sorted. encoding/json marshals map[string]any keys in sorted
// order, which makes the output independent of struct field order and of
// the producer's key order.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}

	return json.Marshal(generic)
}
