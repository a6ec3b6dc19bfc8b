package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

type ActorKind string

const (
	ActorManager ActorKind = "manager"
	ActorCashier ActorKind = "cashier"
)

func (k ActorKind) Valid() bool {
	return k == ActorManager || k == ActorCashier
}

// ActorID names the account that performed an operation. Managers and cashiers
// live in separate identity tables with different key shapes, so the kind is
// always carried explicitly and never guessed from the id.
type ActorID struct {
	Kind      ActorKind
	ManagerID uuid.UUID
	CashierID int64
}

var ErrInvalidActor = errors.New("invalid actor id")

func ManagerActor(id uuid.UUID) ActorID {
	return ActorID{Kind: ActorManager, ManagerID: id}
}

func CashierActor(id int64) ActorID {
	return ActorID{Kind: ActorCashier, CashierID: id}
}

func (a ActorID) IsManager() bool { return a.Kind == ActorManager }
func (a ActorID) IsCashier() bool { return a.Kind == ActorCashier }
func (a ActorID) IsZero() bool    { return a.Kind == "" }

func (a ActorID) Valid() bool {
	switch a.Kind {
	case ActorManager:
		return a.ManagerID != uuid.Nil
	case ActorCashier:
		return a.CashierID > 0
	default:
		return false
	}
}

// Key is the bare id in string form: the uuid for managers, the decimal id for
// cashiers. Join requests and token subjects store it next to the kind.
func (a ActorID) Key() string {
	switch a.Kind {
	case ActorManager:
		return a.ManagerID.String()
	case ActorCashier:
		return strconv.FormatInt(a.CashierID, 10)
	default:
		return ""
	}
}

func (a ActorID) String() string {
	if a.IsZero() {
		return ""
	}
	return string(a.Kind) + ":" + a.Key()
}

// ParseActor rebuilds an ActorID from its kind and Key form.
func ParseActor(kind ActorKind, key string) (ActorID, error) {
	switch kind {
	case ActorManager:
		id, err := uuid.Parse(key)
		if err != nil || id == uuid.Nil {
			return ActorID{}, fmt.Errorf("%w: manager id %q", ErrInvalidActor, key)
		}
		return ManagerActor(id), nil
	case ActorCashier:
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id <= 0 {
			return ActorID{}, fmt.Errorf("%w: cashier id %q", ErrInvalidActor, key)
		}
		return CashierActor(id), nil
	default:
		return ActorID{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidActor, kind)
	}
}

type actorWire struct {
	Kind ActorKind       `json:"kind"`
	ID   json.RawMessage `json:"id"`
}

func (a ActorID) MarshalJSON() ([]byte, error) {
	if a.IsZero() {
		return []byte("null"), nil
	}
	var id any
	switch a.Kind {
	case ActorManager:
		id = a.ManagerID.String()
	case ActorCashier:
		id = a.CashierID
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidActor, a.Kind)
	}
	return json.Marshal(struct {
		Kind ActorKind `json:"kind"`
		ID   any       `json:"id"`
	}{Kind: a.Kind, ID: id})
}

func (a *ActorID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = ActorID{}
		return nil
	}
	var wire actorWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Kind {
	case ActorManager:
		var raw string
		if err := json.Unmarshal(wire.ID, &raw); err != nil {
			return fmt.Errorf("%w: manager id must be a string", ErrInvalidActor)
		}
		parsed, err := ParseActor(ActorManager, raw)
		if err != nil {
			return err
		}
		*a = parsed
	case ActorCashier:
		var raw int64
		if err := json.Unmarshal(wire.ID, &raw); err != nil {
			return fmt.Errorf("%w: cashier id must be an integer", ErrInvalidActor)
		}
		if raw <= 0 {
			return fmt.Errorf("%w: cashier id %d", ErrInvalidActor, raw)
		}
		*a = CashierActor(raw)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidActor, wire.Kind)
	}
	return nil
}

// Principal is the authenticated account resolved for a request.
type Principal struct {
	ID        ActorID
	Name      string
	StoreID   int64
	StoreName string
}

func (p Principal) HasStore() bool {
	return p.StoreID > 0
}
