// Package auth guards the API with static keys configured as
// key:label:role|role entries.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"slices"
	"strings"
)

// RoleAnalyst may ask questions and read the ledger.
const RoleAnalyst = "analyst"

// Identity is the caller behind an API key. Label names the key holder in
// logs and carries no access rules of its own.
type Identity struct {
	Label string
	Roles []string
}

func (i Identity) HasRole(role string) bool {
	_, found := slices.BinarySearch(i.Roles, role)
	return found
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

type staticKey struct {
	key      []byte
	identity Identity
}

type StaticAPIKeyValidator struct {
	keys []staticKey
}

func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	seen := map[string]struct{}{}
	for _, entry := range strings.Split(spec, ",") {
		key, identity, err := parseKeyEntry(entry)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("invalid static key entry %q: duplicate key", entry)
		}
		seen[key] = struct{}{}
		validator.keys = append(validator.keys, staticKey{key: []byte(key), identity: identity})
	}
	return validator, nil
}

func parseKeyEntry(entry string) (string, Identity, error) {
	parts := strings.Split(strings.TrimSpace(entry), ":")
	if len(parts) != 3 {
		return "", Identity{}, fmt.Errorf("invalid static key entry %q: expected key:label:role|role", entry)
	}
	key := strings.TrimSpace(parts[0])
	label := strings.TrimSpace(parts[1])
	if key == "" || label == "" {
		return "", Identity{}, fmt.Errorf("invalid static key entry %q: empty key/label", entry)
	}

	var roles []string
	for _, role := range strings.Split(parts[2], "|") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		return "", Identity{}, fmt.Errorf("invalid static key entry %q: at least one role is required", entry)
	}
	slices.Sort(roles)
	return key, Identity{Label: label, Roles: slices.Compact(roles)}, nil
}

// Validate compares apiKey against every configured key in constant time.
func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	candidate := []byte(apiKey)
	var (
		match Identity
		found bool
	)
	for _, entry := range v.keys {
		if subtle.ConstantTimeCompare(entry.key, candidate) == 1 {
			match, found = entry.identity, true
		}
	}
	return match, found
}
