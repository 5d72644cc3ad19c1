// Package auth resolves bearer credentials into caller identities
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/ethanbaker/voicechat/pkg/apperr"
)

// Identity is the authenticated caller
type Identity struct {
	OwnerID    string
	OwnerLabel string
}

// Authenticator validates a credential
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (Identity, error)
}

type tokenEntry struct {
	token    []byte
	identity Identity
}

// TokenTable is a static credential table loaded from configuration
type TokenTable struct {
	entries []tokenEntry
}

// ParseTokenTable parses "token=ownerId:label,token2=ownerId2:label2". The
// label is optional and defaults to the owner id.
func ParseTokenTable(spec string) (*TokenTable, error) {
	table := &TokenTable{}
	seen := make(map[string]bool)

	for raw := range strings.SplitSeq(spec, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		token, owner, found := strings.Cut(raw, "=")
		token = strings.TrimSpace(token)
		if !found || token == "" {
			return nil, fmt.Errorf("invalid token entry %q: expected token=ownerId[:label]", raw)
		}

		ownerID, label, _ := strings.Cut(owner, ":")
		ownerID = strings.TrimSpace(ownerID)
		if ownerID == "" {
			return nil, fmt.Errorf("token entry for %q has no owner id", mask(token))
		}
		if label = strings.TrimSpace(label); label == "" {
			label = ownerID
		}

		if seen[token] {
			return nil, fmt.Errorf("duplicate token %q", mask(token))
		}
		seen[token] = true

		table.entries = append(table.entries, tokenEntry{
			token:    []byte(token),
			identity: Identity{OwnerID: ownerID, OwnerLabel: label},
		})
	}

	if len(table.entries) == 0 {
		return nil, fmt.Errorf("no API tokens configured")
	}

	return table, nil
}

// Len returns the number of configured tokens
func (t *TokenTable) Len() int {
	return len(t.entries)
}

// Authenticate returns the identity bound to credential
func (t *TokenTable) Authenticate(_ context.Context, credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, apperr.Unauthenticated("missing credential")
	}

	// Compare against every entry so timing does not reveal a partial match
	candidate := []byte(credential)
	var match *Identity
	for i := range t.entries {
		if subtle.ConstantTimeCompare(t.entries[i].token, candidate) == 1 {
			match = &t.entries[i].identity
		}
	}

	if match == nil {
		return Identity{}, apperr.Unauthenticated("invalid credential")
	}
	return *match, nil
}

// mask hides all but the first characters of a token for error messages
func mask(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}
