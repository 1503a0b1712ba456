package entity

import (
	"fmt"
	"strings"
)

// MaxRecentItems bounds ChannelState.RecentItemIDs.
const MaxRecentItems = 20

type PollMode string

const (
	// PollModeFullList fetches the top-N items and diffs the whole list.
	PollModeFullList PollMode = "full"
	// PollModeLatestOnly fetches only the newest item each cycle.
	PollModeLatestOnly PollMode = "latest"
)

func ParsePollMode(s string) (PollMode, error) {
	switch PollMode(strings.ToLower(strings.TrimSpace(s))) {
	case PollModeFullList, "":
		return PollModeFullList, nil
	case PollModeLatestOnly:
		return PollModeLatestOnly, nil
	default:
		return "", fmt.Errorf("unknown poll mode: %s", s)
	}
}

// ChannelRecord is one configured channel. ResolvedID stays empty until the
// identifier has been resolved once.
type ChannelRecord struct {
	Identifier string `json:"identifier"`
	ResolvedID string `json:"resolved_id"`
}

func NewChannelRecord(identifier, resolvedID string) *ChannelRecord {
	return &ChannelRecord{
		Identifier: identifier,
		ResolvedID: resolvedID,
	}
}

func (c *ChannelRecord) IsResolved() bool {
	return c.ResolvedID != ""
}

// ChannelID is the id to poll: the resolved id, or the identifier itself
// when it already is a channel id.
func (c *ChannelRecord) ChannelID() string {
	if c.ResolvedID != "" {
		return c.ResolvedID
	}
	if IsHandle(c.Identifier) {
		return ""
	}
	return c.Identifier
}

// ChannelState is the persisted "last seen" marker of a channel.
type ChannelState struct {
	ChannelID     string   `json:"channel_id"`
	RecentItemIDs []string `json:"recent_item_ids"`
}

func (s *ChannelState) Contains(id string) bool {
	for _, known := range s.RecentItemIDs {
		if known == id {
			return true
		}
	}
	return false
}

// IsHandle reports whether identifier is a user-facing handle such as "@name".
func IsHandle(identifier string) bool {
	return strings.HasPrefix(identifier, "@")
}

// IsCanonicalChannelID reports whether identifier looks like a YouTube channel id.
func IsCanonicalChannelID(identifier string) bool {
	return strings.HasPrefix(identifier, "UC") && len(identifier) == 24
}

// TruncateIDs bounds ids to MaxRecentItems without aliasing the input.
func TruncateIDs(ids []string) []string {
	if len(ids) > MaxRecentItems {
		ids = ids[:MaxRecentItems]
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
