package application

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"channelwatch/internal/domain/entity"
	"channelwatch/internal/domain/repository"
)

const lookupKeyPrefix = "username_"

var errChannelNotFound = errors.New("no channel found for identifier")

// IDResolver maps a handle to a canonical channel id.
type IDResolver interface {
	ResolveID(ctx context.Context, identifier string) (string, error)
}

// Resolver caches successful handle lookups in the lookup store. Failures
// are never cached so the next cycle tries again.
type Resolver struct {
	source IDResolver
	cache  repository.KVStore
	logger *zap.Logger
}

func NewResolver(source IDResolver, cache repository.KVStore, logger *zap.Logger) *Resolver {
	return &Resolver{
		source: source,
		cache:  cache,
		logger: logger,
	}
}

func (r *Resolver) Resolve(ctx context.Context, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", &repository.ResolutionError{Identifier: identifier, Err: repository.ErrInvalidIdentifier}
	}
	if !entity.IsHandle(identifier) {
		return identifier, nil
	}

	key := lookupKeyPrefix + identifier
	if r.cache != nil {
		cached, ok, err := repository.GetJSON[string](ctx, r.cache, key)
		if err != nil {
			r.logger.Warn("Lookup cache unavailable", zap.String("identifier", identifier), zap.Error(err))
		} else if ok && cached != "" {
			return cached, nil
		}
	}

	channelID, err := r.source.ResolveID(ctx, identifier)
	if err != nil {
		return "", &repository.ResolutionError{Identifier: identifier, Err: err}
	}
	if channelID == "" {
		return "", &repository.ResolutionError{Identifier: identifier, Err: errChannelNotFound}
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, channelID); err != nil {
			r.logger.Warn("Failed to cache resolved id", zap.String("identifier", identifier), zap.Error(err))
		}
	}

	r.logger.Info("Resolved channel identifier",
		zap.String("identifier", identifier),
		zap.String("channel_id", channelID),
	)
	return channelID, nil
}
