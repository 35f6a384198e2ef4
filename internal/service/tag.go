package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/shelfapp/shelf-server/internal/color"
	"github.com/shelfapp/shelf-server/internal/domain"
	domainerrors "github.com/shelfapp/shelf-server/internal/errors"
	"github.com/shelfapp/shelf-server/internal/id"
	"github.com/shelfapp/shelf-server/internal/store"
	"github.com/shelfapp/shelf-server/internal/store/sqlite"
	"github.com/shelfapp/shelf-server/internal/validation"
)

const (
	minTagNameLength = 1
	maxTagNameLength = 36
)

// TagService manages a user's personal tags.
// Every operation is scoped to the calling user.
type TagService struct {
	store  *sqlite.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewTagService creates a new tag service.
func NewTagService(store *sqlite.Store, logger *slog.Logger) *TagService {
	return &TagService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// CreateTagRequest is the input for creating a tag. Color defaults to a
// value derived from the name.
type CreateTagRequest struct {
	Name  string
	Color *string
}

// UpdateTagRequest carries optional tag updates.
type UpdateTagRequest struct {
	Name  *string
	Color *string
}

// List returns userID's tags ordered by name.
func (s *TagService) List(ctx context.Context, userID string) ([]*domain.Tag, error) {
	return s.store.ListTags(ctx, userID)
}

// Get returns one of userID's tags.
func (s *TagService) Get(ctx context.Context, userID, tagID string) (*domain.Tag, error) {
	tag, err := s.store.GetTag(ctx, tagID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.TagNotFound(tagID)
		}
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return tag, nil
}

// Create adds a tag for userID.
func (s *TagService) Create(ctx context.Context, userID string, req CreateTagRequest) (*domain.Tag, error) {
	name, err := validateTagName(&req.Name, false)
	if err != nil {
		return nil, err
	}
	tagColor, err := validateTagColor(req.Color)
	if err != nil {
		return nil, err
	}
	if tagColor == "" {
		tagColor = color.ForTag(name)
	}

	tag := &domain.Tag{
		ID:        id.MustGenerate("tag"),
		UserID:    userID,
		Name:      name,
		Color:     tagColor,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateTag(ctx, tag); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("Tag already exists: " + name)
		}
		return nil, fmt.Errorf("create tag: %w", err)
	}

	s.logger.Info("tag created", "tag_id", tag.ID, "user_id", userID)
	return tag, nil
}

// FindOrCreate returns userID's tag with the given name, creating it when missing.
func (s *TagService) FindOrCreate(ctx context.Context, userID, name string) (*domain.Tag, error) {
	normalized, err := validateTagName(&name, false)
	if err != nil {
		return nil, err
	}

	tag, err := s.store.GetTagByName(ctx, userID, normalized)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("get tag by name: %w", err)
	}

	tag, err = s.Create(ctx, userID, CreateTagRequest{Name: normalized})
	if errors.Is(err, domainerrors.ErrAlreadyExists) {
		// Lost a race with a concurrent create.
		return s.store.GetTagByName(ctx, userID, normalized)
	}
	return tag, err
}

// Update renames or recolors one of userID's tags.
func (s *TagService) Update(ctx context.Context, userID, tagID string, req UpdateTagRequest) (*domain.Tag, error) {
	tag, err := s.Get(ctx, userID, tagID)
	if err != nil {
		return nil, err
	}

	name, err := validateTagName(req.Name, true)
	if err != nil {
		return nil, err
	}
	tagColor, err := validateTagColor(req.Color)
	if err != nil {
		return nil, err
	}
	if name != "" {
		tag.Name = name
	}
	if tagColor != "" {
		tag.Color = tagColor
	}

	if err := s.store.UpdateTag(ctx, tag); err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyExists):
			return nil, domainerrors.AlreadyExists("Tag already exists: " + tag.Name)
		case errors.Is(err, store.ErrNotFound):
			return nil, domainerrors.TagNotFound(tagID)
		}
		return nil, fmt.Errorf("update tag: %w", err)
	}

	s.logger.Info("tag updated", "tag_id", tag.ID, "user_id", userID)
	return tag, nil
}

// Delete removes one of userID's tags and its book associations.
func (s *TagService) Delete(ctx context.Context, userID, tagID string) error {
	if err := s.store.DeleteTag(ctx, tagID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.TagNotFound(tagID)
		}
		return fmt.Errorf("delete tag: %w", err)
	}
	s.logger.Info("tag deleted", "tag_id", tagID, "user_id", userID)
	return nil
}

// validateTagName NFC-normalizes and length-checks a tag name.
// Returns "" for a nil or blank name when nullable.
func validateTagName(name *string, nullable bool) (string, error) {
	if name != nil {
		normalized := norm.NFC.String(*name)
		name = &normalized
	}
	v, err := validation.ValidateLength(name, "name", minTagNameLength, maxTagNameLength, nullable)
	if err != nil || v == nil {
		return "", err
	}
	if strings.Contains(*v, ",") {
		return "", domainerrors.Validation("name must not contain commas")
	}
	return *v, nil
}

// validateTagColor returns the upper-cased color, or "" when unset.
func validateTagColor(c *string) (string, error) {
	if c == nil || strings.TrimSpace(*c) == "" {
		return "", nil
	}
	v := strings.TrimSpace(*c)
	if !color.Valid(v) {
		return "", domainerrors.Validation("color must be a hex color like #3A7BD5")
	}
	return color.Normalize(v), nil
}
