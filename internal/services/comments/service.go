package comments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tenant-console/internal/api"
	"tenant-console/internal/logging"
	"tenant-console/internal/querycache"
)

// ErrEmptyComment rejects blank comment bodies before any request
var ErrEmptyComment = errors.New("comment body is required")

// tempPrefix marks comments not yet confirmed by the server
const tempPrefix = "temp-"

// Comment is one task comment
type Comment struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"taskId"`
	Content    string    `json:"content"`
	AuthorID   string    `json:"authorId,omitempty"`
	AuthorName string    `json:"authorName,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
}

// Pending reports whether the comment is an optimistic placeholder
func (c Comment) Pending() bool {
	return strings.HasPrefix(c.ID, tempPrefix)
}

// Author is attached to optimistic comments so they render immediately
type Author struct {
	ID   string
	Name string
}

// Service reads and mutates task comments through the shared cache
type Service struct {
	client *api.Client
	cache  *querycache.Cache
	log    *zap.Logger
	now    func() time.Time
}

// NewService creates a comment service
func NewService(client *api.Client, cache *querycache.Cache) *Service {
	return &Service{
		client: client,
		cache:  cache,
		log:    logging.Named("comments"),
		now:    time.Now,
	}
}

// ListKey is the cache key of a task's comment list
func ListKey(taskID string) string {
	return "tasks/" + taskID + "/comments"
}

// TaskKey is the cache key of the task detail, which embeds a comment count
func TaskKey(taskID string) string {
	return "tasks/" + taskID
}

func commentsPath(taskID string, parts ...string) string {
	segments := []string{"api/tasks", url.PathEscape(taskID), "comments"}
	for _, p := range parts {
		segments = append(segments, url.PathEscape(p))
	}
	return strings.Join(segments, "/")
}

// List returns the task's comments, from cache when present
func (s *Service) List(ctx context.Context, taskID string) ([]Comment, error) {
	if cached, ok := s.cache.Get(ListKey(taskID)); ok {
		return slices.Clone(cached.([]Comment)), nil
	}

	var comments []Comment
	if err := s.client.GetJSON(ctx, commentsPath(taskID), nil, &comments); err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}
	s.cache.Set(ListKey(taskID), comments)
	return slices.Clone(comments), nil
}

// Add appends a placeholder comment, posts it, and swaps in the server copy.
// On failure the list is restored.
func (s *Service) Add(ctx context.Context, taskID, content string, author Author) (*Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyComment
	}

	temp := Comment{
		ID:         tempPrefix + uuid.New().String(),
		TaskID:     taskID,
		Content:    content,
		AuthorID:   author.ID,
		AuthorName: author.Name,
		CreatedAt:  s.now(),
	}

	var created Comment
	err := s.mutate(taskID, func(list []Comment) []Comment {
		return append(list, temp)
	}, func() error {
		body := map[string]string{"content": content}
		return s.client.PostJSON(ctx, commentsPath(taskID), body, &created)
	}, func(list []Comment) []Comment {
		if slices.ContainsFunc(list, func(c Comment) bool { return c.ID == temp.ID }) {
			return replace(list, temp.ID, created)
		}
		// the list was replaced while the request was in flight
		if !slices.ContainsFunc(list, func(c Comment) bool { return c.ID == created.ID }) {
			list = append(list, created)
		}
		return list
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	return &created, nil
}

// Update edits a comment in place before the server confirms it
func (s *Service) Update(ctx context.Context, taskID, commentID, content string) (*Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyComment
	}

	var updated Comment
	err := s.mutate(taskID, func(list []Comment) []Comment {
		for i := range list {
			if list[i].ID == commentID {
				list[i].Content = content
				list[i].UpdatedAt = s.now()
			}
		}
		return list
	}, func() error {
		body := map[string]string{"content": content}
		return s.client.PutJSON(ctx, commentsPath(taskID, commentID), body, &updated)
	}, func(list []Comment) []Comment {
		return replace(list, commentID, updated)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	return &updated, nil
}

// Delete removes a comment from the list before the server confirms it
func (s *Service) Delete(ctx context.Context, taskID, commentID string) error {
	drop := func(list []Comment) []Comment {
		return slices.DeleteFunc(list, func(c Comment) bool { return c.ID == commentID })
	}
	err := s.mutate(taskID, drop, func() error {
		return s.client.DeleteJSON(ctx, commentsPath(taskID, commentID))
	}, drop)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

// mutate runs one optimistic transaction on the task's comment list.
// speculate edits a copy of the cached list and call performs the request.
// settle rewrites the list cached when the request returns, which may
// already carry other mutations, with the server's answer.
func (s *Service) mutate(taskID string, speculate func([]Comment) []Comment, call func() error, settle func([]Comment) []Comment) error {
	_, err := s.cache.Optimistic(ListKey(taskID), func(current interface{}) interface{} {
		list, _ := current.([]Comment)
		return speculate(slices.Clone(list))
	}, func() (func(interface{}) interface{}, error) {
		if err := call(); err != nil {
			return nil, err
		}
		return func(current interface{}) interface{} {
			list, _ := current.([]Comment)
			return settle(slices.Clone(list))
		}, nil
	})
	if err != nil {
		s.log.Warn("Comment mutation rolled back", zap.String("task_id", taskID), zap.Error(err))
		return err
	}

	s.cache.Invalidate(TaskKey(taskID))
	return nil
}

func replace(list []Comment, id string, with Comment) []Comment {
	for i := range list {
		if list[i].ID == id {
			list[i] = with
		}
	}
	return list
}
