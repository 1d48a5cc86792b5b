// Package queue defines the background tasks AppCenter schedules and the
// Enqueuer abstraction the services depend on. Client implements it on top of
// asynq; internal/processing implements it in-process.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// ExpireStagedFileTask is scheduled after each upload, delayed by the
	// staging TTL.
	ExpireStagedFileTask = "staged:expire"
	// MirrorVersionTask copies a confirmed binary to object storage.
	MirrorVersionTask = "version:mirror"
	// UnmirrorObjectsTask removes mirrored binaries after deletion.
	UnmirrorObjectsTask = "version:unmirror"
)

// ExpirePayload names the staged file to expire.
type ExpirePayload struct {
	FileID string `json:"file_id"`
}

// MirrorPayload names the version whose binary should be mirrored.
type MirrorPayload struct {
	VersionID string `json:"version_id"`
}

// UnmirrorPayload lists upload-relative object keys to delete.
type UnmirrorPayload struct {
	ObjectKeys []string `json:"object_keys"`
}

// Enqueuer schedules background work.
type Enqueuer interface {
	ScheduleExpiry(ctx context.Context, fileID string, after time.Duration) error
	EnqueueMirror(ctx context.Context, versionID string) error
	EnqueueUnmirror(ctx context.Context, objectKeys []string) error
}

// Client enqueues tasks into Redis through asynq.
type Client struct {
	client *asynq.Client
}

var _ Enqueuer = (*Client)(nil)

// NewClient wraps an asynq client.
func NewClient(client *asynq.Client) *Client {
	return &Client{client: client}
}

// NewExpireTask builds the delayed expiry task for fileID.
func NewExpireTask(fileID string) (*asynq.Task, error) {
	return newTask(ExpireStagedFileTask, ExpirePayload{FileID: fileID})
}

// NewMirrorTask builds the mirror task for versionID.
func NewMirrorTask(versionID string) (*asynq.Task, error) {
	return newTask(MirrorVersionTask, MirrorPayload{VersionID: versionID})
}

// NewUnmirrorTask builds the removal task for objectKeys.
func NewUnmirrorTask(objectKeys []string) (*asynq.Task, error) {
	return newTask(UnmirrorObjectsTask, UnmirrorPayload{ObjectKeys: objectKeys})
}

func newTask(typename string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(typename, data), nil
}

// ScheduleExpiry enqueues the expiry of fileID to run after the given delay.
func (c *Client) ScheduleExpiry(ctx context.Context, fileID string, after time.Duration) error {
	task, err := NewExpireTask(fileID)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task, asynq.ProcessIn(after), asynq.MaxRetry(3)); err != nil {
		return fmt.Errorf("enqueue expire task: %w", err)
	}
	return nil
}

// EnqueueMirror enqueues a mirror job for versionID.
func (c *Client) EnqueueMirror(ctx context.Context, versionID string) error {
	task, err := NewMirrorTask(versionID)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue mirror task: %w", err)
	}
	return nil
}

// EnqueueUnmirror enqueues removal of mirrored objects.
func (c *Client) EnqueueUnmirror(ctx context.Context, objectKeys []string) error {
	if len(objectKeys) == 0 {
		return nil
	}
	task, err := NewUnmirrorTask(objectKeys)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue unmirror task: %w", err)
	}
	return nil
}

// Decode unmarshals a task payload.
func Decode[T any](t *asynq.Task) (T, error) {
	var payload T
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %w", t.Type(), err)
	}
	return payload, nil
}
