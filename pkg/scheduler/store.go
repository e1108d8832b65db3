// Package scheduler provides the delayed-job store and the poller daemon that
// fires wait resumes, event-wait timeouts and retry delays.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/driftline/journey/pkg/protocol"
)

const jobsKey = "journey:scheduled_jobs"

// RedisJobStore keeps scheduled jobs in a Redis sorted set scored by fire
// time. Members are the serialized JobRef, so scheduling the same ref twice
// just moves its fire time.
type RedisJobStore struct {
	client redis.UniversalClient
}

// NewRedisJobStore creates a job store on an existing Redis client.
func NewRedisJobStore(client redis.UniversalClient) *RedisJobStore {
	return &RedisJobStore{client: client}
}

func jobMember(ref protocol.JobRef) (string, error) {
	member, err := json.Marshal(ref)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job ref: %w", err)
	}

	return string(member), nil
}

// ScheduleAt registers the job to fire at the given time.
func (s *RedisJobStore) ScheduleAt(ctx context.Context, at time.Time, ref protocol.JobRef) error {
	member, err := jobMember(ref)
	if err != nil {
		return err
	}

	err = s.client.ZAdd(ctx, jobsKey, redis.Z{
		Score:  float64(at.UTC().Unix()),
		Member: member,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}

	return nil
}

// CancelScheduled removes the job if it has not fired yet. Cancelling a job
// that already fired or never existed is a no-op.
func (s *RedisJobStore) CancelScheduled(ctx context.Context, ref protocol.JobRef) error {
	member, err := jobMember(ref)
	if err != nil {
		return err
	}

	err = s.client.ZRem(ctx, jobsKey, member).Err()
	if err != nil {
		return fmt.Errorf("failed to cancel scheduled job: %w", err)
	}

	return nil
}

// Due returns up to limit jobs whose fire time has passed.
func (s *RedisJobStore) Due(ctx context.Context, now time.Time, limit int64) ([]protocol.JobRef, error) {
	members, err := s.client.ZRangeByScore(ctx, jobsKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UTC().Unix()),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query due jobs: %w", err)
	}

	refs := make([]protocol.JobRef, 0, len(members))

	for _, member := range members {
		var ref protocol.JobRef

		if err := json.Unmarshal([]byte(member), &ref); err != nil {
			// Drop members that no longer parse so they don't wedge the poller.
			_ = s.client.ZRem(ctx, jobsKey, member).Err()

			continue
		}

		refs = append(refs, ref)
	}

	return refs, nil
}

// Remove acknowledges a dispatched job.
func (s *RedisJobStore) Remove(ctx context.Context, ref protocol.JobRef) error {
	return s.CancelScheduled(ctx, ref)
}

var _ protocol.JobScheduler = (*RedisJobStore)(nil)
