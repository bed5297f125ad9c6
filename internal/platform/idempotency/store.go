// Package idempotency guards settlement commits against in-flight duplicates. A key is
// reserved before any write, completed with the committed result and replayed afterwards.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	// DefaultTTL is how long reservations are retained.
	DefaultTTL = 24 * time.Hour
	// StatusPending means a commit holds the key but has not finished.
	StatusPending Status = "pending"
	// StatusCompleted means the commit finished and its result can be replayed.
	StatusCompleted Status = "completed"
)

// ReservationState describes the outcome of Reserve.
type ReservationState int

const (
	// ReservationStateNew means the caller owns the key and may proceed.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted means an earlier commit finished; replay Record.Result.
	ReservationStateCompleted
	// ReservationStatePending means another commit is still running with this key.
	ReservationStatePending
)

// Reservation is the result of Reserve.
type Reservation struct {
	State  ReservationState
	Record Record
}

// Record is the persisted reservation. The tags name the Firestore fields.
type Record struct {
	Key         string    `firestore:"key"`
	Fingerprint string    `firestore:"fingerprint"`
	Status      Status    `firestore:"status"`
	Result      []byte    `firestore:"result"`
	CreatedAt   time.Time `firestore:"created_at"`
	UpdatedAt   time.Time `firestore:"updated_at"`
	ExpiresAt   time.Time `firestore:"expires_at"`
}

func (r Record) expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Store persists reservations.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	Complete(ctx context.Context, key, fingerprint string, result []byte, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

var (
	// ErrFingerprintMismatch is returned when a key is reused for a different payload.
	ErrFingerprintMismatch = errors.New("idempotency: key reserved for different fingerprint")
	// ErrKeyRequired is returned for blank keys.
	ErrKeyRequired = errors.New("idempotency: key is required")
)

// Fingerprint hashes the parts that identify one commit payload.
func Fingerprint(parts ...string) string {
	return sha256Hex([]byte(strings.Join(parts, "\x1f")))
}

func documentID(key string) string {
	return sha256Hex([]byte(strings.TrimSpace(key)))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func normalise(key string, now time.Time, ttl time.Duration) (string, time.Time, time.Duration, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", time.Time{}, 0, ErrKeyRequired
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return key, now.UTC(), ttl, nil
}

// reserveTransition decides the outcome of Reserve against the stored record. When write is
// true the caller must persist res.Record before reporting success.
func reserveTransition(stored Record, found bool, key, fingerprint string, now time.Time, ttl time.Duration) (res Reservation, write bool, err error) {
	if !found || stored.expired(now) {
		fresh := Record{
			Key:         key,
			Fingerprint: fingerprint,
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		}
		return Reservation{State: ReservationStateNew, Record: fresh}, true, nil
	}
	if stored.Fingerprint != fingerprint {
		return Reservation{}, false, ErrFingerprintMismatch
	}
	stored.Result = append([]byte(nil), stored.Result...)
	if stored.Status == StatusCompleted {
		return Reservation{State: ReservationStateCompleted, Record: stored}, false, nil
	}
	return Reservation{State: ReservationStatePending, Record: stored}, false, nil
}

// completeTransition returns the record Complete must persist. Completing a key that was never
// reserved, or whose reservation expired, records it as completed now.
func completeTransition(stored Record, found bool, key, fingerprint string, result []byte, now time.Time, ttl time.Duration) (Record, error) {
	if found && stored.Fingerprint != fingerprint {
		return Record{}, ErrFingerprintMismatch
	}
	if !found {
		stored = Record{Key: key, Fingerprint: fingerprint, CreatedAt: now}
	}
	stored.Status = StatusCompleted
	stored.Result = append([]byte(nil), result...)
	stored.UpdatedAt = now
	stored.ExpiresAt = now.Add(ttl)
	return stored, nil
}
