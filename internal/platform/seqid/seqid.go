// Package seqid allocates the human-readable business identifiers carried by
// patients (PAT-00001), doctors (DOC-00001) and appointments (APT-000001).
//
// Identifiers are derived from the highest one already stored: the numeric
// suffix after the last "-" is incremented and zero-padded to the kind's
// width. Allocation is expected to run inside the transaction that inserts
// the new record, behind a per-kind lock; the UNIQUE constraint on each
// identifier column catches anything that slips through, and Retry gives
// the caller one more attempt.
package seqid

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/apperr"
)

type Kind string

const (
	KindPatient     Kind = "patient"
	KindDoctor      Kind = "doctor"
	KindAppointment Kind = "appointment"
)

// Format is the prefix and zero-padded width of one identifier kind.
type Format struct {
	Prefix string
	Width  int
}

var formats = map[Kind]Format{
	KindPatient:     {Prefix: "PAT", Width: 5},
	KindDoctor:      {Prefix: "DOC", Width: 5},
	KindAppointment: {Prefix: "APT", Width: 6},
}

// FormatFor returns the format registered for kind.
func FormatFor(kind Kind) (Format, bool) {
	f, ok := formats[kind]
	return f, ok
}

func (f Format) Render(n int64) string {
	return fmt.Sprintf("%s-%0*d", f.Prefix, f.Width, n)
}

func (f Format) Seed() string {
	return f.Render(1)
}

// Next returns the identifier following last. An empty last yields the seed.
// The counter is not capped by Width: past the padded range the suffix simply
// grows a digit.
func (f Format) Next(last string) (string, error) {
	if last == "" {
		return f.Seed(), nil
	}
	i := strings.LastIndex(last, "-")
	if i < 0 {
		return "", apperr.MalformedSequence(fmt.Sprintf("malformed identifier %q", last), errors.New("missing separator"))
	}
	suffix := last[i+1:]
	if suffix == "" || strings.TrimLeft(suffix, "0123456789") != "" {
		return "", apperr.MalformedSequence(fmt.Sprintf("malformed identifier %q", last), errors.New("non-numeric suffix"))
	}
	n, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return "", apperr.MalformedSequence(fmt.Sprintf("malformed identifier %q", last), err)
	}
	if n == math.MaxInt64 {
		return "", apperr.MalformedSequence(fmt.Sprintf("identifier %q cannot be incremented", last), errors.New("counter exhausted"))
	}
	return f.Render(n + 1), nil
}

// Source reads the most recently allocated identifier of a kind, or "" when
// none exists yet.
type Source interface {
	LastID(ctx context.Context, kind Kind) (string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, kind Kind) (string, error)

func (fn SourceFunc) LastID(ctx context.Context, kind Kind) (string, error) {
	return fn(ctx, kind)
}

// Locker serializes allocations of one kind for the rest of the current
// transaction.
type Locker interface {
	Lock(ctx context.Context, key string) error
}

// ConflictRecorder is notified every time an allocation collides.
type ConflictRecorder interface {
	SequenceConflict(kind string)
}

// ErrCollision marks a write rejected because its identifier was taken.
var ErrCollision = errors.New("business identifier collision")

// Collision wraps a duplicate-key error on an identifier column.
func Collision(id string, cause error) error {
	return apperr.Conflict(
		fmt.Sprintf("identifier %s is already allocated", id),
		fmt.Errorf("%w: %v", ErrCollision, cause),
	)
}

type Allocator struct {
	src      Source
	locker   Locker
	recorder ConflictRecorder
	logger   zerolog.Logger
}

type Option func(*Allocator)

// WithLocker makes Next take a per-kind lock before reading the last id.
func WithLocker(l Locker) Option {
	return func(a *Allocator) { a.locker = l }
}

func WithConflictRecorder(r ConflictRecorder) Option {
	return func(a *Allocator) { a.recorder = r }
}

func New(src Source, logger zerolog.Logger, opts ...Option) *Allocator {
	a := &Allocator{src: src, logger: logger.With().Str("component", "seqid").Logger()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Next allocates the next identifier for kind.
func (a *Allocator) Next(ctx context.Context, kind Kind) (string, error) {
	f, ok := formats[kind]
	if !ok {
		return "", fmt.Errorf("unknown identifier kind %q", kind)
	}
	if a.locker != nil {
		if err := a.locker.Lock(ctx, "seqid:"+string(kind)); err != nil {
			return "", err
		}
	}

	last, err := a.src.LastID(ctx, kind)
	if err != nil {
		return "", fmt.Errorf("read last %s identifier: %w", kind, err)
	}

	next, err := f.Next(last)
	if err != nil {
		a.logger.Error().Err(err).Str("kind", string(kind)).Str("last", last).Msg("cannot derive next identifier")
		return "", err
	}
	return next, nil
}

// Retry runs fn, and runs it exactly once more if it fails with a
// collision. fn must cover the whole allocate-and-insert unit so the second
// attempt reads a fresh last identifier.
func (a *Allocator) Retry(ctx context.Context, kind Kind, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if !errors.Is(err, ErrCollision) {
		return err
	}
	a.noteConflict(kind, err, 1)

	err = fn(ctx)
	if errors.Is(err, ErrCollision) {
		a.noteConflict(kind, err, 2)
	}
	return err
}

func (a *Allocator) noteConflict(kind Kind, err error, attempt int) {
	a.logger.Warn().Err(err).Str("kind", string(kind)).Int("attempt", attempt).Msg("identifier collision")
	if a.recorder != nil {
		a.recorder.SequenceConflict(string(kind))
	}
}
