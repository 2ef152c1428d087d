// Package seqid issues human-readable business identifiers (PAT-2025-001,
// PH-2025-014, CS1A2B-03) from counter rows in id_sequence.
package seqid

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hms/hms/internal/platform/db"
)

// Prefixes of the generated identifiers.
const (
	PrefixPatient      = "PAT"
	PrefixBill         = "PH"
	PrefixRegistration = "MRU"
	PrefixCaseSheet    = "CS"
)

// Sequencer returns the next value of the counter (scope, period). The first
// value of a new counter is 1.
type Sequencer interface {
	Next(ctx context.Context, scope string, period int) (int, error)
}

// nextSQL increments the counter in a single statement. Concurrent callers
// serialize on the counter row; inside a transaction the row stays locked
// until commit, so a rolled-back unit of work does not consume a value.
const nextSQL = `INSERT INTO id_sequence (scope, period, last_value)
	VALUES ($1, $2, 1)
	ON CONFLICT (scope, period)
	DO UPDATE SET last_value = id_sequence.last_value + 1, updated_at = NOW()
	RETURNING last_value`

// Generator is the PostgreSQL Sequencer. It runs on the transaction in ctx
// when one is present.
type Generator struct {
	db     db.Querier
	tracer trace.Tracer
}

func NewGenerator(q db.Querier) *Generator {
	return &Generator{db: q, tracer: otel.Tracer("hms.internal.platform.seqid")}
}

func (g *Generator) Next(ctx context.Context, scope string, period int) (int, error) {
	ctx, span := g.tracer.Start(ctx, "seqid.next", trace.WithAttributes(
		attribute.String("seqid.scope", scope),
		attribute.Int("seqid.period", period),
	))
	defer span.End()

	var n int
	if err := db.Conn(ctx, g.db).QueryRow(ctx, nextSQL, scope, period).Scan(&n); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("seqid: next %s/%d: %w", scope, period, err)
	}
	return n, nil
}

// Yearly formats <prefix>-<year>-<seq:03>.
func Yearly(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%d-%03d", prefix, year, seq)
}

// PatientScope is the counter scope for identifiers numbered per patient.
func PatientScope(prefix string, patientID uuid.UUID) string {
	return prefix + ":" + patientID.String()
}

// PatientScoped formats <prefix><LAST4>-<seq:02>, LAST4 being the last four
// hex digits of the patient's internal id, upper-cased.
func PatientScoped(prefix string, patientID uuid.UUID, seq int) string {
	hex := strings.ReplaceAll(patientID.String(), "-", "")
	return fmt.Sprintf("%s%s-%02d", prefix, strings.ToUpper(hex[len(hex)-4:]), seq)
}

// Memory is an in-process Sequencer used by tests and by tooling that runs
// without a database.
type Memory struct {
	mu     sync.Mutex
	values map[string]int
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]int)}
}

func (m *Memory) Next(_ context.Context, scope string, period int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s/%d", scope, period)
	m.values[key]++
	return m.values[key], nil
}

// Set forces the last issued value of a counter.
func (m *Memory) Set(scope string, period, last int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[fmt.Sprintf("%s/%d", scope, period)] = last
}

// Last returns the last issued value of a counter, 0 when none was issued.
func (m *Memory) Last(scope string, period int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[fmt.Sprintf("%s/%d", scope, period)]
}
